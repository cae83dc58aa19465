package playback

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveAudioURL returns ref unchanged when it is absolute and resolves it
// against base otherwise. An empty base leaves relative refs as they are.
func ResolveAudioURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid audio url %q: %w", ref, err)
	}
	if parsed.IsAbs() || base == "" {
		return parsed.String(), nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid narration base url %q: %w", base, err)
	}
	return baseURL.ResolveReference(parsed).String(), nil
}
