package sandbox

import (
	"fmt"
	"net/url"
	"strings"
)

// BaseURLResolver resolves root-relative and relative references against a
// base address. Only http and https results are allowed.
type BaseURLResolver struct {
	base *url.URL
}

func NewBaseURLResolver(base string) BaseURLResolver {
	parsed, err := url.Parse(base)
	if err != nil || base == "" {
		return BaseURLResolver{}
	}
	return BaseURLResolver{base: parsed}
}

func (r BaseURLResolver) ResolveURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty url", ErrForbidden)
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}

	if !parsed.IsAbs() {
		if r.base == nil {
			return parsed.String(), nil
		}
		parsed = r.base.ResolveReference(parsed)
	}

	switch parsed.Scheme {
	case "http", "https":
		return parsed.String(), nil
	case "":
		return parsed.String(), nil
	default:
		return "", fmt.Errorf("%w: url scheme %q", ErrForbidden, parsed.Scheme)
	}
}
