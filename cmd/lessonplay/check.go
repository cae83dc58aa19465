package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-lesson/core/events"
	"github.com/koscakluka/ema-lesson/core/sandbox"
)

var errCheckFailed = errors.New("fragment check failed")

type checkOptions struct {
	language string
	time     float64
	title    string
	captions bool
	plain    bool
}

func newCheckCmd(a *app) *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check <fragment-file>",
		Short: "Compile and draw a visual fragment, reporting any failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading fragment: %w", err)
			}
			if opts.language == "" {
				opts.language = languageFor(args[0])
			}

			sb := sandbox.New(sandbox.WithDynamicCompile(a.cfg.Sandbox.Dynamic))
			caps := sandbox.DefaultCapabilities(a.cfg.Narration.BaseURL)
			return runCheck(cmd, sb, caps, sandbox.Fragment{Code: string(code), Language: opts.language}, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.language, "language", "", "fragment language: yaml or json (default: from file extension)")
	flags.Float64Var(&opts.time, "time", 0, "narration time in seconds to draw at")
	flags.StringVar(&opts.title, "title", "", "slide title to draw with")
	flags.BoolVar(&opts.captions, "captions", true, "draw with captions enabled")
	flags.BoolVar(&opts.plain, "plain", false, "disable syntax highlighting")
	return cmd
}

func languageFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return "json"
	default:
		return "yaml"
	}
}

func runCheck(cmd *cobra.Command, sb *sandbox.Sandbox, caps sandbox.Capabilities, fragment sandbox.Fragment, opts checkOptions) error {
	out := cmd.OutOrStdout()
	writeSource(out, fragment, opts.plain)

	rc := sandbox.RenderContext{
		Slide:        events.Slide{Index: 1, Total: 1, Title: opts.title},
		ShowCaptions: opts.captions,
		TimeSeconds:  opts.time,
	}
	_, canvas, err := sb.Load(cmd.Context(), fragment, caps, rc)
	switch {
	case sandbox.IsNotReady(err):
		fmt.Fprintln(out, "pending: fragment is a placeholder")
		return nil
	case err != nil:
		failure, ok := sandbox.AsFailure(err)
		if !ok {
			return err
		}
		fmt.Fprintf(out, "%s failure: %s\n", failure.Stage, failure.Message())
		return errCheckFailed
	}

	list, ok := canvas.(*sandbox.DisplayList)
	if !ok {
		fmt.Fprintln(out, "ok")
		return nil
	}
	fmt.Fprintf(out, "ok: %gx%g, %d drawing ops\n", list.Width, list.Height, len(list.Ops))
	for _, text := range list.Texts() {
		fmt.Fprintf(out, "  text: %s\n", text)
	}
	return nil
}

func writeSource(w io.Writer, fragment sandbox.Fragment, plain bool) {
	code := strings.TrimRight(fragment.Code, "\n")
	if !plain {
		var buffer strings.Builder
		if err := quick.Highlight(&buffer, code, fragment.Language, "terminal256", "monokai"); err == nil {
			code = buffer.String()
		}
	}
	fmt.Fprintf(w, "%s\n\n", code)
}
