package main

import (
	"fmt"
	"net/url"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	lesson "github.com/koscakluka/ema-lesson/core"
	"github.com/koscakluka/ema-lesson/core/playback"
	"github.com/koscakluka/ema-lesson/core/repair"
	"github.com/koscakluka/ema-lesson/core/sandbox"
	"github.com/koscakluka/ema-lesson/core/stream"
	"github.com/koscakluka/ema-lesson/core/suppress"
	"github.com/koscakluka/ema-lesson/internal/config"
)

func newPlayCmd(a *app) *cobra.Command {
	var autoplayBlocked bool

	cmd := &cobra.Command{
		Use:   "play [url-or-file]",
		Short: "Play a lesson stream in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := a.cfg.Stream.URL
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" {
				return fmt.Errorf("no lesson stream: pass a url or file, or set stream.url")
			}

			src, err := openSource(target)
			if err != nil {
				return err
			}
			player, err := newPlayer(a.cfg, autoplayBlocked)
			if err != nil {
				return err
			}
			defer player.Close()

			model := newPlayModel(cmd.Context(), player, src)
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			model.bind(program)

			_, err = program.Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&autoplayBlocked, "autoplay-blocked", false, "require a key press before narration starts")
	return cmd
}

// openSource picks a transport from the target's scheme. Files are read
// up front so a retry replays them.
func openSource(target string) (stream.Source, error) {
	if u, err := url.Parse(target); err == nil {
		switch u.Scheme {
		case "http", "https":
			return stream.NewHTTPSource(target), nil
		case "ws", "wss":
			return stream.NewWebSocketSource(target), nil
		}
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("error reading lesson file: %w", err)
	}
	return stream.Static(string(data)), nil
}

func newPlayer(cfg *config.Config, autoplayBlocked bool) (*lesson.Player, error) {
	window, err := cfg.SuppressWindow()
	if err != nil {
		return nil, err
	}
	tick, err := cfg.PlaybackTick()
	if err != nil {
		return nil, err
	}

	audioOpts := []playback.HeadlessOption{playback.WithTick(tick)}
	if autoplayBlocked {
		audioOpts = append(audioOpts, playback.WithAutoplayBlocked())
	}

	opts := []lesson.PlayerOption{
		lesson.WithSandbox(sandbox.New(sandbox.WithDynamicCompile(cfg.Sandbox.Dynamic))),
		lesson.WithReporter(suppress.New(
			suppress.WithWindow(window),
			suppress.WithMaxPerFragment(cfg.Suppress.MaxPerFragment),
		)),
		lesson.WithAudioElement(playback.NewHeadlessElement(audioOpts...)),
		lesson.WithNarrationBaseURL(cfg.Narration.BaseURL),
	}
	if cfg.Repair.URL != "" {
		opts = append(opts, lesson.WithRepairer(repair.NewHTTPRepairer(cfg.Repair.URL), cfg.Repair.MaxAttempts))
	}
	return lesson.NewPlayer(opts...), nil
}
