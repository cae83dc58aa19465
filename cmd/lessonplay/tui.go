package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	lesson "github.com/koscakluka/ema-lesson/core"
	"github.com/koscakluka/ema-lesson/core/events"
	"github.com/koscakluka/ema-lesson/core/playback"
	"github.com/koscakluka/ema-lesson/core/sandbox"
	"github.com/koscakluka/ema-lesson/core/session"
	"github.com/koscakluka/ema-lesson/core/stream"
)

const defaultWidth = 80

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	visualStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type (
	viewMsg     session.View
	playbackMsg playback.State
	frameMsg    []string
	readyMsg    bool
	noticeMsg   lesson.Notice
	errMsg      struct{ err error }
)

// Player callbacks run on the player's goroutines with its locks held, so
// Update never calls the player directly; every call goes through a tea.Cmd.
type playModel struct {
	ctx     context.Context
	player  *lesson.Player
	src     stream.Source
	program *tea.Program

	spinner  spinner.Model
	width    int
	view     session.View
	playback playback.State
	texts    []string
	ready    bool
	notice   *lesson.Notice
	err      error
	captions bool
}

func newPlayModel(ctx context.Context, player *lesson.Player, src stream.Source) *playModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &playModel{
		ctx:      ctx,
		player:   player,
		src:      src,
		spinner:  s,
		width:    defaultWidth,
		view:     session.View{State: session.StateLoading, Loading: true},
		captions: true,
	}
}

func (m *playModel) bind(program *tea.Program) {
	m.program = program
}

func (m *playModel) send(msg tea.Msg) {
	if m.program != nil {
		m.program.Send(msg)
	}
}

func (m *playModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start)
}

func (m *playModel) start() tea.Msg {
	err := m.player.Start(m.ctx, m.src,
		lesson.WithViewCallback(func(view session.View) { m.send(viewMsg(view)) }),
		lesson.WithPlaybackCallback(func(state playback.State) { m.send(playbackMsg(state)) }),
		lesson.WithFrameCallback(func(canvas sandbox.Canvas) { m.send(frameMsg(canvasTexts(canvas))) }),
		lesson.WithReadyCallback(func(ready bool) { m.send(readyMsg(ready)) }),
		lesson.WithNoticeCallback(func(notice lesson.Notice) { m.send(noticeMsg(notice)) }),
	)
	if err != nil {
		return errMsg{err: err}
	}
	m.player.SetShowCaptions(true)
	return nil
}

func canvasTexts(canvas sandbox.Canvas) []string {
	if list, ok := canvas.(*sandbox.DisplayList); ok {
		return list.Texts()
	}
	return nil
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case viewMsg:
		m.view = session.View(msg)
		if m.view.State != session.StateError && m.notice != nil && m.notice.Kind == lesson.NoticeLesson {
			m.notice = nil
		}
	case playbackMsg:
		m.playback = playback.State(msg)
		if m.notice != nil && m.notice.Kind == lesson.NoticeGesture && !m.playback.NeedsUserGesture {
			m.notice = nil
		}
	case frameMsg:
		m.texts = msg
	case readyMsg:
		m.ready = bool(msg)
	case noticeMsg:
		notice := lesson.Notice(msg)
		m.notice = &notice
	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *playModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case "r":
		m.notice = nil
		return func() tea.Msg {
			if err := m.player.Retry(); err != nil {
				return errMsg{err: err}
			}
			return nil
		}
	case " ", "enter":
		return func() tea.Msg {
			m.player.Gesture()
			return nil
		}
	case "c":
		m.captions = !m.captions
		show := m.captions
		return func() tea.Msg {
			m.player.SetShowCaptions(show)
			return nil
		}
	case "+", "=":
		return m.volume(0.1)
	case "-":
		return m.volume(-0.1)
	}
	return nil
}

func (m *playModel) volume(delta float64) tea.Cmd {
	return func() tea.Msg {
		m.player.SetVolume(m.player.Volume() + delta)
		return nil
	}
}

func (m *playModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("error: %v", m.err)) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch {
	case m.view.State == session.StateError:
		b.WriteString(errorStyle.Render(m.view.ErrorMessage))
		b.WriteString("\n")
	case m.view.Loading && m.view.LatestRender == nil:
		b.WriteString(m.spinner.View() + " Preparing the lesson...")
		b.WriteString("\n")
	default:
		b.WriteString(m.visual())
		b.WriteString("\n")
		b.WriteString(m.narration())
		b.WriteString("\n")
	}

	if m.captions && m.view.State != session.StateError {
		if spoken := events.SpokenText(m.words(), m.playback.TimeSeconds); spoken != "" {
			b.WriteString("\n")
			b.WriteString(wordwrap.String(spoken, max(m.width-2, 20)))
			b.WriteString("\n")
		}
	}
	if m.view.FinalText != "" {
		b.WriteString("\n")
		b.WriteString(wordwrap.String(m.view.FinalText, max(m.width-2, 20)))
		b.WriteString("\n")
	}
	if m.notice != nil {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice.Message))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("space play/replay · r retry · c captions · +/- volume · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *playModel) header() string {
	title := "Lesson"
	if m.view.LatestRender != nil && m.view.LatestRender.Title != "" {
		title = m.view.LatestRender.Title
	}
	if slide := m.view.Slide; slide != nil {
		title = fmt.Sprintf("%s  %d/%d %s", title, slide.Index, slide.Total, slide.Title)
	}
	return titleStyle.Render(title)
}

func (m *playModel) visual() string {
	switch {
	case !m.ready && m.view.LatestRender != nil && len(m.texts) == 0:
		return visualStyle.Render(faintStyle.Render("Visual is on its way..."))
	case len(m.texts) == 0:
		return visualStyle.Render(faintStyle.Render("(no text in this visual)"))
	}
	return visualStyle.Render(strings.Join(m.texts, "\n"))
}

func (m *playModel) narration() string {
	state := m.playback
	switch {
	case state.URL == "":
		return faintStyle.Render("No narration yet")
	case state.Repairing:
		return faintStyle.Render("Narration paused while the visual is fixed")
	case state.NeedsUserGesture:
		return "Press space to start the narration"
	case state.Ended:
		return "Narration finished. Press space to replay"
	case state.Playing:
		return fmt.Sprintf("Playing %.1fs", state.TimeSeconds)
	case !state.VisualsReady:
		return faintStyle.Render("Narration waits for the visual")
	}
	return faintStyle.Render("Narration paused")
}

func (m *playModel) words() []events.WordTimestamp {
	if m.view.LatestSpeak == nil {
		return nil
	}
	return m.view.LatestSpeak.Words
}
