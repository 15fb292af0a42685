// Package tui is the terminal front end of the sandbox: one screen with an
// initialize button, an evaluate button, their status lines and a log box.
// bubbletea's Update goroutine is the UI context the screen controller
// requires; SDK callbacks reach it as dispatchMsg.
package tui

import (
	"context"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"intercept-sandbox/internal/screen"
	"intercept-sandbox/internal/sdk"
)

// dispatchMsg carries a continuation onto the Update goroutine.
type dispatchMsg func()

const (
	focusInitialize = iota
	focusEvaluate
)

type Model struct {
	ctx  context.Context
	ctrl *screen.Controller

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	focus   int
	width   int
	height  int
	blurred bool // terminal reported losing focus

	survey *survey
	notice string

	send func(tea.Msg)
	copy func(string) error
}

func New(ctx context.Context, cfg screen.Config, client screen.SDK) *Model {
	m := &Model{
		ctx:     ctx,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		copy:    clipboard.WriteAll,
	}
	m.ctrl = screen.New(cfg, client, m, screen.DispatcherFunc(m.dispatch))
	return m
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, cfg screen.Config, client screen.SDK) error {
	m := New(ctx, cfg, client)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	m.send = p.Send
	_, err := p.Run()
	return err
}

func (m *Model) dispatch(fn func()) {
	if m.send == nil {
		log.Warn().Msg("dispatch before program start; dropping")
		return
	}
	m.send(dispatchMsg(fn))
}

// ForegroundHost returns the survey overlay while the terminal window is
// the active one and has been laid out.
func (m *Model) ForegroundHost() (sdk.Host, bool) {
	if m.blurred || m.width == 0 {
		return nil, false
	}
	return surveyHost{m}, true
}

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatchMsg:
		msg()
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tea.FocusMsg:
		m.blurred = false
		return m, nil
	case tea.BlurMsg:
		m.blurred = true
		return m, nil
	case spinner.TickMsg:
		if !m.ctrl.State().Evaluating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.survey != nil {
			return m.updateSurvey(msg)
		}
		return m.updateMain(msg)
	}
	return m, nil
}

func (m *Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Initialize):
		return m.press(focusInitialize)
	case key.Matches(msg, m.keys.Evaluate):
		return m.press(focusEvaluate)
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Prev):
		m.focus = 1 - m.focus
		if m.focus == focusEvaluate && !m.ctrl.State().Initialized {
			m.focus = focusInitialize
		}
	case key.Matches(msg, m.keys.Press):
		return m.press(m.focus)
	}
	return m, nil
}

func (m *Model) press(target int) (tea.Model, tea.Cmd) {
	m.notice = ""
	switch target {
	case focusInitialize:
		m.focus = focusInitialize
		m.ctrl.Initialize(m.ctx)
	case focusEvaluate:
		// disabled until initialized
		if !m.ctrl.EvaluateAndDisplay(m.ctx) {
			return m, nil
		}
		m.focus = focusEvaluate
		return m, m.spinner.Tick
	}
	return m, nil
}
