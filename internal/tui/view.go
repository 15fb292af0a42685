package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"intercept-sandbox/internal/i18n"
)

func (m *Model) View() string {
	if m.survey != nil {
		box := m.survey.view()
		if m.width == 0 {
			return box
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	s := m.ctrl.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render(i18n.T("app.title", nil)))
	b.WriteString("\n")

	initBg := colorAction
	if s.Initialized {
		initBg = colorSuccess
	}
	b.WriteString(button(i18n.T("app.button.initialize", nil), initBg, m.focus == focusInitialize))
	b.WriteString("\n")
	initDot := colorSubtle
	if s.Initialized {
		initDot = colorSuccess
	}
	b.WriteString(dot(initDot) + statusStyle.Render(s.InitStatus))
	b.WriteString("\n")

	b.WriteString(dividerStyle.Render(strings.Repeat("─", 44)))
	b.WriteString("\n")

	evalBg := colorDisabled
	switch {
	case s.Displayed:
		evalBg = colorSuccess
	case s.Initialized:
		evalBg = colorAction
	}
	b.WriteString(button(i18n.T("app.button.evaluate", nil), evalBg, m.focus == focusEvaluate && s.Initialized))
	b.WriteString("\n")
	displayDot, prefix := colorSubtle, ""
	switch {
	case s.Displayed:
		displayDot = colorSuccess
	case s.Evaluating:
		displayDot = colorSpecial
		prefix = m.spinner.View() + " "
	}
	b.WriteString(dot(displayDot) + statusStyle.Render(prefix+s.DisplayStatus))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString(logsTitleStyle.Render(i18n.T("app.logs", nil)))
	b.WriteString("\n")
	b.WriteString(logsBoxStyle.Render(s.InitStatus + "\n" + s.DisplayStatus))
	b.WriteString("\n")

	b.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return docStyle.Render(b.String())
}
