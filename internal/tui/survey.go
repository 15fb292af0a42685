package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"intercept-sandbox/internal/i18n"
	"intercept-sandbox/internal/sdk"
)

// survey is an intercept presented on top of the screen.
type survey struct {
	interceptID string
	creative    sdk.Creative
	dismissSel  bool
}

// surveyHost is the screen's root view as seen by the SDK.
type surveyHost struct{ m *Model }

func (h surveyHost) Present(interceptID string, c sdk.Creative) {
	h.m.survey = &survey{interceptID: interceptID, creative: c}
}

func (m *Model) updateSurvey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.survey
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.Dismiss):
		m.survey = nil
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Prev),
		msg.String() == "left", msg.String() == "right":
		s.dismissSel = !s.dismissSel
	case key.Matches(msg, m.keys.Press):
		m.survey = nil
		if s.dismissSel || s.creative.SurveyURL == "" {
			return m, nil
		}
		m.takeSurvey(s)
	}
	return m, nil
}

func (m *Model) takeSurvey(s *survey) {
	url := s.creative.SurveyURL
	if err := m.copy(url); err != nil {
		log.Warn().Err(err).Str("intercept_id", s.interceptID).Msg("clipboard unavailable")
		m.notice = i18n.T("app.survey.copy_failed", map[string]any{"URL": url})
		return
	}
	log.Info().Str("intercept_id", s.interceptID).Msg("survey link copied")
	m.notice = i18n.T("app.survey.copied", map[string]any{"URL": url})
}

func (s *survey) view() string {
	take := s.creative.ActionText
	if take == "" {
		take = i18n.T("app.survey.take", nil)
	}
	dismiss := s.creative.DismissText
	if dismiss == "" {
		dismiss = i18n.T("app.survey.dismiss", nil)
	}
	takeStyle, dismissStyle := dialogActiveButtonStyle, dialogButtonStyle
	if s.dismissSel {
		takeStyle, dismissStyle = dialogButtonStyle, dialogActiveButtonStyle
	}

	parts := []string{dialogTitleStyle.Render(s.creative.Headline)}
	if s.creative.Body != "" {
		parts = append(parts, "", s.creative.Body)
	}
	parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top, takeStyle.Render(take), dismissStyle.Render(dismiss)))
	return dialogBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
