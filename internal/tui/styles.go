package tui

import "github.com/charmbracelet/lipgloss"

// colorPalette defines the core colors used in the TUI.
const (
	colorSubtle    = lipgloss.Color("240") // Muted gray
	colorHighlight = lipgloss.Color("81")  // Teal
	colorAction    = lipgloss.Color("33")  // Blue, enabled buttons
	colorSpecial   = lipgloss.Color("208") // Orange, evaluation in flight
	colorSuccess   = lipgloss.Color("40")  // Green
	colorDisabled  = lipgloss.Color("237") // Dark gray
	colorWhite     = lipgloss.Color("231")
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true).
			MarginBottom(1)

	buttonStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(colorAction).
			Padding(0, 3).
			Width(44).
			Align(lipgloss.Center)

	statusStyle = lipgloss.NewStyle().Foreground(colorSubtle).PaddingLeft(1)

	dividerStyle = lipgloss.NewStyle().Foreground(colorSubtle).MarginTop(1).MarginBottom(1)

	logsTitleStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)

	logsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(0, 1).
			Width(44)

	noticeStyle = lipgloss.NewStyle().Foreground(colorHighlight).MarginTop(1)

	helpStyle = lipgloss.NewStyle().MarginTop(1)

	// Survey dialog
	dialogBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorHighlight).
			Padding(1, 2).
			Width(60)

	dialogTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorHighlight)

	dialogButtonStyle = lipgloss.NewStyle().
				Foreground(colorWhite).
				Background(colorDisabled).
				Padding(0, 3).
				MarginTop(1).
				MarginRight(2)

	dialogActiveButtonStyle = dialogButtonStyle.
				Background(colorHighlight).
				Underline(true)
)

// button renders a label with the given background; focused buttons are underlined.
func button(label string, bg lipgloss.Color, focused bool) string {
	s := buttonStyle.Background(bg)
	if focused {
		s = s.Underline(true).Bold(true)
	}
	return s.Render(label)
}

func dot(c lipgloss.Color) string {
	return lipgloss.NewStyle().Foreground(c).Render("●")
}
