package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"intercept-sandbox/internal/i18n"
)

type keyMap struct {
	Initialize key.Binding
	Evaluate   key.Binding
	Next       key.Binding
	Prev       key.Binding
	Press      key.Binding
	Dismiss    key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Initialize: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", i18n.T("app.help.initialize", nil))),
		Evaluate:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", i18n.T("app.help.evaluate", nil))),
		Next:       key.NewBinding(key.WithKeys("tab", "down", "j"), key.WithHelp("tab/↓", i18n.T("app.help.focus", nil))),
		Prev:       key.NewBinding(key.WithKeys("shift+tab", "up", "k")),
		Press:      key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", i18n.T("app.help.press", nil))),
		Dismiss:    key.NewBinding(key.WithKeys("esc")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", i18n.T("app.help.quit", nil))),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Initialize, k.Evaluate, k.Next, k.Press, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
