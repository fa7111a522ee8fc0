package renderer

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the surface.
type KeyMap struct {
	Accept        key.Binding
	Decline       key.Binding
	Continue      key.Binding
	QuitApp       key.Binding
	Intention     key.Binding
	StartActivity key.Binding
	EndActivity   key.Binding
	NextStep      key.Binding
	Exit          key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Accept: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "quick task"),
		),
		Decline: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "not now"),
		),
		Continue: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "continue"),
		),
		QuitApp: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "quit app"),
		),
		Intention: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "set intention"),
		),
		StartActivity: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start activity"),
		),
		EndActivity: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "end activity"),
		),
		NextStep: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "next step"),
		),
		Exit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "close surface"),
		),
	}
}
