package editor

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the editor.
type KeyMap struct {
	Save    key.Binding
	Quit    key.Binding
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Dismiss key.Binding
	NextRef key.Binding
	Unlink  key.Binding
}

var Keys = KeyMap{
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "save"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "ctrl+q"),
		key.WithHelp("ctrl+q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
		key.WithHelp("↑", "previous"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+n"),
		key.WithHelp("↓", "next"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter", "tab"),
		key.WithHelp("enter", "link"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss"),
	),
	NextRef: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "next link"),
	),
	Unlink: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "unlink"),
	),
}

// ShortHelp returns the bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Save, k.NextRef, k.Unlink, k.Quit}
}

// SuggestHelp returns the bindings shown while suggesting.
func (k KeyMap) SuggestHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Dismiss}
}
