package styles

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#2563EB")
	Secondary = lipgloss.Color("#10B981")
	Muted     = lipgloss.Color("#6B7280")
	Error     = lipgloss.Color("#EF4444")
	White     = lipgloss.Color("#FFFFFF")

	App = lipgloss.NewStyle().
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	Body = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(0, 1)

	Caret = lipgloss.NewStyle().
		Reverse(true)

	// Suggestion popup
	Popup = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Primary).
		Padding(0, 1)

	Suggestion = lipgloss.NewStyle()

	SuggestionSelected = lipgloss.NewStyle().
				Background(Primary).
				Foreground(White).
				Bold(true)

	// Linked entry chips
	Chip = lipgloss.NewStyle().
		Foreground(Secondary).
		Padding(0, 1)

	ChipFocused = lipgloss.NewStyle().
			Background(Secondary).
			Foreground(White).
			Padding(0, 1)

	HelpKey = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	HelpDesc = lipgloss.NewStyle().
			Foreground(Muted)

	Success = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	MutedText = lipgloss.NewStyle().
			Foreground(Muted)
)
