package cli

import (
	"acquire/pkg/journal"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines colors and symbols for the CLI using lipgloss
type Theme struct {
	Bold   lipgloss.Style
	Cyan   lipgloss.Style
	Green  lipgloss.Style
	Yellow lipgloss.Style
	Dim    lipgloss.Style
	Red    lipgloss.Style

	Bullet  string
	BoxLast string

	IconDone    string
	IconFailed  string
	IconPending string
}

func DefaultTheme() *Theme {
	t := &Theme{
		Bold:   lipgloss.NewStyle().Bold(true),
		Cyan:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Green:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Yellow: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Dim:    lipgloss.NewStyle().Faint(true),
		Red:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		Bullet:  "•",
		BoxLast: "└──",

		IconDone:    "✔",
		IconFailed:  "✖",
		IconPending: "…",
	}

	return t
}

func (t *Theme) Styled(style lipgloss.Style, text string) string {
	return style.Render(text)
}

// State renders a lineage state with its icon.
func (t *Theme) State(s journal.State) string {
	switch s {
	case journal.StateNotified, journal.StateDone:
		return t.Styled(t.Green, t.IconDone+" "+string(s))
	case journal.StateFailed:
		return t.Styled(t.Red, t.IconFailed+" "+string(s))
	default:
		return t.Styled(t.Yellow, t.IconPending+" "+string(s))
	}
}
