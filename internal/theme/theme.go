package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for command titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// HelpStyle is used for hints printed under command output.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// OKStyle and ErrorStyle mark check results.
var (
	OKStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
)

// DimmedStyle renders disabled accounts.
var DimmedStyle = lipgloss.NewStyle().Foreground(ColorGray)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Account health labels shown in the accounts table.
const (
	HealthOK       = "ok"
	HealthFailing  = "failing"
	HealthUnknown  = "unknown"
	HealthDisabled = "disabled"
)

// HealthStyle returns a color-coded style for an account health label.
func HealthStyle(health string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch health {
	case HealthOK:
		return base.Foreground(ColorGreen)
	case HealthFailing:
		return base.Foreground(ColorRed)
	case HealthDisabled:
		return base.Foreground(ColorGray)
	default:
		return base.Foreground(ColorYellow)
	}
}

// ProviderLabelStyle returns a color-coded style for a provider kind.
func ProviderLabelStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch kind {
	case "organizational", "personal":
		return base.Foreground(ColorBlue)
	case "workspace":
		return base.Foreground(ColorGreen)
	case "imap":
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// Table returns a rounded-border table with a bold header row. style,
// when non-nil, decorates body cells; row indexes start at zero.
func Table(headers []string, rows [][]string, style func(row, col int) lipgloss.Style) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true).Foreground(ColorBlue)
			}
			if style == nil {
				return cellStyle
			}
			return cellStyle.Inherit(style(row, col))
		})
}
