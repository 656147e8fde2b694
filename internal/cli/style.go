package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorAllow = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#81C784"}
	colorBlock = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD93D"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A89984"}

	allowStyle  = lipgloss.NewStyle().Foreground(colorAllow).Bold(true)
	blockStyle  = lipgloss.NewStyle().Foreground(colorBlock).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

const (
	iconAllow = "\u2714" // ✔
	iconBlock = "\u2298" // ⊘
	iconWarn  = "\u26A0" // ⚠
)

// decisionLabel renders ALLOW or BLOCK with its icon; blocks that are only
// reported are shown as warnings.
func decisionLabel(blocked, enforced bool) string {
	switch {
	case !blocked:
		return allowStyle.Render(iconAllow + " ALLOW")
	case enforced:
		return blockStyle.Render(iconBlock + " BLOCK")
	default:
		return warnStyle.Render(iconWarn + " BLOCK (monitor)")
	}
}
