package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	// Phase colors.
	PhaseWalking = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	PhasePaused  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffaa00"))
	PhaseIdle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#888899"))

	// Push recovery flags.
	Alert = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
	Warn  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
)

// PhaseBadge renders a walking phase name in its color.
func PhaseBadge(phase string) string {
	switch phase {
	case "walking":
		return PhaseWalking.Render(strings.ToUpper(phase))
	case "paused", "preparing":
		return PhasePaused.Render(strings.ToUpper(phase))
	default:
		return PhaseIdle.Render(strings.ToUpper(phase))
	}
}

// ProgressBar renders fraction in [0, 1] as a bar of width cells.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	filled = max(0, min(filled, width))
	return MetricValue.Render(strings.Repeat("█", filled)) + Subtle.Render(strings.Repeat("░", width-filled))
}

// Sparkline renders values scaled to their own range, resampled to width.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}
	step := max(len(values)/width, 1)

	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := max(0, min(int(norm*float64(len(chars)-1)), len(chars)-1))
		b.WriteRune(chars[idx])
	}
	return b.String()
}

func Labeled(label, value string) string {
	return MetricLabel.Render(label+": ") + MetricValue.Render(value)
}
