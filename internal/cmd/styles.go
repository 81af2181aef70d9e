package cmd

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	aliveColor  = lipgloss.Color("#10B981") // Green
	deadColor   = lipgloss.Color("#F87171") // Red
	staleColor  = lipgloss.Color("#FBBF24") // Yellow
	mutedColor  = lipgloss.Color("#9CA3AF") // Gray
	headerColor = lipgloss.Color("#A78BFA") // Purple

	// Convenience styles
	aliveStyle  = lipgloss.NewStyle().Foreground(aliveColor)
	deadStyle   = lipgloss.NewStyle().Foreground(deadColor).Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(staleColor)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	headerStyle = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
)
