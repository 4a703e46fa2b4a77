package cli

import "github.com/charmbracelet/lipgloss"

// Wave colour palette
// Shared theme colours for consistent branding across CLI and TUI
var (
	// Core wave colours (the visualiser defaults and their neighbours)
	WavePink   = lipgloss.Color("#FF2D75") // Default primary
	WaveCyan   = lipgloss.Color("#00E5FF") // Default secondary
	WaveViolet = lipgloss.Color("#9B5CFF") // Between the two
	WaveDeep   = lipgloss.Color("#1B1F3B") // Night backdrop

	// Accent colours
	CoolGray = lipgloss.Color("#7A86A8") // Subtle text
)
