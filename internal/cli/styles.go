package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	// AppTitle is the branded application name
	AppTitle = "Jivewave 🌊"
	// Tagline describes the application in help and banners
	Tagline = "Ride your song on an audio-reactive visualiser, then export it as a synchronised MP4."
)

var (
	seaGreen = lipgloss.Color("#00C48C")
	sand     = lipgloss.Color("#FFE066")
)

var (
	taglineStyle = lipgloss.NewStyle().Foreground(CoolGray).Italic(true)
	labelStyle   = lipgloss.NewStyle().Foreground(CoolGray)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(WavePink).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(sand).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(seaGreen).Bold(true)
	crestStyle   = lipgloss.NewStyle().Foreground(WaveViolet)
)

// bannerWave is the colour ramp the title letters ride along
var bannerWave = []lipgloss.Color{WaveCyan, WaveViolet, WavePink, WaveViolet}

// WaveTitle renders text with each letter coloured along the banner ramp
func WaveTitle(text string) string {
	var b strings.Builder
	i := 0
	for _, r := range text {
		if r == ' ' {
			b.WriteRune(r)
			continue
		}
		style := lipgloss.NewStyle().Bold(true).Foreground(bannerWave[i%len(bannerWave)])
		b.WriteString(style.Render(string(r)))
		i++
	}
	return b.String()
}

// PrintBanner prints the title, a crest line and the tagline
func PrintBanner() {
	fmt.Println(WaveTitle(AppTitle))
	fmt.Println(crestStyle.Render(strings.Repeat("∿", 24)))
	fmt.Println(taglineStyle.Render(Tagline))
	fmt.Println()
}

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(WaveTitle(AppTitle))
	PrintInfo("Version", version)
}

// SessionInfo is what PrintSession shows before a command starts work
type SessionInfo struct {
	Song       string
	Preset     string
	Effects    []string
	Background string
}

// SessionLines lays out a session summary as aligned label/value rows
func SessionLines(s SessionInfo) []string {
	effects := "none"
	if len(s.Effects) > 0 {
		effects = strings.Join(s.Effects, ", ")
	}
	background := s.Background
	if background == "" {
		background = "none"
	}
	rows := [][2]string{
		{"Song", s.Song},
		{"Preset", s.Preset},
		{"Effects", effects},
		{"Background", background},
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-11s", r[0]+":")), valueStyle.Render(r[1]))
	}
	return lines
}

// PrintSession prints the session summary followed by a blank line
func PrintSession(s SessionInfo) {
	for _, line := range SessionLines(s) {
		fmt.Println(line)
	}
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning to stderr
func PrintWarning(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warnStyle.Render("Warning:"), message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", okStyle.Render("✓"), message)
}

// PrintInfo prints one label/value line
func PrintInfo(key, value string) {
	fmt.Printf("%s %s\n", labelStyle.Render(key+":"), valueStyle.Render(value))
}

// FormatDuration formats wall-clock timings: milliseconds under a second,
// tenths of a second under a minute, then minutes and seconds.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// FormatBytes formats sizes with binary units
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
