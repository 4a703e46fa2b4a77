package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/jivewave/internal/cli"
	"github.com/linuxmatters/jivewave/internal/export"
)

// Wave gradient used by bars and the spectrum, deep to bright
var waveColors = []lipgloss.Color{
	cli.WaveDeep,
	lipgloss.Color("#3A2A6B"),
	cli.WaveViolet,
	lipgloss.Color("#C94BB8"),
	cli.WavePink,
	lipgloss.Color("#7F8CF0"),
	lipgloss.Color("#40B8F8"),
	cli.WaveCyan,
}

// StatusMsg carries one export progress report into the model
type StatusMsg export.Status

// CompleteMsg signals that the export was written to disk
type CompleteMsg struct {
	OutputFile string
	Size       int64
	Frames     int
	Elapsed    time.Duration
	Encoder    string
}

// ExportInfo describes the export shown by ExportModel
type ExportInfo struct {
	Title   string
	Width   int
	Height  int
	FPS     int
	Encoder string
}

// exportQuitMsg is sent when it's time to quit after showing completion
type exportQuitMsg struct{}

// ExportModel shows the progress of one export
type ExportModel struct {
	progressBar progress.Model
	summaryBar  progress.Model
	info        ExportInfo
	cancel      context.CancelFunc

	status   export.Status
	complete *CompleteMsg
	err      error

	// Timing
	startTime     time.Time
	encodingStart time.Time

	// UI state
	width           int
	noPreview       bool
	cachedPreview   string
	cachedFrameNum  int
	cancelling      bool
	completionDelay time.Duration
}

// NewExportModel creates the export progress model. cancel stops the export
// when the user quits early.
func NewExportModel(info ExportInfo, cancel context.CancelFunc, noPreview bool) *ExportModel {
	p := progress.New(
		progress.WithGradient(string(cli.WaveViolet), string(cli.WaveCyan)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)
	summaryBar := progress.New(
		progress.WithGradient(string(cli.WaveViolet), string(cli.WaveCyan)),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	return &ExportModel{
		progressBar:     p,
		summaryBar:      summaryBar,
		info:            info,
		cancel:          cancel,
		startTime:       time.Now(),
		completionDelay: 2 * time.Second,
		noPreview:       noPreview,
		cachedFrameNum:  -1,
	}
}

// Init initializes the model
func (m *ExportModel) Init() tea.Cmd {
	return nil
}

// Err returns the error that ended the export, if any
func (m *ExportModel) Err() error {
	return m.err
}

// Update handles messages
func (m *ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(min(msg.Width-30, 50), 10)
		return m, nil

	case StatusMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, tea.Quit
		}
		if msg.Stage == export.Encoding && m.encodingStart.IsZero() {
			m.encodingStart = time.Now()
		}
		// Keep the last spectrum and preview when a report carries none
		if msg.Levels == nil {
			msg.Levels = m.status.Levels
		}
		m.status = export.Status(msg)
		return m, nil

	case CompleteMsg:
		m.complete = &msg
		m.status.Progress = 100
		return m, tea.Tick(m.completionDelay, func(time.Time) tea.Msg {
			return exportQuitMsg{}
		})

	case exportQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancelling {
				return m, tea.Quit
			}
			// The pipeline stops between frames and reports the cancellation
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	}

	return m, nil
}

// View renders the UI
func (m *ExportModel) View() string {
	if m.complete != nil {
		return m.CompletionSummary()
	}
	return m.renderProgress()
}

// CompletionSummary returns the final summary for printing after the program exits.
// Returns empty string if the export is not complete.
func (m *ExportModel) CompletionSummary() string {
	if m.complete == nil {
		return ""
	}
	return m.renderFinalProgress() + "\n" + m.renderComplete()
}

func (m *ExportModel) header(s *strings.Builder, label string) {
	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.WaveCyan).Render(cli.AppTitle))
	s.WriteString("\n")
	if m.info.Title != "" {
		s.WriteString(lipgloss.NewStyle().Italic(true).Render(m.info.Title))
		s.WriteString("  ")
	}
	s.WriteString(lipgloss.NewStyle().Foreground(cli.WavePink).Render(label))
	s.WriteString("\n\n")
}

func stageLabel(st export.Stage) string {
	switch st {
	case export.Capturing:
		return "Capturing frames"
	case export.Encoding:
		return "Encoding MP4"
	default:
		return "Starting export"
	}
}

func (m *ExportModel) renderProgress() string {
	var s strings.Builder
	m.header(&s, stageLabel(m.status.Stage))

	percent := m.status.Progress / 100
	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(percent))
	s.WriteString(fmt.Sprintf("  %d%%", int(m.status.Progress)))
	s.WriteString("\n\n")

	// Timing information
	elapsed := time.Since(m.startTime)
	var estimatedTotal, eta time.Duration
	var speed float64
	if percent > 0 {
		estimatedTotal = time.Duration(float64(elapsed) / percent)
		eta = estimatedTotal - elapsed
	}
	if m.info.FPS > 0 && elapsed > 0 {
		captured := time.Duration(m.status.Frame) * time.Second / time.Duration(m.info.FPS)
		speed = float64(captured) / float64(elapsed)
	}
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(
		"Time: %s / %s  │  Speed: %.1fx realtime  │  ETA: %s",
		formatDuration(elapsed), formatDuration(estimatedTotal), speed, formatDuration(eta))))
	s.WriteString("\n")

	phaseStyle := lipgloss.NewStyle().Faint(true).Italic(true)
	switch {
	case m.cancelling:
		s.WriteString(lipgloss.NewStyle().Foreground(cli.WavePink).Render("Cancelling..."))
	case m.status.TotalFrames > 0:
		s.WriteString(phaseStyle.Render(fmt.Sprintf("Frame %d of %d", m.status.Frame, m.status.TotalFrames)))
	default:
		s.WriteString(phaseStyle.Render("Decoding audio..."))
	}
	s.WriteString("\n")

	if len(m.status.Levels) > 0 {
		s.WriteString("\n")
		m.renderSpectrumAndStats(&s)
	}

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.WaveViolet).
		Padding(1, 2).
		Render(s.String())
}

func (m *ExportModel) renderSpectrumAndStats(s *strings.Builder) {
	s.WriteString(lipgloss.NewStyle().Foreground(cli.WavePink).Render("Live Visualisation:"))
	s.WriteString("\n")

	spectrumWidth := len(m.status.Levels)
	if m.width > 10 {
		spectrumWidth = min(m.width-10, spectrumWidth)
	}
	spectrum := renderSpectrum(m.status.Levels, spectrumWidth)

	labelStyle := lipgloss.NewStyle().Foreground(cli.CoolGray)
	valueStyle := lipgloss.NewStyle().Bold(true)
	var rightCol strings.Builder
	rightCol.WriteString(labelStyle.Render("Video: "))
	rightCol.WriteString(valueStyle.Render(fmt.Sprintf("H.264 %d×%d %dfps", m.info.Width, m.info.Height, m.info.FPS)))
	rightCol.WriteString("\n")
	if m.info.Encoder != "" {
		rightCol.WriteString(labelStyle.Render("Codec: "))
		rightCol.WriteString(valueStyle.Render(m.info.Encoder))
		rightCol.WriteString("\n")
	}
	rightCol.WriteString(labelStyle.Render("Audio: "))
	rightCol.WriteString(valueStyle.Render("AAC 128k"))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, spectrum, "  ", rightCol.String()))

	if !m.noPreview {
		if m.status.Preview != nil && m.status.Frame != m.cachedFrameNum {
			m.cachedPreview = RenderPreview("Frame Preview:", DownsampleFrame(m.status.Preview, DefaultPreviewConfig()))
			m.cachedFrameNum = m.status.Frame
		}
		if m.cachedPreview != "" {
			s.WriteString("\n")
			s.WriteString(m.cachedPreview)
		}
	}
}

// renderFinalProgress renders the progress UI in its final completed state
func (m *ExportModel) renderFinalProgress() string {
	var s strings.Builder
	m.header(&s, "Export complete")

	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(1.0))
	s.WriteString("  100%")
	s.WriteString("\n\n")

	var speed float64
	if m.complete.Elapsed > 0 && m.info.FPS > 0 {
		video := time.Duration(m.complete.Frames) * time.Second / time.Duration(m.info.FPS)
		speed = float64(video) / float64(m.complete.Elapsed)
	}
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(
		fmt.Sprintf("Time: %s  │  Speed: %.1fx realtime  │  Complete", formatDuration(m.complete.Elapsed), speed)))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.WaveCyan).
		Padding(1, 2).
		Render(s.String())
}

func (m *ExportModel) renderComplete() string {
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.WaveCyan).Render("✓ Export Complete!"))
	s.WriteString("\n\n")

	dimLabel := lipgloss.NewStyle().Faint(true)
	s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Output:   "), m.complete.OutputFile))
	if m.complete.Encoder != "" {
		s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Encoder:  "), m.complete.Encoder))
	}
	var video time.Duration
	if m.info.FPS > 0 {
		video = time.Duration(m.complete.Frames) * time.Second / time.Duration(m.info.FPS)
	}
	s.WriteString(fmt.Sprintf("%s%d frames at %d×%d\n", dimLabel.Render("Video:    "), m.complete.Frames, m.info.Width, m.info.Height))
	s.WriteString(fmt.Sprintf("%s%.1fs video in %.1fs\n", dimLabel.Render("Duration: "), video.Seconds(), m.complete.Elapsed.Seconds()))
	s.WriteString(fmt.Sprintf("%s%s\n\n", dimLabel.Render("Size:     "), cli.FormatBytes(m.complete.Size)))

	// Stage breakdown
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(cli.WavePink)
	labelStyle := lipgloss.NewStyle().Faint(true)
	valueStyle := lipgloss.NewStyle()
	highlight := lipgloss.NewStyle().Foreground(cli.WaveCyan)

	s.WriteString(headerStyle.Render("Performance"))
	s.WriteString("\n")

	total := m.complete.Elapsed
	capture := total
	if !m.encodingStart.IsZero() {
		capture = min(m.encodingStart.Sub(m.startTime), total)
	}
	m.writeStage(&s, labelStyle, valueStyle, "Capture:", capture, total)
	m.writeStage(&s, labelStyle, valueStyle, "Encode & mux:", total-capture, total)
	s.WriteString(fmt.Sprintf("  %s%s", labelStyle.Render(fmt.Sprintf("%-18s", "Total time:")), highlight.Render(formatDuration(total))))

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.WavePink).
		Padding(1, 1).
		Render(s.String()) + "\n"
}

func (m *ExportModel) writeStage(s *strings.Builder, label, value lipgloss.Style, name string, d, total time.Duration) {
	ratio := 0.0
	if total > 0 {
		ratio = float64(d) / float64(total)
	}
	s.WriteString(fmt.Sprintf("  %s%s (~%2d%%)  %s\n",
		label.Render(fmt.Sprintf("%-18s", name)),
		value.Render(fmt.Sprintf("~%-6s", formatDuration(d))),
		int(ratio*100),
		m.summaryBar.ViewAs(ratio)))
}

// Helper functions

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// renderSpectrum draws levels in [0,1] as two rows of block characters
func renderSpectrum(levels []float64, width int) string {
	if len(levels) == 0 || width <= 0 {
		return ""
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	// Sample levels to fit width
	stride := len(levels) / width
	if stride == 0 {
		stride = 1
	}
	display := make([]float64, 0, width)
	for i := 0; i < len(levels) && len(display) < width; i += stride {
		display = append(display, min(max(levels[i], 0), 1))
	}

	colour := func(v float64) lipgloss.Style {
		idx := min(int(v*float64(len(waveColors)-1)), len(waveColors)-1)
		return lipgloss.NewStyle().Foreground(waveColors[idx])
	}

	var result strings.Builder

	// Top row shows the portion above 0.5
	for _, v := range display {
		if v > 0.5 {
			idx := min(int((v-0.5)*2*float64(len(blocks)-1)), len(blocks)-1)
			result.WriteString(colour(v).Render(string(blocks[idx])))
		} else {
			result.WriteString(" ")
		}
	}
	result.WriteString("\n")

	// Bottom row
	for _, v := range display {
		idx := len(blocks) - 1
		if v < 0.5 {
			idx = min(int(v*2*float64(len(blocks)-1)), len(blocks)-1)
		}
		result.WriteString(colour(v).Render(string(blocks[idx])))
	}

	return result.String()
}
