package ui

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/jivewave/internal/export"
)

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func testInfo() ExportInfo {
	return ExportInfo{Title: "Night Drive", Width: 1920, Height: 1080, FPS: 30, Encoder: "libx264"}
}

func TestExportModel_Progress(t *testing.T) {
	m := NewExportModel(testInfo(), nil, false)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	m.Update(StatusMsg{Stage: export.Capturing, Progress: 15, TotalFrames: 300})
	view := m.View()
	if !strings.Contains(view, "Capturing frames") || !strings.Contains(view, "Frame 0 of 300") {
		t.Errorf("capturing view missing stage or counter:\n%s", view)
	}

	levels := make([]float64, 48)
	for i := range levels {
		levels[i] = float64(i) / 47
	}
	m.Update(StatusMsg{
		Stage: export.Capturing, Progress: 40, Frame: 120, TotalFrames: 300,
		Levels: levels, Preview: image.NewRGBA(image.Rect(0, 0, 160, 90)),
	})
	view = m.View()
	for _, want := range []string{"40%", "Live Visualisation", "Frame Preview", "libx264"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	// Encoding reports carry no levels; the last spectrum stays
	m.Update(StatusMsg{Stage: export.Encoding, Progress: 80, Frame: 300, TotalFrames: 300})
	if len(m.status.Levels) != 48 {
		t.Error("spectrum dropped on a report without levels")
	}
	if !strings.Contains(m.View(), "Encoding MP4") {
		t.Error("encoding stage not shown")
	}
}

func TestExportModel_NoPreview(t *testing.T) {
	m := NewExportModel(testInfo(), nil, true)
	m.Update(StatusMsg{
		Stage: export.Capturing, Progress: 20, Frame: 3, TotalFrames: 30,
		Levels: []float64{0.5}, Preview: image.NewRGBA(image.Rect(0, 0, 16, 9)),
	})
	if strings.Contains(m.View(), "Frame Preview") {
		t.Error("preview rendered with noPreview set")
	}
}

func TestExportModel_FailureQuits(t *testing.T) {
	m := NewExportModel(testInfo(), nil, false)
	_, cmd := m.Update(StatusMsg{Stage: export.Idle, Err: export.ErrEmptyOutput})
	if !isQuit(cmd) {
		t.Error("failure status should quit")
	}
	if !errors.Is(m.Err(), export.ErrEmptyOutput) {
		t.Errorf("Err = %v", m.Err())
	}
	if m.CompletionSummary() != "" {
		t.Error("failed export has a completion summary")
	}
}

func TestExportModel_CancelKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewExportModel(testInfo(), cancel, false)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if isQuit(cmd) {
		t.Error("first ctrl+c should wait for the pipeline to stop")
	}
	if ctx.Err() == nil {
		t.Error("ctrl+c did not cancel the export")
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Error("view does not show cancellation")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !isQuit(cmd) {
		t.Error("second ctrl+c should quit")
	}
}

func TestExportModel_Complete(t *testing.T) {
	m := NewExportModel(testInfo(), nil, false)
	m.Update(StatusMsg{Stage: export.Encoding, Progress: 75, Frame: 300, TotalFrames: 300})

	_, cmd := m.Update(CompleteMsg{
		OutputFile: "Night Drive.mp4",
		Size:       3 << 20,
		Frames:     300,
		Elapsed:    4 * time.Second,
		Encoder:    "libx264",
	})
	if cmd == nil {
		t.Fatal("completion should schedule the quit")
	}

	summary := m.CompletionSummary()
	for _, want := range []string{"Export Complete", "Night Drive.mp4", "3.0 MB", "300 frames", "10.0s video"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	if _, cmd := m.Update(exportQuitMsg{}); !isQuit(cmd) {
		t.Error("quit message should quit")
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{125 * time.Second, "2m05s"},
	}
	for _, tc := range testCases {
		if got := formatDuration(tc.in); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderSpectrum(t *testing.T) {
	out := renderSpectrum([]float64{0, 0.25, 0.75, 1, 2, -1}, 6)
	rows := strings.Split(out, "\n")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if renderSpectrum(nil, 10) != "" || renderSpectrum([]float64{1}, 0) != "" {
		t.Error("empty input should render nothing")
	}
}
