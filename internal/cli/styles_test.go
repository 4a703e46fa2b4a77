package cli

import (
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KB"},
		{3 << 20, "3.0 MB"},
		{5 << 30, "5.0 GB"},
	}
	for _, tc := range testCases {
		if got := FormatBytes(tc.in); got != tc.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{42 * time.Second, "42.0s"},
		{90 * time.Second, "1m30s"},
		{605 * time.Second, "10m05s"},
	}
	for _, tc := range testCases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSessionLines(t *testing.T) {
	lines := SessionLines(SessionInfo{Song: "Night Drive", Preset: "radial", Effects: []string{"vhs", "bloom"}})
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	for i, want := range []string{"Night Drive", "radial", "vhs, bloom", "none"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %q", i, lines[i], want)
		}
	}

	lines = SessionLines(SessionInfo{Song: "x", Preset: "rain", Background: "/tmp/bg.mp4"})
	if !strings.Contains(lines[2], "none") || !strings.Contains(lines[3], "/tmp/bg.mp4") {
		t.Errorf("lines = %q", lines)
	}
}

func TestWaveTitle(t *testing.T) {
	out := WaveTitle("Jive wave")
	for _, r := range "Jivewave" {
		if !strings.ContainsRune(out, r) {
			t.Errorf("%q lost %q", out, r)
		}
	}
}
