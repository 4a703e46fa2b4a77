package ui

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/jivewave/internal/config"
)

type fakePlayer struct {
	paused bool
	ended  bool
	pos    time.Duration
}

func (p *fakePlayer) TogglePause() (bool, error) {
	p.paused = !p.paused
	return p.paused, nil
}
func (p *fakePlayer) Position() time.Duration { return p.pos }
func (p *fakePlayer) Paused() bool            { return p.paused }
func (p *fakePlayer) Ended() bool             { return p.ended }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestPreview() (*PreviewModel, *config.Store, *fakePlayer) {
	store := config.NewStore(config.DefaultSettings())
	player := &fakePlayer{pos: 75 * time.Second}
	m := NewPreviewModel(store, player, NewTerminalSurface(PreviewConfig{Width: 8, Height: 4}), "Night Drive")
	return m, store, player
}

func TestTerminalSurface_Throttles(t *testing.T) {
	s := NewTerminalSurface(PreviewConfig{Width: 4, Height: 2})
	img := solid(32, 18, color.RGBA{0, 229, 255, 255})

	s.Present(img)
	s.Present(img) // inside the interval, dropped
	if s.Frames() != 1 {
		t.Errorf("rendered %d frames, want 1", s.Frames())
	}
	if !strings.Contains(s.View(), "\x1b[48;2;0;229;255m") {
		t.Error("surface text missing frame colour")
	}

	// Resize forces the next frame through
	s.Resize(PreviewConfig{Width: 2, Height: 1})
	s.Present(image.NewRGBA(image.Rect(0, 0, 32, 18)))
	if s.Frames() != 2 {
		t.Errorf("rendered %d frames after resize, want 2", s.Frames())
	}
	if strings.Count(s.View(), "\n") != 3 {
		t.Errorf("resized view has wrong row count:\n%q", s.View())
	}
}

func TestPreviewModel_PresetKeys(t *testing.T) {
	m, store, _ := newTestPreview()

	testCases := []struct {
		key  string
		want config.Preset
	}{
		{"2", config.PresetSpectrum},
		{"9", config.PresetShockwave},
		{"0", config.PresetMinimal},
		{"1", config.PresetRadial},
	}
	for _, tc := range testCases {
		m.Update(runes(tc.key))
		if got := store.Load().Visualizer.Preset; got != tc.want {
			t.Errorf("key %q selected %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestPreviewModel_EffectKeys(t *testing.T) {
	m, store, _ := newTestPreview()

	for i, k := range effectKeys {
		kind := config.EffectKind(i)
		m.Update(runes(k))
		if _, on := store.Load().Effects.Active(kind); !on {
			t.Errorf("key %q did not enable %v", k, kind)
		}
		m.Update(runes(k))
		if _, on := store.Load().Effects.Active(kind); on {
			t.Errorf("key %q did not disable %v", k, kind)
		}
	}
}

func TestEffectKeys_Unique(t *testing.T) {
	seen := map[string]bool{"q": true, "w": true, "p": true}
	for _, k := range presetKeys {
		seen[k] = true
	}
	for i, k := range effectKeys {
		if k == "" || seen[k] {
			t.Errorf("effect %v has duplicate or empty key %q", config.EffectKind(i), k)
		}
		seen[k] = true
	}
}

func TestPreviewModel_Particles(t *testing.T) {
	m, store, _ := newTestPreview()
	start := store.Load().Visualizer.ParticleCount

	m.Update(runes("+"))
	if got := store.Load().Visualizer.ParticleCount; got != start+particleStep {
		t.Errorf("particles = %d, want %d", got, start+particleStep)
	}

	for i := 0; i < 100; i++ {
		m.Update(runes("-"))
	}
	if got := store.Load().Visualizer.ParticleCount; got != 0 {
		t.Errorf("particles = %d, want clamp at 0", got)
	}
}

func TestPreviewModel_PauseAndQuit(t *testing.T) {
	m, _, player := newTestPreview()

	m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !player.paused {
		t.Error("space did not pause")
	}
	if !strings.Contains(m.View(), "paused") {
		t.Error("view does not show the paused state")
	}

	if _, cmd := m.Update(runes("q")); !isQuit(cmd) {
		t.Error("q should quit")
	}
}

func TestPreviewModel_Save(t *testing.T) {
	m, _, _ := newTestPreview()

	m.Update(runes("w"))
	if !strings.Contains(m.message, "no session") {
		t.Errorf("message = %q", m.message)
	}

	var saved *config.Settings
	m.Save = func(s *config.Settings) error {
		saved = s
		return nil
	}
	m.Update(runes("3"))
	m.Update(runes("w"))
	if saved == nil || saved.Visualizer.Preset != config.PresetMirror {
		t.Error("save did not receive the current settings")
	}

	m.Save = func(*config.Settings) error { return errors.New("disk full") }
	m.Update(runes("w"))
	if !strings.Contains(m.message, "disk full") {
		t.Errorf("message = %q", m.message)
	}
}

func TestPreviewModel_View(t *testing.T) {
	m, _, _ := newTestPreview()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	view := m.View()
	for _, want := range []string{"Night Drive", "Waiting for audio", "1:15", "radial"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	if _, cmd := m.Update(refreshMsg{}); cmd == nil {
		t.Error("refresh should schedule the next refresh")
	}
}
