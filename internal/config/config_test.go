package config

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestParseHexColor_ValidInputs checks prefix handling, case and byte order.
func TestParseHexColor_ValidInputs(t *testing.T) {
	testCases := []struct {
		name                string
		input               string
		wantR, wantG, wantB uint8
	}{
		{name: "uppercase no hash", input: "FF0000", wantR: 255},
		{name: "lowercase with hash", input: "#ff0000", wantR: 255},
		{name: "mixed case", input: "Ff00fF", wantR: 255, wantB: 255},
		{name: "distinct bytes", input: "010203", wantR: 1, wantG: 2, wantB: 3},
		{name: "default primary", input: DefaultPrimary, wantR: 0xFF, wantG: 0x2D, wantB: 0x75},
		{name: "default secondary", input: DefaultSecondary, wantR: 0x00, wantG: 0xE5, wantB: 0xFF},
		{name: "white", input: "FFFFFF", wantR: 255, wantG: 255, wantB: 255},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, g, b, err := ParseHexColor(tc.input)
			if err != nil {
				t.Fatalf("ParseHexColor(%q) returned error: %v", tc.input, err)
			}
			if r != tc.wantR || g != tc.wantG || b != tc.wantB {
				t.Errorf("ParseHexColor(%q) = (%d, %d, %d), want (%d, %d, %d)",
					tc.input, r, g, b, tc.wantR, tc.wantG, tc.wantB)
			}
		})
	}
}

func TestParseHexColor_InvalidInputs(t *testing.T) {
	inputs := []string{"", "#", "FFF", "#FFFFFFF", "GGGGGG", "FF 000", "FF#000", "##FF0000", "FF0000\n", "+FFFFF"}
	for _, in := range inputs {
		if _, _, _, err := ParseHexColor(in); err == nil {
			t.Errorf("ParseHexColor(%q) expected error, got nil", in)
		}
	}
}

func TestRGB_TextRoundTrip(t *testing.T) {
	c := RGB{R: 0xAB, G: 0x01, B: 0xEF}
	text, err := c.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != "#AB01EF" {
		t.Errorf("MarshalText = %q, want #AB01EF", text)
	}

	var back RGB
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != c {
		t.Errorf("round trip = %+v, want %+v", back, c)
	}
}

func TestRGB_RGBAPremultiplied(t *testing.T) {
	c := RGB{R: 200, G: 100, B: 50}
	got := c.RGBA(0.5)
	if got.A != 127 || got.R != 100 || got.G != 50 || got.B != 25 {
		t.Errorf("RGBA(0.5) = %+v", got)
	}
	if got := c.RGBA(math.NaN()); got.A != 0 {
		t.Errorf("NaN alpha should clamp to 0, got %+v", got)
	}
}

func TestPresetNames(t *testing.T) {
	if len(Presets()) != 10 {
		t.Fatalf("expected 10 presets, got %d", len(Presets()))
	}
	for _, p := range Presets() {
		parsed, err := ParsePreset(p.String())
		if err != nil {
			t.Errorf("ParsePreset(%q): %v", p, err)
			continue
		}
		if parsed != p {
			t.Errorf("ParsePreset(%q) = %v", p, parsed)
		}
	}
	if _, err := ParsePreset("laser"); err == nil {
		t.Error("expected error for unknown preset")
	}
	if p, err := ParsePreset("  Minimal "); err != nil || p != PresetMinimal {
		t.Errorf("ParsePreset should trim and fold case, got %v, %v", p, err)
	}
}

func TestEffectKindNames(t *testing.T) {
	if NumEffects != 13 {
		t.Fatalf("expected 13 effect kinds, got %d", NumEffects)
	}
	seen := make(map[string]bool)
	for i := 0; i < NumEffects; i++ {
		name := EffectKind(i).String()
		if seen[name] {
			t.Errorf("duplicate effect name %q", name)
		}
		seen[name] = true

		kind, err := ParseEffectKind(name)
		if err != nil || kind != EffectKind(i) {
			t.Errorf("ParseEffectKind(%q) = %v, %v", name, kind, err)
		}
	}
}

func TestSettings_Normalize(t *testing.T) {
	s := DefaultSettings()
	s.Visualizer.Preset = Preset(42)
	s.Visualizer.BackgroundDim = 3
	s.Visualizer.ParticleCount = -7
	s.Effects[EffectBloom].Intensity = math.NaN()
	s.Effects[EffectHue].Intensity = -1
	s.Effects[EffectGrain].Intensity = 9
	s.TextLayers = []TextLayer{{Text: "x", X: -10, Y: 250, Size: math.NaN()}}

	s.Normalize()

	if s.Visualizer.Preset != PresetRadial {
		t.Errorf("preset = %v, want radial", s.Visualizer.Preset)
	}
	if s.Visualizer.BackgroundDim != 1 {
		t.Errorf("background dim = %v, want 1", s.Visualizer.BackgroundDim)
	}
	if s.Visualizer.ParticleCount != 0 {
		t.Errorf("particle count = %d, want 0", s.Visualizer.ParticleCount)
	}
	if s.Effects[EffectBloom].Intensity != 0 || s.Effects[EffectHue].Intensity != 0 || s.Effects[EffectGrain].Intensity != 1 {
		t.Errorf("intensities not clamped: %+v", s.Effects)
	}
	l := s.TextLayers[0]
	if l.X != 0 || l.Y != 100 || l.Size != 0 || l.Font != DefaultFont {
		t.Errorf("text layer not clamped: %+v", l)
	}
}

func TestSettings_CloneIsDeep(t *testing.T) {
	s := DefaultSettings()
	s.TextLayers = []TextLayer{{ID: "a", Text: "one"}}

	c := s.Clone()
	c.TextLayers[0].Text = "changed"
	c.Effects[EffectShake].Enabled = true

	if s.TextLayers[0].Text != "one" {
		t.Error("clone shares text layer storage with the original")
	}
	if s.Effects[EffectShake].Enabled {
		t.Error("clone shares effect storage with the original")
	}
}

func TestStore_SnapshotsAreNotMutated(t *testing.T) {
	st := NewStore(DefaultSettings())
	before := st.Load()

	st.ToggleEffect(EffectGlitch)
	st.SetPreset(PresetHexagon)

	if before.Effects[EffectGlitch].Enabled {
		t.Error("published snapshot was mutated by ToggleEffect")
	}
	if before.Visualizer.Preset != PresetRadial {
		t.Error("published snapshot was mutated by SetPreset")
	}

	after := st.Load()
	if !after.Effects[EffectGlitch].Enabled || after.Visualizer.Preset != PresetHexagon {
		t.Errorf("latest snapshot missing updates: %+v", after.Visualizer)
	}
}

func TestStore_TextLayerIDs(t *testing.T) {
	st := NewStore(DefaultSettings())

	a := st.AddTextLayer(TextLayer{Text: "title", X: 50, Y: 50, Size: 72})
	b := st.AddTextLayer(TextLayer{Text: "artist", X: 50, Y: 60, Size: 36})
	if a == "" || a == b {
		t.Fatalf("expected distinct ids, got %q and %q", a, b)
	}

	layers := st.Load().TextLayers
	if len(layers) != 2 || layers[0].ID != a || layers[1].ID != b {
		t.Fatalf("layers out of insertion order: %+v", layers)
	}

	edited := layers[0]
	edited.Text = "new title"
	if err := st.UpdateTextLayer(edited); err != nil {
		t.Fatal(err)
	}
	if got := st.Load().TextLayers[0]; got.ID != a || got.Text != "new title" {
		t.Errorf("edit changed id or lost text: %+v", got)
	}

	st.RemoveTextLayer(a)
	if !st.Retired(a) {
		t.Error("removed id should be retired")
	}
	if err := st.UpdateTextLayer(edited); err == nil {
		t.Error("updating a removed layer should fail")
	}

	seen := map[string]bool{b: true}
	for i := 0; i < 100; i++ {
		id := st.AddTextLayer(TextLayer{Text: "n"})
		if id == a || seen[id] {
			t.Fatalf("id %q reused", id)
		}
		seen[id] = true
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	st := NewStore(DefaultSettings())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				st.Update(func(s *Settings) { s.Visualizer.ParticleCount++ })
				_ = st.Load().Visualizer.ParticleCount
			}
		}()
	}
	wg.Wait()

	want := DefaultSettings().Visualizer.ParticleCount + 8*50
	if got := st.Load().Visualizer.ParticleCount; got != want {
		t.Errorf("particle count = %d, want %d (lost update)", got, want)
	}
}

func TestLoadSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.yaml")
	doc := `song:
  title: "Night Drive"
  audio: tracks/night.mp3
  cover: https://example.com/cover.png
background:
  kind: image
  locator: bg.jpg
visualizer:
  preset: hexagon
  primary_color: "#112233"
  secondary_color: "445566"
  background_dim: 0.25
  particle_count: 40
effects:
  bloom: {enabled: true, intensity: 0.7}
  letterbox: {enabled: true, intensity: 2}
text_layers:
  - text: Night Drive
    x: 50
    y: 80
    size: 64
    color: "#FFFFFF"
seed: 7
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSession(path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}

	song := s.ResolvedSong()
	if song.Audio != filepath.Join(dir, "tracks/night.mp3") {
		t.Errorf("audio resolved to %q", song.Audio)
	}
	if song.Cover != "https://example.com/cover.png" {
		t.Errorf("remote cover should be untouched, got %q", song.Cover)
	}
	if got := s.Resolve(s.Background.Locator); got != filepath.Join(dir, "bg.jpg") {
		t.Errorf("background resolved to %q", got)
	}

	st := s.Settings()
	if st.Visualizer.Preset != PresetHexagon {
		t.Errorf("preset = %v", st.Visualizer.Preset)
	}
	if st.Visualizer.PrimaryColor != (RGB{0x11, 0x22, 0x33}) {
		t.Errorf("primary = %+v", st.Visualizer.PrimaryColor)
	}
	if fx := st.Effects[EffectBloom]; !fx.Enabled || fx.Intensity != 0.7 {
		t.Errorf("bloom = %+v", fx)
	}
	if fx := st.Effects[EffectLetterbox]; fx.Intensity != 1 {
		t.Errorf("letterbox intensity should clamp to 1, got %v", fx.Intensity)
	}
	if len(st.TextLayers) != 1 || st.TextLayers[0].Font != DefaultFont {
		t.Errorf("text layers = %+v", st.TextLayers)
	}
	if s.Seed != 7 {
		t.Errorf("seed = %d", s.Seed)
	}
}

func TestLoadSession_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{"unknown preset", "visualizer:\n  preset: laser\n"},
		{"unknown effect", "effects:\n  sparkle: {enabled: true}\n"},
		{"image without locator", "background:\n  kind: image\n"},
		{"unknown background", "background:\n  kind: hologram\n"},
		{"bad colour", "visualizer:\n  primary_color: \"#12\"\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.yaml")
			if err := os.WriteFile(path, []byte(tc.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadSession(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSession_SaveCapture(t *testing.T) {
	st := NewStore(DefaultSettings())
	st.SetEffect(EffectVignette, true, 0.3)
	st.SetEffect(EffectBloom, false, 0.9)
	st.AddTextLayer(TextLayer{Text: "hello", X: 10, Y: 10, Size: 20})

	s := DefaultSession()
	s.Song = Song{Title: "t", Audio: "/tmp/a.wav"}
	s.Capture(st.Load())

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatal(err)
	}
	got := loaded.Settings()
	if fx := got.Effects[EffectVignette]; !fx.Enabled || fx.Intensity != 0.3 {
		t.Errorf("vignette = %+v", fx)
	}
	if fx := got.Effects[EffectBloom]; fx.Enabled || fx.Intensity != 0.9 {
		t.Errorf("disabled bloom lost its intensity: %+v", fx)
	}
	if len(loaded.Effects) != NumEffects {
		t.Errorf("saved %d effects, want all %d", len(loaded.Effects), NumEffects)
	}
	if len(got.TextLayers) != 1 || got.TextLayers[0].Text != "hello" {
		t.Errorf("text layers = %+v", got.TextLayers)
	}
}
