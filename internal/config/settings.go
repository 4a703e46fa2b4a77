package config

import (
	"fmt"
	"math"
	"strings"
)

// Preset selects one of the procedural drawing strategies
type Preset int

const (
	PresetRadial Preset = iota
	PresetSpectrum
	PresetMirror
	PresetEllipses
	PresetArcs
	PresetHexagon
	PresetOscilloscope
	PresetRain
	PresetShockwave
	PresetMinimal

	NumPresets = int(PresetMinimal) + 1
)

var presetNames = [NumPresets]string{
	"radial", "spectrum", "mirror", "ellipses", "arcs",
	"hexagon", "oscilloscope", "rain", "shockwave", "minimal",
}

func (p Preset) String() string {
	if p < 0 || int(p) >= NumPresets {
		return fmt.Sprintf("preset(%d)", int(p))
	}
	return presetNames[p]
}

// ParsePreset looks a preset up by name (case-insensitive)
func ParsePreset(name string) (Preset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range presetNames {
		if n == name {
			return Preset(i), nil
		}
	}
	return 0, fmt.Errorf("unknown preset %q (want one of %s)", name, strings.Join(presetNames[:], ", "))
}

// Presets returns every preset in menu order
func Presets() []Preset {
	out := make([]Preset, NumPresets)
	for i := range out {
		out[i] = Preset(i)
	}
	return out
}

func (p Preset) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Preset) UnmarshalText(text []byte) error {
	parsed, err := ParsePreset(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// EffectKind names one post-processing pass
type EffectKind int

const (
	EffectShake EffectKind = iota
	EffectGlitch
	EffectVHS
	EffectNightVision
	EffectScanlines
	EffectChromatic
	EffectBloom
	EffectGrain
	EffectPixelate
	EffectStrobe
	EffectVignette
	EffectHue
	EffectLetterbox

	NumEffects = int(EffectLetterbox) + 1
)

var effectNames = [NumEffects]string{
	"shake", "glitch", "vhs", "nightvision", "scanlines", "chromatic", "bloom",
	"grain", "pixelate", "strobe", "vignette", "hue", "letterbox",
}

func (k EffectKind) String() string {
	if k < 0 || int(k) >= NumEffects {
		return fmt.Sprintf("effect(%d)", int(k))
	}
	return effectNames[k]
}

// ParseEffectKind looks an effect up by name (case-insensitive)
func ParseEffectKind(name string) (EffectKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range effectNames {
		if n == name {
			return EffectKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown effect %q", name)
}

// Effect is the toggle and intensity of one effect kind
type Effect struct {
	Enabled   bool    `yaml:"enabled"`
	Intensity float64 `yaml:"intensity"`
}

// Effects holds every effect kind, indexed by EffectKind
type Effects [NumEffects]Effect

// Active reports whether kind is enabled; intensity is meaningless otherwise.
func (e *Effects) Active(kind EffectKind) (float64, bool) {
	fx := e[kind]
	return fx.Intensity, fx.Enabled
}

// VisualizerConfig is the user-facing look of the visualiser
type VisualizerConfig struct {
	Preset         Preset  `yaml:"preset"`
	PrimaryColor   RGB     `yaml:"primary_color"`
	SecondaryColor RGB     `yaml:"secondary_color"`
	BackgroundDim  float64 `yaml:"background_dim"`
	ParticleCount  int     `yaml:"particle_count"`
}

// TextLayer is a positioned label; X and Y are percentages of the frame.
type TextLayer struct {
	ID    string  `yaml:"id,omitempty"`
	Text  string  `yaml:"text"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Size  float64 `yaml:"size"`
	Color RGB     `yaml:"color"`
	Font  string  `yaml:"font,omitempty"`
}

// Settings is one immutable snapshot of everything a frame draw reads.
// Snapshots handed out by Store must not be mutated.
type Settings struct {
	Visualizer VisualizerConfig
	Effects    Effects
	TextLayers []TextLayer
}

// DefaultSettings returns the settings a fresh session starts with
func DefaultSettings() Settings {
	s := Settings{
		Visualizer: VisualizerConfig{
			Preset:         PresetRadial,
			PrimaryColor:   MustRGB(DefaultPrimary),
			SecondaryColor: MustRGB(DefaultSecondary),
			BackgroundDim:  0.4,
			ParticleCount:  120,
		},
	}
	for i := range s.Effects {
		s.Effects[i].Intensity = 0.5
	}
	return s
}

// Clone returns a deep copy safe to mutate
func (s *Settings) Clone() *Settings {
	c := *s
	c.TextLayers = append([]TextLayer(nil), s.TextLayers...)
	return &c
}

// Normalize clamps every field to its documented range
func (s *Settings) Normalize() {
	v := &s.Visualizer
	if v.Preset < 0 || int(v.Preset) >= NumPresets {
		v.Preset = PresetRadial
	}
	v.BackgroundDim = clamp01(v.BackgroundDim)
	if v.ParticleCount < 0 {
		v.ParticleCount = 0
	}
	for i := range s.Effects {
		s.Effects[i].Intensity = clamp01(s.Effects[i].Intensity)
	}
	for i := range s.TextLayers {
		l := &s.TextLayers[i]
		l.X = clampRange(l.X, 0, 100)
		l.Y = clampRange(l.Y, 0, 100)
		if l.Size < 0 || math.IsNaN(l.Size) {
			l.Size = 0
		}
		if l.Font == "" {
			l.Font = DefaultFont
		}
	}
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
