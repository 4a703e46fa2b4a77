// Package effects implements the post-processing passes applied to a drawn
// frame. Passes run in a fixed order; each one is independent and reads only
// its own toggle, intensity and random source.
package effects

import (
	"image"
	"math"
	"math/rand"
	"time"

	"golang.org/x/image/font"

	"github.com/linuxmatters/jivewave/internal/config"
)

// Mode distinguishes the on-screen preview from offline export
type Mode int

const (
	ModeLive Mode = iota
	ModeExport
)

// Params is everything a pass may read for one frame
type Params struct {
	Effects config.Effects
	Bass    float64 // normalised bass level [0,1]
	Seed    int64   // per-frame seed for randomised passes
	Mode    Mode
	Time    time.Duration // song position, used by the REC stamp
	Scale   float64       // frame height / reference height
}

func (p Params) scale() float64 {
	if p.Scale <= 0 || math.IsNaN(p.Scale) {
		return 1
	}
	return p.Scale
}

func (p Params) active(kind config.EffectKind) (float64, bool) {
	k, on := p.Effects.Active(kind)
	if !on {
		return 0, false
	}
	return clamp01(k), true
}

// rng returns the random source for one effect kind in this frame
func (p Params) rng(kind config.EffectKind) *rand.Rand {
	return rand.New(rand.NewSource(mixSeed(p.Seed, int64(kind))))
}

// mixSeed combines a frame seed and an effect kind (splitmix64 finaliser)
func mixSeed(seed, kind int64) int64 {
	z := uint64(seed) + uint64(kind+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

// Stack owns the scratch buffers shared by the passes. A Stack must not be
// used from two goroutines at once; each render loop owns its own.
type Stack struct {
	stampFace font.Face

	scratch []uint8
	small   *image.RGBA
	blurTmp []float32
	blurAcc []float32

	vignetteW, vignetteH int
	vignetteMask         []float32
}

// NewStack creates an effect stack. stampFace is used for the REC stamp; nil
// falls back to a built-in bitmap face.
func NewStack(stampFace font.Face) *Stack {
	return &Stack{stampFace: stampFace}
}

// ShakeOffset returns the camera shake translation for the frame. It is zero
// unless shake is enabled and the bass exceeds its threshold.
func (s *Stack) ShakeOffset(p Params) (dx, dy float64) {
	k, on := p.active(config.EffectShake)
	if !on {
		return 0, 0
	}
	thr := ShakeThreshold(k)
	if p.Bass <= thr {
		return 0, 0
	}
	amp := (p.Bass - thr) * 60 * k * p.scale()
	r := p.rng(config.EffectShake)
	return (2*r.Float64() - 1) * amp, (2*r.Float64() - 1) * amp
}

// ShakeThreshold is the bass level above which shake engages
func ShakeThreshold(k float64) float64 {
	return 0.6 - 0.3*k
}

// StrobeThreshold is the bass level above which strobe engages
func StrobeThreshold(k float64) float64 {
	return 0.85 - 0.25*k
}

// StrobeAlpha returns the white flash opacity for a bass level
func StrobeAlpha(k, bass float64) float64 {
	thr := StrobeThreshold(k)
	if bass <= thr || math.IsNaN(bass) {
		return 0
	}
	if bass > 1 {
		bass = 1
	}
	return 0.8 * k * (bass - thr) / (1 - thr)
}

// Pixelate runs before text is drawn so labels stay sharp
func (s *Stack) Pixelate(dst *image.RGBA, p Params) {
	k, on := p.active(config.EffectPixelate)
	if !on {
		return
	}
	block := int(math.Round(float64(2+int(math.Floor(30*k))) * p.scale()))
	if block < 2 {
		return
	}
	pixelate(dst, block)
}

// Apply runs every post-text pass in order
func (s *Stack) Apply(dst *image.RGBA, p Params) {
	scale := p.scale()

	// Scanlines (also part of the night-vision look)
	ks, scan := p.active(config.EffectScanlines)
	kn, night := p.active(config.EffectNightVision)
	if scan || night {
		dark := 0.0
		if scan {
			dark = 0.15 + 0.35*ks
		}
		if night && dark < 0.3 {
			dark = 0.3
		}
		scanlines(dst, dark)
	}

	// Channel split: VHS bleed, chromatic aberration, glitch colour split
	var red, blue float64
	var vhsJitter int
	var vhsRng *rand.Rand
	if k, on := p.active(config.EffectVHS); on {
		off := (2 + 6*k) * scale
		red += off
		blue += off
		vhsRng = p.rng(config.EffectVHS)
		vhsJitter = int(math.Round(2 * k * 10))
	}
	if k, on := p.active(config.EffectChromatic); on {
		red += 12 * k * scale
		blue += 12 * k * scale
	}
	kg, glitchOn := p.active(config.EffectGlitch)
	var glitchRng *rand.Rand
	glitchFired := false
	if glitchOn {
		glitchRng = p.rng(config.EffectGlitch)
		glitchFired = glitchRng.Float64() < kg
		if glitchFired {
			split := (4 + 16*kg*glitchRng.Float64()) * scale
			red += split
			blue += split
		}
	}
	if r, b := int(math.Round(red)), int(math.Round(blue)); r != 0 || b != 0 {
		s.channelSplit(dst, r, b)
	}
	if vhsRng != nil && vhsJitter > 0 {
		s.trackingJitter(dst, vhsRng, vhsJitter, scale)
	}

	// Glitch slices
	if glitchFired {
		s.glitchSlices(dst, glitchRng, kg, scale)
	}

	// Night vision overlay
	if night {
		nightVision(dst, 0.5+0.5*kn)
		s.vignette(dst, 0.6*kn)
		if p.Mode == ModeLive {
			s.recStamp(dst, p.Time, scale)
		}
	}

	if k, on := p.active(config.EffectBloom); on {
		s.bloom(dst, k)
	}
	if k, on := p.active(config.EffectGrain); on {
		grain(dst, p.rng(config.EffectGrain), k)
	}
	if k, on := p.active(config.EffectStrobe); on {
		if a := StrobeAlpha(k, p.Bass); a > 0 {
			flash(dst, a)
		}
	}
	if k, on := p.active(config.EffectVignette); on {
		s.vignette(dst, 0.8*k)
	}
	if k, on := p.active(config.EffectHue); on {
		s.hueRotate(dst, 360*k)
	}
	if k, on := p.active(config.EffectLetterbox); on {
		letterbox(dst, int(math.Round(0.15*k*float64(dst.Bounds().Dy()))))
	}
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
