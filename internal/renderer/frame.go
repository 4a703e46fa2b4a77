package renderer

import (
	"image"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
	"github.com/linuxmatters/jivewave/internal/effects"
)

// stampSize is the REC stamp font size in reference pixels
const stampSize = 28

// FrameInput is everything one frame draw reads
type FrameInput struct {
	Settings *config.Settings
	Snapshot audio.Snapshot
	Time     time.Duration

	// Backdrop is the resolved background at the frame size, nil for none
	Backdrop *image.RGBA

	// Seed drives the particle field and stays fixed for a session;
	// FrameSeed drives the randomised effects and changes every frame.
	Seed      int64
	FrameSeed int64
	Mode      effects.Mode
}

// FrameSeed derives the per-frame effect seed for frame index i
func FrameSeed(seed int64, i int) int64 {
	return seed*1_000_003 + int64(i)
}

// Scene draws complete frames: background, preset, album art, particles,
// text and effects. A Scene owns its gg context, fonts and effect buffers and
// must be used by one goroutine at a time.
type Scene struct {
	fonts *FontCache
	art   *albumArt

	dc    *gg.Context
	dcFor *image.RGBA

	fx       *effects.Stack
	fxHeight int
}

// NewScene creates a scene with its own font cache
func NewScene() *Scene {
	return &Scene{fonts: NewFontCache()}
}

// Fonts returns the scene's font cache
func (s *Scene) Fonts() *FontCache {
	return s.fonts
}

// SetAlbumArt sets the cover drawn by the album-art presets; nil removes it
func (s *Scene) SetAlbumArt(img image.Image) {
	s.art = newAlbumArt(img)
}

func (s *Scene) context(dst *image.RGBA) *gg.Context {
	if s.dc == nil || s.dcFor != dst {
		s.dc = gg.NewContextForRGBA(dst)
		s.dcFor = dst
	}
	return s.dc
}

func (s *Scene) stack(h int) *effects.Stack {
	if s.fx == nil || s.fxHeight != h {
		scale := float64(h) / config.ReferenceHeight
		s.fx = effects.NewStack(s.fonts.Face(FontMono, stampSize*scale))
		s.fxHeight = h
	}
	return s.fx
}

// Draw renders one frame into dst
func (s *Scene) Draw(dst *image.RGBA, in FrameInput) {
	settings := in.Settings
	if settings == nil {
		def := config.DefaultSettings()
		settings = &def
	}
	vis := settings.Visualizer

	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	scale := h / config.ReferenceHeight

	drawBackdrop(dst, in.Backdrop, vis.BackgroundDim)

	bass := audio.BassLevel(in.Snapshot)
	pulse := audio.Pulse(bass)
	params := effects.Params{
		Effects: settings.Effects,
		Bass:    bass,
		Seed:    in.FrameSeed,
		Mode:    in.Mode,
		Time:    in.Time,
		Scale:   scale,
	}
	fx := s.stack(b.Dy())
	dx, dy := fx.ShakeOffset(params)

	dc := s.context(dst)
	dc.Push()
	dc.Translate(dx, dy)

	DrawPreset(dc, vis.Preset, PresetInput{
		CX:        w / 2,
		CY:        h / 2,
		W:         w,
		H:         h,
		Snapshot:  in.Snapshot,
		Time:      in.Time,
		Primary:   vis.PrimaryColor,
		Secondary: vis.SecondaryColor,
		Pulse:     pulse,
		Bass:      bass,
		Glyphs:    s.fonts.Face(FontMono, 0.02*h),
	})
	if HasAlbumArt(vis.Preset) {
		s.art.draw(dc, w/2, h/2, AlbumArtRadius(w, h)*pulse, scale, vis.PrimaryColor)
	}
	DrawParticles(dc, ParticleInput{
		W:         w,
		H:         h,
		Time:      in.Time,
		Count:     vis.ParticleCount,
		Pulse:     pulse,
		Seed:      in.Seed,
		Primary:   vis.PrimaryColor,
		Secondary: vis.SecondaryColor,
	})
	dc.Pop()

	fx.Pixelate(dst, params)

	textPulse := 1.0
	if vis.Preset == config.PresetMinimal {
		textPulse = pulse
	}
	dc.Push()
	dc.Translate(dx, dy)
	drawTextLayers(dc, s.fonts, settings.TextLayers, w, h, textPulse)
	dc.Pop()

	fx.Apply(dst, params)
}

// drawBackdrop copies the backdrop (or clears to black) and applies the dim
func drawBackdrop(dst, backdrop *image.RGBA, dim float64) {
	if backdrop == nil {
		clearBlack(dst)
		return
	}
	if backdrop.Bounds().Size() == dst.Bounds().Size() && backdrop.Stride == dst.Stride {
		copy(dst.Pix, backdrop.Pix)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), backdrop, backdrop.Bounds(), draw.Src, nil)
	}
	keep := 1 - dim
	if keep < 0 {
		keep = 0
	} else if keep > 1 {
		keep = 1
	}
	// Frames are opaque from here on
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = uint8(float64(dst.Pix[i]) * keep)
		dst.Pix[i+1] = uint8(float64(dst.Pix[i+1]) * keep)
		dst.Pix[i+2] = uint8(float64(dst.Pix[i+2]) * keep)
		dst.Pix[i+3] = 255
	}
}

// clearBlack fills the frame with opaque black 8 pixels at a time
func clearBlack(img *image.RGBA) {
	blackPattern := [32]byte{
		0, 0, 0, 255, 0, 0, 0, 255,
		0, 0, 0, 255, 0, 0, 0, 255,
		0, 0, 0, 255, 0, 0, 0, 255,
		0, 0, 0, 255, 0, 0, 0, 255,
	}
	i := 0
	for ; i+32 <= len(img.Pix); i += 32 {
		copy(img.Pix[i:i+32], blackPattern[:])
	}
	copy(img.Pix[i:], blackPattern[:len(img.Pix)-i])
}

var framePool sync.Pool

// NewFrame returns a w x h frame, reusing a pooled buffer when one fits
func NewFrame(w, h int) *image.RGBA {
	if img, ok := framePool.Get().(*image.RGBA); ok {
		if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
			return img
		}
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// ReleaseFrame returns a frame buffer to the pool
func ReleaseFrame(img *image.RGBA) {
	if img != nil {
		framePool.Put(img)
	}
}
