package renderer

import (
	"math"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
)

// PresetInput is everything a preset reads for one frame
type PresetInput struct {
	CX, CY    float64
	W, H      float64
	Snapshot  audio.Snapshot
	Time      time.Duration
	Primary   config.RGB
	Secondary config.RGB
	Pulse     float64
	Bass      float64
	Glyphs    font.Face // used by rain; nil draws blocks instead
}

func (in PresetInput) minDim() float64 { return math.Min(in.W, in.H) }

func (in PresetInput) scale() float64 { return in.H / config.ReferenceHeight }

// level returns bar i of n as a value in [0,1]. Bars spread over the lower
// half of the bins; the upper half carries little energy at 44.1 kHz.
func (in PresetInput) level(i, n int) float64 {
	bins := len(in.Snapshot.Freq) / 2
	if bins < 1 {
		bins = len(in.Snapshot.Freq)
	}
	if n <= 0 || bins == 0 {
		return 0
	}
	return float64(in.Snapshot.Bin(i*bins/n)) / 255
}

// band returns the mean level of band j of n over the same range
func (in PresetInput) band(j, n int) float64 {
	bins := len(in.Snapshot.Freq) / 2
	if bins < 1 {
		bins = len(in.Snapshot.Freq)
	}
	if n <= 0 || bins == 0 {
		return 0
	}
	lo, hi := j*bins/n, (j+1)*bins/n
	if hi <= lo {
		hi = lo + 1
	}
	var sum int
	for i := lo; i < hi; i++ {
		sum += int(in.Snapshot.Bin(i))
	}
	return float64(sum) / float64(hi-lo) / 255
}

// barLength maps a level to a length in [0, limit]; NaN and negatives give 0
func barLength(v, limit float64) float64 {
	if !(v > 0) || !(limit > 0) {
		return 0
	}
	if v > 1 {
		v = 1
	}
	return v * limit
}

// lerp mixes two colours; t is clamped to [0,1]
func lerp(a, b config.RGB, t float64) (r, g, bl float64) {
	t = math.Max(0, math.Min(1, t))
	ar, ag, ab := a.Floats()
	br, bg, bb := b.Floats()
	return ar + (br-ar)*t, ag + (bg-ag)*t, ab + (bb-ab)*t
}

// DrawPreset draws the selected preset. Presets only draw; they keep no state.
func DrawPreset(dc *gg.Context, p config.Preset, in PresetInput) {
	switch p {
	case config.PresetRadial:
		drawRadial(dc, in)
	case config.PresetSpectrum:
		drawSpectrum(dc, in)
	case config.PresetMirror:
		drawMirror(dc, in)
	case config.PresetEllipses:
		drawEllipses(dc, in)
	case config.PresetArcs:
		drawArcs(dc, in)
	case config.PresetHexagon:
		drawHexagon(dc, in)
	case config.PresetOscilloscope:
		drawOscilloscope(dc, in)
	case config.PresetRain:
		drawRain(dc, in)
	case config.PresetShockwave:
		drawShockwave(dc, in)
	case config.PresetMinimal:
	}
}

// HasAlbumArt reports whether the preset composites the cover at the centre
func HasAlbumArt(p config.Preset) bool {
	switch p {
	case config.PresetRadial, config.PresetArcs, config.PresetHexagon, config.PresetShockwave:
		return true
	}
	return false
}

const (
	radialBars     = 120
	radialSpin     = 0.2 // rad/s
	spectrumBars   = 96
	mirrorBars     = 64
	ellipseCount   = 8
	arcCount       = 6
	rainColumns    = 48
	rainTrail      = 12
	shockwaveRings = 5
	shockwaveCycle = 2 * time.Second
)

// RadialLength is the longest radial bar for a frame of the given size
func RadialLength(w, h float64) float64 { return 0.22 * math.Min(w, h) }

func drawRadial(dc *gg.Context, in PresetInput) {
	base := 0.18 * in.minDim() * in.Pulse
	maxLen := RadialLength(in.W, in.H)
	rot := radialSpin * in.Time.Seconds()

	dc.SetLineWidth(math.Max(1, 3*in.scale()))
	dc.SetLineCap(gg.LineCapRound)
	for i := 0; i < radialBars; i++ {
		l := barLength(in.level(i, radialBars), maxLen)
		if l <= 0 {
			continue
		}
		a := rot + float64(i)*2*math.Pi/radialBars
		cos, sin := math.Cos(a), math.Sin(a)
		r, g, b := lerp(in.Primary, in.Secondary, float64(i)/radialBars)
		dc.SetRGB(r, g, b)
		dc.DrawLine(in.CX+cos*base, in.CY+sin*base, in.CX+cos*(base+l), in.CY+sin*(base+l))
		dc.Stroke()
	}
}

func drawSpectrum(dc *gg.Context, in PresetInput) {
	maxH := 0.45 * in.H
	slot := in.W / spectrumBars
	barW := slot * 0.75

	grad := gg.NewLinearGradient(0, in.H, 0, in.H-maxH)
	grad.AddColorStop(0, in.Primary.RGBA(1))
	grad.AddColorStop(1, in.Secondary.RGBA(1))
	dc.SetFillStyle(grad)

	for i := 0; i < spectrumBars; i++ {
		h := barLength(in.level(i, spectrumBars), maxH)
		if h <= 0 {
			continue
		}
		dc.DrawRectangle(float64(i)*slot+(slot-barW)/2, in.H-h, barW, h)
	}
	dc.Fill()
}

func drawMirror(dc *gg.Context, in PresetInput) {
	maxW := 0.4 * in.W
	slot := in.H / mirrorBars
	barH := slot * 0.7

	for side := 0; side < 2; side++ {
		c := in.Primary
		if side == 1 {
			c = in.Secondary
		}
		r, g, b := c.Floats()
		dc.SetRGB(r, g, b)
		for i := 0; i < mirrorBars; i++ {
			w := barLength(in.level(i, mirrorBars), maxW)
			if w <= 0 {
				continue
			}
			y := float64(i)*slot + (slot-barH)/2
			if side == 0 {
				dc.DrawRectangle(0, y, w, barH)
			} else {
				dc.DrawRectangle(in.W-w, y, w, barH)
			}
		}
		dc.Fill()
	}
}

func drawEllipses(dc *gg.Context, in PresetInput) {
	dc.SetLineWidth(math.Max(1, 3*in.scale()))
	for j := ellipseCount - 1; j >= 0; j-- {
		v := in.band(j, ellipseCount)
		rx := (0.06 + 0.05*float64(j)) * in.W * in.Pulse * (1 + 0.3*v)
		ry := rx * 0.6
		r, g, b := lerp(in.Primary, in.Secondary, float64(j)/(ellipseCount-1))
		dc.SetRGBA(r, g, b, 0.3+0.7*v)
		dc.DrawEllipse(in.CX, in.CY, rx, ry)
		dc.Stroke()
	}
}

func drawArcs(dc *gg.Context, in PresetInput) {
	t := in.Time.Seconds()
	dc.SetLineCap(gg.LineCapRound)
	for j := 0; j < arcCount; j++ {
		sweep := barLength(in.band(j, arcCount), 1.6*math.Pi)
		if sweep <= 0 {
			continue
		}
		dir := 1.0
		if j%2 == 1 {
			dir = -1
		}
		radius := (0.2 + 0.05*float64(j)) * in.minDim()
		start := dir * t * (0.5 + 0.1*float64(j))
		r, g, b := lerp(in.Primary, in.Secondary, float64(j)/(arcCount-1))
		dc.SetRGB(r, g, b)
		dc.SetLineWidth((4 + 4*sweep/(1.6*math.Pi)) * in.scale())
		dc.NewSubPath()
		dc.DrawArc(in.CX, in.CY, radius, start, start+sweep)
		dc.Stroke()
	}
}

func drawHexagon(dc *gg.Context, in PresetInput) {
	radius := 0.2 * in.minDim() * in.Pulse
	rot := 0.3 * in.Time.Seconds()
	bass := math.Max(0, math.Min(1, in.Bass))

	r, g, b := in.Primary.Floats()
	dc.SetRGB(r, g, b)
	dc.SetLineWidth((2 + 10*bass) * in.scale())
	dc.DrawRegularPolygon(6, in.CX, in.CY, radius, rot)
	dc.Stroke()

	r, g, b = in.Secondary.Floats()
	dc.SetRGBA(r, g, b, 0.6)
	dc.SetLineWidth((1 + 5*bass) * in.scale())
	dc.DrawRegularPolygon(6, in.CX, in.CY, 0.8*radius, -rot)
	dc.Stroke()
}

// OscilloscopeY maps a waveform byte to a y coordinate
func OscilloscopeY(v uint8, cy, h float64) float64 {
	return cy + (float64(v)-128)/128*0.35*h
}

func drawOscilloscope(dc *gg.Context, in PresetInput) {
	wave := in.Snapshot.Wave
	r, g, b := in.Primary.Floats()
	dc.SetRGB(r, g, b)
	dc.SetLineWidth(math.Max(1, 3*in.scale()))
	dc.SetLineJoin(gg.LineJoinRound)

	if len(wave) < 2 {
		dc.DrawLine(0, in.CY, in.W, in.CY)
		dc.Stroke()
		return
	}
	step := in.W / float64(len(wave)-1)
	dc.MoveTo(0, OscilloscopeY(wave[0], in.CY, in.H))
	for i := 1; i < len(wave); i++ {
		dc.LineTo(float64(i)*step, OscilloscopeY(wave[i], in.CY, in.H))
	}
	dc.Stroke()
}

var rainGlyphs = []rune("0123456789ABCDEFXYZ<>/\\*+=#%&")

func drawRain(dc *gg.Context, in PresetInput) {
	colW := in.W / rainColumns
	cell := colW * 0.9
	t := in.Time.Seconds()
	if in.Glyphs != nil {
		dc.SetFontFace(in.Glyphs)
	}
	pr, pg, pb := in.Primary.Floats()
	sr, sg, sb := in.Secondary.Floats()

	for col := 0; col < rainColumns; col++ {
		v := in.level(col, rainColumns)
		speed := (0.15 + 0.85*v) * 0.5 * in.H
		travel := in.H + rainTrail*cell
		phase := hash01(int64(col), 0, col, 1) * travel
		head := wrap(phase+speed*t, travel)
		x := (float64(col) + 0.5) * colW
		tick := int(t * 8)

		for k := 0; k < rainTrail; k++ {
			y := head - float64(k)*cell
			if y < -cell || y > in.H+cell {
				continue
			}
			alpha := (0.25 + 0.75*v) * (1 - float64(k)/rainTrail)
			if k == 0 {
				dc.SetRGBA(sr, sg, sb, alpha)
			} else {
				dc.SetRGBA(pr, pg, pb, alpha)
			}
			if in.Glyphs == nil {
				dc.DrawRectangle(x-cell/4, y-cell/4, cell/2, cell/2)
				dc.Fill()
				continue
			}
			g := rainGlyphs[int(hash01(int64(col), k, tick-k, 2)*float64(len(rainGlyphs)))]
			dc.DrawStringAnchored(string(g), x, y, 0.5, 0.5)
		}
	}
}

func drawShockwave(dc *gg.Context, in PresetInput) {
	bass := math.Max(0, math.Min(1, in.Bass))
	cycle := in.Time.Seconds() / shockwaveCycle.Seconds()
	maxR := 0.45 * in.minDim() * in.Pulse

	for j := 0; j < shockwaveRings; j++ {
		phase := wrap(cycle+float64(j)/shockwaveRings, 1)
		radius := phase * maxR
		alpha := (1 - phase) * (0.3 + 0.7*bass)
		width := (2 + 8*bass) * (1 - phase) * in.scale()
		if radius <= 0 || alpha <= 0 || width <= 0 {
			continue
		}
		r, g, b := lerp(in.Primary, in.Secondary, phase)
		dc.SetRGBA(r, g, b, alpha)
		dc.SetLineWidth(width)
		dc.DrawCircle(in.CX, in.CY, radius)
		dc.Stroke()
	}
}
