package renderer

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/linuxmatters/jivewave/internal/config"
)

// AlbumArtRadius is the cover radius before the pulse factor is applied
func AlbumArtRadius(w, h float64) float64 { return 0.14 * math.Min(w, h) }

// albumArt keeps the cover and its most recent scaled copies
type albumArt struct {
	src    image.Image
	scaled map[int]*image.RGBA
}

const maxArtSizes = 64

func newAlbumArt(img image.Image) *albumArt {
	if img == nil {
		return nil
	}
	return &albumArt{src: img, scaled: make(map[int]*image.RGBA)}
}

// sized returns the cover scaled to a d x d square, cropped to fill
func (a *albumArt) sized(d int) *image.RGBA {
	if img, ok := a.scaled[d]; ok {
		return img
	}
	if len(a.scaled) >= maxArtSizes {
		clear(a.scaled)
	}
	img := image.NewRGBA(image.Rect(0, 0, d, d))
	b := a.src.Bounds()
	crop := b
	if b.Dx() > b.Dy() {
		crop.Min.X += (b.Dx() - b.Dy()) / 2
		crop.Max.X = crop.Min.X + b.Dy()
	} else {
		crop.Min.Y += (b.Dy() - b.Dx()) / 2
		crop.Max.Y = crop.Min.Y + b.Dx()
	}
	draw.ApproxBiLinear.Scale(img, img.Bounds(), a.src, crop, draw.Src, nil)
	a.scaled[d] = img
	return img
}

// draw composites the cover clipped to a circle, with a glow ring
func (a *albumArt) draw(dc *gg.Context, cx, cy, radius, scale float64, glow config.RGB) {
	if a == nil || !(radius >= 1) {
		return
	}

	r, g, b := glow.Floats()
	for i := 4; i >= 1; i-- {
		dc.SetRGBA(r, g, b, 0.12*float64(5-i))
		dc.SetLineWidth(float64(i) * 4 * scale)
		dc.DrawCircle(cx, cy, radius)
		dc.Stroke()
	}

	d := int(math.Ceil(2 * radius))
	dc.DrawCircle(cx, cy, radius)
	dc.Clip()
	dc.DrawImageAnchored(a.sized(d), int(math.Round(cx)), int(math.Round(cy)), 0.5, 0.5)
	dc.ResetClip()

	dc.SetRGB(r, g, b)
	dc.SetLineWidth(math.Max(1, 3*scale))
	dc.DrawCircle(cx, cy, radius)
	dc.Stroke()
}
