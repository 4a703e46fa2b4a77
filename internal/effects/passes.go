package effects

import (
	"image"
	"math"
	"math/rand"
)

// Frames are opaque RGBA: every pass works on R, G and B and leaves A alone.

func clampByte(v float64) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func (s *Stack) scratchCopy(dst *image.RGBA) []uint8 {
	if cap(s.scratch) < len(dst.Pix) {
		s.scratch = make([]uint8, len(dst.Pix))
	}
	s.scratch = s.scratch[:len(dst.Pix)]
	copy(s.scratch, dst.Pix)
	return s.scratch
}

func pixelate(dst *image.RGBA, block int) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	for by := 0; by < h; by += block {
		yEnd := min(by+block, h)
		for bx := 0; bx < w; bx += block {
			xEnd := min(bx+block, w)

			var r, g, bl, n int
			for y := by; y < yEnd; y++ {
				row := dst.Pix[y*dst.Stride:]
				for x := bx; x < xEnd; x++ {
					i := x * 4
					r += int(row[i])
					g += int(row[i+1])
					bl += int(row[i+2])
					n++
				}
			}
			mr, mg, mb := uint8(r/n), uint8(g/n), uint8(bl/n)
			for y := by; y < yEnd; y++ {
				row := dst.Pix[y*dst.Stride:]
				for x := bx; x < xEnd; x++ {
					i := x * 4
					row[i], row[i+1], row[i+2] = mr, mg, mb
				}
			}
		}
	}
}

func scanlines(dst *image.RGBA, dark float64) {
	keep := 1 - clamp01(dark)
	b := dst.Bounds()
	for y := 0; y < b.Dy(); y += 3 {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			row[i] = uint8(float64(row[i]) * keep)
			row[i+1] = uint8(float64(row[i+1]) * keep)
			row[i+2] = uint8(float64(row[i+2]) * keep)
		}
	}
}

// channelSplit moves the red channel left by red px and blue right by blue px
func (s *Stack) channelSplit(dst *image.RGBA, red, blue int) {
	src := s.scratchCopy(dst)
	b := dst.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		off := y * dst.Stride
		for x := 0; x < w; x++ {
			rx := min(max(x+red, 0), w-1)
			bx := min(max(x-blue, 0), w-1)
			dst.Pix[off+x*4] = src[off+rx*4]
			dst.Pix[off+x*4+2] = src[off+bx*4+2]
		}
	}
}

// trackingJitter shifts a few thin horizontal bands, like a VHS tracking error
func (s *Stack) trackingJitter(dst *image.RGBA, r *rand.Rand, bands int, scale float64) {
	b := dst.Bounds()
	bandH := max(1, int(math.Round(2*scale)))
	maxShift := 16 * scale
	for i := 0; i < bands; i++ {
		y0 := r.Intn(max(1, b.Dy()-bandH))
		shift := int(math.Round((2*r.Float64() - 1) * maxShift))
		shiftRows(dst, y0, y0+bandH, shift)
	}
}

func (s *Stack) glitchSlices(dst *image.RGBA, r *rand.Rand, k, scale float64) {
	b := dst.Bounds()
	n := 1 + int(math.Floor(6*k))
	for i := 0; i < n; i++ {
		h := int(math.Round((4 + r.Float64()*40*k) * scale))
		h = min(max(h, 1), b.Dy())
		y0 := r.Intn(b.Dy() - h + 1)
		shift := int(math.Round((2*r.Float64() - 1) * 80 * k * scale))
		shiftRows(dst, y0, y0+h, shift)
	}
}

// shiftRows rotates rows [y0,y1) horizontally by shift px
func shiftRows(dst *image.RGBA, y0, y1, shift int) {
	w := dst.Bounds().Dx()
	if w == 0 {
		return
	}
	shift %= w
	if shift < 0 {
		shift += w
	}
	if shift == 0 {
		return
	}
	tmp := make([]uint8, w*4)
	for y := y0; y < y1 && y < dst.Bounds().Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		copy(tmp, row)
		copy(row[shift*4:], tmp[:(w-shift)*4])
		copy(row[:shift*4], tmp[(w-shift)*4:])
	}
}

func nightVision(dst *image.RGBA, blend float64) {
	blend = clamp01(blend)
	keep := 1 - blend
	b := dst.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			r, g, bl := float64(row[i]), float64(row[i+1]), float64(row[i+2])
			lum := 0.299*r + 0.587*g + 0.114*bl
			row[i] = clampByte(r*keep + lum*0.15*blend)
			row[i+1] = clampByte(g*keep + math.Min(255, lum*1.2)*blend)
			row[i+2] = clampByte(bl*keep + lum*0.15*blend)
		}
	}
}

func smoothstep(e0, e1, x float64) float64 {
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

// vignette darkens towards the corners by strength*smoothstep(0.35, 1, d),
// where d is the distance from the centre over the half diagonal.
func (s *Stack) vignette(dst *image.RGBA, strength float64) {
	if strength <= 0 {
		return
	}
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	if s.vignetteW != w || s.vignetteH != h {
		s.vignetteMask = make([]float32, w*h)
		cx, cy := float64(w)/2, float64(h)/2
		half := math.Hypot(cx, cy)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) / half
				s.vignetteMask[y*w+x] = float32(smoothstep(0.35, 1, d))
			}
		}
		s.vignetteW, s.vignetteH = w, h
	}

	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		mask := s.vignetteMask[y*w : (y+1)*w]
		for x, m := range mask {
			f := 1 - strength*float64(m)
			i := x * 4
			row[i] = uint8(float64(row[i]) * f)
			row[i+1] = uint8(float64(row[i+1]) * f)
			row[i+2] = uint8(float64(row[i+2]) * f)
		}
	}
}

// bloom adds a blurred quarter-resolution copy of the frame back onto itself
func (s *Stack) bloom(dst *image.RGBA, k float64) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	sw, sh := max(1, w/4), max(1, h/4)
	if s.small == nil || s.small.Bounds().Dx() != sw || s.small.Bounds().Dy() != sh {
		s.small = image.NewRGBA(image.Rect(0, 0, sw, sh))
	}

	// Downsample 4x by box averaging
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			var r, g, bl, n int
			for yy := y * 4; yy < min(y*4+4, h); yy++ {
				for xx := x * 4; xx < min(x*4+4, w); xx++ {
					i := yy*dst.Stride + xx*4
					r += int(dst.Pix[i])
					g += int(dst.Pix[i+1])
					bl += int(dst.Pix[i+2])
					n++
				}
			}
			if n == 0 {
				n = 1
			}
			j := y*s.small.Stride + x*4
			s.small.Pix[j] = uint8(r / n)
			s.small.Pix[j+1] = uint8(g / n)
			s.small.Pix[j+2] = uint8(bl / n)
			s.small.Pix[j+3] = 255
		}
	}

	s.boxBlur(s.small, int(math.Round(2+4*k)))

	amount := 0.25 + 0.5*k
	for y := 0; y < h; y++ {
		sy := min(y/4, sh-1)
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := 0; x < w; x++ {
			j := sy*s.small.Stride + min(x/4, sw-1)*4
			i := x * 4
			row[i] = clampByte(float64(row[i]) + float64(s.small.Pix[j])*amount)
			row[i+1] = clampByte(float64(row[i+1]) + float64(s.small.Pix[j+1])*amount)
			row[i+2] = clampByte(float64(row[i+2]) + float64(s.small.Pix[j+2])*amount)
		}
	}
}

// boxBlur is a separable box blur of the given radius, edges clamped
func (s *Stack) boxBlur(img *image.RGBA, radius int) {
	if radius <= 0 {
		return
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	n := w * h * 3
	if cap(s.blurTmp) < n {
		s.blurTmp = make([]float32, n)
		s.blurAcc = make([]float32, n)
	}
	tmp := s.blurTmp[:n]
	out := s.blurAcc[:n]
	norm := float32(1) / float32(2*radius+1)

	// Horizontal pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b float32
			for d := -radius; d <= radius; d++ {
				xx := min(max(x+d, 0), w-1)
				i := y*img.Stride + xx*4
				r += float32(img.Pix[i])
				g += float32(img.Pix[i+1])
				b += float32(img.Pix[i+2])
			}
			o := (y*w + x) * 3
			tmp[o], tmp[o+1], tmp[o+2] = r*norm, g*norm, b*norm
		}
	}
	// Vertical pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b float32
			for d := -radius; d <= radius; d++ {
				yy := min(max(y+d, 0), h-1)
				o := (yy*w + x) * 3
				r += tmp[o]
				g += tmp[o+1]
				b += tmp[o+2]
			}
			o := (y*w + x) * 3
			out[o], out[o+1], out[o+2] = r*norm, g*norm, b*norm
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			i := y*img.Stride + x*4
			img.Pix[i] = clampByte(float64(out[o]))
			img.Pix[i+1] = clampByte(float64(out[o+1]))
			img.Pix[i+2] = clampByte(float64(out[o+2]))
		}
	}
}

// grain adds the same random offset to each 2x2 cluster
func grain(dst *image.RGBA, r *rand.Rand, k float64) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	amp := 40 * k
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x += 2 {
			n := (2*r.Float64() - 1) * amp
			for yy := y; yy < min(y+2, h); yy++ {
				for xx := x; xx < min(x+2, w); xx++ {
					i := yy*dst.Stride + xx*4
					dst.Pix[i] = clampByte(float64(dst.Pix[i]) + n)
					dst.Pix[i+1] = clampByte(float64(dst.Pix[i+1]) + n)
					dst.Pix[i+2] = clampByte(float64(dst.Pix[i+2]) + n)
				}
			}
		}
	}
}

// flash blends the frame towards white
func flash(dst *image.RGBA, alpha float64) {
	alpha = clamp01(alpha)
	b := dst.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			row[i] = clampByte(float64(row[i]) + (255-float64(row[i]))*alpha)
			row[i+1] = clampByte(float64(row[i+1]) + (255-float64(row[i+1]))*alpha)
			row[i+2] = clampByte(float64(row[i+2]) + (255-float64(row[i+2]))*alpha)
		}
	}
}

// HueMatrix returns the CSS hue-rotate colour matrix for an angle in degrees
func HueMatrix(degrees float64) [9]float64 {
	rad := degrees * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return [9]float64{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072,
	}
}

// hueRotate filters a copy of the frame back over itself
func (s *Stack) hueRotate(dst *image.RGBA, degrees float64) {
	m := HueMatrix(degrees)
	src := s.scratchCopy(dst)
	b := dst.Bounds()
	for y := 0; y < b.Dy(); y++ {
		off := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			i := off + x*4
			r, g, bl := float64(src[i]), float64(src[i+1]), float64(src[i+2])
			dst.Pix[i] = clampByte(math.Round(m[0]*r + m[1]*g + m[2]*bl))
			dst.Pix[i+1] = clampByte(math.Round(m[3]*r + m[4]*g + m[5]*bl))
			dst.Pix[i+2] = clampByte(math.Round(m[6]*r + m[7]*g + m[8]*bl))
		}
	}
}

func letterbox(dst *image.RGBA, bar int) {
	b := dst.Bounds()
	h := b.Dy()
	bar = min(bar, h/2)
	if bar <= 0 {
		return
	}
	fill := func(y int) {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = 0, 0, 0, 255
		}
	}
	for y := 0; y < bar; y++ {
		fill(y)
		fill(h - 1 - y)
	}
}
