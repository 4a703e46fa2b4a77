package renderer

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/linuxmatters/jivewave/internal/config"
)

// Thumbnail overlays the song title, split over two rotated lines, on a copy
// of a rendered frame. The title fills the upper half of the frame.
func Thumbnail(frame *image.RGBA, title string, fonts *FontCache, textColor config.RGB) *image.RGBA {
	b := frame.Bounds()
	thumb := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(thumb, thumb.Bounds(), frame, b.Min, draw.Src)

	line1, line2 := splitTitle(title)
	if line1 == "" {
		return thumb
	}

	bold := fonts.Font(FontBold)
	scale := float64(b.Dy()) / config.ReferenceHeight
	size := findOptimalFontSize(bold, line1, line2, b.Dx(), b.Dy(), scale)

	face := truetype.NewFace(bold, &truetype.Options{Size: size, DPI: 72})
	defer face.Close()

	drawThumbnailText(thumb, face, line1, line2, image.NewUniform(textColor.RGBA(1)), scale)
	return thumb
}

// SaveThumbnail writes the thumbnail as PNG
func SaveThumbnail(img *image.RGBA, outputPath string) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	defer outFile.Close()

	if err := png.Encode(outFile, img); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return nil
}

// splitTitle splits the title into 2 roughly equal lines
func splitTitle(title string) (string, string) {
	words := strings.Fields(title)
	if len(words) == 0 {
		return "", ""
	}
	if len(words) == 1 {
		return words[0], ""
	}

	mid := len(words) / 2
	return strings.Join(words[:mid], " "), strings.Join(words[mid:], " ")
}

// findOptimalFontSize finds the largest size whose two lines fit between the
// side margins, with the bottom of line 2 above the horizontal centre line.
func findOptimalFontSize(parsedFont *truetype.Font, line1, line2 string, w, h int, scale float64) float64 {
	margin := int(config.ThumbnailMargin * scale)
	maxWidth := w - 2*margin
	minSize := 10 * scale

	for size := 150 * scale; size > minSize; size -= 2 * scale {
		face := truetype.NewFace(parsedFont, &truetype.Options{Size: size, DPI: 72})
		width1, bounds1 := measureText(face, line1)
		width2, bounds2 := measureText(face, line2)
		face.Close()

		if width1 > maxWidth || width2 > maxWidth {
			continue
		}

		lineSpacing := int(size * 0.5)
		height1 := (bounds1.Max.Y - bounds1.Min.Y).Ceil()
		height2 := (bounds2.Max.Y - bounds2.Min.Y).Ceil()
		if margin+height1+lineSpacing+height2 <= h/2 {
			return size
		}
	}

	return minSize
}

// measureText returns the width and bounds of rendered text
func measureText(face font.Face, text string) (int, fixed.Rectangle26_6) {
	d := &font.Drawer{Face: face}
	bounds, _ := d.BoundString(text)
	return (bounds.Max.X - bounds.Min.X).Ceil(), bounds
}

// drawThumbnailText draws both lines on a scratch image, rotates it clockwise
// by ThumbnailTextRotationDegrees and places the highest rotated point on the
// top margin.
func drawThumbnailText(img *image.RGBA, face font.Face, line1, line2 string, c image.Image, scale float64) {
	width1, bounds1 := measureText(face, line1)
	width2, bounds2 := measureText(face, line2)

	fontSize := float64(face.Metrics().Height) / 64.0
	lineSpacing := int(fontSize * 0.5)
	height1 := (bounds1.Max.Y - bounds1.Min.Y).Ceil()
	height2 := (bounds2.Max.Y - bounds2.Min.Y).Ceil()
	if line2 == "" {
		lineSpacing, height2 = 0, 0
	}
	totalHeight := height1 + lineSpacing + height2

	// 1.5x leaves room for the rotated corners
	tempSize := int(float64(max(width1, width2)+totalHeight) * 1.5)
	tempImg := image.NewRGBA(image.Rect(0, 0, tempSize, tempSize))
	center := tempSize / 2

	line1Top := center - totalHeight/2
	line2Top := line1Top + height1 + lineSpacing
	drawCenteredLine(tempImg, face, c, line1, tempSize, line1Top-bounds1.Min.Y.Ceil())
	drawCenteredLine(tempImg, face, c, line2, tempSize, line2Top-bounds2.Min.Y.Ceil())

	angle := -config.ThumbnailTextRotationDegrees * math.Pi / 180.0
	cos, sin := math.Cos(angle), math.Sin(angle)
	cx, cy := float64(center), float64(center)
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	rotated := image.NewRGBA(tempImg.Bounds())
	draw.BiLinear.Transform(rotated, m, tempImg, tempImg.Bounds(), draw.Over, nil)

	// After a clockwise turn the top-right corner of line 1 is the highest point
	topRightX := float64(width1) / 2
	topRightY := float64(line1Top) - cy
	highest := sin*topRightX + cos*topRightY + cy

	b := img.Bounds()
	destX := (b.Dx() - tempSize) / 2
	destY := int(config.ThumbnailMargin*scale - highest)
	draw.Draw(img, image.Rect(destX, destY, destX+tempSize, destY+tempSize), rotated, image.Point{}, draw.Over)
}

// drawCenteredLine draws one line centred horizontally at a baseline
func drawCenteredLine(img *image.RGBA, face font.Face, c image.Image, text string, width, baselineY int) {
	if text == "" {
		return
	}
	d := &font.Drawer{Dst: img, Src: c, Face: face}
	textWidth, _ := measureText(face, text)
	d.Dot = freetype.Pt((width-textWidth)/2, baselineY)
	d.DrawString(text)
}
