package ui

import (
	"image"
	"image/color"
	"strconv"
	"strings"
)

// PreviewConfig holds configuration for the frame preview
type PreviewConfig struct {
	Width  int // Width in terminal cells
	Height int // Height in terminal cells
}

// DefaultPreviewConfig returns a sensible default preview size
// Using 72x20 1.8:1 (terminal cells are roughly twice as tall as wide)
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Width:  72,
		Height: 20,
	}
}

// FitPreview returns the largest 16:9-ish preview that fits in a terminal of
// cols x rows cells, leaving room for the border and the lines around it.
func FitPreview(cols, rows, reservedRows int) PreviewConfig {
	w := cols - 6
	h := rows - reservedRows - 2
	if w < 8 || h < 4 {
		return PreviewConfig{Width: 8, Height: 4}
	}
	// A cell is about twice as tall as it is wide: 16:9 is 3.6:1 in cells
	if byW := w * 10 / 36; byW < h {
		h = byW
	} else {
		w = h * 36 / 10
	}
	return PreviewConfig{Width: w, Height: h}
}

// DownsampleFrame takes a full-resolution RGB frame and downsamples it to preview size
// Each terminal cell represents a rectangular region of the source image
// Averages all pixels in each region for smooth, high-quality downsampling
func DownsampleFrame(frame *image.RGBA, config PreviewConfig) [][]color.RGBA {
	if config.Width <= 0 || config.Height <= 0 {
		return nil
	}
	bounds := frame.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	preview := make([][]color.RGBA, config.Height)
	for row := 0; row < config.Height; row++ {
		preview[row] = make([]color.RGBA, config.Width)
		y0 := row * srcHeight / config.Height
		y1 := max((row+1)*srcHeight/config.Height, y0+1)
		for col := 0; col < config.Width; col++ {
			x0 := col * srcWidth / config.Width
			x1 := max((col+1)*srcWidth/config.Width, x0+1)

			// Average all pixels in this cell region
			var sumR, sumG, sumB, count uint32
			for y := y0; y < y1 && y < srcHeight; y++ {
				off := frame.PixOffset(bounds.Min.X+x0, bounds.Min.Y+y)
				for x := x0; x < x1 && x < srcWidth; x++ {
					sumR += uint32(frame.Pix[off])
					sumG += uint32(frame.Pix[off+1])
					sumB += uint32(frame.Pix[off+2])
					off += 4
					count++
				}
			}

			if count > 0 {
				preview[row][col] = color.RGBA{
					R: uint8(sumR / count),
					G: uint8(sumG / count),
					B: uint8(sumB / count),
					A: 255,
				}
			}
		}
	}

	return preview
}

// RenderPreview converts an RGB preview grid to a string representation
// using ANSI 24-bit true color escape codes
func RenderPreview(title string, preview [][]color.RGBA) string {
	if len(preview) == 0 {
		return ""
	}

	// Format: \x1b[48;2;R;G;Bm sets the background colour, a space is the pixel
	var sb strings.Builder
	sb.Grow(len(preview) * len(preview[0]) * 20)

	if title != "" {
		sb.WriteString("  ")
		sb.WriteString(title)
		sb.WriteString("\n")
	}
	border := strings.Repeat("─", len(preview[0]))
	sb.WriteString("  ┌" + border + "┐\n")

	for _, row := range preview {
		sb.WriteString("  │")
		for _, pixel := range row {
			sb.WriteString("\x1b[48;2;")
			sb.WriteString(strconv.Itoa(int(pixel.R)))
			sb.WriteByte(';')
			sb.WriteString(strconv.Itoa(int(pixel.G)))
			sb.WriteByte(';')
			sb.WriteString(strconv.Itoa(int(pixel.B)))
			sb.WriteString("m ")
		}
		sb.WriteString("\x1b[0m│\n")
	}

	sb.WriteString("  └" + border + "┘\n")
	return sb.String()
}
