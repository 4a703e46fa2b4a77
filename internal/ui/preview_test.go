package ui

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestDownsampleFrame_Averages(t *testing.T) {
	// Left half black, right half white: a 2x1 grid sees one of each
	img := solid(8, 4, color.RGBA{0, 0, 0, 255})
	for y := 0; y < 4; y++ {
		for x := 4; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	grid := DownsampleFrame(img, PreviewConfig{Width: 2, Height: 1})
	if len(grid) != 1 || len(grid[0]) != 2 {
		t.Fatalf("grid is %dx%d", len(grid), len(grid[0]))
	}
	if grid[0][0] != (color.RGBA{0, 0, 0, 255}) || grid[0][1] != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("grid = %v", grid[0])
	}

	// One cell averages everything
	grid = DownsampleFrame(img, PreviewConfig{Width: 1, Height: 1})
	if got := grid[0][0].R; got != 127 {
		t.Errorf("average = %d, want 127", got)
	}
}

func TestDownsampleFrame_GridLargerThanImage(t *testing.T) {
	img := solid(3, 2, color.RGBA{10, 20, 30, 255})
	grid := DownsampleFrame(img, PreviewConfig{Width: 6, Height: 4})
	for _, row := range grid {
		for _, c := range row {
			if c != (color.RGBA{10, 20, 30, 255}) {
				t.Fatalf("cell = %v", c)
			}
		}
	}
	if DownsampleFrame(img, PreviewConfig{}) != nil {
		t.Error("empty config should give no grid")
	}
}

func TestRenderPreview(t *testing.T) {
	grid := DownsampleFrame(solid(16, 9, color.RGBA{255, 45, 117, 255}), PreviewConfig{Width: 4, Height: 2})
	out := RenderPreview("Frame Preview:", grid)

	if !strings.Contains(out, "\x1b[48;2;255;45;117m ") {
		t.Error("missing true-colour cell")
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 { // title, top border, 2 rows, bottom border
		t.Errorf("got %d lines, want 5", len(lines))
	}
	if RenderPreview("x", nil) != "" {
		t.Error("empty grid should render nothing")
	}
}

func TestFitPreview(t *testing.T) {
	testCases := []struct {
		name       string
		cols, rows int
	}{
		{"wide terminal", 200, 40},
		{"tall terminal", 80, 60},
		{"tiny terminal", 10, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := FitPreview(tc.cols, tc.rows, statusRows)
			t.Logf("%dx%d -> %dx%d", tc.cols, tc.rows, cfg.Width, cfg.Height)
			if cfg.Width < 8 || cfg.Height < 4 {
				t.Errorf("preview %dx%d below minimum", cfg.Width, cfg.Height)
			}
			if tc.cols > 20 && cfg.Width > tc.cols-6 {
				t.Errorf("width %d overflows %d columns", cfg.Width, tc.cols)
			}
			if tc.rows > 20 && cfg.Height > tc.rows-statusRows-2 {
				t.Errorf("height %d overflows %d rows", cfg.Height, tc.rows)
			}
		})
	}
}
