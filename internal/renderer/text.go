package renderer

import (
	"math"
	"os"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/linuxmatters/jivewave/internal/config"
)

// Built-in font names
const (
	FontSans   = "sans"
	FontBold   = "bold"
	FontMono   = "mono"
	FontItalic = "italic"
)

var builtinFonts = map[string][]byte{
	FontSans:   goregular.TTF,
	FontBold:   gobold.TTF,
	FontMono:   gomono.TTF,
	FontItalic: goitalic.TTF,
}

type faceKey struct {
	name string
	size float64
}

// FontCache parses fonts once and keeps a face per (font, size). Faces are
// not safe for concurrent drawing, so each render loop owns its own cache.
type FontCache struct {
	mu    sync.Mutex
	fonts map[string]*truetype.Font
	faces map[faceKey]font.Face
}

// NewFontCache creates an empty cache
func NewFontCache() *FontCache {
	return &FontCache{
		fonts: make(map[string]*truetype.Font),
		faces: make(map[faceKey]font.Face),
	}
}

// Font returns the parsed font for a built-in name or a TTF path. Unknown or
// unloadable fonts fall back to sans.
func (c *FontCache) Font(name string) *truetype.Font {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fontLocked(name)
}

func (c *FontCache) fontLocked(name string) *truetype.Font {
	if name == "" {
		name = config.DefaultFont
	}
	if f, ok := c.fonts[name]; ok {
		return f
	}

	f, err := parseFont(name)
	if err != nil {
		logrus.WithFields(logrus.Fields{"font": name, "error": err}).Debug("Falling back to sans")
		f = c.fallbackLocked()
	}
	c.fonts[name] = f
	return f
}

func (c *FontCache) fallbackLocked() *truetype.Font {
	if f, ok := c.fonts[FontSans]; ok {
		return f
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err) // embedded font is always valid
	}
	c.fonts[FontSans] = f
	return f
}

func parseFont(name string) (*truetype.Font, error) {
	data, ok := builtinFonts[strings.ToLower(name)]
	if !ok {
		var err error
		data, err = os.ReadFile(name)
		if err != nil {
			return nil, err
		}
	}
	return truetype.Parse(data)
}

// Face returns a face of the given pixel size, cached in half-pixel steps
func (c *FontCache) Face(name string, size float64) font.Face {
	if size < 1 || math.IsNaN(size) {
		size = 1
	}
	key := faceKey{name: name, size: math.Round(size*2) / 2}

	c.mu.Lock()
	defer c.mu.Unlock()
	if face, ok := c.faces[key]; ok {
		return face
	}
	face := truetype.NewFace(c.fontLocked(name), &truetype.Options{
		Size:    key.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	c.faces[key] = face
	return face
}

// LoadFont loads a TrueType font from a file
func LoadFont(fontPath string, size float64) (font.Face, error) {
	f, err := parseFont(fontPath)
	if err != nil {
		return nil, err
	}

	face := truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	return face, nil
}

// TextShadowAlpha is the opacity of the black drop shadow behind labels
const TextShadowAlpha = 0.6

// drawTextLayers draws each layer in slice order, centred on its percentage
// position. pulse scales the first layer (1 leaves it unchanged).
func drawTextLayers(dc *gg.Context, fonts *FontCache, layers []config.TextLayer, w, h, pulse float64) {
	scale := h / config.ReferenceHeight
	shadow := 2 * scale

	for i, layer := range layers {
		if strings.TrimSpace(layer.Text) == "" {
			continue
		}
		size := layer.Size * scale
		if i == 0 {
			size *= pulse
		}
		if !(size > 0) {
			continue
		}

		x := layer.X / 100 * w
		y := layer.Y / 100 * h
		dc.SetFontFace(fonts.Face(layer.Font, size))

		dc.SetRGBA(0, 0, 0, TextShadowAlpha)
		dc.DrawStringAnchored(layer.Text, x+shadow, y+shadow, 0.5, 0.5)

		r, g, b := layer.Color.Floats()
		dc.SetRGB(r, g, b)
		dc.DrawStringAnchored(layer.Text, x, y, 0.5, 0.5)
	}
}
