package effects

import (
	"fmt"
	"image"
	"time"

	"github.com/fogleman/gg"
)

// recStamp draws the camcorder "REC hh:mm:ss" label in the top-left corner
func (s *Stack) recStamp(dst *image.RGBA, t time.Duration, scale float64) {
	dc := gg.NewContextForRGBA(dst)
	if s.stampFace != nil {
		dc.SetFontFace(s.stampFace)
	}

	margin := 48 * scale
	dotR := 12 * scale

	dc.SetRGB(1, 0.1, 0.1)
	dc.DrawCircle(margin+dotR, margin+dotR, dotR)
	dc.Fill()

	total := int(t / time.Second)
	label := fmt.Sprintf("REC %02d:%02d:%02d", total/3600, total/60%60, total%60)

	dc.SetRGBA(1, 1, 1, 0.9)
	dc.DrawStringAnchored(label, margin+dotR*3, margin+dotR, 0, 0.5)
}
