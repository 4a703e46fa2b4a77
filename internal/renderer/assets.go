package renderer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
	"github.com/linuxmatters/jivewave/internal/source"
)

// LoadImage fetches and decodes a PNG, JPEG, GIF or WebP image
func LoadImage(ctx context.Context, locator string) (image.Image, error) {
	rc, err := source.Open(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, _, err := image.Decode(bufio.NewReader(rc))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", locator, err)
	}
	return img, nil
}

// ScaleToCover scales img to fill a w x h frame, cropping the overflow evenly
func ScaleToCover(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if img == nil || w <= 0 || h <= 0 {
		return dst
	}

	src := img.Bounds()
	if src.Dx() == w && src.Dy() == h {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		return dst
	}

	// Crop the source to the destination aspect ratio
	crop := src
	if src.Dx()*h > src.Dy()*w {
		cw := src.Dy() * w / h
		crop.Min.X += (src.Dx() - cw) / 2
		crop.Max.X = crop.Min.X + cw
	} else {
		ch := src.Dx() * h / w
		crop.Min.Y += (src.Dy() - ch) / 2
		crop.Max.Y = crop.Min.Y + ch
	}

	// ApproxBiLinear is the fastest bilinear implementation
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}

// VideoSource yields the frame of a video at a point in time, scaled to w x h.
// Implementations must honour ctx so a slow seek can be abandoned.
type VideoSource interface {
	FrameAt(ctx context.Context, t time.Duration, w, h int) (*image.RGBA, error)
}

// FFmpegVideo extracts single frames from a video file or URL with ffmpeg
type FFmpegVideo struct {
	Locator string
}

// FrameAt seeks to t and decodes one raw RGBA frame
func (v *FFmpegVideo) FrameAt(ctx context.Context, t time.Duration, w, h int) (*image.RGBA, error) {
	args := []string{
		"-hide_banner", "-v", "error",
		"-ss", strconv.FormatFloat(t.Seconds(), 'f', 3, 64),
		"-i", v.Locator,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, audio.FFmpegBinary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg frame at %v: %w: %s", t, err, bytes.TrimSpace(stderr.Bytes()))
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if len(out) < len(img.Pix) {
		return nil, fmt.Errorf("ffmpeg frame at %v: %w", t, io.ErrUnexpectedEOF)
	}
	copy(img.Pix, out)
	return img, nil
}

// ErrNoFrame is returned when a video source produced nothing in time
var ErrNoFrame = errors.New("no background frame")

// Background is the resolved frame background: nothing, a still image or a
// video sampled at the frame's time.
type Background struct {
	Kind config.BackgroundKind

	// SeekTimeout bounds the wait for a video frame
	SeekTimeout time.Duration

	still image.Image
	video VideoSource

	mu     sync.Mutex
	scaled *image.RGBA

	// live preview state: the newest decoded video frame and the seek in flight
	live     *image.RGBA
	seeking  bool
	lastSeek time.Time
}

// liveSeekInterval spaces out the video seeks started by LiveFrame
const liveSeekInterval = 200 * time.Millisecond

// NoBackground returns a background that leaves the frame black
func NoBackground() *Background {
	return &Background{Kind: config.BackgroundNone}
}

// StaticBackground wraps a still image
func StaticBackground(img image.Image) *Background {
	if img == nil {
		return NoBackground()
	}
	return &Background{Kind: config.BackgroundImage, still: img}
}

// VideoBackground wraps a seekable video source
func VideoBackground(src VideoSource) *Background {
	if src == nil {
		return NoBackground()
	}
	return &Background{Kind: config.BackgroundVideo, video: src, SeekTimeout: config.SeekTimeout}
}

// LoadBackground resolves a selector. A failed image load degrades to no
// background and is reported only through the returned error.
func LoadBackground(ctx context.Context, sel config.BackgroundSelector) (*Background, error) {
	switch sel.Kind {
	case config.BackgroundImage:
		img, err := LoadImage(ctx, sel.Locator)
		if err != nil {
			return NoBackground(), err
		}
		return StaticBackground(img), nil
	case config.BackgroundVideo:
		if sel.Locator == "" {
			return NoBackground(), fmt.Errorf("video background has no locator")
		}
		return VideoBackground(&FFmpegVideo{Locator: sel.Locator}), nil
	default:
		return NoBackground(), nil
	}
}

// Frame returns the backdrop for time t scaled to w x h, or nil when the frame
// should be drawn without one. Video seeks that fail or exceed SeekTimeout
// yield nil; the caller proceeds without waiting further.
func (b *Background) Frame(ctx context.Context, t time.Duration, w, h int) *image.RGBA {
	if b == nil {
		return nil
	}
	switch b.Kind {
	case config.BackgroundImage:
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.scaled == nil || b.scaled.Bounds().Dx() != w || b.scaled.Bounds().Dy() != h {
			b.scaled = ScaleToCover(b.still, w, h)
		}
		return b.scaled

	case config.BackgroundVideo:
		timeout := b.SeekTimeout
		if timeout <= 0 {
			timeout = config.SeekTimeout
		}
		seekCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		// A source that ignores ctx must still not stall the caller
		type result struct {
			img *image.RGBA
			err error
		}
		done := make(chan result, 1)
		go func() {
			img, err := b.video.FrameAt(seekCtx, t, w, h)
			done <- result{img, err}
		}()

		var img *image.RGBA
		var err error
		select {
		case r := <-done:
			img, err = r.img, r.err
		case <-seekCtx.Done():
			err = seekCtx.Err()
		}
		if err == nil && img == nil {
			err = ErrNoFrame
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{"position": t, "error": err}).Warn("Background seek failed, drawing without background")
			return nil
		}
		if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
			return ScaleToCover(img, w, h)
		}
		return img
	}
	return nil
}

// LiveFrame is Frame for the live preview. Still backgrounds behave as in
// Frame. Video backgrounds never block: the newest decoded frame is returned
// (nil until the first seek lands) and a new seek to t starts in the
// background when none is running and liveSeekInterval has passed.
func (b *Background) LiveFrame(ctx context.Context, t time.Duration, w, h int) *image.RGBA {
	if b == nil || b.Kind != config.BackgroundVideo {
		return b.Frame(ctx, t, w, h)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.seeking && time.Since(b.lastSeek) >= liveSeekInterval {
		b.seeking = true
		b.lastSeek = time.Now()
		go func() {
			img := b.Frame(ctx, t, w, h)
			b.mu.Lock()
			defer b.mu.Unlock()
			if img != nil {
				b.live = img
			}
			b.seeking = false
		}()
	}

	if b.live == nil || b.live.Bounds().Dx() != w || b.live.Bounds().Dy() != h {
		return nil
	}
	return b.live
}
