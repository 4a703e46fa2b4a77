package live

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
	"github.com/linuxmatters/jivewave/internal/effects"
	"github.com/linuxmatters/jivewave/internal/renderer"
)

// ErrNoSong is returned when playback controls are used before Load
var ErrNoSong = errors.New("no song loaded")

// Surface receives each preview frame. img is reused for the next frame
// once Present returns, so implementations copy what they keep.
type Surface interface {
	Present(img *image.RGBA)
}

// SurfaceFunc adapts a function to Surface
type SurfaceFunc func(img *image.RGBA)

// Present calls f
func (f SurfaceFunc) Present(img *image.RGBA) { f(img) }

// Loop draws the visualiser for the song that is playing, once per display
// refresh. Each frame reads one settings snapshot from Store.
type Loop struct {
	Store      *config.Store
	Scene      *renderer.Scene
	Surface    Surface
	Background *renderer.Background
	Width      int
	Height     int

	// RefreshRate is the target frame rate in Hz
	RefreshRate int
	Seed        int64

	// Loader decodes songs for Load
	Loader func(ctx context.Context, locator string) (*audio.Track, error)

	mu       sync.Mutex
	song     config.Song
	playback *audio.Playback
	sampler  audio.Sampler
	frame    int

	// drawMu serialises draws into surface without holding mu
	drawMu  sync.Mutex
	surface *image.RGBA
}

// New returns a loop drawing at the preview resolution and refresh rate
func New(store *config.Store, surface Surface) *Loop {
	return &Loop{
		Store:       store,
		Scene:       renderer.NewScene(),
		Surface:     surface,
		Background:  renderer.NoBackground(),
		Width:       config.PreviewWidth,
		Height:      config.PreviewHeight,
		RefreshRate: config.RefreshRate,
		Loader:      audio.Load,
	}
}

// Load decodes song and starts playing it, replacing any current song
func (l *Loop) Load(ctx context.Context, song config.Song) error {
	track, err := l.Loader(ctx, song.Audio)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", song.Audio, err)
	}
	if song.Cover != "" {
		if img, err := renderer.LoadImage(ctx, song.Cover); err != nil {
			logrus.WithError(err).WithField("song", song.Title).Warn("Album art unavailable")
		} else {
			l.Scene.SetAlbumArt(img)
		}
	}
	return l.Play(song, track)
}

// Play starts playing an already decoded track
func (l *Loop) Play(song config.Song, track *audio.Track) error {
	if track.NumSamples() == 0 {
		return audio.ErrNoSamples
	}

	pb := audio.NewPlayback(track)
	analyser, err := audio.NewAnalyser(pb.Tap(), config.FFTSize)
	if err != nil {
		return err
	}

	l.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.song = song
	l.playback = pb
	l.sampler = audio.NewLiveSampler(analyser)
	l.frame = 0
	pb.Start(context.Background())

	logrus.WithFields(logrus.Fields{"song": song.Title, "duration": track.Duration()}).Debug("Preview playing")
	return nil
}

// Stop halts playback and releases the analysis tap before returning
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.playback == nil {
		return
	}
	l.playback.Close()
	logrus.WithField("song", l.song.Title).Debug("Preview stopped")
	l.playback = nil
	l.sampler = nil
	l.song = config.Song{}
}

// Loaded reports whether a song is playing or paused
func (l *Loop) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playback != nil
}

// Song returns the current song
func (l *Loop) Song() config.Song {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.song
}

// TogglePause pauses or resumes playback and returns the new state
func (l *Loop) TogglePause() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.playback == nil {
		return false, ErrNoSong
	}
	paused := !l.playback.Paused()
	l.playback.SetPaused(paused)
	return paused, nil
}

// Paused reports whether playback is paused
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playback != nil && l.playback.Paused()
}

// Ended reports whether the current song played to the end
func (l *Loop) Ended() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playback != nil && l.playback.Ended()
}

// Position returns the playback position
func (l *Loop) Position() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.playback == nil {
		return 0
	}
	return l.playback.Position()
}

// Run draws a frame on every tick until ctx is done. Ticks that arrive while
// a frame is still being drawn are dropped.
func (l *Loop) Run(ctx context.Context) error {
	rate := l.RefreshRate
	if rate <= 0 {
		rate = config.RefreshRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick draws and presents one frame. It does nothing and returns false when
// no song is loaded. Playback state is read under the lock and the draw runs
// without it, so Stop never waits for a frame.
func (l *Loop) Tick(ctx context.Context) bool {
	l.mu.Lock()
	if l.playback == nil {
		l.mu.Unlock()
		return false
	}
	pos := l.playback.Position()
	sampler := l.sampler
	index := l.frame
	l.frame++
	l.mu.Unlock()

	l.drawMu.Lock()
	defer l.drawMu.Unlock()
	if l.surface == nil || l.surface.Bounds().Dx() != l.Width || l.surface.Bounds().Dy() != l.Height {
		l.surface = image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))
	}

	l.Scene.Draw(l.surface, renderer.FrameInput{
		Settings:  l.Store.Load(),
		Snapshot:  sampler.Snapshot(audio.FrameContext{Index: index, Time: pos}),
		Time:      pos,
		Backdrop:  l.Background.LiveFrame(ctx, pos, l.Width, l.Height),
		Seed:      l.Seed,
		FrameSeed: renderer.FrameSeed(l.Seed, index),
		Mode:      effects.ModeLive,
	})

	if l.Surface != nil {
		l.Surface.Present(l.surface)
	}
	return true
}
