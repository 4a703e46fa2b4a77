package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
	"github.com/linuxmatters/jivewave/internal/effects"
	"github.com/linuxmatters/jivewave/internal/encoder"
	"github.com/linuxmatters/jivewave/internal/renderer"
)

var (
	// ErrNoAudio is returned when the request names no audio
	ErrNoAudio = errors.New("no audio to export")
	// ErrBusy is returned when an export is already running
	ErrBusy = errors.New("an export is already running")
	// ErrAudioDecode wraps audio fetch and decode failures
	ErrAudioDecode = errors.New("failed to load audio")
	// ErrEncoderInit wraps encoder creation and initialization failures
	ErrEncoderInit = errors.New("failed to initialize encoder")
	// ErrEmptyOutput is returned when muxing succeeded but wrote nothing
	ErrEmptyOutput = errors.New("encoder produced an empty file")
)

// Stage is the state of the export job
type Stage int

const (
	Idle Stage = iota
	Capturing
	Encoding
)

func (s Stage) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Encoding:
		return "encoding"
	default:
		return "idle"
	}
}

// Status is one progress report. Progress is a percentage that never
// decreases while Stage is not Idle. Err is set on the final report of a
// failed export.
type Status struct {
	Stage       Stage
	Progress    float64
	Frame       int
	TotalFrames int
	Preview     *image.RGBA // downscaled copy of the latest frame, may be nil
	Levels      []float64   // spectrum of the latest frame in [0,1], may be nil
	Err         error
}

// Job describes the export in flight
type Job struct {
	Song     config.Song
	Width    int
	Height   int
	FPS      int
	Stage    Stage
	Progress float64
}

// Request is one export
type Request struct {
	Song        config.Song
	Background  config.BackgroundSelector
	CenterImage string // overrides Song.Cover for album-art presets
	Seed        int64
}

// Result is the finished container
type Result struct {
	Name    string
	Data    []byte
	Frames  int
	Elapsed time.Duration
}

// AudioLoader fetches and decodes a song's audio
type AudioLoader interface {
	Load(ctx context.Context, locator string) (*audio.Track, error)
}

// AudioLoaderFunc adapts a function to AudioLoader
type AudioLoaderFunc func(ctx context.Context, locator string) (*audio.Track, error)

// Load calls f
func (f AudioLoaderFunc) Load(ctx context.Context, locator string) (*audio.Track, error) {
	return f(ctx, locator)
}

// EncoderFactory creates the encoder for one export
type EncoderFactory func(width, height, fps int) (encoder.Encoder, error)

// FFmpegEncoders returns a factory for the ffmpeg encoder. hw may be nil.
func FFmpegEncoders(hw *encoder.HWEncoder) EncoderFactory {
	return func(width, height, fps int) (encoder.Encoder, error) {
		return encoder.New(encoder.Config{Width: width, Height: height, Framerate: fps, HW: hw})
	}
}

const (
	// statusEvery is how often capture progress is reported, in frames
	statusEvery = 3
	// previewWidth and previewHeight size the frames sent with Status
	previewWidth  = 160
	previewHeight = 90
	// statusBands is the number of spectrum levels sent with Status
	statusBands = 48
)

// Pipeline renders a song offline, one frame per 1/FPS of audio, and muxes
// the frames with the audio. At most one export runs at a time.
type Pipeline struct {
	Store      *config.Store
	Audio      AudioLoader
	NewEncoder EncoderFactory
	Width      int
	Height     int
	FPS        int

	// OnStatus receives progress reports on the exporting goroutine
	OnStatus func(Status)
	// PreviewEvery attaches a preview image every n frames; 0 disables it
	PreviewEvery int

	mu  sync.Mutex
	job *Job
}

// NewPipeline returns a pipeline at the default resolution and frame rate
func NewPipeline(store *config.Store, newEncoder EncoderFactory) *Pipeline {
	return &Pipeline{
		Store:      store,
		Audio:      AudioLoaderFunc(audio.Load),
		NewEncoder: newEncoder,
		Width:      config.Width,
		Height:     config.Height,
		FPS:        config.FPS,
	}
}

// Job returns a copy of the running job, or nil when idle
func (p *Pipeline) Job() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.job == nil {
		return nil
	}
	j := *p.job
	return &j
}

// Stage returns the current stage
func (p *Pipeline) Stage() Stage {
	if j := p.Job(); j != nil {
		return j.Stage
	}
	return Idle
}

// report updates the job and forwards a status. Progress never moves backwards.
func (p *Pipeline) report(st Status) {
	p.mu.Lock()
	if p.job != nil {
		if st.Progress < p.job.Progress {
			st.Progress = p.job.Progress
		}
		p.job.Stage = st.Stage
		p.job.Progress = st.Progress
	}
	p.mu.Unlock()

	if p.OnStatus != nil {
		p.OnStatus(st)
	}
}

// fail ends the job and reports err
func (p *Pipeline) fail(log *logrus.Entry, frame, total int, err error) error {
	progress := 0.0
	p.mu.Lock()
	if p.job != nil {
		progress = p.job.Progress
	}
	p.job = nil
	p.mu.Unlock()

	log.WithError(err).Error("Export failed")
	if p.OnStatus != nil {
		p.OnStatus(Status{Stage: Idle, Progress: progress, Frame: frame, TotalFrames: total, Err: err})
	}
	return err
}

// Export runs one export to completion. Cancelling ctx stops it between
// frames; otherwise it only ends on success or a fatal error.
func (p *Pipeline) Export(ctx context.Context, req Request) (*Result, error) {
	log := p.logger(req)

	p.mu.Lock()
	if p.job != nil {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	if strings.TrimSpace(req.Song.Audio) == "" {
		p.mu.Unlock()
		if p.OnStatus != nil {
			p.OnStatus(Status{Stage: Idle, Err: ErrNoAudio})
		}
		return nil, ErrNoAudio
	}
	// Reserve the slot while the encoder starts
	p.job = &Job{Song: req.Song, Width: p.Width, Height: p.Height, FPS: p.FPS, Stage: Idle}
	p.mu.Unlock()

	enc, err := p.NewEncoder(p.Width, p.Height, p.FPS)
	if err == nil {
		err = enc.Init(ctx)
		if err != nil {
			_ = enc.Cleanup()
		}
	}
	if err != nil {
		return nil, p.fail(log, 0, 0, fmt.Errorf("%w: %w", ErrEncoderInit, err))
	}
	defer func() {
		if err := enc.Cleanup(); err != nil {
			log.WithError(err).Warn("Failed to remove encoder working set")
		}
	}()

	start := time.Now()
	p.report(Status{Stage: Capturing})
	log.WithField("stage", Capturing).Info("Export started")

	track, err := p.Audio.Load(ctx, req.Song.Audio)
	if err == nil && track.NumSamples() == 0 {
		err = audio.ErrNoSamples
	}
	if err != nil {
		return nil, p.fail(log, 0, 0, fmt.Errorf("%w: %w", ErrAudioDecode, err))
	}

	sampler := audio.NewOfflineSampler(track.FirstChannel(), track.SampleRate, p.FPS, config.BinCount)
	total := sampler.FrameCount()
	log = log.WithField("frames", total)
	log.WithField("duration", track.Duration()).Debug("Audio decoded")
	p.report(Status{Stage: Capturing, Progress: config.ProgressDecoded, TotalFrames: total})

	scene, bg := p.loadAssets(ctx, log, req)

	if err := p.capture(ctx, log, req, enc, scene, bg, sampler, total); err != nil {
		return nil, err
	}

	// Encoding
	p.report(Status{Stage: Encoding, Progress: config.ProgressCaptured, Frame: total, TotalFrames: total})
	log.WithField("stage", Encoding).Debug("Frames captured")

	if err := enc.WriteAudio(track); err != nil {
		return nil, p.fail(log, total, total, fmt.Errorf("failed to write audio: %w", err))
	}
	p.report(Status{Stage: Encoding, Progress: config.ProgressAudio, Frame: total, TotalFrames: total})

	span := config.ProgressMuxed - config.ProgressAudio
	err = enc.Mux(ctx, func(f float64) {
		p.report(Status{Stage: Encoding, Progress: config.ProgressAudio + span*f, Frame: total, TotalFrames: total})
	})
	if err != nil {
		return nil, p.fail(log, total, total, fmt.Errorf("failed to mux: %w", err))
	}

	data, err := enc.Output()
	if err != nil {
		return nil, p.fail(log, total, total, err)
	}
	if len(data) == 0 {
		return nil, p.fail(log, total, total, ErrEmptyOutput)
	}

	result := &Result{
		Name:    FileName(req.Song.Title),
		Data:    data,
		Frames:  total,
		Elapsed: time.Since(start),
	}

	p.mu.Lock()
	p.job = nil
	p.mu.Unlock()
	if p.OnStatus != nil {
		p.OnStatus(Status{Stage: Idle, Progress: config.ProgressCompleted, Frame: total, TotalFrames: total})
	}
	log.WithFields(logrus.Fields{"bytes": len(data), "elapsed": result.Elapsed.Round(time.Millisecond)}).Info("Export complete")
	return result, nil
}

func (p *Pipeline) logger(req Request) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"song": req.Song.Title, "width": p.Width, "height": p.Height})
}

// loadAssets resolves the background and album art. Failures degrade to
// drawing without them.
func (p *Pipeline) loadAssets(ctx context.Context, log *logrus.Entry, req Request) (*renderer.Scene, *renderer.Background) {
	scene := renderer.NewScene()

	bg, err := renderer.LoadBackground(ctx, req.Background)
	if err != nil {
		log.WithError(err).Warn("Background unavailable, drawing without it")
	}

	art := req.CenterImage
	if art == "" {
		art = req.Song.Cover
	}
	if art != "" {
		img, err := renderer.LoadImage(ctx, art)
		if err != nil {
			log.WithError(err).Warn("Album art unavailable")
		} else {
			scene.SetAlbumArt(img)
		}
	}
	return scene, bg
}

// capture draws every frame into one offscreen surface and hands it to enc
func (p *Pipeline) capture(ctx context.Context, log *logrus.Entry, req Request, enc encoder.Encoder,
	scene *renderer.Scene, bg *renderer.Background, sampler audio.Sampler, total int) error {
	frame := renderer.NewFrame(p.Width, p.Height)
	defer renderer.ReleaseFrame(frame)

	span := config.ProgressCaptured - config.ProgressDecoded
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return p.fail(log, i, total, err)
		}

		// One settings snapshot per frame
		settings := p.Store.Load()
		t := time.Duration(i) * time.Second / time.Duration(p.FPS)

		snap := sampler.Snapshot(audio.FrameContext{Index: i, Time: t})
		scene.Draw(frame, renderer.FrameInput{
			Settings:  settings,
			Snapshot:  snap,
			Time:      t,
			Backdrop:  bg.Frame(ctx, t, p.Width, p.Height),
			Seed:      req.Seed,
			FrameSeed: renderer.FrameSeed(req.Seed, i),
			Mode:      effects.ModeExport,
		})

		if err := enc.AddFrame(i, frame); err != nil {
			return p.fail(log.WithField("frame", i), i, total, fmt.Errorf("failed to add frame %d: %w", i, err))
		}

		if i%statusEvery == 0 || i == total-1 {
			st := Status{
				Stage:       Capturing,
				Progress:    config.ProgressDecoded + span*float64(i+1)/float64(total),
				Frame:       i + 1,
				TotalFrames: total,
				Levels:      snap.Bands(statusBands),
			}
			if p.PreviewEvery > 0 && i%p.PreviewEvery == 0 {
				st.Preview = renderer.ScaleToCover(frame, previewWidth, previewHeight)
			}
			p.report(st)
		}
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^\p{L}\p{N}._ -]+`)

// FileName derives the download name from a song title
func FileName(title string) string {
	name := unsafeName.ReplaceAllString(title, "")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "jivewave"
	}
	return name + ".mp4"
}
