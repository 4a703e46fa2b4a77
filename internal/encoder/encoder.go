package encoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
)

// Encoder turns numbered frames plus an audio track into an MP4. Calls are
// made in order: Init, AddFrame for 0..n-1, WriteAudio, Mux, Output, and
// Cleanup last whatever happened before.
type Encoder interface {
	Init(ctx context.Context) error
	AddFrame(index int, img *image.RGBA) error
	WriteAudio(track *audio.Track) error
	Mux(ctx context.Context, progress func(float64)) error
	Output() ([]byte, error)
	Cleanup() error
}

var (
	// ErrNotInitialized is returned when the working set does not exist yet
	ErrNotInitialized = errors.New("encoder not initialized")
	// ErrFrameOrder is returned when frames are not added contiguously from 0
	ErrFrameOrder = errors.New("frames must be added in order")
	// ErrNothingToMux is returned when Mux is called without frames or audio
	ErrNothingToMux = errors.New("no frames or audio to mux")
)

// Config holds the encoder configuration
type Config struct {
	Width     int        // Video width in pixels
	Height    int        // Video height in pixels
	Framerate int        // Frames per second
	HW        *HWEncoder // Hardware encoder, nil for libx264
	TempDir   string     // Parent of the working set, os.TempDir() when empty
}

// FFmpeg keeps the working set (numbered PNG frames and a WAV file) in a
// temporary directory and muxes it with the ffmpeg executable.
type FFmpeg struct {
	config Config

	dir    string
	frames int
	audio  bool
	pngEnc png.Encoder
}

// New validates the configuration and returns an encoder
func New(config Config) (*FFmpeg, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", config.Width, config.Height)
	}
	if config.Width%2 != 0 || config.Height%2 != 0 {
		return nil, fmt.Errorf("dimensions must be even for yuv420p: %dx%d", config.Width, config.Height)
	}
	if config.Framerate <= 0 {
		return nil, fmt.Errorf("invalid framerate: %d", config.Framerate)
	}

	return &FFmpeg{
		config: config,
		pngEnc: png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// Dir returns the working directory, empty before Init
func (e *FFmpeg) Dir() string {
	return e.dir
}

// Frames returns the number of frames added so far
func (e *FFmpeg) Frames() int {
	return e.frames
}

// Init checks for ffmpeg and creates a fresh working set
func (e *FFmpeg) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(audio.FFmpegBinary); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	if e.dir != "" {
		if err := e.Cleanup(); err != nil {
			return err
		}
	}

	dir, err := os.MkdirTemp(e.config.TempDir, "jivewave-*")
	if err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	e.dir = dir
	e.frames = 0
	e.audio = false

	logrus.WithFields(logrus.Fields{"dir": dir, "encoder": e.videoCodec()}).Debug("Encoder initialized")
	return nil
}

// AddFrame writes img as frame index
func (e *FFmpeg) AddFrame(index int, img *image.RGBA) error {
	if e.dir == "" {
		return ErrNotInitialized
	}
	if index != e.frames {
		return fmt.Errorf("%w: got %d, want %d", ErrFrameOrder, index, e.frames)
	}
	b := img.Bounds()
	if b.Dx() != e.config.Width || b.Dy() != e.config.Height {
		return fmt.Errorf("frame %d is %dx%d, want %dx%d", index, b.Dx(), b.Dy(), e.config.Width, e.config.Height)
	}

	path := filepath.Join(e.dir, fmt.Sprintf(config.FramePattern, index))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create frame %d: %w", index, err)
	}
	w := bufio.NewWriterSize(f, 256*1024)
	if err := e.pngEnc.Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode frame %d: %w", index, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write frame %d: %w", index, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", index, err)
	}

	e.frames++
	return nil
}

// WriteAudio stores the decoded track as 16-bit PCM WAV
func (e *FFmpeg) WriteAudio(track *audio.Track) error {
	if e.dir == "" {
		return ErrNotInitialized
	}
	if track.NumSamples() == 0 {
		return audio.ErrNoSamples
	}

	f, err := os.Create(filepath.Join(e.dir, config.AudioFile))
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	defer f.Close()

	if err := writeWAV(f, track); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	e.audio = true
	return nil
}

// writeWAV interleaves the channels of track into a 16-bit WAV stream
func writeWAV(w io.WriteSeeker, track *audio.Track) error {
	channels := len(track.Channels)
	enc := wav.NewEncoder(w, track.SampleRate, 16, channels, 1)

	const chunkFrames = 8192
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: track.SampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, chunkFrames*channels),
	}

	total := track.NumSamples()
	for start := 0; start < total; start += chunkFrames {
		n := min(chunkFrames, total-start)
		buf.Data = buf.Data[:n*channels]
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				var v float64
				if start+i < len(track.Channels[ch]) {
					v = track.Channels[ch][start+i]
				}
				buf.Data[i*channels+ch] = pcm16(v)
			}
		}
		if err := enc.Write(buf); err != nil {
			return err
		}
	}
	return enc.Close()
}

// pcm16 converts a [-1, 1] sample to a clipped 16-bit integer
func pcm16(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	return int(math.Round(v * 32767))
}

// Mux runs ffmpeg over the working set. progress receives the fraction of
// the video duration written so far, in [0, 1].
func (e *FFmpeg) Mux(ctx context.Context, progress func(float64)) error {
	if e.dir == "" {
		return ErrNotInitialized
	}
	if e.frames == 0 || !e.audio {
		return ErrNothingToMux
	}

	args := e.muxArgs()
	log := logrus.WithFields(logrus.Fields{"frames": e.frames, "encoder": e.videoCodec()})
	log.WithField("args", strings.Join(args, " ")).Debug("Muxing")

	cmd := exec.CommandContext(ctx, audio.FFmpegBinary, args...)
	cmd.Dir = e.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	duration := time.Duration(e.frames) * time.Second / time.Duration(e.config.Framerate)
	parseProgress(stdout, duration, progress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg mux failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Info("Mux complete")
	return nil
}

// parseProgress reads ffmpeg -progress key=value lines and reports the
// fraction of total covered by out_time_us. It drains r until EOF.
func parseProgress(r io.Reader, total time.Duration, progress func(float64)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if progress == nil {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 || total <= 0 {
				continue
			}
			progress(math.Min(1, float64(time.Duration(us)*time.Microsecond)/float64(total)))
		case "progress":
			if value == "end" {
				progress(1)
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

// videoCodec names the H.264 encoder in use
func (e *FFmpeg) videoCodec() string {
	if e.config.HW != nil {
		return e.config.HW.Name
	}
	return config.VideoCodec
}

// muxArgs builds the fixed ffmpeg command line: H.264 yuv420p at a constant
// frame rate, AAC audio, trimmed to the shorter stream, fast-start MP4.
func (e *FFmpeg) muxArgs() []string {
	rate := strconv.Itoa(e.config.Framerate)

	args := []string{"-hide_banner", "-v", "error", "-y", "-nostats", "-progress", "pipe:1"}
	args = append(args, hwDeviceArgs(e.config.HW)...)
	args = append(args,
		"-framerate", rate,
		"-i", config.FramePattern,
		"-i", config.AudioFile,
		"-map", "0:v:0",
		"-map", "1:a:0",
	)
	args = append(args, videoCodecArgs(e.config.HW)...)
	args = append(args,
		"-r", rate,
		"-c:a", config.AudioCodec,
		"-b:a", config.AudioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		config.OutputFile,
	)
	return args
}

// Output reads the muxed file
func (e *FFmpeg) Output() ([]byte, error) {
	if e.dir == "" {
		return nil, ErrNotInitialized
	}
	data, err := os.ReadFile(filepath.Join(e.dir, config.OutputFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}
	return data, nil
}

// Cleanup removes the working set. It is safe to call more than once.
func (e *FFmpeg) Cleanup() error {
	if e.dir == "" {
		return nil
	}
	dir := e.dir
	e.dir = ""
	e.frames = 0
	e.audio = false
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove working directory: %w", err)
	}
	return nil
}
