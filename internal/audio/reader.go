package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/linuxmatters/jivewave/internal/source"
)

// ErrNoSamples is returned when a decoded track contains no audio
var ErrNoSamples = errors.New("audio contains no samples")

// readChunkFrames is the decode granularity
const readChunkFrames = 16384

// Track is a fully decoded song held in memory, one slice per channel
type Track struct {
	SampleRate int
	Channels   [][]float64
}

// NumSamples returns the number of sample frames
func (t *Track) NumSamples() int {
	if t == nil || len(t.Channels) == 0 {
		return 0
	}
	return len(t.Channels[0])
}

// FirstChannel returns the waveform the offline sampler analyses
func (t *Track) FirstChannel() []float64 {
	if t == nil || len(t.Channels) == 0 {
		return nil
	}
	return t.Channels[0]
}

// Duration returns the play time of the track
func (t *Track) Duration() time.Duration {
	if t == nil || t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(t.NumSamples()) * int64(time.Second) / int64(t.SampleRate))
}

// ReadAll decodes every sample from dec
func ReadAll(ctx context.Context, dec AudioDecoder) (*Track, error) {
	track := &Track{
		SampleRate: dec.SampleRate(),
		Channels:   make([][]float64, dec.NumChannels()),
	}
	if track.SampleRate <= 0 || len(track.Channels) == 0 {
		return nil, fmt.Errorf("invalid audio format: %d Hz, %d channels", track.SampleRate, len(track.Channels))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := dec.ReadChunk(readChunkFrames)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for ch := range track.Channels {
			if ch < len(chunk) {
				track.Channels[ch] = append(track.Channels[ch], chunk[ch]...)
			}
		}
	}

	if track.NumSamples() == 0 {
		return nil, ErrNoSamples
	}
	return track, nil
}

// ReadFile decodes a local audio file
func ReadFile(ctx context.Context, filename string) (*Track, error) {
	dec, err := NewDecoder(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer dec.Close()

	track, err := ReadAll(ctx, dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return track, nil
}

// Load fetches (when remote) and decodes the audio at locator
func Load(ctx context.Context, locator string) (*Track, error) {
	path, cleanup, err := source.Localize(ctx, locator)
	if err != nil {
		if errors.Is(err, source.ErrEmpty) {
			return nil, fmt.Errorf("%w: %v", ErrNoSamples, err)
		}
		return nil, err
	}
	defer cleanup()
	return ReadFile(ctx, path)
}

// Streamer returns a beep streamer playing the track from the start. Mono
// tracks play on both channels; channels past the second are ignored.
func (t *Track) Streamer() *TrackStreamer {
	return &TrackStreamer{track: t}
}

// TrackStreamer implements beep.StreamSeeker over a decoded track
type TrackStreamer struct {
	track *Track
	pos   int
}

var _ beep.StreamSeeker = (*TrackStreamer)(nil)

func (s *TrackStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	total := s.track.NumSamples()
	if s.pos >= total {
		return 0, false
	}
	left := s.track.Channels[0]
	right := left
	if len(s.track.Channels) > 1 {
		right = s.track.Channels[1]
	}
	for n < len(samples) && s.pos < total {
		samples[n][0] = left[s.pos]
		samples[n][1] = right[s.pos]
		n++
		s.pos++
	}
	return n, true
}

func (s *TrackStreamer) Err() error { return nil }

func (s *TrackStreamer) Len() int { return s.track.NumSamples() }

func (s *TrackStreamer) Position() int { return s.pos }

func (s *TrackStreamer) Seek(p int) error {
	if p < 0 || p > s.track.NumSamples() {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, s.track.NumSamples())
	}
	s.pos = p
	return nil
}
