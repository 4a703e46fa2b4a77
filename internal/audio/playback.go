package audio

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/linuxmatters/jivewave/internal/config"
)

// Playback pumps a track through a Tap in real time. It is the live audio
// feed of the preview: samples are pulled at the wall-clock rate so the tap
// always holds what is "playing now".
type Playback struct {
	tap      *Tap
	rate     int
	quantum  time.Duration
	streamer beep.Streamer

	mu     sync.Mutex
	played int
	paused bool
	done   bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	finished chan struct{}
}

// NewPlayback prepares playback of track at the session sample rate. The tap
// buffer holds one FFT window.
func NewPlayback(track *Track) *Playback {
	var s beep.Streamer = track.Streamer()
	if track.SampleRate != config.SampleRate {
		s = beep.Resample(4, beep.SampleRate(track.SampleRate), beep.SampleRate(config.SampleRate), s)
	}
	tap := NewTap(s, config.FFTSize)
	return &Playback{
		tap:      tap,
		rate:     config.SampleRate,
		quantum:  config.PlaybackQuantum,
		streamer: tap,
		finished: make(chan struct{}),
	}
}

// Tap returns the analysis tap fed by this playback
func (p *Playback) Tap() *Tap {
	return p.tap
}

// Start begins pumping samples until ctx is cancelled, the track ends or Close is called
func (p *Playback) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
}

func (p *Playback) run(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.finished)

	ticker := time.NewTicker(p.quantum)
	defer ticker.Stop()

	buf := make([][2]float64, 2048)
	var clock time.Duration
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now

			p.mu.Lock()
			paused := p.paused
			played := p.played
			p.mu.Unlock()
			if paused {
				continue
			}
			clock += elapsed

			due := int(int64(clock) * int64(p.rate) / int64(time.Second))
			for played < due {
				n := due - played
				if n > len(buf) {
					n = len(buf)
				}
				got, ok := p.streamer.Stream(buf[:n])
				played += got
				if !ok || got == 0 {
					p.mu.Lock()
					p.played = played
					p.done = true
					p.mu.Unlock()
					return
				}
			}

			p.mu.Lock()
			p.played = played
			p.mu.Unlock()
		}
	}
}

// Position returns how much of the track has been played
func (p *Playback) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Duration(int64(p.played) * int64(time.Second) / int64(p.rate))
}

// SetPaused pauses or resumes the pump
func (p *Playback) SetPaused(paused bool) {
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
}

// Paused reports whether playback is paused
func (p *Playback) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Finished is closed when the pump stops for any reason
func (p *Playback) Finished() <-chan struct{} {
	return p.finished
}

// Ended reports whether the whole track was played
func (p *Playback) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Close stops the pump, waits for it to exit and clears the tap
func (p *Playback) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.tap.Reset()
}
