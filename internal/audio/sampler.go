package audio

import (
	"time"

	"github.com/linuxmatters/jivewave/internal/config"
)

// Snapshot is one instant of analysed audio. Freq holds per-bin magnitudes and
// Wave the matching waveform bytes (128 = silence). Both have the session bin
// count and must not be modified once produced.
type Snapshot struct {
	Freq []uint8
	Wave []uint8
}

// FrameContext identifies the frame a snapshot is requested for
type FrameContext struct {
	Index int
	Time  time.Duration
}

// Sampler produces the snapshot for a frame
type Sampler interface {
	Snapshot(fc FrameContext) Snapshot
}

// SilentSnapshot returns a snapshot of bins zero magnitudes and a flat waveform
func SilentSnapshot(bins int) Snapshot {
	s := Snapshot{
		Freq: make([]uint8, bins),
		Wave: make([]uint8, bins),
	}
	for i := range s.Wave {
		s.Wave[i] = 128
	}
	return s
}

// Bin returns bin i, or 0 when i is outside the snapshot
func (s Snapshot) Bin(i int) uint8 {
	if i < 0 || i >= len(s.Freq) {
		return 0
	}
	return s.Freq[i]
}

// WaveAt returns waveform byte i, or 128 when i is outside the snapshot
func (s Snapshot) WaveAt(i int) uint8 {
	if i < 0 || i >= len(s.Wave) {
		return 128
	}
	return s.Wave[i]
}

// BassLevel is the mean of the leading bass bins normalised to [0,1]
func BassLevel(s Snapshot) float64 {
	n := config.BassBins
	if len(s.Freq) < n {
		n = len(s.Freq)
	}
	if n == 0 {
		return 0
	}
	var sum int
	for _, v := range s.Freq[:n] {
		sum += int(v)
	}
	return float64(sum) / float64(n) / 255
}

// Bands averages the lower half of the bins into n levels in [0,1] for
// compact displays such as the terminal spectrum.
func (s Snapshot) Bands(n int) []float64 {
	out := make([]float64, n)
	half := len(s.Freq) / 2
	if n <= 0 || half == 0 {
		return out
	}
	for j := range out {
		lo := j * half / n
		hi := (j + 1) * half / n
		if hi <= lo {
			hi = lo + 1
		}
		var sum int
		for _, v := range s.Freq[lo:hi] {
			sum += int(v)
		}
		out[j] = float64(sum) / float64(hi-lo) / 255
	}
	return out
}

// Pulse is the beat scale factor derived from the bass level (>= 1)
func Pulse(bass float64) float64 {
	if bass != bass || bass < 0 {
		bass = 0
	}
	if bass > 1 {
		bass = 1
	}
	return 1 + config.PulseStrength*bass
}

// LiveSampler pulls the latest analysis window on every request; it keeps no
// history, so the frame index is ignored.
type LiveSampler struct {
	analyser *Analyser
}

// NewLiveSampler creates a sampler reading from a running analyser
func NewLiveSampler(a *Analyser) *LiveSampler {
	return &LiveSampler{analyser: a}
}

// Snapshot returns the analysis of the most recently played audio
func (l *LiveSampler) Snapshot(FrameContext) Snapshot {
	return l.analyser.Snapshot()
}
