package audio

import (
	"math"
	"runtime"
	"sync"

	"github.com/linuxmatters/jivewave/internal/config"
)

// FrameCount returns ceil(numSamples * fps / sampleRate), the number of video
// frames needed to cover the audio. Integer arithmetic keeps the exact
// boundary: a duration that is a whole number of frames gets no extra frame.
func FrameCount(numSamples, sampleRate, fps int) int {
	if numSamples <= 0 || sampleRate <= 0 || fps <= 0 {
		return 0
	}
	num := int64(numSamples) * int64(fps)
	sr := int64(sampleRate)
	return int((num + sr - 1) / sr)
}

// OfflineSampler holds one precomputed snapshot per output frame. Bins are an
// amplitude envelope of the frame's slice of the waveform.
type OfflineSampler struct {
	bins      int
	snapshots []Snapshot
	silent    Snapshot
}

// NewOfflineSampler analyses samples (one channel) for every frame up front
func NewOfflineSampler(samples []float64, sampleRate, fps, bins int) *OfflineSampler {
	if bins <= 0 {
		bins = config.BinCount
	}
	o := &OfflineSampler{
		bins:   bins,
		silent: SilentSnapshot(bins),
	}

	frames := FrameCount(len(samples), sampleRate, fps)
	if frames == 0 {
		return o
	}
	o.snapshots = make([]Snapshot, frames)
	spf := float64(sampleRate) / float64(fps)

	// Frames are independent, so split them across workers. Output is
	// identical regardless of the split.
	workers := runtime.GOMAXPROCS(0)
	if workers > frames {
		workers = frames
	}
	var wg sync.WaitGroup
	per := (frames + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*per, (w+1)*per
		if hi > frames {
			hi = frames
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				o.snapshots[i] = envelopeSnapshot(samples, i, spf, bins)
			}
		}(lo, hi)
	}
	wg.Wait()
	return o
}

// envelopeSnapshot computes frame i's bins from samples
func envelopeSnapshot(samples []float64, i int, spf float64, bins int) Snapshot {
	snap := SilentSnapshot(bins)

	start := int(math.Floor(float64(i) * spf))
	end := start + int(math.Floor(spf))
	if start > len(samples) {
		start = len(samples)
	}
	if end > len(samples) {
		end = len(samples)
	}
	slice := samples[start:end]

	width := len(slice) / bins
	if width < 1 {
		width = 1
	}

	for b := 0; b < bins; b++ {
		lo := b * width
		if lo >= len(slice) {
			break // remaining bins stay silent
		}
		hi := lo + width
		if hi > len(slice) {
			hi = len(slice)
		}

		var sumAbs, sum float64
		for _, s := range slice[lo:hi] {
			if s != s { // NaN
				continue
			}
			sumAbs += math.Abs(s)
			sum += s
		}
		n := float64(hi - lo)

		v := math.Floor(config.OfflineAmplitudeScale * sumAbs / n)
		if v > 255 {
			v = 255
		}
		snap.Freq[b] = uint8(v)
		snap.Wave[b] = waveByte(sum / n)
	}
	return snap
}

// waveByte maps a signed sample to the 0-255 waveform convention
func waveByte(s float64) uint8 {
	v := math.Floor(128 + 128*s)
	if v != v || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// FrameCount returns the number of precomputed frames
func (o *OfflineSampler) FrameCount() int {
	return len(o.snapshots)
}

// Bins returns the snapshot length
func (o *OfflineSampler) Bins() int {
	return o.bins
}

// Snapshot returns the precomputed snapshot for fc.Index; indices outside the
// track are silent.
func (o *OfflineSampler) Snapshot(fc FrameContext) Snapshot {
	if fc.Index < 0 || fc.Index >= len(o.snapshots) {
		return o.silent
	}
	return o.snapshots[fc.Index]
}
