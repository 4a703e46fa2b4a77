package audio

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/argusdusty/gofft"

	"github.com/linuxmatters/jivewave/internal/config"
)

// SampleSource exposes the most recently played mono samples
type SampleSource interface {
	// Samples returns the last n samples in chronological order
	Samples(n int) []float64
}

// BlackmanWindow returns the Blackman window coefficients for size n
func BlackmanWindow(n int) []float64 {
	const alpha = 0.16
	a0 := (1 - alpha) / 2
	a1 := 0.5
	a2 := alpha / 2

	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

// Analyser turns the latest window of a sample source into a snapshot: a
// windowed FFT with magnitudes mapped from [MinDecibels, MaxDecibels] onto
// bytes, and the raw waveform as bytes. Each call sees only the current
// window; nothing is smoothed across calls.
type Analyser struct {
	src     SampleSource
	fftSize int
	bins    int
	window  []float64

	mu  sync.Mutex
	buf []complex128
}

// NewAnalyser creates an analyser over src. fftSize must be a power of two;
// the snapshot length is fftSize/2.
func NewAnalyser(src SampleSource, fftSize int) (*Analyser, error) {
	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("FFT size %d is not a power of two", fftSize)
	}
	if err := gofft.Prepare(fftSize); err != nil {
		return nil, fmt.Errorf("failed to prepare FFT: %w", err)
	}
	return &Analyser{
		src:     src,
		fftSize: fftSize,
		bins:    fftSize / 2,
		window:  BlackmanWindow(fftSize),
		buf:     make([]complex128, fftSize),
	}, nil
}

// Bins returns the snapshot length
func (a *Analyser) Bins() int {
	return a.bins
}

// Snapshot analyses the most recent fftSize samples of the source
func (a *Analyser) Snapshot() Snapshot {
	return a.Analyse(a.src.Samples(a.fftSize))
}

// Analyse computes a snapshot from samples. Short input is treated as
// preceded by silence.
func (a *Analyser) Analyse(samples []float64) Snapshot {
	if len(samples) > a.fftSize {
		samples = samples[len(samples)-a.fftSize:]
	}
	pad := a.fftSize - len(samples)

	snap := Snapshot{
		Freq: make([]uint8, a.bins),
		Wave: make([]uint8, a.bins),
	}

	// Waveform: the latest bins samples
	waveStart := a.fftSize - a.bins
	for i := range snap.Wave {
		j := waveStart + i - pad
		if j < 0 {
			snap.Wave[i] = 128
			continue
		}
		snap.Wave[i] = waveByte(finite(samples[j]))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.buf {
		j := i - pad
		if j < 0 {
			a.buf[i] = 0
			continue
		}
		a.buf[i] = complex(finite(samples[j])*a.window[i], 0)
	}
	if err := gofft.FFT(a.buf); err != nil {
		return snap
	}

	scale := 1 / float64(a.fftSize)
	rangeDB := config.MaxDecibels - config.MinDecibels
	for k := 0; k < a.bins; k++ {
		mag := cmplx.Abs(a.buf[k]) * scale
		if mag <= 0 {
			continue
		}
		db := 20 * math.Log10(mag)
		v := math.Floor(255 / rangeDB * (db - config.MinDecibels))
		switch {
		case v != v || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		snap.Freq[k] = uint8(v)
	}
	return snap
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
