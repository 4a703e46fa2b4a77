package audio

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"

	"github.com/linuxmatters/jivewave/internal/config"
)

type fixedSource []float64

func (f fixedSource) Samples(n int) []float64 {
	if n > len(f) {
		n = len(f)
	}
	return append([]float64(nil), f[len(f)-n:]...)
}

// TestAnalyser_KnownSineWave checks that a 440 Hz tone peaks in the right bin.
// Bin width at 44.1 kHz with a 2048-point FFT is ~21.5 Hz, so 440 Hz lands
// near bin 20.
func TestAnalyser_KnownSineWave(t *testing.T) {
	const freq = 440.0
	src := fixedSource(sine(freq, config.SampleRate, config.FFTSize, 0.8))

	a, err := NewAnalyser(src, config.FFTSize)
	if err != nil {
		t.Fatalf("NewAnalyser: %v", err)
	}
	s := a.Snapshot()

	if len(s.Freq) != config.BinCount || len(s.Wave) != config.BinCount {
		t.Fatalf("snapshot lengths %d/%d, want %d", len(s.Freq), len(s.Wave), config.BinCount)
	}

	peak, peakBin := uint8(0), 0
	for i, v := range s.Freq {
		if v > peak {
			peak, peakBin = v, i
		}
	}
	expected := int(math.Round(freq * config.FFTSize / config.SampleRate))

	t.Logf("440 Hz sine: peak bin %d (expected ~%d) value %d", peakBin, expected, peak)
	if peakBin < expected-1 || peakBin > expected+1 {
		t.Errorf("peak bin %d, want %d±1", peakBin, expected)
	}
	if peak < 200 {
		t.Errorf("peak value %d unexpectedly low for a 0.8 amplitude tone", peak)
	}
	if s.Freq[config.BinCount-1] > peak/2 {
		t.Errorf("top bin %d should be far below the peak", s.Freq[config.BinCount-1])
	}
}

func TestAnalyser_Silence(t *testing.T) {
	a, err := NewAnalyser(fixedSource(make([]float64, config.FFTSize)), config.FFTSize)
	if err != nil {
		t.Fatal(err)
	}
	s := a.Snapshot()
	for i := range s.Freq {
		if s.Freq[i] != 0 {
			t.Fatalf("bin %d = %d for silence", i, s.Freq[i])
		}
		if s.Wave[i] != 128 {
			t.Fatalf("wave %d = %d for silence", i, s.Wave[i])
		}
	}
}

func TestAnalyser_ShortAndInvalidInput(t *testing.T) {
	a, err := NewAnalyser(fixedSource(nil), 256)
	if err != nil {
		t.Fatal(err)
	}

	// Shorter than a window: the missing head is silence
	s := a.Analyse([]float64{0.5, -0.5, 0.5})
	if len(s.Freq) != 128 {
		t.Fatalf("expected 128 bins, got %d", len(s.Freq))
	}
	if s.Wave[0] != 128 {
		t.Errorf("padded wave should be 128, got %d", s.Wave[0])
	}
	if s.Wave[127] != waveByte(0.5) {
		t.Errorf("last wave byte = %d, want %d", s.Wave[127], waveByte(0.5))
	}

	// NaN and Inf are treated as silence
	bad := make([]float64, 256)
	bad[10], bad[20] = math.NaN(), math.Inf(-1)
	s = a.Analyse(bad)
	for i, v := range s.Freq {
		if v != 0 {
			t.Fatalf("bin %d = %d from non-finite input", i, v)
		}
	}

	if _, err := NewAnalyser(fixedSource(nil), 1000); err == nil {
		t.Error("expected error for non power of two FFT size")
	}
}

func TestBlackmanWindow(t *testing.T) {
	w := BlackmanWindow(1024)
	if math.Abs(w[0]) > 1e-12 {
		t.Errorf("window should start at 0, got %v", w[0])
	}
	if math.Abs(w[512]-1) > 1e-9 {
		t.Errorf("window centre should be 1, got %v", w[512])
	}
	for i, v := range w {
		if v < -1e-12 || v > 1+1e-12 {
			t.Fatalf("w[%d] = %v out of [0,1]", i, v)
		}
	}
}

func TestTap_RingBuffer(t *testing.T) {
	src := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{1, 0}
		}
		return len(samples), true
	})
	tap := NewTap(src, 8)

	buf := make([][2]float64, 5)
	tap.Stream(buf)

	got := tap.Samples(8)
	want := []float64{0, 0, 0, 0.5, 0.5, 0.5, 0.5, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Samples = %v, want %v", got, want)
		}
	}

	tap.Stream(buf)
	if got := tap.Samples(100); len(got) != 8 {
		t.Errorf("Samples should cap at ring size, got %d", len(got))
	}

	tap.Reset()
	for _, v := range tap.Samples(8) {
		if v != 0 {
			t.Fatal("Reset should clear the ring")
		}
	}
}

// TestLiveSampler_MatchesOfflineBinCount runs both samplers over the same
// signal: the drawing stack depends on both producing the session bin count.
func TestLiveSampler_MatchesOfflineBinCount(t *testing.T) {
	samples := sine(220, config.SampleRate, config.SampleRate, 0.6)

	a, err := NewAnalyser(fixedSource(samples), config.FFTSize)
	if err != nil {
		t.Fatal(err)
	}
	var live Sampler = NewLiveSampler(a)
	var offline Sampler = NewOfflineSampler(samples, config.SampleRate, config.FPS, config.BinCount)

	for _, s := range []Sampler{live, offline} {
		snap := s.Snapshot(FrameContext{Index: 3})
		if len(snap.Freq) != config.BinCount {
			t.Errorf("%T produced %d bins, want %d", s, len(snap.Freq), config.BinCount)
		}
		if b := BassLevel(snap); b <= 0 || b > 1 {
			t.Errorf("%T bass level %v, want (0,1] for a loud tone", s, b)
		}
	}
}
