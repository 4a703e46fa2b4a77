package encoder

import (
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
)

// fakeFFmpeg installs a shell script as the ffmpeg binary. It reports
// progress and writes "mp4" to the last argument.
func fakeFFmpeg(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a shell script")
	}
	script := `#!/bin/sh
for a; do last=$a; done
echo "frame=15"
echo "out_time_us=500000"
echo "progress=continue"
echo "out_time_us=1000000"
echo "progress=end"
printf 'mp4' > "$last"
`
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	old := audio.FFmpegBinary
	audio.FFmpegBinary = path
	t.Cleanup(func() { audio.FFmpegBinary = old })
}

func testTrack(seconds float64) *audio.Track {
	n := int(seconds * config.SampleRate)
	left := make([]float64, n)
	right := make([]float64, n)
	for i := range left {
		left[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/config.SampleRate)
		right[i] = -left[i]
	}
	return &audio.Track{SampleRate: config.SampleRate, Channels: [][]float64{left, right}}
}

func newTestEncoder(t *testing.T) *FFmpeg {
	t.Helper()
	enc, err := New(Config{Width: 64, Height: 36, Framerate: 30, TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return enc
}

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Width: 1920, Height: 1080, Framerate: 30}, false},
		{"zero width", Config{Width: 0, Height: 1080, Framerate: 30}, true},
		{"negative height", Config{Width: 1920, Height: -1, Framerate: 30}, true},
		{"odd width", Config{Width: 1921, Height: 1080, Framerate: 30}, true},
		{"zero framerate", Config{Width: 1920, Height: 1080}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.config)
			if (err != nil) != tc.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFFmpeg_WorkingSet(t *testing.T) {
	fakeFFmpeg(t)
	enc := newTestEncoder(t)

	if err := enc.AddFrame(0, image.NewRGBA(image.Rect(0, 0, 64, 36))); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("AddFrame before Init = %v, want ErrNotInitialized", err)
	}
	if err := enc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dir := enc.Dir()

	for i := 0; i < 3; i++ {
		if err := enc.AddFrame(i, image.NewRGBA(image.Rect(0, 0, 64, 36))); err != nil {
			t.Fatalf("AddFrame(%d): %v", i, err)
		}
	}
	if err := enc.AddFrame(7, image.NewRGBA(image.Rect(0, 0, 64, 36))); !errors.Is(err, ErrFrameOrder) {
		t.Errorf("out of order AddFrame = %v, want ErrFrameOrder", err)
	}
	if err := enc.AddFrame(3, image.NewRGBA(image.Rect(0, 0, 32, 36))); err == nil {
		t.Error("expected an error for a frame of the wrong size")
	}

	for _, name := range []string{"frame00000.png", "frame00001.png", "frame00002.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if enc.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", enc.Frames())
	}

	if err := enc.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("working set still exists after Cleanup: %v", err)
	}
	if err := enc.Cleanup(); err != nil {
		t.Errorf("second Cleanup: %v", err)
	}
}

func TestFFmpeg_WriteAudio(t *testing.T) {
	fakeFFmpeg(t)
	enc := newTestEncoder(t)
	if err := enc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer enc.Cleanup()

	if err := enc.WriteAudio(&audio.Track{SampleRate: config.SampleRate, Channels: [][]float64{{}}}); !errors.Is(err, audio.ErrNoSamples) {
		t.Errorf("empty track = %v, want ErrNoSamples", err)
	}

	track := testTrack(0.5)
	if err := enc.WriteAudio(track); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}

	got, err := audio.ReadFile(context.Background(), filepath.Join(enc.Dir(), config.AudioFile))
	if err != nil {
		t.Fatalf("reading back audio: %v", err)
	}
	if got.SampleRate != track.SampleRate || len(got.Channels) != 2 {
		t.Fatalf("format = %d Hz x %d, want %d Hz x 2", got.SampleRate, len(got.Channels), track.SampleRate)
	}
	if got.NumSamples() != track.NumSamples() {
		t.Fatalf("samples = %d, want %d", got.NumSamples(), track.NumSamples())
	}
	for _, i := range []int{0, 100, 5000} {
		for ch := 0; ch < 2; ch++ {
			if d := math.Abs(got.Channels[ch][i] - track.Channels[ch][i]); d > 1e-3 {
				t.Errorf("channel %d sample %d differs by %v", ch, i, d)
			}
		}
	}
}

func TestPCM16(t *testing.T) {
	testCases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-3, -32767},
		{math.NaN(), 0},
	}
	for _, tc := range testCases {
		if got := pcm16(tc.in); got != tc.want {
			t.Errorf("pcm16(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMuxArgs(t *testing.T) {
	testCases := []struct {
		name     string
		hw       *HWEncoder
		contains []string
		excludes []string
	}{
		{
			name:     "software",
			contains: []string{"libx264", "-crf", "yuv420p", "-shortest", "+faststart", "aac", "128k"},
			excludes: []string{"-b:v", "-vaapi_device"},
		},
		{
			name:     "nvenc",
			hw:       &HWEncoder{Name: "h264_nvenc", Type: HWAccelNVENC},
			contains: []string{"h264_nvenc", "-b:v", "yuv420p", "-shortest"},
			excludes: []string{"-crf", "libx264"},
		},
		{
			name:     "vaapi",
			hw:       &HWEncoder{Name: "h264_vaapi", Type: HWAccelVAAPI},
			contains: []string{"-vaapi_device", "format=nv12,hwupload", "h264_vaapi"},
			excludes: []string{"-crf"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := New(Config{Width: 1920, Height: 1080, Framerate: 30, HW: tc.hw})
			if err != nil {
				t.Fatal(err)
			}
			args := enc.muxArgs()
			t.Logf("ffmpeg %s", strings.Join(args, " "))

			for _, want := range tc.contains {
				if !slices.Contains(args, want) {
					t.Errorf("missing %q", want)
				}
			}
			for _, bad := range tc.excludes {
				if slices.Contains(args, bad) {
					t.Errorf("unexpected %q", bad)
				}
			}
			if args[len(args)-1] != config.OutputFile {
				t.Errorf("output = %q, want %q", args[len(args)-1], config.OutputFile)
			}

			// Device setup must come before the first input
			if dev := slices.Index(args, "-vaapi_device"); dev >= 0 && dev > slices.Index(args, "-i") {
				t.Error("-vaapi_device after the inputs")
			}
			if r := slices.Index(args, "-r"); r < 0 || args[r+1] != "30" {
				t.Error("constant output frame rate not set")
			}
		})
	}
}

func TestParseProgress(t *testing.T) {
	input := strings.Join([]string{
		"frame=10",
		"out_time_us=250000",
		"progress=continue",
		"out_time_us=bogus",
		"out_time_us=4000000",
		"progress=end",
	}, "\n")

	var got []float64
	parseProgress(strings.NewReader(input), 2*time.Second, func(f float64) { got = append(got, f) })

	want := []float64{0.125, 1, 1}
	if !slices.Equal(got, want) {
		t.Errorf("progress = %v, want %v", got, want)
	}

	// A nil callback still drains the reader
	parseProgress(strings.NewReader(input), time.Second, nil)
}

func TestFFmpeg_Mux(t *testing.T) {
	fakeFFmpeg(t)
	enc := newTestEncoder(t)
	ctx := context.Background()

	if err := enc.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer enc.Cleanup()

	if err := enc.Mux(ctx, nil); !errors.Is(err, ErrNothingToMux) {
		t.Fatalf("Mux without frames = %v, want ErrNothingToMux", err)
	}
	if _, err := enc.Output(); err == nil {
		t.Error("Output before Mux should fail")
	}

	for i := 0; i < 30; i++ {
		if err := enc.AddFrame(i, image.NewRGBA(image.Rect(0, 0, 64, 36))); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.WriteAudio(testTrack(1)); err != nil {
		t.Fatal(err)
	}

	var progress []float64
	if err := enc.Mux(ctx, func(f float64) { progress = append(progress, f) }); err != nil {
		t.Fatalf("Mux: %v", err)
	}
	t.Logf("progress: %v", progress)
	if len(progress) == 0 || progress[len(progress)-1] != 1 {
		t.Errorf("progress should finish at 1, got %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Errorf("progress went backwards: %v", progress)
		}
	}

	data, err := enc.Output()
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if string(data) != "mp4" {
		t.Errorf("output = %q", data)
	}
}

func TestFFmpeg_InitWithoutFFmpeg(t *testing.T) {
	old := audio.FFmpegBinary
	audio.FFmpegBinary = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	t.Cleanup(func() { audio.FFmpegBinary = old })

	enc := newTestEncoder(t)
	if err := enc.Init(context.Background()); err == nil {
		t.Error("Init should fail without ffmpeg")
	}
	if enc.Dir() != "" {
		t.Error("no working set should be created")
	}
}
