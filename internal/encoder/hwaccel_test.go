package encoder

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"strings"
	"testing"
)

const encodersListing = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D h264_vaapi           H.264/AVC (VAAPI) (codec h264)
 V....D h264_videotoolbox    VideoToolbox H.264 Encoder (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`

// fakeProber lists the encoders above and succeeds test encodes only for
// the names in working
func fakeProber(working ...string) Prober {
	return func(ctx context.Context, args ...string) ([]byte, error) {
		if slices.Contains(args, "-encoders") {
			return []byte(encodersListing), nil
		}
		if i := slices.Index(args, "-c:v"); i >= 0 && slices.Contains(working, args[i+1]) {
			return nil, nil
		}
		return []byte("Cannot load device"), errors.New("exit status 1")
	}
}

func TestListEncoders(t *testing.T) {
	names, err := ListEncoders(context.Background(), fakeProber())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"libx264", "h264_nvenc", "h264_vaapi", "aac"} {
		if !names[want] {
			t.Errorf("missing %s", want)
		}
	}
	if names["="] || names["Video"] {
		t.Error("legend lines were parsed as encoders")
	}

	failing := func(ctx context.Context, args ...string) ([]byte, error) {
		return nil, errors.New("not found")
	}
	if _, err := ListEncoders(context.Background(), failing); err == nil {
		t.Error("expected an error when ffmpeg cannot run")
	}
}

func TestDetectHWEncoders(t *testing.T) {
	encoders := DetectHWEncoders(context.Background(), fakeProber("h264_vaapi", "h264_videotoolbox", "h264_qsv"))

	t.Logf("Detected %d encoder types", len(encoders))
	want := encoderPriority(runtime.GOOS)
	if len(encoders) != len(want) {
		t.Fatalf("got %d encoders, want %d", len(encoders), len(want))
	}
	for i, enc := range encoders {
		status := "not available"
		if enc.Available {
			status = "AVAILABLE"
		}
		t.Logf("  %s (%s): %s", enc.Description, enc.Name, status)

		if enc.Name != want[i].name {
			t.Errorf("encoder %d = %s, want %s", i, enc.Name, want[i].name)
		}
		switch enc.Name {
		case "h264_vaapi", "h264_videotoolbox":
			if !enc.Available {
				t.Errorf("%s should be available", enc.Name)
			}
		case "h264_qsv":
			// Passes the test encode but is not compiled in
			if enc.Available {
				t.Error("h264_qsv is not in the encoder listing")
			}
		default:
			if enc.Available {
				t.Errorf("%s should not be available", enc.Name)
			}
		}
	}
}

func TestSelectBestEncoder(t *testing.T) {
	ctx := context.Background()
	probe := fakeProber("h264_nvenc", "h264_vaapi", "h264_videotoolbox")

	if enc := SelectBestEncoder(ctx, HWAccelNone, probe); enc != nil {
		t.Errorf("Expected nil for HWAccelNone, got %s", enc.Name)
	}

	testCases := []struct {
		requested HWAccelType
		linux     string
		darwin    string
	}{
		{HWAccelAuto, "h264_nvenc", "h264_videotoolbox"},
		{HWAccelVAAPI, "h264_vaapi", ""},
		{HWAccelQSV, "", ""},
		{HWAccelVideoToolbox, "", "h264_videotoolbox"},
	}
	for _, tc := range testCases {
		t.Run(string(tc.requested), func(t *testing.T) {
			want := tc.linux
			if runtime.GOOS == "darwin" {
				want = tc.darwin
			}
			enc := SelectBestEncoder(ctx, tc.requested, probe)
			got := ""
			if enc != nil {
				got = enc.Name
			}
			if got != want {
				t.Errorf("SelectBestEncoder(%s) = %q, want %q", tc.requested, got, want)
			}
		})
	}

	// No hardware at all falls back to software
	if enc := SelectBestEncoder(ctx, HWAccelAuto, fakeProber()); enc != nil {
		t.Errorf("expected software fallback, got %s", enc.Name)
	}
}

func TestParseHWAccel(t *testing.T) {
	testCases := []struct {
		in      string
		want    HWAccelType
		wantErr bool
	}{
		{"", HWAccelNone, false},
		{"none", HWAccelNone, false},
		{"AUTO", HWAccelAuto, false},
		{" vaapi ", HWAccelVAAPI, false},
		{"videotoolbox", HWAccelVideoToolbox, false},
		{"cuda", HWAccelNone, true},
	}
	for _, tc := range testCases {
		got, err := ParseHWAccel(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseHWAccel(%q) = %q, %v; want %q, err %v", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestGetEncoderStatus(t *testing.T) {
	status := GetEncoderStatus([]HWEncoder{
		{Name: "h264_nvenc", Description: "NVIDIA NVENC", Available: true},
		{Name: "h264_vaapi", Description: "VA-API"},
	})
	t.Logf("\n%s", status)

	if !strings.Contains(status, "NVIDIA NVENC (h264_nvenc): available") {
		t.Error("nvenc line missing")
	}
	if !strings.Contains(status, "VA-API (h264_vaapi): not available") {
		t.Error("vaapi line missing")
	}
}
