package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/linuxmatters/jivewave/internal/audio"
	"github.com/linuxmatters/jivewave/internal/config"
)

// HWAccelType represents a hardware acceleration type
type HWAccelType string

const (
	HWAccelNone         HWAccelType = "none"         // Software encoding (libx264)
	HWAccelAuto         HWAccelType = "auto"         // Auto-detect best available
	HWAccelNVENC        HWAccelType = "nvenc"        // NVIDIA NVENC
	HWAccelQSV          HWAccelType = "qsv"          // Intel Quick Sync Video
	HWAccelVAAPI        HWAccelType = "vaapi"        // VA-API (AMD, Intel, older hardware)
	HWAccelVulkan       HWAccelType = "vulkan"       // Vulkan Video
	HWAccelVideoToolbox HWAccelType = "videotoolbox" // Apple VideoToolbox (macOS)
)

// hwBitrate replaces the CRF setting, which hardware encoders do not share
const hwBitrate = "8M"

// vaapiDevice is the render node used for VA-API
const vaapiDevice = "/dev/dri/renderD128"

// HWEncoder represents a detected hardware encoder
type HWEncoder struct {
	Name        string      // Encoder name (e.g., "h264_nvenc")
	Type        HWAccelType // Hardware acceleration type
	Available   bool        // Whether hardware is present and working
	Description string      // Human-readable description
}

// encoderSpec defines a hardware encoder configuration for priority lists
type encoderSpec struct {
	name      string
	accelType HWAccelType
	desc      string
}

// linuxEncoderPriority defines the encoder preference order for Linux
// Priority: nvenc > qsv > vaapi > vulkan > software
// VAAPI is preferred over Vulkan as it has broader hardware support (AMD, Intel, older Intel)
var linuxEncoderPriority = []encoderSpec{
	{"h264_nvenc", HWAccelNVENC, "NVIDIA NVENC"},
	{"h264_qsv", HWAccelQSV, "Intel Quick Sync Video"},
	{"h264_vaapi", HWAccelVAAPI, "VA-API"},
	{"h264_vulkan", HWAccelVulkan, "Vulkan Video"},
}

// macOSEncoderPriority defines the encoder preference order for macOS
// Priority: videotoolbox > software
var macOSEncoderPriority = []encoderSpec{
	{"h264_videotoolbox", HWAccelVideoToolbox, "Apple VideoToolbox"},
}

// encoderPriority returns the priority list for an operating system
func encoderPriority(goos string) []encoderSpec {
	if goos == "darwin" {
		return macOSEncoderPriority
	}
	return linuxEncoderPriority
}

// ParseHWAccel validates a --hwaccel value
func ParseHWAccel(s string) (HWAccelType, error) {
	switch t := HWAccelType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return HWAccelNone, nil
	case HWAccelNone, HWAccelAuto, HWAccelNVENC, HWAccelQSV, HWAccelVAAPI, HWAccelVulkan, HWAccelVideoToolbox:
		return t, nil
	default:
		return HWAccelNone, fmt.Errorf("unknown hardware acceleration %q", s)
	}
}

// Prober runs ffmpeg with args and returns its combined output
type Prober func(ctx context.Context, args ...string) ([]byte, error)

// ExecProber runs the ffmpeg executable
func ExecProber(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, audio.FFmpegBinary, args...)
	// libva has its own logging separate from ffmpeg
	cmd.Env = append(os.Environ(), "LIBVA_MESSAGING_LEVEL=0")
	return cmd.CombinedOutput()
}

// ListEncoders returns the names of the encoders ffmpeg was built with
func ListEncoders(ctx context.Context, probe Prober) (map[string]bool, error) {
	out, err := probe(ctx, "-hide_banner", "-encoders")
	if err != nil {
		return nil, fmt.Errorf("failed to list encoders: %w", err)
	}

	names := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// The capability legend ends with a dashed rule
		if strings.HasPrefix(line, "---") {
			listing = true
			continue
		}
		fields := strings.Fields(line)
		if !listing || len(fields) < 2 {
			continue
		}
		names[fields[1]] = true
	}
	return names, nil
}

// hwDeviceArgs returns the arguments that must precede the inputs
func hwDeviceArgs(hw *HWEncoder) []string {
	if hw == nil {
		return nil
	}
	switch hw.Type {
	case HWAccelVAAPI:
		return []string{"-vaapi_device", vaapiDevice}
	case HWAccelVulkan:
		return []string{"-init_hw_device", "vulkan=vk", "-filter_hw_device", "vk"}
	}
	return nil
}

// videoCodecArgs returns the output codec arguments for hw, or libx264
// with the fixed preset and CRF when hw is nil
func videoCodecArgs(hw *HWEncoder) []string {
	if hw == nil {
		return []string{
			"-c:v", config.VideoCodec,
			"-preset", config.VideoPreset,
			"-crf", strconv.Itoa(config.VideoCRF),
			"-pix_fmt", config.PixelFormat,
		}
	}

	args := []string{"-c:v", hw.Name, "-b:v", hwBitrate}
	switch hw.Type {
	case HWAccelVAAPI, HWAccelVulkan:
		// Frames are uploaded to device memory as NV12
		args = append(args, "-vf", "format=nv12,hwupload")
	case HWAccelQSV:
		args = append(args, "-pix_fmt", "nv12")
	default:
		args = append(args, "-pix_fmt", config.PixelFormat)
	}
	return args
}

// testEncoderAvailable performs a full encoder capability test by encoding a
// single synthetic frame. This catches cases where the encoder is compiled in
// but the hardware is missing or does not support it (e.g., Intel iGPU with
// Vulkan but no Vulkan Video encoding support).
func testEncoderAvailable(ctx context.Context, probe Prober, hw *HWEncoder) bool {
	args := []string{"-hide_banner", "-v", "error"}
	args = append(args, hwDeviceArgs(hw)...)
	args = append(args, "-f", "lavfi", "-i", "color=black:s=256x144:d=0.1", "-frames:v", "1")
	args = append(args, videoCodecArgs(hw)...)
	args = append(args, "-f", "null", "-")

	_, err := probe(ctx, args...)
	return err == nil
}

// DetectHWEncoders probes for available hardware encoders
// Returns a list of detected encoders in priority order
func DetectHWEncoders(ctx context.Context, probe Prober) []HWEncoder {
	if probe == nil {
		probe = ExecProber
	}

	// An encoder missing from the build is never available
	compiled, err := ListEncoders(ctx, probe)
	if err != nil {
		compiled = nil
	}

	var encoders []HWEncoder
	for _, spec := range encoderPriority(runtime.GOOS) {
		enc := HWEncoder{
			Name:        spec.name,
			Type:        spec.accelType,
			Description: spec.desc,
		}
		if compiled[spec.name] {
			enc.Available = testEncoderAvailable(ctx, probe, &enc)
		}
		encoders = append(encoders, enc)
	}
	return encoders
}

// SelectBestEncoder returns the best available encoder based on priority
// If requestedType is HWAccelAuto, it selects the first available hardware encoder
// If requestedType is HWAccelNone, it returns nil (use software)
// Otherwise, it attempts to use the requested type if available
func SelectBestEncoder(ctx context.Context, requestedType HWAccelType, probe Prober) *HWEncoder {
	if requestedType == HWAccelNone || requestedType == "" {
		return nil
	}

	encoders := DetectHWEncoders(ctx, probe)

	if requestedType == HWAccelAuto {
		for i := range encoders {
			if encoders[i].Available {
				return &encoders[i]
			}
		}
		return nil
	}

	for i := range encoders {
		if encoders[i].Type == requestedType && encoders[i].Available {
			return &encoders[i]
		}
	}
	return nil
}

// GetEncoderStatus returns a human-readable status of the hardware encoders
func GetEncoderStatus(encoders []HWEncoder) string {
	var sb strings.Builder
	sb.WriteString("Hardware Encoder Status:\n")

	for _, enc := range encoders {
		status := "not available"
		if enc.Available {
			status = "available"
		}
		sb.WriteString("  ")
		sb.WriteString(enc.Description)
		sb.WriteString(" (")
		sb.WriteString(enc.Name)
		sb.WriteString("): ")
		sb.WriteString(status)
		sb.WriteString("\n")
	}

	return sb.String()
}
