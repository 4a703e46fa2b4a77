package config

import "time"

// Video settings
const (
	Width  = 1920
	Height = 1080
	FPS    = 30

	// ReferenceHeight is the frame height that pixel sizes in settings are authored
	// against. Text sizes and effect offsets scale by height/ReferenceHeight so the
	// preview surface and the export frame stay congruent.
	ReferenceHeight = 1080
)

// Audio settings
const (
	SampleRate = 44100
	FFTSize    = 2048
	BinCount   = FFTSize / 2 // Snapshot length, fixed for a session

	// BassBins is the number of leading bins averaged into the bass level
	BassBins = 20

	// OfflineAmplitudeScale maps mean absolute amplitude to a byte bin value
	OfflineAmplitudeScale = 512

	// Analysis node byte mapping range
	MinDecibels = -100.0
	MaxDecibels = -30.0
)

// Pulse factor applied to the normalised bass level
const PulseStrength = 0.15

// Live preview settings
const (
	PreviewWidth    = 960
	PreviewHeight   = 540
	RefreshRate     = 60
	PlaybackQuantum = 10 * time.Millisecond // Playback pump granularity
)

// Export settings
const (
	// SeekTimeout bounds the wait for a background video frame
	SeekTimeout = 2 * time.Second

	VideoCodec   = "libx264"
	VideoPreset  = "veryfast"
	VideoCRF     = 20
	AudioCodec   = "aac"
	AudioBitrate = "128k"
	PixelFormat  = "yuv420p"

	// Frame file pattern inside the encoder working directory
	FramePattern = "frame%05d.png"
	AudioFile    = "audio.wav"
	OutputFile   = "output.mp4"
)

// Progress ranges for the export job (percent)
const (
	ProgressDecoded   = 15.0
	ProgressCaptured  = 70.0
	ProgressAudio     = 75.0
	ProgressMuxed     = 95.0
	ProgressCompleted = 100.0
)

// Appearance defaults
const (
	DefaultPrimary   = "#FF2D75"
	DefaultSecondary = "#00E5FF"
	DefaultFont      = "sans"

	// Thumbnail layout
	ThumbnailMargin              = 40
	ThumbnailTextRotationDegrees = 3.0
)
