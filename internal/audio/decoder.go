package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AudioDecoder defines the interface for all audio format decoders
type AudioDecoder interface {
	// ReadChunk reads up to numFrames sample frames, one slice per channel,
	// scaled to [-1, 1]. Returns io.EOF when the stream is exhausted.
	ReadChunk(numFrames int) ([][]float64, error)

	// SampleRate returns the audio sample rate in Hz
	SampleRate() int

	// NumChannels returns the number of audio channels (1=mono, 2=stereo)
	NumChannels() int

	// Close closes the decoder and releases resources
	Close() error
}

// Format is a container format recognised by its header
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatFLAC
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatFLAC:
		return "flac"
	default:
		return "unknown"
	}
}

// SniffFormat identifies a format from the first bytes of a file
func SniffFormat(header []byte) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 4 && bytes.Equal(header[0:4], []byte("fLaC")):
		return FormatFLAC
	case len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

// formatFromExt is the fallback when the header is inconclusive
func formatFromExt(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	case ".flac":
		return FormatFLAC
	}
	return FormatUnknown
}

// NewDecoder opens filename with the native decoder for its format, or with
// ffmpeg for anything the native decoders do not handle.
func NewDecoder(filename string) (AudioDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	f.Close()
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	format := SniffFormat(header[:n])
	if format == FormatUnknown {
		format = formatFromExt(filename)
	}

	switch format {
	case FormatWAV:
		return NewWAVDecoder(filename)
	case FormatMP3:
		return NewMP3Decoder(filename)
	case FormatFLAC:
		return NewFLACDecoder(filename)
	default:
		return NewFFmpegDecoder(filename)
	}
}
