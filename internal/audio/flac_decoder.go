package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// FLACDecoder implements AudioDecoder for FLAC files
type FLACDecoder struct {
	stream      *flac.Stream
	file        *os.File
	sampleRate  int
	numChannels int
	bitDepth    int

	// Samples of the last parsed frame not yet handed out
	pending [][]float64
}

// NewFLACDecoder creates a new FLAC decoder
func NewFLACDecoder(filename string) (*FLACDecoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	// Parse FLAC stream - reads signature and StreamInfo block
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create FLAC decoder: %w", err)
	}

	return &FLACDecoder{
		stream:      stream,
		file:        f,
		sampleRate:  int(stream.Info.SampleRate),
		numChannels: int(stream.Info.NChannels),
		bitDepth:    int(stream.Info.BitsPerSample),
		pending:     make([][]float64, stream.Info.NChannels),
	}, nil
}

// ReadChunk reads the next chunk of sample frames
func (d *FLACDecoder) ReadChunk(numFrames int) ([][]float64, error) {
	for len(d.pending[0]) < numFrames {
		frame, err := d.stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		// FLAC supports 4-32 bits per sample
		bits := int(frame.BitsPerSample)
		if bits == 0 {
			bits = d.bitDepth
		}
		maxVal := float64(int64(1) << (bits - 1))

		// One subframe per channel
		for ch := 0; ch < d.numChannels && ch < len(frame.Subframes); ch++ {
			for _, s := range frame.Subframes[ch].Samples {
				d.pending[ch] = append(d.pending[ch], float64(s)/maxVal)
			}
		}
	}

	n := len(d.pending[0])
	if n == 0 {
		return nil, io.EOF
	}
	if n > numFrames {
		n = numFrames
	}

	out := makeChannels(d.numChannels, n)
	for ch := range out {
		copy(out[ch], d.pending[ch][:n])
		d.pending[ch] = append(d.pending[ch][:0], d.pending[ch][n:]...)
	}
	return out, nil
}

// SampleRate returns the sample rate
func (d *FLACDecoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the number of audio channels
func (d *FLACDecoder) NumChannels() int {
	return d.numChannels
}

// Close closes the decoder and releases resources
func (d *FLACDecoder) Close() error {
	if d.stream != nil {
		d.stream.Close()
	}
	if d.file != nil {
		// The stream may already have closed the file
		if err := d.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			return err
		}
	}
	return nil
}
