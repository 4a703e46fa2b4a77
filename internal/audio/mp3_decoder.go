package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder implements AudioDecoder for MP3 files
type MP3Decoder struct {
	decoder    *mp3.Decoder
	file       *os.File
	sampleRate int
	buf        []byte
	pending    []byte // partial frame carried between reads
}

// NewMP3Decoder creates a new MP3 decoder
func NewMP3Decoder(filename string) (*MP3Decoder, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	return &MP3Decoder{
		decoder:    decoder,
		file:       f,
		sampleRate: decoder.SampleRate(),
	}, nil
}

// ReadChunk reads the next chunk of sample frames
func (d *MP3Decoder) ReadChunk(numFrames int) ([][]float64, error) {
	// go-mp3 always outputs interleaved 16-bit little-endian stereo: 4 bytes per frame
	want := numFrames * 4
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]
	n := copy(buf, d.pending)
	d.pending = d.pending[:0]

	for n < want {
		m, err := d.decoder.Read(buf[n:])
		n += m
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read MP3 data: %w", err)
		}
		if m == 0 {
			break
		}
	}

	frames := n / 4
	if rem := n % 4; rem != 0 {
		d.pending = append(d.pending, buf[frames*4:n]...)
	}
	if frames == 0 {
		return nil, io.EOF
	}

	out := makeChannels(2, frames)
	for i := 0; i < frames; i++ {
		left := int16(buf[i*4]) | int16(buf[i*4+1])<<8
		right := int16(buf[i*4+2]) | int16(buf[i*4+3])<<8
		out[0][i] = float64(left) / 32768.0
		out[1][i] = float64(right) / 32768.0
	}
	return out, nil
}

// SampleRate returns the sample rate
func (d *MP3Decoder) SampleRate() int {
	return d.sampleRate
}

// NumChannels returns the number of audio channels
func (d *MP3Decoder) NumChannels() int {
	return 2
}

// Close closes the decoder and releases resources
func (d *MP3Decoder) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
