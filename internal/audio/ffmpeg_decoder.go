package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/linuxmatters/jivewave/internal/config"
)

// FFmpegDecoder implements AudioDecoder by piping the file through an ffmpeg
// process as interleaved 16-bit stereo at the session sample rate. This covers
// any format ffmpeg can decode (OGG, AAC, M4A, OPUS, ...).
type FFmpegDecoder struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	reader   *bufio.Reader
	stderr   bytes.Buffer
	channels int
	buf      []byte
	done     bool
}

// FFmpegBinary is the executable used for decoding, probing and muxing
var FFmpegBinary = "ffmpeg"

// NewFFmpegDecoder starts an ffmpeg process decoding filename
func NewFFmpegDecoder(filename string) (*FFmpegDecoder, error) {
	if _, err := exec.LookPath(FFmpegBinary); err != nil {
		return nil, fmt.Errorf("unsupported audio format and ffmpeg not found: %w", err)
	}

	d := &FFmpegDecoder{channels: 2}
	d.cmd = exec.Command(FFmpegBinary,
		"-hide_banner",
		"-v", "error",
		"-i", filename,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(d.channels),
		"-ar", strconv.Itoa(config.SampleRate),
		"pipe:1",
	)
	d.cmd.Stderr = &d.stderr

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	d.stdout = stdout
	d.reader = bufio.NewReaderSize(stdout, 64*1024)

	if err := d.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return d, nil
}

// ReadChunk reads the next chunk of sample frames
func (d *FFmpegDecoder) ReadChunk(numFrames int) ([][]float64, error) {
	if d.done {
		return nil, io.EOF
	}

	frameBytes := 2 * d.channels
	want := numFrames * frameBytes
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]

	n, err := io.ReadFull(d.reader, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		d.done = true
		if waitErr := d.wait(); waitErr != nil {
			return nil, waitErr
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read decoded audio: %w", err)
	}

	frames := n / frameBytes
	if frames == 0 {
		return nil, io.EOF
	}

	out := makeChannels(d.channels, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < d.channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(buf[i*frameBytes+ch*2:]))
			out[ch][i] = float64(v) / 32768.0
		}
	}
	return out, nil
}

func (d *FFmpegDecoder) wait() error {
	if d.cmd == nil || d.cmd.Process == nil {
		return nil
	}
	err := d.cmd.Wait()
	d.cmd = nil
	if err != nil {
		return fmt.Errorf("ffmpeg decode failed: %w: %s", err, bytes.TrimSpace(d.stderr.Bytes()))
	}
	return nil
}

// SampleRate returns the sample rate ffmpeg resamples to
func (d *FFmpegDecoder) SampleRate() int {
	return config.SampleRate
}

// NumChannels returns the number of audio channels
func (d *FFmpegDecoder) NumChannels() int {
	return d.channels
}

// Close stops ffmpeg if it is still running
func (d *FFmpegDecoder) Close() error {
	if d.cmd == nil {
		return nil
	}
	if d.cmd.Process != nil && !d.done {
		_ = d.cmd.Process.Kill()
	}
	_ = d.stdout.Close()
	_ = d.cmd.Wait()
	d.cmd = nil
	return nil
}
