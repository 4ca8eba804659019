// SPDX-License-Identifier: EPL-2.0

// Package pcm adapts the integer PCM readers of the go-audio decoders to
// audio.Source.
package pcm

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
)

var ErrUnsupportedBitDepth = errors.New("unsupported PCM bit depth")

// Reader is implemented by the go-audio wav and aiff decoders.
type Reader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// Source converts integer PCM from a Reader to float32.
type Source struct {
	r        Reader
	format   *goaudio.Format
	bitDepth int
	bias     int
	scale    float32
	intBuf   *goaudio.IntBuffer
}

// NewSource wraps r. With unsigned set, samples are offset binary (8-bit
// WAV) and re-centred around zero before scaling.
func NewSource(r Reader, format *goaudio.Format, bitDepth int, unsigned bool) (*Source, error) {
	if format == nil || format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fmt.Errorf("pcm: invalid format %+v", format)
	}

	var scale float32
	switch bitDepth {
	case 8:
		scale = 128.0
	case 16:
		scale = 32768.0
	case 24:
		scale = 8388608.0
	case 32:
		scale = 2147483648.0
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	s := &Source{
		r:        r,
		format:   format,
		bitDepth: bitDepth,
		scale:    scale,
	}
	if unsigned {
		s.bias = 1 << (bitDepth - 1)
	}
	return s, nil
}

func (s *Source) SampleRate() int { return s.format.SampleRate }
func (s *Source) Channels() int   { return s.format.NumChannels }
func (s *Source) BitDepth() int   { return s.bitDepth }

func (s *Source) BufSize() int {
	if s.intBuf != nil {
		return cap(s.intBuf.Data)
	}
	return 4096
}

// Close does nothing; the underlying reader belongs to the caller.
func (s *Source) Close() error { return nil }

// ReadSamples returns whole frames only. A reader that produces nothing ends
// the stream.
func (s *Source) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.format.NumChannels
	if want == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < want {
		s.intBuf = &goaudio.IntBuffer{
			Data:           make([]int, want),
			Format:         s.format,
			SourceBitDepth: s.bitDepth,
		}
	}
	s.intBuf.Data = s.intBuf.Data[:want]

	n, err := s.r.PCMBuffer(s.intBuf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("pcm: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i, v := range s.intBuf.Data[:n] {
		dst[i] = float32(v-s.bias) / s.scale
	}
	return n, nil
}
