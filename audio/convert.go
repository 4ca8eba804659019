// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// Remixer streams from src and converts it to a different channel count
// using the Downmix/Upmix tables.
type Remixer struct {
	src      Source
	channels int
	tmp      []float32
}

func NewRemixer(src Source, channels int) (*Remixer, error) {
	if !CanRemix(src.Channels(), channels) {
		return nil, fmt.Errorf("%w: %d -> %d", ErrUnsupportedRemix, src.Channels(), channels)
	}

	return &Remixer{
		src:      src,
		channels: channels,
		tmp:      make([]float32, 4096),
	}, nil
}

func (m *Remixer) SampleRate() int { return m.src.SampleRate() }
func (m *Remixer) Channels() int   { return m.channels }
func (m *Remixer) BufSize() int    { return m.src.BufSize() }
func (m *Remixer) Close() error    { return m.src.Close() }

func (m *Remixer) ReadSamples(dst []float32) (int, error) {
	if len(dst)%m.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	srcCh := m.src.Channels()
	if srcCh == m.channels {
		return m.src.ReadSamples(dst)
	}

	need := len(dst) / m.channels * srcCh
	if cap(m.tmp) < need {
		m.tmp = make([]float32, need)
	}

	n, err := m.src.ReadSamples(m.tmp[:need])
	if n == 0 {
		return 0, err
	}

	frames, rerr := Remix(dst, m.tmp[:n], srcCh, m.channels)
	if rerr != nil {
		return 0, rerr
	}
	return frames * m.channels, err
}

// ResampleSource streams from src at a different sample rate.
type ResampleSource struct {
	src Source
	rs  *Resampler

	in      []float32
	out     []float32
	off     int
	eof     bool
	readErr error
}

func NewResampleSource(src Source, dstRate int) (*ResampleSource, error) {
	rs, err := NewResampler(src.SampleRate(), dstRate, src.Channels())
	if err != nil {
		return nil, err
	}

	return &ResampleSource{
		src: src,
		rs:  rs,
		in:  make([]float32, 4096/src.Channels()*src.Channels()),
	}, nil
}

func (r *ResampleSource) SampleRate() int { return r.rs.DstRate() }
func (r *ResampleSource) Channels() int   { return r.rs.Channels() }
func (r *ResampleSource) BufSize() int    { return r.src.BufSize() }
func (r *ResampleSource) Close() error    { return r.src.Close() }

func (r *ResampleSource) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.rs.Channels() != 0 {
		return 0, ErrInvalidDstSize
	}

	written := 0
	for written < len(dst) {
		if r.off < len(r.out) {
			n := copy(dst[written:], r.out[r.off:])
			r.off += n
			written += n
			continue
		}
		if r.eof || !r.fill() {
			break
		}
	}

	if written == 0 && r.eof {
		if r.readErr != nil {
			return 0, r.readErr
		}
		return 0, io.EOF
	}
	return written, nil
}

// fill decodes one chunk from src and resamples it into out. It reports
// false when src returned neither samples nor an error.
func (r *ResampleSource) fill() bool {
	ch := r.rs.Channels()
	n, err := r.src.ReadSamples(r.in)
	n -= n % ch

	r.out = r.out[:0]
	r.off = 0

	size := r.rs.MaxOutput(n/ch) * ch
	if cap(r.out) < size {
		r.out = make([]float32, size)
	}
	r.out = r.out[:size]

	produced := 0
	if n > 0 {
		produced, _ = r.rs.Process(r.in[:n], r.out)
	}

	if err != nil {
		r.eof = true
		if !errors.Is(err, io.EOF) {
			r.readErr = err
		}
		flushed, _ := r.rs.Flush(r.out[produced:])
		produced += flushed
	}

	r.out = r.out[:produced]
	return n > 0 || err != nil
}

// Convert decodes all of src into interleaved samples at rate with channels
// channels. Downmixing happens before resampling and upmixing after it, so
// the resampler always works on the narrower layout.
func Convert(src Source, rate, channels int) ([]float32, error) {
	var (
		s   Source = src
		err error
	)

	if channels < s.Channels() {
		if s, err = NewRemixer(s, channels); err != nil {
			return nil, err
		}
	}
	if s.SampleRate() != rate {
		if s, err = NewResampleSource(s, rate); err != nil {
			return nil, err
		}
	}
	if channels > s.Channels() {
		if s, err = NewRemixer(s, channels); err != nil {
			return nil, err
		}
	}

	// Estimate one second initially and let append grow it.
	out := make([]float32, 0, rate*channels)
	buf := make([]float32, 4096/channels*channels)
	for {
		n, err := s.ReadSamples(buf)
		out = append(out, buf[:n]...)

		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("%w", err)
		}
		if n == 0 {
			// A source that returns nothing without an error is treated as done.
			return out, nil
		}
	}
}
