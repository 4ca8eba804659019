// SPDX-License-Identifier: EPL-2.0

package player

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"github.com/decred/slog"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/ringbuf"
	"github.com/ik5/audmix/utils"
)

// minWriteFrames is the smallest ring space worth a decode pass.
const minWriteFrames = BlockSize / 4

// Streamed plays an audio.Source through a ring buffer. The update goroutine
// decodes, downmixes and resamples into the ring; the render thread drains
// it, applies the volume and upmixes to the player layout.
//
// The ring holds min(source, player) channels at the player rate, so
// downmixing happens before resampling and upmixing after it.
type Streamed struct {
	dec      audio.Source
	name     string
	rate     int
	channels int
	streamCh int
	caches   *BufCaches
	log      slog.Logger

	rb *ringbuf.RingBuffer
	rs *audio.Resampler

	// Update side.
	tail       []float32
	decodeDone bool
	// Samples of a frame the decoder has not finished yet.
	carry  [audio.MaxChannels]float32
	carryN int

	volume    atomic.Uint32
	eos       atomic.Bool
	finished  atomic.Bool
	underruns atomic.Uint64
}

// NewStreamed wraps dec for playback on p. The caller passes the result to
// p.Add; the decoder is closed when the source is destroyed.
func NewStreamed(p *Player, dec audio.Source) (*Streamed, error) {
	srcRate, srcCh := dec.SampleRate(), dec.Channels()
	if srcRate <= 0 || srcCh <= 0 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidSource, srcRate, srcCh)
	}

	dstCh := p.Channels()
	streamCh := min(srcCh, dstCh)
	if !audio.CanRemix(srcCh, streamCh) || !audio.CanRemix(streamCh, dstCh) {
		return nil, fmt.Errorf("%w: %d -> %d", audio.ErrUnsupportedRemix, srcCh, dstCh)
	}

	s := &Streamed{
		dec:      dec,
		name:     fmt.Sprintf("%T", dec),
		rate:     p.Rate(),
		channels: dstCh,
		streamCh: streamCh,
		caches:   p.BufCaches(),
		log:      p.Log(),
		// One second of audio.
		rb: ringbuf.New(p.Rate() * streamCh),
	}
	s.volume.Store(math.Float32bits(1))

	if srcRate != s.rate {
		rs, err := audio.NewResampler(srcRate, s.rate, streamCh)
		if err != nil {
			return nil, fmt.Errorf("streamed source: %w", err)
		}
		s.rs = rs
	}

	return s, nil
}

// Volume returns the current gain. 0 means paused.
func (s *Streamed) Volume() float32 {
	return math.Float32frombits(s.volume.Load())
}

// SetVolume sets the gain applied on render. 0 pauses playback without
// consuming buffered audio.
func (s *Streamed) SetVolume(v float32) {
	s.volume.Store(math.Float32bits(v))
}

// Finished reports whether the whole stream has been rendered.
func (s *Streamed) Finished() bool {
	return s.finished.Load()
}

// Underruns counts render passes that found the ring short of data before
// the end of the stream.
func (s *Streamed) Underruns() uint64 {
	return s.underruns.Load()
}

// Update refills the ring from the decoder.
func (s *Streamed) Update() {
	if s.eos.Load() {
		return
	}

	// Output left over from the previous pass goes first.
	if len(s.tail) > 0 {
		n := s.enqueue(s.tail)
		s.tail = s.tail[:copy(s.tail, s.tail[n:])]
		if len(s.tail) > 0 {
			return
		}
	}
	if s.decodeDone {
		s.eos.Store(true)
		return
	}

	freeFrames := s.rb.AvailableWrite() / s.streamCh
	if freeFrames < minWriteFrames {
		return
	}

	srcCh := s.dec.Channels()
	want := freeFrames
	if s.rs != nil {
		want = audio.InvResampleCount(s.dec.SampleRate(), s.rate, freeFrames)
	}

	buf := s.caches.Update.Get(UpdateDecode, want*srcCh)
	frames, done := s.decode(buf)
	data := buf[:frames*srcCh]

	if srcCh > s.streamCh {
		n, err := audio.Downmix(data, data, srcCh, s.streamCh)
		if err != nil {
			s.log.Errorf("Streamed %s: %v", s.name, err)
			s.decodeDone = true
			return
		}
		data = data[:n*s.streamCh]
	}

	if s.rs != nil {
		out := s.caches.Update.Get(UpdateResample, s.rs.MaxOutput(frames)*s.streamCh)
		w, err := s.rs.Process(data, out)
		if err != nil {
			s.log.Errorf("Streamed %s: resampling: %v", s.name, err)
		}
		if done {
			f, _ := s.rs.Flush(out[w:])
			w += f
		}
		data = out[:w]
	}

	n := s.enqueue(data)
	if n < len(data) {
		s.tail = append(s.tail, data[n:]...)
	}

	if done {
		s.decodeDone = true
		if len(s.tail) == 0 {
			s.eos.Store(true)
		}
	}
}

// enqueue writes the whole frames of data that fit into the ring, so the ring
// never holds a partial frame.
func (s *Streamed) enqueue(data []float32) int {
	room := s.rb.AvailableWrite() / s.streamCh * s.streamCh
	return s.rb.Enqueue(data[:min(len(data), room)])
}

// decode fills buf with whole frames and reports whether the decoder ended.
// A trailing partial frame is held back and completed by the next call.
func (s *Streamed) decode(buf []float32) (frames int, done bool) {
	srcCh := s.dec.Channels()
	read := copy(buf, s.carry[:s.carryN])
	s.carryN = 0
	for read < len(buf) {
		n, err := s.dec.ReadSamples(buf[read:])
		read += n
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warnf("Streamed %s: decode error, ending stream: %v", s.name, err)
			}
			done = true
			break
		}
		if n == 0 {
			break
		}
	}

	if rem := read % srcCh; rem != 0 {
		if done {
			s.log.Warnf("Streamed %s: dropping %d samples of an incomplete frame", s.name, rem)
		} else {
			s.carryN = copy(s.carry[:], buf[read-rem:read])
		}
	}

	return read / srcCh, done
}

// Render drains blocks*BlockSize frames from the ring. A short read is
// padded with silence; once the stream has ended and the ring is empty the
// volume drops to 0.
func (s *Streamed) Render(blocks int, buf []float32, mix bool) {
	frames := blocks * BlockSize
	out := buf[:frames*s.channels]

	vol := s.Volume()
	if vol == 0 {
		if !mix {
			utils.Zero(out)
		}
		return
	}

	tmp := s.caches.Render.Get(RenderStream, frames*s.channels)
	want := frames * s.streamCh
	n := s.rb.Dequeue(tmp[:want])
	if n < want {
		utils.Zero(tmp[n:want])
		if s.eos.Load() && s.rb.AvailableRead() == 0 {
			s.finished.Store(true)
			s.SetVolume(0)
		} else {
			s.underruns.Add(1)
		}
	}

	utils.Scale(tmp[:want], vol)
	if s.streamCh < s.channels {
		// Pairs are validated in NewStreamed.
		_, _ = audio.Upmix(tmp, tmp[:want], s.streamCh, s.channels)
	}

	if mix {
		utils.Add(out, tmp)
	} else {
		copy(out, tmp)
	}
}

// Close closes the decoder.
func (s *Streamed) Close() error {
	return s.dec.Close()
}
