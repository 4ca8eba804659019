// SPDX-License-Identifier: EPL-2.0

package player

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

// Sound is a fully decoded clip kept in memory. It suits short effects that
// are triggered often; long material should use Streamed.
type Sound struct {
	data     []float32
	channels int

	pos    atomic.Int64 // next sample to render
	rewind atomic.Bool
	loop   atomic.Bool
	volume atomic.Uint32
}

// NewSound decodes all of src at p's rate and layout and closes src.
func NewSound(p *Player, src audio.Source) (*Sound, error) {
	defer src.Close()

	data, err := audio.Convert(src, p.Rate(), p.Channels())
	if err != nil {
		return nil, fmt.Errorf("decoding sound: %w", err)
	}

	s := &Sound{data: data, channels: p.Channels()}
	s.volume.Store(math.Float32bits(1))
	return s, nil
}

// Frames is the clip length in frames.
func (s *Sound) Frames() int { return len(s.data) / s.channels }

func (s *Sound) Volume() float32     { return math.Float32frombits(s.volume.Load()) }
func (s *Sound) SetVolume(v float32) { s.volume.Store(math.Float32bits(v)) }

// SetLoop makes playback restart from the beginning at the end of the clip.
func (s *Sound) SetLoop(loop bool) { s.loop.Store(loop) }

// Rewind restarts playback on the next render.
func (s *Sound) Rewind() { s.rewind.Store(true) }

// Done reports whether a non-looping clip has been played to the end.
func (s *Sound) Done() bool {
	return !s.loop.Load() && int(s.pos.Load()) >= len(s.data)
}

// Update does nothing: the clip is already decoded.
func (s *Sound) Update() {}

func (s *Sound) Render(blocks int, buf []float32, mix bool) {
	out := buf[:blocks*BlockSize*s.channels]
	if s.rewind.Swap(false) {
		s.pos.Store(0)
	}

	vol := s.Volume()
	pos := int(s.pos.Load())
	for len(out) > 0 {
		if pos >= len(s.data) {
			if !s.loop.Load() || len(s.data) == 0 {
				break
			}
			pos = 0
		}

		chunk := s.data[pos:min(len(s.data), pos+len(out))]
		if mix {
			utils.AddScaled(out, chunk, vol)
		} else {
			copy(out, chunk)
			utils.Scale(out[:len(chunk)], vol)
		}
		pos += len(chunk)
		out = out[len(chunk):]
	}
	s.pos.Store(int64(pos))

	if !mix {
		utils.Zero(out)
	}
}
