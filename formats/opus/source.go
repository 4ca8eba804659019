// SPDX-License-Identifier: EPL-2.0

package opus

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

var ErrInvalidFormat = errors.New("opus: unsupported sample rate or channel count")

// maxFrameMs is the longest frame an Opus packet can carry.
const maxFrameMs = 120

// lostFrameMs is the duration concealed for a lost packet.
const lostFrameMs = 20

// PacketReader yields one Opus packet per call and io.EOF after the last
// one. A nil or empty packet marks a lost packet, which is concealed.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// Source decodes a sequence of raw Opus packets.
type Source struct {
	dec      *opus.Decoder
	packets  PacketReader
	rate     int
	channels int

	pcm []float32
	off int
	end int
}

// NewSource decodes packets at rate (8000, 12000, 16000, 24000 or 48000 Hz)
// with 1 or 2 channels.
func NewSource(packets PacketReader, rate, channels int) (*Source, error) {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("%w: %d Hz", ErrInvalidFormat, rate)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidFormat, channels)
	}

	dec, err := opus.NewDecoder(rate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create Opus decoder: %w", err)
	}

	return &Source{
		dec:      dec,
		packets:  packets,
		rate:     rate,
		channels: channels,
		pcm:      make([]float32, rate*maxFrameMs/1000*channels),
	}, nil
}

func (s *Source) SampleRate() int { return s.rate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BufSize() int    { return len(s.pcm) }

// Close closes the packet reader if it is an io.Closer.
func (s *Source) Close() error {
	if c, ok := s.packets.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Source) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.channels
	written := 0
	for written < want {
		if s.off == s.end {
			if err := s.decodeNext(); err != nil {
				if written > 0 && errors.Is(err, io.EOF) {
					break
				}
				return written, err
			}
			continue
		}
		n := copy(dst[written:want], s.pcm[s.off:s.end])
		s.off += n
		written += n
	}
	return written, nil
}

func (s *Source) decodeNext() error {
	packet, err := s.packets.ReadPacket()
	if err != nil {
		return err
	}

	var frames int
	if len(packet) == 0 {
		frames = s.rate * lostFrameMs / 1000
		err = s.dec.DecodePLCFloat32(s.pcm[:frames*s.channels])
	} else {
		frames, err = s.dec.DecodeFloat32(packet, s.pcm)
	}
	if err != nil {
		return fmt.Errorf("decode error: %w", err)
	}

	s.off = 0
	s.end = frames * s.channels
	return nil
}

// SlicePackets is a PacketReader over packets held in memory.
type SlicePackets struct {
	packets [][]byte
}

func NewSlicePackets(packets [][]byte) *SlicePackets {
	return &SlicePackets{packets: packets}
}

func (p *SlicePackets) ReadPacket() ([]byte, error) {
	if len(p.packets) == 0 {
		return nil, io.EOF
	}
	packet := p.packets[0]
	p.packets = p.packets[1:]
	return packet, nil
}
