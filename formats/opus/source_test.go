// SPDX-License-Identifier: EPL-2.0

package opus

import (
	"errors"
	"io"
	"math"
	"testing"

	"gopkg.in/hraban/opus.v2"
)

// encodeTone encodes count 20 ms packets of a sine at rate with channels.
func encodeTone(t *testing.T, rate, channels, count int) [][]byte {
	t.Helper()

	enc, err := opus.NewEncoder(rate, channels, opus.AppAudio)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	frame := rate / 50
	pcm := make([]float32, frame*channels)
	packets := make([][]byte, 0, count)
	for p := range count {
		for f := range frame {
			v := float32(0.5 * math.Sin(2*math.Pi*440*float64(p*frame+f)/float64(rate)))
			for c := range channels {
				pcm[f*channels+c] = v
			}
		}
		data := make([]byte, 4000)
		n, err := enc.EncodeFloat32(pcm, data)
		if err != nil {
			t.Fatalf("EncodeFloat32 failed: %v", err)
		}
		packets = append(packets, data[:n])
	}
	return packets
}

func readAll(t *testing.T, src *Source, chunk int) int {
	t.Helper()

	buf := make([]float32, chunk)
	total := 0
	for {
		n, err := src.ReadSamples(buf)
		total += n
		if errors.Is(err, io.EOF) {
			return total
		}
		if err != nil {
			t.Fatalf("ReadSamples failed: %v", err)
		}
	}
}

func TestSource_DecodesAllPackets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate     int
		channels int
		chunk    int
	}{
		{48000, 2, 4096},
		{48000, 1, 333},
		{16000, 1, 100},
		{24000, 2, 7},
	}

	for _, tt := range tests {
		packets := encodeTone(t, tt.rate, tt.channels, 10)
		src, err := NewSource(NewSlicePackets(packets), tt.rate, tt.channels)
		if err != nil {
			t.Fatalf("NewSource failed: %v", err)
		}

		want := 10 * tt.rate / 50 * tt.channels
		if got := readAll(t, src, tt.chunk); got != want {
			t.Errorf("%d Hz x%d: decoded %d samples, want %d", tt.rate, tt.channels, got, want)
		}
	}
}

func TestSource_ConcealsLostPackets(t *testing.T) {
	t.Parallel()

	packets := encodeTone(t, 48000, 1, 5)
	packets[2] = nil

	src, err := NewSource(NewSlicePackets(packets), 48000, 1)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if got := readAll(t, src, 1024); got != 5*960 {
		t.Errorf("decoded %d samples, want %d", got, 5*960)
	}
}

func TestSource_CorruptPacket(t *testing.T) {
	t.Parallel()

	// A code 3 packet header announcing more frames than it carries.
	src, err := NewSource(NewSlicePackets([][]byte{{0xff, 0xff}}), 48000, 2)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if _, err := src.ReadSamples(make([]float32, 1024)); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples error = %v, want a decode error", err)
	}
}

func TestNewSource_Invalid(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct{ rate, channels int }{{44100, 2}, {48000, 3}, {48000, 0}} {
		if _, err := NewSource(NewSlicePackets(nil), tt.rate, tt.channels); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("NewSource(%d, %d) error = %v, want ErrInvalidFormat", tt.rate, tt.channels, err)
		}
	}
}
