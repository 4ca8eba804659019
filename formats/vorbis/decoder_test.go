// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// fakeOgg serves samples like oggvorbis.Reader: whole frames, value counts.
type fakeOgg struct {
	sampleRate int
	channels   int
	samples    []float32
	err        error
}

func (f *fakeOgg) SampleRate() int { return f.sampleRate }
func (f *fakeOgg) Channels() int   { return f.channels }

func (f *fakeOgg) Read(buf []float32) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if len(f.samples) == 0 {
		return 0, io.EOF
	}
	n := min(len(buf), len(f.samples))
	n -= n % f.channels
	copy(buf, f.samples[:n])
	f.samples = f.samples[n:]
	return n, nil
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{nil, []byte("OggS but not really")} {
		if _, err := (Decoder{}).Decode(bytes.NewReader(data)); err == nil {
			t.Errorf("Decode(%q) succeeded", data)
		}
	}
}

func TestSource_ReadSamples(t *testing.T) {
	t.Parallel()

	samples := []float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3, 0.4, -0.4}
	src := newSource(&fakeOgg{sampleRate: 44100, channels: 2, samples: append([]float32(nil), samples...)})

	if src.SampleRate() != 44100 || src.Channels() != 2 {
		t.Errorf("format = %d Hz, %d channels", src.SampleRate(), src.Channels())
	}

	var got []float32
	buf := make([]float32, 3) // one frame plus a stray sample
	for {
		n, err := src.ReadSamples(buf)
		got = append(got, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples failed: %v", err)
		}
		if n%2 != 0 {
			t.Fatalf("partial frame: %d samples", n)
		}
	}

	if len(got) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], samples[i])
		}
	}
}

func TestSource_ReadSamples_ShortBuffer(t *testing.T) {
	t.Parallel()

	src := newSource(&fakeOgg{sampleRate: 8000, channels: 6, samples: make([]float32, 12)})
	if n, err := src.ReadSamples(make([]float32, 5)); n != 0 || err != nil {
		t.Errorf("ReadSamples = %d, %v; want 0, nil", n, err)
	}
}

func TestSource_ReadSamples_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad packet")
	src := newSource(&fakeOgg{sampleRate: 8000, channels: 1, err: boom})
	if _, err := src.ReadSamples(make([]float32, 8)); !errors.Is(err, boom) {
		t.Errorf("ReadSamples error = %v, want %v", err, boom)
	}
}

func BenchmarkSource_ReadSamples(b *testing.B) {
	data := make([]float32, 2*48000)
	buf := make([]float32, 4096)

	b.ReportAllocs()
	for b.Loop() {
		src := newSource(&fakeOgg{sampleRate: 48000, channels: 2, samples: data})
		for {
			if _, err := src.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
