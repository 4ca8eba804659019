// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

// encodeAIFF writes data with the go-audio encoder and returns the file bytes.
func encodeAIFF(t testing.TB, sampleRate, channels, bitDepth int, data []int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.aiff")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	enc := aiff.NewEncoder(f, sampleRate, bitDepth, channels)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDecoder_PCM16(t *testing.T) {
	t.Parallel()

	data := encodeAIFF(t, 44100, 2, 16, []int{0, 16384, -16384, -32768})
	src, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if src.SampleRate() != 44100 || src.Channels() != 2 {
		t.Errorf("format = %d Hz, %d channels", src.SampleRate(), src.Channels())
	}

	buf := make([]float32, 16)
	n, err := src.ReadSamples(buf)
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	want := []float32{0, 0.5, -0.5, -1}
	if n != len(want) {
		t.Fatalf("read %d samples, want %d", n, len(want))
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, buf[i], want[i])
		}
	}

	if n, err := src.ReadSamples(buf); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("after the data: %d, %v; want 0, EOF", n, err)
	}
}

func TestDecoder_NonSeekableReader(t *testing.T) {
	t.Parallel()

	data := encodeAIFF(t, 22050, 1, 16, []int{1, 2, 3})
	src, err := Decoder{}.Decode(struct{ io.Reader }{bytes.NewReader(data)})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if src.Channels() != 1 {
		t.Errorf("Channels() = %d, want 1", src.Channels())
	}
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{nil, []byte("RIFF....WAVEfmt definitely not aiff")} {
		if _, err := (Decoder{}).Decode(bytes.NewReader(data)); !errors.Is(err, ErrNotAiffFile) {
			t.Errorf("Decode(%q) error = %v, want ErrNotAiffFile", data, err)
		}
	}
}

func BenchmarkDecoder_ReadSamples(b *testing.B) {
	data := encodeAIFF(b, 48000, 2, 16, make([]int, 2*48000))
	buf := make([]float32, 4096)

	b.ReportAllocs()
	for b.Loop() {
		src, err := Decoder{}.Decode(bytes.NewReader(data))
		if err != nil {
			b.Fatal(err)
		}
		for {
			if _, err := src.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
