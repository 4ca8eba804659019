// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audmix/internal/audiotest"
)

func TestRemixer_StereoToMono(t *testing.T) {
	t.Parallel()

	src := audiotest.NewMockSource(8000, 2, 100, func(frame, channel int) float32 {
		if channel == 0 {
			return 0.4
		}
		return 0.6
	})

	mixer, err := NewRemixer(src, 1)
	if err != nil {
		t.Fatalf("NewRemixer() error = %v", err)
	}
	if mixer.Channels() != 1 || mixer.SampleRate() != 8000 {
		t.Errorf("Remixer format = %d Hz/%d ch, want 8000 Hz/1 ch", mixer.SampleRate(), mixer.Channels())
	}

	buf := make([]float32, 10)
	n, err := mixer.ReadSamples(buf)
	if err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 10 {
		t.Fatalf("ReadSamples() n = %d, want 10", n)
	}
	for i := range n {
		if math.Abs(float64(buf[i]-0.5)) > 1e-6 {
			t.Errorf("buf[%d] = %v, want 0.5", i, buf[i])
		}
	}
}

func TestRemixer_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := NewRemixer(audiotest.NewSilentSource(8000, 3, 10), 2)
	if !errors.Is(err, ErrUnsupportedRemix) {
		t.Errorf("NewRemixer() error = %v, want ErrUnsupportedRemix", err)
	}
}

func TestRemixer_EOF(t *testing.T) {
	t.Parallel()

	mixer, _ := NewRemixer(audiotest.NewSilentSource(8000, 1, 3), 2)
	buf := make([]float32, 10)

	n, _ := mixer.ReadSamples(buf)
	if n != 6 {
		t.Errorf("ReadSamples() n = %d, want 6", n)
	}
	if _, err := mixer.ReadSamples(buf); err != io.EOF {
		t.Errorf("ReadSamples() error = %v, want io.EOF", err)
	}
}

func TestResampleSource_Length(t *testing.T) {
	t.Parallel()

	src := audiotest.NewSineSource(44100, 1, 44100, 440)
	rs, err := NewResampleSource(src, 16000)
	if err != nil {
		t.Fatalf("NewResampleSource() error = %v", err)
	}

	buf := make([]float32, 1000)
	total := 0
	for {
		n, err := rs.ReadSamples(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}

	if total != 16000 {
		t.Errorf("resampled %d samples, want 16000", total)
	}
	if err := rs.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if src.Closed() != 1 {
		t.Errorf("source closed %d times, want 1", src.Closed())
	}
}

func TestResampleSource_PropagatesDecodeError(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("broken frame")
	src := audiotest.NewConstantSource(22050, 1, 10000, 0.1).FailAt(5000, errBroken)
	rs, _ := NewResampleSource(src, 44100)

	buf := make([]float32, 4096)
	var err error
	for err == nil {
		_, err = rs.ReadSamples(buf)
	}

	if !errors.Is(err, errBroken) {
		t.Errorf("ReadSamples() error = %v, want %v", err, errBroken)
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		rate, channels   int
		dstRate, dstChan int
		frames           int
	}{
		{"mono 24k to stereo 48k", 24000, 1, 48000, 2, 24000},
		{"5.1 48k to stereo 44.1k", 48000, 6, 44100, 2, 4800},
		{"stereo passthrough", 48000, 2, 48000, 2, 1000},
		{"stereo 8k to 7.1 16k", 8000, 2, 16000, 8, 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := audiotest.NewConstantSource(tt.rate, tt.channels, tt.frames, 0.25)
			out, err := Convert(src, tt.dstRate, tt.dstChan)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}

			want := ResampleCount(tt.rate, tt.dstRate, tt.frames) * tt.dstChan
			if len(out) != want {
				t.Errorf("Convert() returned %d samples, want %d", len(out), want)
			}
		})
	}
}
