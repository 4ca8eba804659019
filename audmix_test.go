// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/effect"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/internal/audiotest"
	"github.com/ik5/audmix/player"
)

// readBack decodes a WAV file written by Bounce.
func readBack(t *testing.T, path string) ([]float32, audio.Source) {
	t.Helper()

	src, err := DefaultRegistry().Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	t.Cleanup(func() { _ = src.Close() })

	data, err := audio.Convert(src, src.SampleRate(), src.Channels())
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	return data, src
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()
	want := []string{"aif", "aiff", "mp3", "oga", "ogg", "wav", "wave"}
	if got := reg.Formats(); !slices.Equal(got, want) {
		t.Errorf("Formats() = %v, want %v", got, want)
	}

	for _, ext := range []string{".WAV", "Mp3", ".ogg", "aif"} {
		if _, ok := reg.Get(ext); !ok {
			t.Errorf("Get(%q) not found", ext)
		}
	}
}

func TestBounce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mix.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	// Half a second at 24 kHz becomes 24000 frames at 48 kHz.
	src := audiotest.NewConstantSource(24000, 1, 12000, 0.25)
	frames, err := Bounce(context.Background(), f, player.Config{Rate: 48000, Channels: 2}, nil, src)
	if err != nil {
		t.Fatalf("Bounce() error = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	if src.Closed() != 1 {
		t.Error("source not closed after Bounce")
	}
	if frames < 24000 || frames%player.BlockSize != 0 {
		t.Errorf("Bounce() frames = %d, want a block multiple >= 24000", frames)
	}

	data, dec := readBack(t, path)
	if dec.SampleRate() != 48000 || dec.Channels() != 2 {
		t.Fatalf("bounced format = %d Hz %d ch, want 48000 Hz 2 ch", dec.SampleRate(), dec.Channels())
	}
	if len(data) != frames*2 {
		t.Fatalf("decoded %d samples, want %d", len(data), frames*2)
	}

	audible := 0
	for f := 0; f < len(data); f += 2 {
		if data[f] != 0 {
			audible++
			if math.Abs(float64(data[f]-0.25)) > 1e-3 || data[f] != data[f+1] {
				t.Fatalf("frame %d = [%v %v], want [0.25 0.25]", f/2, data[f], data[f+1])
			}
		}
	}
	if audible != 24000 {
		t.Errorf("audible frames = %d, want 24000", audible)
	}
}

func TestBounce_MixesWithEffect(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mix.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// Two sources summing to 1.2, limited down to the 0.5 threshold.
	master := effect.NewMaster(effect.MasterParams{ThresholdDB: -6.0206, ReleaseMs: 50})
	_, err = Bounce(context.Background(), f, player.Config{Rate: 8000, Channels: 1}, master,
		audiotest.NewConstantSource(8000, 1, 4000, 0.6),
		audiotest.NewConstantSource(8000, 1, 4000, 0.6),
	)
	if err != nil {
		t.Fatalf("Bounce() error = %v", err)
	}

	data, _ := readBack(t, path)
	peak := float32(0)
	for _, s := range data {
		peak = max(peak, s)
	}
	if math.Abs(float64(peak-0.5)) > 1e-3 {
		t.Errorf("peak = %v, want 0.5", peak)
	}
}

func TestBounce_Errors(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "mix.wav"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := Bounce(context.Background(), f, player.Config{}, nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("Bounce() with no sources error = %v, want ErrNoSources", err)
	}

	src := audiotest.NewConstantSource(8000, 1, 8000, 0.5)
	_, err = Bounce(context.Background(), f, player.Config{Channels: -1}, nil, src)
	if !errors.Is(err, player.ErrInvalidConfig) {
		t.Errorf("Bounce() bad config error = %v, want ErrInvalidConfig", err)
	}
	if src.Closed() != 1 {
		t.Error("source not closed after failed Bounce")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src = audiotest.NewConstantSource(8000, 1, 8000, 0.5)
	frames, err := Bounce(ctx, f, player.Config{Rate: 8000}, nil, src)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Bounce() cancelled error = %v, want context.Canceled", err)
	}
	if frames != 0 {
		t.Errorf("Bounce() cancelled frames = %d, want 0", frames)
	}
}

func TestPlay(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]int16, 2*4800)
	for i := range samples {
		samples[i] = 8192
	}
	if err := wav.WriteWAV16(f, 48000, 2, samples); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	p, err := player.New("play", player.Config{Rate: 48000, Channels: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	s, err := Play(p, DefaultRegistry(), path)
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if got := p.Stats().Sources; got != 1 {
		t.Errorf("Stats().Sources = %d, want 1", got)
	}

	buf := make([]float32, player.BlockSize*2)
	audible := 0
	for i := 0; !s.Finished(); i++ {
		if i > 100 {
			t.Fatal("stream never finished")
		}
		p.Render(buf, player.BlockSize)
		for f := 0; f < len(buf); f += 2 {
			if buf[f] != 0 {
				audible++
			}
		}
		p.Update()
	}
	if audible != 4800 {
		t.Errorf("audible frames = %d, want 4800", audible)
	}
}

func TestPlay_Errors(t *testing.T) {
	t.Parallel()

	p, err := player.New("play", player.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	dir := t.TempDir()
	if _, err := Play(p, DefaultRegistry(), filepath.Join(dir, "a.flac")); !errors.Is(err, audio.ErrUnknownFormat) {
		t.Errorf("Play(.flac) error = %v, want ErrUnknownFormat", err)
	}
	if _, err := Play(p, DefaultRegistry(), filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Play(missing) error = %v, want ErrNotExist", err)
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav file at all"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Play(p, DefaultRegistry(), bad); !errors.Is(err, wav.ErrNotWavFile) {
		t.Errorf("Play(bad) error = %v, want ErrNotWavFile", err)
	}
}
