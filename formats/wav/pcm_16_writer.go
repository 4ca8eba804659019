// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ik5/audmix/utils"
)

// chunkSamples bounds the integer buffer handed to the encoder per call.
const chunkSamples = 8192

// Writer streams interleaved samples into a 16-bit PCM WAV file. The header
// sizes are patched on Close, which is why the destination must seek.
type Writer struct {
	enc     *wav.Encoder
	buf     *goaudio.IntBuffer
	samples int
	wrote   bool
}

func NewWriter(ws io.WriteSeeker, sampleRate, channels int) (*Writer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannels, channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupportedWavLayout, sampleRate)
	}

	return &Writer{
		enc: wav.NewEncoder(ws, sampleRate, 16, channels, formatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			Data:           make([]int, 0, chunkSamples),
			SourceBitDepth: 16,
		},
	}, nil
}

// Write converts float samples in [-1, 1] to 16-bit PCM, clamping anything
// outside that range.
func (w *Writer) Write(samples []float32) error {
	for len(samples) > 0 {
		n := min(len(samples), chunkSamples)
		w.buf.Data = w.buf.Data[:n]
		for i, s := range samples[:n] {
			w.buf.Data[i] = int(utils.Float32ToInt16(s))
		}
		if err := w.flush(); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

// WriteInt16 writes samples that are already 16-bit PCM.
func (w *Writer) WriteInt16(samples []int16) error {
	for len(samples) > 0 {
		n := min(len(samples), chunkSamples)
		w.buf.Data = w.buf.Data[:n]
		for i, s := range samples[:n] {
			w.buf.Data[i] = int(s)
		}
		if err := w.flush(); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

// Samples is the number of samples written so far.
func (w *Writer) Samples() int { return w.samples }

func (w *Writer) flush() error {
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	w.samples += len(w.buf.Data)
	w.wrote = true
	return nil
}

// Close finalizes the header. It does not close the destination.
func (w *Writer) Close() error {
	if !w.wrote {
		// The encoder only emits its header together with data.
		w.buf.Data = w.buf.Data[:0]
		if err := w.flush(); err != nil {
			return err
		}
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// WriteWAV16 writes a complete 16-bit PCM WAV file with interleaved samples.
func WriteWAV16(ws io.WriteSeeker, sampleRate, channels int, samples []int16) error {
	w, err := NewWriter(ws, sampleRate, channels)
	if err != nil {
		return err
	}
	if err := w.WriteInt16(samples); err != nil {
		return err
	}
	return w.Close()
}
