// SPDX-License-Identifier: EPL-2.0

// Package audiotest provides deterministic fake decoders for tests.
package audiotest

import (
	"io"
	"math"
	"sync/atomic"
)

// MockSource is a test helper that generates audio data for testing.
// It implements the audio.Source interface (without importing it to avoid cycles).
type MockSource struct {
	sampleRate  int
	channels    int
	totalFrames int // Total frames to generate
	generated   int // Frames generated so far
	waveform    func(frame int, channel int) float32

	failAt  int // frame index at which ReadSamples starts failing, -1 to disable
	failErr error

	reads  atomic.Int64
	closed atomic.Int32
}

// NewMockSource creates a new mock audio source producing totalFrames frames.
// waveform generates sample values given the frame index and channel.
func NewMockSource(sampleRate, channels, totalFrames int, waveform func(frame int, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate:  sampleRate,
		channels:    channels,
		totalFrames: totalFrames,
		waveform:    waveform,
		failAt:      -1,
	}
}

// NewSilentSource creates a mock source that generates silence (all zeros).
func NewSilentSource(sampleRate, channels, totalFrames int) *MockSource {
	return NewConstantSource(sampleRate, channels, totalFrames, 0)
}

// NewSineSource creates a mock source that generates a sine wave.
func NewSineSource(sampleRate, channels, totalFrames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame int, channel int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

// NewConstantSource creates a mock source with constant value.
func NewConstantSource(sampleRate, channels, totalFrames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame int, channel int) float32 {
		return value
	})
}

// FailAt makes ReadSamples return err once frame has been generated.
func (m *MockSource) FailAt(frame int, err error) *MockSource {
	m.failAt = frame
	m.failErr = err
	return m
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return 4096 }

func (m *MockSource) Close() error {
	m.closed.Add(1)
	return nil
}

// Closed returns how many times Close was called.
func (m *MockSource) Closed() int { return int(m.closed.Load()) }

// Reads returns how many times ReadSamples was called.
func (m *MockSource) Reads() int { return int(m.reads.Load()) }

// Generated returns the number of frames produced so far.
func (m *MockSource) Generated() int { return m.generated }

// Reset resets the generated frame counter to allow re-reading.
func (m *MockSource) Reset() {
	m.generated = 0
}

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	m.reads.Add(1)

	if m.failAt >= 0 && m.generated >= m.failAt {
		return 0, m.failErr
	}
	if m.generated >= m.totalFrames {
		return 0, io.EOF
	}

	framesToWrite := min(len(dst)/m.channels, m.totalFrames-m.generated)
	if m.failAt >= 0 {
		framesToWrite = min(framesToWrite, m.failAt-m.generated)
	}

	for frame := range framesToWrite {
		idx := m.generated + frame
		for ch := range m.channels {
			dst[frame*m.channels+ch] = m.waveform(idx, ch)
		}
	}

	m.generated += framesToWrite
	return framesToWrite * m.channels, nil
}
