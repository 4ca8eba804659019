// SPDX-License-Identifier: EPL-2.0

package player

import "github.com/decred/slog"

// Format describes the stream an output device consumes.
type Format struct {
	Rate     int
	Channels int
}

// RenderFunc fills out with up to frames interleaved float32 frames and
// returns the number of frames written. Player.Render is a RenderFunc.
type RenderFunc func(out []float32, frames int) int

// Output is an opened audio device that pulls frames through a RenderFunc.
type Output interface {
	// Format is the format the device actually negotiated.
	Format() Format
	Start() error
	Close() error
}

// OutputOpener opens an output device named name. A zero want.Rate asks for
// the device's native rate. fault is called, possibly from a device thread,
// when the device stops unexpectedly.
type OutputOpener func(name string, want Format, render RenderFunc, fault func(error), log slog.Logger) (Output, error)
