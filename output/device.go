// SPDX-License-Identifier: EPL-2.0

package output

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/decred/slog"
	"github.com/gen2brain/malgo"

	"github.com/ik5/audmix/player"
)

// ErrDeviceStopped is reported when the backend stops a device on its own,
// for example because it was unplugged.
var ErrDeviceStopped = errors.New("output device stopped unexpectedly")

const sampleSize = 4 // float32

// Device is a miniaudio playback device pulling float32 frames from a
// player.RenderFunc.
type Device struct {
	name     string
	ctx      *malgo.AllocatedContext
	dev      *malgo.Device
	format   player.Format
	render   player.RenderFunc
	fault    func(error)
	log      slog.Logger
	stopping atomic.Bool
	closed   atomic.Bool
}

// Open initialises the default playback device of the first working backend
// in backends (all of them when empty). A zero want.Rate selects the
// device's native rate. The device is not started.
func Open(name string, want player.Format, render player.RenderFunc, fault func(error), log slog.Logger, backends ...malgo.Backend) (*Device, error) {
	if log == nil {
		log = slog.Disabled
	}
	if want.Channels <= 0 {
		return nil, fmt.Errorf("output %s: invalid channel count %d", name, want.Channels)
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		log.Debugf("Output %s: %s", name, strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("output %s: init context: %w", name, err)
	}

	d := &Device{
		name:   name,
		ctx:    ctx,
		render: render,
		fault:  fault,
		log:    log,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(want.Channels)
	cfg.SampleRate = uint32(want.Rate)
	cfg.PeriodSizeInFrames = player.BlockSize
	cfg.PerformanceProfile = malgo.LowLatency

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: d.onData,
		Stop: d.onStop,
	})
	if err != nil {
		d.freeContext()
		return nil, fmt.Errorf("output %s: init device: %w", name, err)
	}
	d.dev = dev

	d.format = player.Format{
		Rate:     int(dev.SampleRate()),
		Channels: want.Channels,
	}
	log.Infof("Output %s: %d Hz, %d channels, %d frame periods",
		name, d.format.Rate, d.format.Channels, player.BlockSize)
	return d, nil
}

// NewOpener returns a player.OutputOpener restricted to backends.
func NewOpener(backends ...malgo.Backend) player.OutputOpener {
	return func(name string, want player.Format, render player.RenderFunc, fault func(error), log slog.Logger) (player.Output, error) {
		d, err := Open(name, want, render, fault, log, backends...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Opener opens the system default playback device.
var Opener = NewOpener()

func (d *Device) Format() player.Format { return d.format }

func (d *Device) Start() error {
	d.stopping.Store(false)
	if err := d.dev.Start(); err != nil {
		return fmt.Errorf("output %s: start: %w", d.name, err)
	}
	return nil
}

// Close stops and releases the device. It waits for a running callback to
// return.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.stopping.Store(true)
	d.dev.Uninit()
	d.freeContext()
	return nil
}

func (d *Device) freeContext() {
	if err := d.ctx.Uninit(); err != nil {
		d.log.Debugf("Output %s: uninit context: %v", d.name, err)
	}
	d.ctx.Free()
}

// onData runs on the backend's real-time thread.
func (d *Device) onData(out, _ []byte, frameCount uint32) {
	if len(out) < sampleSize {
		return
	}

	buf := unsafe.Slice((*float32)(unsafe.Pointer(&out[0])), len(out)/sampleSize)
	frames := int(frameCount)
	n := d.render(buf, frames)
	if n < frames {
		clear(buf[n*d.format.Channels:])
	}
}

func (d *Device) onStop() {
	if d.stopping.Load() {
		return
	}
	if d.fault != nil {
		d.fault(ErrDeviceStopped)
	}
}
