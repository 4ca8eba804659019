// SPDX-License-Identifier: EPL-2.0

package player

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/utils"
)

const (
	DefaultRate           = 48000
	DefaultChannels       = 2
	DefaultLatencyBlocks  = 4
	DefaultUpdateInterval = 50 * time.Millisecond
)

// Config holds the options of a Player. The zero value is a headless stereo
// player at DefaultRate.
type Config struct {
	// Rate is the output sample rate. 0 picks the device's native rate, or
	// DefaultRate when there is no output device.
	Rate int
	// Channels is the output channel count, 1 to audio.MaxChannels.
	Channels int
	// LatencyBlocks is the largest number of blocks rendered in one pass.
	// It bounds the scratch buffers the render thread uses.
	LatencyBlocks int
	// UpdateInterval is the period of the update goroutine.
	UpdateInterval time.Duration

	// Output opens the device that drives Render. nil makes the player
	// headless: the application calls Render itself.
	Output OutputOpener
	// OnReinit is called from the update goroutine after the output device
	// was reopened following a fault.
	OnReinit func(formatChanged bool)

	Log slog.Logger
}

func (c Config) withDefaults() (Config, error) {
	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}
	if c.LatencyBlocks == 0 {
		c.LatencyBlocks = DefaultLatencyBlocks
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = DefaultUpdateInterval
	}
	if c.Log == nil {
		c.Log = slog.Disabled
	}

	switch {
	case c.Rate < 0:
		return c, fmt.Errorf("%w: rate %d", ErrInvalidConfig, c.Rate)
	case c.Channels < 1 || c.Channels > audio.MaxChannels:
		return c, fmt.Errorf("%w: %d channels", ErrInvalidConfig, c.Channels)
	case c.LatencyBlocks < 0:
		return c, fmt.Errorf("%w: %d latency blocks", ErrInvalidConfig, c.LatencyBlocks)
	case c.UpdateInterval < 0:
		return c, fmt.Errorf("%w: update interval %s", ErrInvalidConfig, c.UpdateInterval)
	}
	return c, nil
}

// Stats is a snapshot of a player's counters.
type Stats struct {
	Sources      int    // active sources
	Pending      int    // retired entries not destroyed yet
	Iterations   uint64 // render iterations started
	RenderFaults uint64 // panics recovered on the render thread
	UpdateFaults uint64 // panics recovered on the update goroutine
	Reinits      uint64 // output devices reopened after a fault
}

// Player mixes a dynamic set of sources into one output stream.
//
// Three roles touch a Player. The render thread calls Render (usually from
// the output device callback) and only performs atomic operations. The update
// goroutine started by Start decodes and refills sources and destroys
// removed ones. Any other goroutine may call Add, Remove and SetEffect.
type Player struct {
	name      string
	format    Format
	maxBlocks int
	interval  time.Duration
	log       slog.Logger
	onReinit  func(bool)
	opener    OutputOpener
	caches    BufCaches

	head    atomic.Pointer[node]
	effect  atomic.Pointer[effectBox]
	gens    generations
	retired retireStack

	// topoMu serialises list and effect slot writers. The render thread never
	// takes it.
	topoMu sync.Mutex

	// updateMu is held by whoever plays the update role.
	updateMu sync.Mutex
	pending  []*retiree

	// Owned by the render thread.
	stage       []float32
	stageOff    int
	effectFault faultSlot

	outMu     sync.Mutex
	out       Output
	errored   atomic.Bool
	lastFault atomic.Pointer[error]

	runMu  sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	closed atomic.Bool

	renderFaults atomic.Uint64
	updateFaults atomic.Uint64
	reinits      atomic.Uint64
	pendingCount atomic.Int64
}

// New creates a player. When cfg.Output is set the device is opened but not
// started; call Start.
func New(name string, cfg Config) (*Player, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	p := &Player{
		name:      name,
		format:    Format{Rate: cfg.Rate, Channels: cfg.Channels},
		maxBlocks: cfg.LatencyBlocks,
		interval:  cfg.UpdateInterval,
		log:       cfg.Log,
		onReinit:  cfg.OnReinit,
		opener:    cfg.Output,
	}

	size := p.maxBlocks * BlockSize * cfg.Channels
	for _, id := range []int{RenderMix, RenderSource, RenderStream} {
		p.caches.Render.Reserve(id, size)
	}
	p.stage = make([]float32, BlockSize*cfg.Channels)
	p.stageOff = len(p.stage)

	if cfg.Output == nil {
		if p.format.Rate == 0 {
			p.format.Rate = DefaultRate
		}
		p.log.Infof("Player %s: headless, %d Hz, %d channels", name, p.format.Rate, p.format.Channels)
		return p, nil
	}

	out, err := cfg.Output(name, p.format, p.Render, p.outputFault, p.log)
	if err != nil {
		return nil, fmt.Errorf("player %s: opening output: %w", name, err)
	}
	got := out.Format()
	if got.Channels != cfg.Channels || got.Rate <= 0 {
		_ = out.Close()
		return nil, fmt.Errorf("%w: output negotiated %d Hz, %d channels", ErrInvalidConfig, got.Rate, got.Channels)
	}
	p.format = got
	p.out = out

	p.log.Infof("Player %s: %d Hz, %d channels, %d blocks of latency",
		name, got.Rate, got.Channels, p.maxBlocks)
	return p, nil
}

func (p *Player) Name() string { return p.name }

// Rate is the sample rate sources must render at.
func (p *Player) Rate() int { return p.format.Rate }

// Channels is the channel count sources must render.
func (p *Player) Channels() int { return p.format.Channels }

// BufCaches returns the player's scratch buffers. See BufCaches for which
// role may use which cache.
func (p *Player) BufCaches() *BufCaches { return &p.caches }

// Log is the logger the player was configured with.
func (p *Player) Log() slog.Logger { return p.log }

// Add pre-buffers src with one synchronous Update and makes it audible from
// the next render iteration on. src must be a comparable type, usually a
// pointer, so Remove can find it again.
func (p *Player) Add(src Source) error {
	if !identifiable(src) {
		return ErrInvalidSource
	}
	if p.closed.Load() {
		return ErrClosed
	}

	p.updateMu.Lock()
	p.updateSource(src)
	p.updateMu.Unlock()

	n := &node{src: src}

	p.topoMu.Lock()
	defer p.topoMu.Unlock()
	if p.closed.Load() {
		return ErrClosed
	}
	n.next.Store(p.head.Load())
	p.head.Store(n)

	p.log.Debugf("Player %s: added %T", p.name, src)
	return nil
}

// Remove unlinks src and schedules its destruction once no render iteration
// can still observe it. It reports false when src is not playing.
func (p *Player) Remove(src Source) bool {
	if !identifiable(src) {
		return false
	}

	p.topoMu.Lock()
	defer p.topoMu.Unlock()

	var prev *node
	for n := p.head.Load(); n != nil; n = n.next.Load() {
		if n.src != src {
			prev = n
			continue
		}

		next := n.next.Load()
		if prev == nil {
			p.head.Store(next)
		} else {
			prev.next.Store(next)
		}
		// The stamp must be read after the unlink is published.
		p.retired.push(&retiree{node: n, stamp: p.gens.stamp()})

		p.log.Debugf("Player %s: removed %T", p.name, src)
		return true
	}

	return false
}

// SetEffect installs e as the master effect; nil disables it. The previous
// effect is closed by the update goroutine once the render thread is done
// with it. On a closed player e is closed right away.
func (p *Player) SetEffect(e Effect) {
	var box *effectBox
	if e != nil {
		box = &effectBox{eff: e}
	}

	p.topoMu.Lock()
	defer p.topoMu.Unlock()

	if p.closed.Load() {
		if e != nil {
			p.destroy(&retiree{eff: e})
		}
		return
	}

	old := p.effect.Swap(box)
	if old != nil {
		p.retired.push(&retiree{eff: old.eff, stamp: p.gens.stamp()})
	}
}

// Render mixes frames frames of all active sources into out and returns the
// number of frames written, which is less than frames only when out is too
// short. It is safe to call from a real-time thread but not concurrently with
// itself or after Close.
func (p *Player) Render(out []float32, frames int) int {
	ch := p.format.Channels
	frames = max(0, min(frames, len(out)/ch))
	buf := out[:frames*ch]

	// Tail of the block rendered for the previous call.
	if p.stageOff < len(p.stage) {
		n := copy(buf, p.stage[p.stageOff:])
		p.stageOff += n
		buf = buf[n:]
	}

	blockLen := BlockSize * ch
	for len(buf) >= blockLen {
		blocks := min(len(buf)/blockLen, p.maxBlocks)
		p.mix(buf[:blocks*blockLen], blocks)
		buf = buf[blocks*blockLen:]
	}

	if len(buf) > 0 {
		p.mix(p.stage, 1)
		p.stageOff = copy(buf, p.stage)
	}

	return frames
}

// mix runs one render iteration into dst.
func (p *Player) mix(dst []float32, blocks int) {
	p.gens.begin()

	box := p.effect.Load()
	acc := dst
	if box != nil {
		acc = p.caches.Render.Get(RenderMix, len(dst))
	}
	scratch := p.caches.Render.Get(RenderSource, len(dst))

	mixed := false
	for n := p.head.Load(); n != nil; n = n.next.Load() {
		if !p.renderSource(n, blocks, scratch) {
			continue
		}
		if mixed {
			utils.Add(acc, scratch)
		} else {
			copy(acc, scratch)
			mixed = true
		}
	}
	if !mixed {
		utils.Zero(acc)
	}

	if box != nil {
		p.applyEffect(box.eff, blocks*BlockSize, acc, dst)
	}

	p.gens.end()
}

func (p *Player) renderSource(n *node, blocks int, buf []float32) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.fault.record(r)
			p.renderFaults.Add(1)
			ok = false
		}
	}()

	n.src.Render(blocks, buf, false)
	return true
}

func (p *Player) applyEffect(e Effect, frames int, in, out []float32) {
	defer func() {
		if r := recover(); r != nil {
			p.effectFault.record(r)
			p.renderFaults.Add(1)
			copy(out, in)
		}
	}()

	e.Apply(p.format.Rate, p.format.Channels, frames, in, out)
}

// Start starts the output device, if any, and the update goroutine. The
// goroutine stops when ctx is done or the player is closed.
func (p *Player) Start(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	p.outMu.Lock()
	if p.out != nil {
		if err := p.out.Start(); err != nil {
			p.outMu.Unlock()
			return fmt.Errorf("player %s: starting output: %w", p.name, err)
		}
	}
	p.outMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.run(ctx) })

	p.cancel = cancel
	p.group = g
	return nil
}

func (p *Player) run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Update()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Update runs one pass of the update role: Update on every active source,
// fault reports, destruction of retired entries no render iteration can
// observe anymore, and recovery of a failed output device. Start calls it
// periodically; a headless player may be driven by calling it directly.
func (p *Player) Update() {
	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	for n := p.head.Load(); n != nil; n = n.next.Load() {
		p.updateSource(n.src)
		if v, ok := n.fault.take(); ok {
			p.log.Errorf("Player %s: %T panicked while rendering: %v", p.name, n.src, v)
		}
	}
	if v, ok := p.effectFault.take(); ok {
		p.log.Errorf("Player %s: effect panicked: %v", p.name, v)
	}

	p.sweep()
	p.recoverOutput()
}

func (p *Player) updateSource(src Source) {
	defer func() {
		if r := recover(); r != nil {
			p.updateFaults.Add(1)
			p.log.Errorf("Player %s: %T panicked while updating: %v", p.name, src, r)
		}
	}()

	src.Update()
}

// sweep destroys retired entries whose stamp is no longer in flight. Must be
// called with updateMu held.
func (p *Player) sweep() {
	for r := p.retired.drain(); r != nil; {
		next := r.next
		r.next = nil
		p.pending = append(p.pending, r)
		r = next
	}

	keep := p.pending[:0]
	for _, r := range p.pending {
		if !p.gens.safe(r.stamp) {
			keep = append(keep, r)
			continue
		}
		p.destroy(r)
	}
	clear(p.pending[len(keep):])
	p.pending = keep
	p.pendingCount.Store(int64(len(keep)))
}

func (p *Player) destroy(r *retiree) {
	if r.node != nil {
		if v, ok := r.node.fault.take(); ok {
			p.log.Errorf("Player %s: %T panicked while rendering: %v", p.name, r.node.src, v)
		}
	}

	if err := r.destroy(); err != nil {
		p.log.Warnf("Player %s: closing retired entry: %v", p.name, err)
	}
}

// outputFault is handed to the output device.
func (p *Player) outputFault(err error) {
	if err == nil {
		err = errors.New("output stopped")
	}
	p.lastFault.Store(&err)
	p.errored.Store(true)
}

// recoverOutput reopens the output device after a fault. A failed attempt is
// retried on the next update.
func (p *Player) recoverOutput() {
	if !p.errored.Load() || p.opener == nil {
		return
	}

	p.outMu.Lock()
	defer p.outMu.Unlock()

	if p.closed.Load() {
		return
	}
	if errp := p.lastFault.Load(); errp != nil {
		p.log.Warnf("Player %s: output fault: %v", p.name, *errp)
	}

	if p.out != nil {
		if err := p.out.Close(); err != nil {
			p.log.Debugf("Player %s: closing failed output: %v", p.name, err)
		}
		p.out = nil
	}

	out, err := p.opener(p.name, p.format, p.Render, p.outputFault, p.log)
	if err != nil {
		p.log.Warnf("Player %s: reopening output: %v", p.name, err)
		return
	}
	if err := out.Start(); err != nil {
		_ = out.Close()
		p.log.Warnf("Player %s: restarting output: %v", p.name, err)
		return
	}

	p.out = out
	p.errored.Store(false)
	p.reinits.Add(1)

	changed := out.Format() != p.format
	p.log.Infof("Player %s: output reopened (format changed: %v)", p.name, changed)
	if p.onReinit != nil {
		p.onReinit(changed)
	}
}

// Close stops the update goroutine and the output device, then destroys every
// source and effect. A headless caller must stop calling Render first.
func (p *Player) Close() error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if p.cancel != nil {
		p.cancel()
		errs = append(errs, p.group.Wait())
	}

	p.outMu.Lock()
	if p.out != nil {
		errs = append(errs, p.out.Close())
		p.out = nil
	}
	p.outMu.Unlock()

	p.topoMu.Lock()
	for n := p.head.Load(); n != nil; n = n.next.Load() {
		p.retired.push(&retiree{node: n})
	}
	p.head.Store(nil)
	if box := p.effect.Swap(nil); box != nil {
		p.retired.push(&retiree{eff: box.eff})
	}
	p.topoMu.Unlock()

	p.updateMu.Lock()
	p.sweep()
	p.updateMu.Unlock()

	p.log.Debugf("Player %s: closed", p.name)
	return errors.Join(errs...)
}

// identifiable reports whether src can be matched by Remove. Sources are found
// by interface equality, which panics on uncomparable dynamic types.
func identifiable(src Source) bool {
	return src != nil && reflect.TypeOf(src).Comparable()
}

// Stats returns a snapshot of the player's counters.
func (p *Player) Stats() Stats {
	p.topoMu.Lock()
	sources := 0
	for n := p.head.Load(); n != nil; n = n.next.Load() {
		sources++
	}
	p.topoMu.Unlock()

	return Stats{
		Sources:      sources,
		Pending:      int(p.pendingCount.Load()),
		Iterations:   p.gens.counter.Load(),
		RenderFaults: p.renderFaults.Load(),
		UpdateFaults: p.updateFaults.Load(),
		Reinits:      p.reinits.Load(),
	}
}
