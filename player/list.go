// SPDX-License-Identifier: EPL-2.0

package player

import (
	"io"
	"sync/atomic"
)

// faultSlot carries one recovered panic value from the render thread to the
// update goroutine. value is only written while set is false and only read
// while it is true.
type faultSlot struct {
	set   atomic.Bool
	value any
}

func (f *faultSlot) record(v any) {
	if f.set.Load() {
		return
	}
	f.value = v
	f.set.Store(true)
}

func (f *faultSlot) take() (any, bool) {
	if !f.set.Load() {
		return nil, false
	}
	v := f.value
	f.value = nil
	f.set.Store(false)
	return v, true
}

// node is one entry of the active source list.
//
// next is the only field the render thread reads besides src. A removed node
// keeps its next pointer, so a render iteration standing on it can still walk
// to the rest of the list.
type node struct {
	src   Source
	next  atomic.Pointer[node]
	fault faultSlot
}

// effectBox lets the effect slot hold a nil effect in an atomic.Pointer.
type effectBox struct {
	eff Effect
}

// retiree is a removed node or a replaced effect waiting for the render
// iteration that may still see it to end.
type retiree struct {
	// stamp is the generation in flight right after the unlink, 0 if none.
	stamp uint64
	node  *node
	eff   Effect
	next  *retiree
}

// retireStack is a lock-free stack pushed by the caller role and drained by
// the update goroutine.
type retireStack struct {
	top atomic.Pointer[retiree]
}

func (s *retireStack) push(r *retiree) {
	for {
		top := s.top.Load()
		r.next = top
		if s.top.CompareAndSwap(top, r) {
			return
		}
	}
}

// drain removes and returns all entries.
func (s *retireStack) drain() *retiree {
	return s.top.Swap(nil)
}

// generations hands out render iteration numbers and publishes the one in
// flight. Numbers are never zero and only ever compared for equality, so
// wrapping is harmless.
type generations struct {
	counter  atomic.Uint64
	inflight atomic.Uint64
}

// begin opens a render iteration. It must be called before the list head is
// loaded.
func (g *generations) begin() uint64 {
	n := g.counter.Add(1)
	if n == 0 {
		n = g.counter.Add(1)
	}
	g.inflight.Store(n)
	return n
}

func (g *generations) end() {
	g.inflight.Store(0)
}

// stamp returns the generation to record on an entry that was just unlinked.
func (g *generations) stamp() uint64 {
	return g.inflight.Load()
}

// safe reports whether no render iteration can still observe an entry
// unlinked with the given stamp.
func (g *generations) safe(stamp uint64) bool {
	return stamp == 0 || g.inflight.Load() != stamp
}

// destroy releases what the entry owns.
func (r *retiree) destroy() error {
	var target any = r.eff
	if r.node != nil {
		target = r.node.src
	}
	if c, ok := target.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
