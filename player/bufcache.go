// SPDX-License-Identifier: EPL-2.0

package player

// Scratch buffer ids in BufCaches.Render.
const (
	RenderMix = iota
	RenderSource
	RenderStream
	// RenderUser is the first id free for custom sources.
	RenderUser
)

// Scratch buffer ids in BufCaches.Update.
const (
	UpdateDecode = iota
	UpdateResample
	// UpdateUser is the first id free for custom sources.
	UpdateUser
)

// BufCache is a set of reusable scratch buffers indexed by id.
//
// A BufCache is not safe for concurrent use. Each Player owns two of them,
// one per thread role, and a cache must only be used from its role.
type BufCache struct {
	bufs [][]float32
}

// Get returns scratch buffer id with length size. Its contents are
// unspecified. The buffer is only reallocated when it is too small, so after
// Reserve the call does not allocate.
func (c *BufCache) Get(id, size int) []float32 {
	c.ensure(id)
	if cap(c.bufs[id]) < size {
		c.bufs[id] = make([]float32, size)
	}
	return c.bufs[id][:size]
}

// Reserve makes sure buffer id can hold size samples.
func (c *BufCache) Reserve(id, size int) {
	_ = c.Get(id, size)
}

func (c *BufCache) ensure(id int) {
	if id < len(c.bufs) {
		return
	}
	grown := make([][]float32, id+1)
	copy(grown, c.bufs)
	c.bufs = grown
}

// BufCaches groups the scratch buffers of the two thread roles of a Player.
type BufCaches struct {
	// Render may only be used from Source.Render and Effect.Apply.
	Render BufCache
	// Update may only be used from Source.Update.
	Update BufCache
}
