// SPDX-License-Identifier: EPL-2.0

package player

// BlockSize is the number of frames in one render block. All internal
// buffer sizes are multiples of it.
const BlockSize = 1024

// Source is a sound producer mixed by a Player.
//
// A Source is created for one player and renders interleaved float32 frames
// at that player's rate and channel count. Implementations must be
// comparable (usually a pointer), since Remove finds them by identity.
//
// If a Source also implements io.Closer, Close is called exactly once, after
// the source has been removed and the render thread can no longer observe it.
type Source interface {
	// Render writes blocks*BlockSize frames into buf. With mix set the frames
	// are added to what buf already holds, otherwise they replace it.
	// Render runs on the real-time thread: it must not allocate, lock, block
	// or do I/O, and it must return in bounded time.
	Render(blocks int, buf []float32, mix bool)

	// Update prepares data for future Render calls. It runs on the update
	// goroutine and may allocate, block and decode. It is never called
	// concurrently with itself.
	Update()
}

// Effect post-processes the mixed output of a Player.
//
// If an Effect also implements io.Closer, Close is called once the effect has
// been replaced and the render thread can no longer observe it.
type Effect interface {
	// Apply processes frames interleaved frames from in into out. in and out
	// never alias. Apply runs on the real-time thread.
	Apply(rate, channels, frames int, in, out []float32)
}
