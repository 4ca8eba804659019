// SPDX-License-Identifier: EPL-2.0

// Package player mixes a dynamic set of sources into one output stream in
// real time.
//
// A Player runs three roles. The render thread (normally the output device
// callback) calls Render, which walks a lock-free singly linked list of
// sources and only performs atomic loads, stores and adds. The update
// goroutine, started by Start, refills sources (decoding, resampling and
// remixing into ring buffers) and destroys removed ones. Application
// goroutines call Add, Remove and SetEffect, serialised by a mutex the render
// thread never touches.
//
// Removed sources are not destroyed immediately. Every render iteration
// publishes a non-zero generation number while it runs; Remove records the
// generation in flight right after unlinking the node, and the update
// goroutine only destroys the node once that generation is no longer in
// flight. Replaced effects go through the same path.
//
// Two sources are provided: Streamed plays any audio.Source through a ring
// buffer, and Sound plays a clip decoded into memory.
//
// Basic usage:
//
//	p, err := player.New("main", player.Config{Output: output.Opener})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	s, err := player.NewStreamed(p, dec)
//	if err != nil {
//	    return err
//	}
//	if err := p.Add(s); err != nil {
//	    return err
//	}
//	return p.Start(ctx)
package player
