// SPDX-License-Identifier: EPL-2.0

// Package audmix ties the mixer packages together for the common cases.
//
// The mixing core lives in package player. This package adds a decoder
// registry with every bundled format, a helper that opens a file as a
// streamed player source, and an offline bounce that renders a mix into a
// 16-bit WAV file without touching an audio device.
//
// # Supported Formats
//
//   - WAV (PCM 8/16/24/32-bit) via formats/wav
//   - MP3 via formats/mp3
//   - Ogg Vorbis via formats/vorbis
//   - AIFF via formats/aiff
//   - Opus packets via formats/opus (no container, so not in the registry)
//
// # Quick Start
//
//	p, _ := player.New("main", player.Config{Output: output.Opener})
//	defer p.Close()
//	_ = p.Start(ctx)
//
//	s, _ := audmix.Play(p, audmix.DefaultRegistry(), "music.ogg")
//	for !s.Finished() {
//		time.Sleep(100 * time.Millisecond)
//	}
//
// Rendering a mix to disk:
//
//	f, _ := os.Create("mix.wav")
//	defer f.Close()
//	src, _ := audmix.DefaultRegistry().Open("voice.mp3")
//	frames, err := audmix.Bounce(ctx, f, player.Config{Rate: 44100}, nil, src)
package audmix
