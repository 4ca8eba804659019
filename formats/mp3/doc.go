// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III files using
// github.com/hajimehoshi/go-mp3.
//
// go-mp3 always produces 16-bit stereo, so every source reports two channels
// regardless of the file's own layout; mono files are duplicated by the
// library. Samples are converted to float32 in [-1, 1).
//
//	f, _ := os.Open("audio.mp3")
//	src, err := mp3.Decoder{}.Decode(f)
package mp3
