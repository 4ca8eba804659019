// SPDX-License-Identifier: EPL-2.0

// Package audio provides the decoder contract and the sample processing
// primitives used by the mixer.
//
// This package contains:
//   - Source, the pull interface every decoder implements
//   - Registry, mapping file formats to decoders
//   - ResampleCount/InvResampleCount, frame bookkeeping between two rates
//   - Resampler, a stateful push-style cubic resampler
//   - Downmix/Upmix, fixed-coefficient channel conversion tables
//   - Remixer, ResampleSource and Convert for offline pull pipelines
//
// # Source Interface
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// ReadSamples returning 0 with io.EOF marks the end of the stream. Any other
// error is a decode error.
//
// # Resampling
//
// The Resampler keeps its interpolation history between calls, so a stream
// can be pushed through it in chunks of any size:
//
//	rs, _ := audio.NewResampler(44100, 48000, 2)
//	out := make([]float32, rs.MaxOutput(len(in)/2)*2)
//	n, _ := rs.Process(in, out)
//	// ... at the end of the stream
//	n, _ = rs.Flush(out)
//
// Over a whole stream of n frames it produces exactly
// ResampleCount(44100, 48000, n) frames. InvResampleCount goes the other
// way and tells how many source frames to decode to fill a buffer.
//
// # Channel Mixing
//
// Downmix and Upmix work on a closed set of layout pairs:
//
//	1 <-> 2, 1 -> 6, 1 -> 8, 2 <-> 6, 2 <-> 8, 6 <-> 8, 6 -> 1, 8 -> 1
//
// Center and rear channels are attenuated by 0.707 when folded into stereo,
// LFE is dropped on downmix and silent on upmix. Any other pair returns
// ErrUnsupportedRemix. Both functions are allocation free and work in place.
//
// # Sample Format
//
// Audio samples are interleaved float32 in the range [-1.0, 1.0].
package audio
