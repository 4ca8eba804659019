// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF (Audio Interchange File Format) files using
// github.com/go-audio/aiff.
//
// Signed PCM at 8, 16, 24 and 32 bits is supported with any channel count
// and sample rate. Samples are returned as float32 in [-1, 1]. Readers that
// cannot seek are buffered in memory first.
//
//	f, _ := os.Open("audio.aif")
//	src, err := aiff.Decoder{}.Decode(f)
//	if errors.Is(err, aiff.ErrNotAiffFile) {
//	    // not AIFF
//	}
package aiff
