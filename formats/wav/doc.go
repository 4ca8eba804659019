// SPDX-License-Identifier: EPL-2.0

// Package wav decodes and encodes WAV files on top of github.com/go-audio/wav.
//
// # Decoding
//
// Decoder accepts uncompressed PCM at 8 (unsigned), 16, 24 and 32 bits with
// any channel count and sample rate. Unknown chunks before the data chunk
// are skipped. Readers that cannot seek are buffered in memory first.
//
//	f, _ := os.Open("audio.wav")
//	src, err := wav.Decoder{}.Decode(f)
//	if err != nil {
//	    return err
//	}
//	n, err := src.ReadSamples(buf)
//
// # Encoding
//
// Writer streams float32 samples into a 16-bit PCM file, and WriteWAV16
// writes a whole buffer of int16 samples at once. Both need an
// io.WriteSeeker because the RIFF sizes are patched when the file is
// finalized.
//
//	f, _ := os.Create("out.wav")
//	w, _ := wav.NewWriter(f, 48000, 2)
//	_ = w.Write(samples)
//	_ = w.Close()
package wav
