// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/internal/pcm"
)

// formatPCM is the WAVE_FORMAT_PCM tag.
const formatPCM = 1

type Decoder struct{}

// Decode parses the RIFF header of r and returns a source positioned at the
// first sample. go-audio needs to seek, so readers that cannot are buffered
// in memory first.
func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading wav data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}

	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavLayout, err)
	}
	if dec.WavAudioFormat != formatPCM {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedWavLayout, dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavChunks, err)
	}

	// 8-bit WAV is the only unsigned variant.
	bitDepth := int(dec.BitDepth)
	src, err := pcm.NewSource(dec, dec.Format(), bitDepth, bitDepth == 8)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	return src, nil
}
