// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"errors"
	"fmt"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/formats/aiff"
	"github.com/ik5/audmix/formats/mp3"
	"github.com/ik5/audmix/formats/vorbis"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/player"
)

// DefaultRegistry returns a registry holding every file decoder shipped with
// the module, keyed by file extension.
func DefaultRegistry() *audio.Registry {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("wave", wav.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg", vorbis.Decoder{})
	reg.Register("oga", vorbis.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	reg.Register("aif", aiff.Decoder{})
	return reg
}

// Play opens path with reg and adds it to p as a streamed source. The file
// is closed when the source is destroyed by the player.
func Play(p *player.Player, reg *audio.Registry, path string) (*player.Streamed, error) {
	src, err := reg.Open(path)
	if err != nil {
		return nil, err
	}
	return add(p, src)
}

// add wraps src in a Streamed and hands it to p. src is closed on failure.
func add(p *player.Player, src audio.Source) (*player.Streamed, error) {
	s, err := player.NewStreamed(p, src)
	if err != nil {
		return nil, errors.Join(err, src.Close())
	}
	if err := p.Add(s); err != nil {
		return nil, fmt.Errorf("adding stream: %w", errors.Join(err, s.Close()))
	}
	return s, nil
}
