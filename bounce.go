// SPDX-License-Identifier: EPL-2.0

package audmix

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/formats/wav"
	"github.com/ik5/audmix/player"
)

// ErrNoSources is returned by Bounce when it is given nothing to render.
var ErrNoSources = errors.New("audmix: no sources to bounce")

// Bounce mixes srcs through a headless player built from cfg and writes the
// result to ws as 16-bit PCM WAV. cfg.Output is ignored. The optional effect
// runs on the master bus. Rendering stops once every stream has played out or
// ctx is done; the number of frames written is returned either way.
//
// All srcs are closed before Bounce returns.
func Bounce(ctx context.Context, ws io.WriteSeeker, cfg player.Config, effect player.Effect, srcs ...audio.Source) (int, error) {
	if len(srcs) == 0 {
		return 0, ErrNoSources
	}

	cfg.Output = nil
	p, err := player.New("bounce", cfg)
	if err != nil {
		return 0, errors.Join(err, closeAll(srcs))
	}

	streams := make([]*player.Streamed, 0, len(srcs))
	for i, src := range srcs {
		s, err := add(p, src)
		if err != nil {
			return 0, errors.Join(err, closeAll(srcs[i+1:]), p.Close())
		}
		streams = append(streams, s)
	}
	if effect != nil {
		p.SetEffect(effect)
	}

	w, err := wav.NewWriter(ws, p.Rate(), p.Channels())
	if err != nil {
		return 0, errors.Join(err, p.Close())
	}

	frames, err := render(ctx, p, w, streams)
	return frames, errors.Join(err, w.Close(), p.Close())
}

func render(ctx context.Context, p *player.Player, w *wav.Writer, streams []*player.Streamed) (int, error) {
	buf := make([]float32, player.BlockSize*p.Channels())
	frames := 0

	for !allFinished(streams) {
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		p.Render(buf, player.BlockSize)
		if err := w.Write(buf); err != nil {
			return frames, fmt.Errorf("writing block: %w", err)
		}
		frames += player.BlockSize

		p.Update()
	}

	return frames, nil
}

func allFinished(streams []*player.Streamed) bool {
	for _, s := range streams {
		if !s.Finished() {
			return false
		}
	}
	return true
}

func closeAll(srcs []audio.Source) error {
	var errs []error
	for _, src := range srcs {
		errs = append(errs, src.Close())
	}
	return errors.Join(errs...)
}
