// SPDX-License-Identifier: EPL-2.0

// Command audmix plays audio files through the default output device, mixed
// together, or bounces the mix to a WAV file.
//
//	audmix [flags] file...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/audmix"
	"github.com/ik5/audmix/audio"
	"github.com/ik5/audmix/effect"
	"github.com/ik5/audmix/output"
	"github.com/ik5/audmix/player"
)

type options struct {
	rate      int
	channels  int
	latency   int
	gain      float64
	threshold float64
	logLevel  string
	bounce    string
	files     []string
}

func parseFlags() options {
	var o options
	flag.IntVar(&o.rate, "rate", 0, "mix rate in Hz (0 uses the device rate)")
	flag.IntVar(&o.channels, "channels", player.DefaultChannels, "output channels (1, 2, 6 or 8)")
	flag.IntVar(&o.latency, "latency", player.DefaultLatencyBlocks, "blocks rendered per device callback")
	flag.Float64Var(&o.gain, "gain", 0, "master gain in dB")
	flag.Float64Var(&o.threshold, "limit", effect.DefaultMasterParams.ThresholdDB, "limiter ceiling in dBFS")
	flag.StringVar(&o.logLevel, "loglevel", "info", "trace, debug, info, warn, error, critical or off")
	flag.StringVar(&o.bounce, "bounce", "", "render the mix to this WAV file instead of playing it")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	o.files = flag.Args()
	return o
}

func main() {
	o := parseFlags()
	if len(o.files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := slog.NewBackend(os.Stderr).Logger("MIXR")
	lvl, ok := slog.LevelFromString(o.logLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", o.logLevel)
		os.Exit(2)
	}
	log.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	if o.bounce != "" {
		err = bounce(ctx, o, log)
	} else {
		err = play(ctx, o, log)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Criticalf("%v", err)
		stop()
		os.Exit(1)
	}
}

func (o options) config(log slog.Logger) player.Config {
	return player.Config{
		Rate:          o.rate,
		Channels:      o.channels,
		LatencyBlocks: o.latency,
		Log:           log,
	}
}

func (o options) master() *effect.Master {
	return effect.NewMaster(effect.MasterParams{
		GainDB:      o.gain,
		ThresholdDB: o.threshold,
		ReleaseMs:   effect.DefaultMasterParams.ReleaseMs,
	})
}

func bounce(ctx context.Context, o options, log slog.Logger) error {
	reg := audmix.DefaultRegistry()

	srcs := make([]audio.Source, 0, len(o.files))
	for _, path := range o.files {
		src, err := reg.Open(path)
		if err != nil {
			for _, s := range srcs {
				_ = s.Close()
			}
			return err
		}
		log.Infof("Bouncing %s (%d Hz, %d channels)", path, src.SampleRate(), src.Channels())
		srcs = append(srcs, src)
	}

	f, err := os.Create(o.bounce)
	if err != nil {
		return fmt.Errorf("creating %s: %w", o.bounce, err)
	}

	cfg := o.config(log)
	if cfg.Rate == 0 {
		cfg.Rate = player.DefaultRate
	}
	frames, err := audmix.Bounce(ctx, f, cfg, o.master(), srcs...)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Infof("Wrote %d frames (%s) to %s", frames,
		time.Duration(frames)*time.Second/time.Duration(cfg.Rate), o.bounce)
	return nil
}

func play(ctx context.Context, o options, log slog.Logger) error {
	cfg := o.config(log)
	cfg.Output = output.Opener
	cfg.OnReinit = func(changed bool) {
		log.Warnf("Output device reopened (format changed: %v)", changed)
	}

	p, err := player.New("audmix", cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Errorf("Closing player: %v", err)
		}
	}()

	master := o.master()
	p.SetEffect(master)

	reg := audmix.DefaultRegistry()
	streams := make([]*player.Streamed, 0, len(o.files))
	for _, path := range o.files {
		s, err := audmix.Play(p, reg, path)
		if err != nil {
			return err
		}
		log.Infof("Playing %s", path)
		streams = append(streams, s)
	}

	if err := p.Start(ctx); err != nil {
		return err
	}
	log.Infof("Mixing %d stream(s) at %d Hz, %d channels", len(streams), p.Rate(), p.Channels())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return waitFinished(gctx, streams)
	})
	g.Go(func() error {
		report(gctx, p, master, streams, log)
		return nil
	})

	return g.Wait()
}

func waitFinished(ctx context.Context, streams []*player.Streamed) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		done := true
		for _, s := range streams {
			done = done && s.Finished()
		}
		if done {
			return nil
		}
	}
}

func report(ctx context.Context, p *player.Player, master *effect.Master, streams []*player.Streamed, log slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var underruns uint64
		for _, s := range streams {
			underruns += s.Underruns()
		}
		st := p.Stats()
		log.Debugf("sources=%d pending=%d iterations=%d underruns=%d faults=%d/%d reinits=%d gr=%.1fdB",
			st.Sources, st.Pending, st.Iterations, underruns, st.RenderFaults, st.UpdateFaults,
			st.Reinits, master.GainReductionDB())
	}
}
