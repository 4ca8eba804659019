// SPDX-License-Identifier: EPL-2.0

// Package effect provides master bus effects for a player.
package effect

import (
	"math"
	"sync/atomic"
)

// MasterParams configures a Master effect.
type MasterParams struct {
	// GainDB is applied before limiting.
	GainDB float64
	// ThresholdDB is the limiter ceiling, -24 to 0 dBFS.
	ThresholdDB float64
	// ReleaseMs is how fast gain reduction recovers, 1 to 5000 ms.
	ReleaseMs float64
}

// DefaultMasterParams leaves the signal untouched below -0.3 dBFS.
var DefaultMasterParams = MasterParams{ThresholdDB: -0.3, ReleaseMs: 50}

// Master is a gain stage followed by a peak limiter with instant attack.
// Gain may be changed from any goroutine while the effect is installed.
type Master struct {
	gain      atomic.Uint32
	threshold float32
	releaseMs float64

	// Envelope published for GainReductionDB.
	envBits atomic.Uint32

	// Render thread state.
	rate    int
	release float32
	env     float32
}

func NewMaster(p MasterParams) *Master {
	m := &Master{
		threshold: float32(dbToLinear(clamp(p.ThresholdDB, -24, 0))),
		releaseMs: clamp(p.ReleaseMs, 1, 5000),
		env:       1,
	}
	m.envBits.Store(math.Float32bits(1))
	m.SetGainDB(p.GainDB)
	return m
}

// SetGainDB changes the input gain.
func (m *Master) SetGainDB(db float64) {
	m.gain.Store(math.Float32bits(float32(dbToLinear(clamp(db, -96, 24)))))
}

// GainReductionDB reports the limiter reduction at the end of the last
// block, 0 when idle. It is safe to call from any goroutine.
func (m *Master) GainReductionDB() float64 {
	return -20 * math.Log10(float64(math.Float32frombits(m.envBits.Load())))
}

func (m *Master) Apply(rate, channels, frames int, in, out []float32) {
	if rate != m.rate {
		m.rate = rate
		m.release = float32(1 - math.Exp(-1000/(m.releaseMs*float64(rate))))
	}

	gain := math.Float32frombits(m.gain.Load())
	env := m.env
	for f := range frames {
		frame := in[f*channels : (f+1)*channels]

		var peak float32
		for _, s := range frame {
			peak = max(peak, abs32(s*gain))
		}

		target := float32(1)
		if peak > m.threshold {
			target = m.threshold / peak
		}
		if target < env {
			env = target
		} else {
			env += (target - env) * m.release
		}

		dst := out[f*channels : (f+1)*channels]
		for c, s := range frame {
			dst[c] = s * gain * env
		}
	}
	m.env = env
	m.envBits.Store(math.Float32bits(env))
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
