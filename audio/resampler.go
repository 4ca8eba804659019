// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"github.com/ik5/audmix/utils"
)

// ResampleCount returns how many frames converting n frames from srcRate to
// dstRate produces: ceil(n * dstRate / srcRate).
func ResampleCount(srcRate, dstRate, n int) int {
	if n <= 0 {
		return 0
	}
	num := int64(n) * int64(dstRate)
	return int((num + int64(srcRate) - 1) / int64(srcRate))
}

// InvResampleCount returns the smallest number of source frames for which
// ResampleCount(srcRate, dstRate, frames) reaches m.
//
// When dstRate >= srcRate it is the exact inverse of ResampleCount. When
// downsampling several source counts map to the same output count, and the
// smallest of them is returned.
func InvResampleCount(srcRate, dstRate, m int) int {
	if m <= 0 {
		return 0
	}
	return int(int64(m-1)*int64(srcRate)/int64(dstRate)) + 1
}

// Resampler converts interleaved frames from one rate to another with cubic
// interpolation. It is push based and keeps its interpolation history between
// calls, so a stream can be fed in arbitrarily sized chunks.
//
// Positions are tracked as exact rationals (in units of 1/dstRate source
// frames), so a whole stream of n frames followed by Flush yields exactly
// ResampleCount(srcRate, dstRate, n) frames.
//
// A simple one-pole low-pass filter runs on the input when downsampling.
type Resampler struct {
	srcRate  int64
	dstRate  int64
	channels int

	// work holds the history frames still needed for interpolation followed
	// by input that has not been consumed yet.
	work []float32
	// pos is the position of the next output frame in work, scaled by dstRate.
	pos    int64
	primed bool

	useFilter   bool
	filterAlpha float32
	filterState []float32
}

// NewResampler creates a resampler for interleaved frames of channels
// samples. Both rates must be positive.
func NewResampler(srcRate, dstRate, channels int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, ErrInvalidRate
	}
	if channels <= 0 {
		return nil, ErrInvalidDstSize
	}

	useFilter := srcRate > dstRate
	var filterAlpha float32
	if useFilter {
		// Cutoff near the Nyquist frequency of the destination rate.
		filterAlpha = 0.5
	}

	return &Resampler{
		srcRate:     int64(srcRate),
		dstRate:     int64(dstRate),
		channels:    channels,
		work:        make([]float32, 0, 4096),
		useFilter:   useFilter,
		filterAlpha: filterAlpha,
		filterState: make([]float32, channels),
	}, nil
}

func (r *Resampler) SrcRate() int  { return int(r.srcRate) }
func (r *Resampler) DstRate() int  { return int(r.dstRate) }
func (r *Resampler) Channels() int { return r.channels }

// MaxOutput returns an upper bound, in frames, of what a Process call with
// inFrames input frames (or a Flush with inFrames == 0) can produce.
func (r *Resampler) MaxOutput(inFrames int) int {
	have := len(r.work)/r.channels + inFrames + 3
	return ResampleCount(int(r.srcRate), int(r.dstRate), have) + 1
}

// Process appends the frames of in to the stream and writes every output
// frame that can be interpolated so far into out. It returns the number of
// samples written. Output stops early if out is full; size out with
// MaxOutput to avoid that.
func (r *Resampler) Process(in, out []float32) (int, error) {
	if len(in)%r.channels != 0 || len(out)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if len(in) == 0 {
		return 0, nil
	}

	ch := r.channels
	if !r.primed {
		// Duplicate the first frame as the t-1 neighbour.
		r.work = append(r.work[:0], in[:ch]...)
		r.pos = r.dstRate
		r.primed = true
		if r.useFilter {
			copy(r.filterState, in[:ch])
		}
	}

	base := len(r.work)
	r.work = append(r.work, in...)
	if r.useFilter {
		r.lowPass(r.work[base:])
	}

	total := len(r.work) / ch
	return r.emit(out, total), nil
}

// Flush pads the stream end by repeating its last frame and writes the
// remaining output into out. The resampler is reset afterwards.
func (r *Resampler) Flush(out []float32) (int, error) {
	if len(out)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}
	if !r.primed {
		return 0, nil
	}

	ch := r.channels
	frames := len(r.work) / ch
	written := 0
	if frames > 0 {
		last := len(r.work) - ch
		for range 2 {
			r.work = append(r.work, r.work[last:last+ch]...)
		}
		written = r.emit(out, frames)
	}

	r.Reset()
	return written, nil
}

// Reset drops all history so the next Process starts a new stream.
func (r *Resampler) Reset() {
	r.work = r.work[:0]
	r.pos = 0
	r.primed = false
	clear(r.filterState)
}

// emit writes output frames whose interpolation window lies inside work and
// whose position is before end, then discards history no longer needed.
func (r *Resampler) emit(out []float32, end int) int {
	ch := r.channels
	frames := len(r.work) / ch
	maxOut := len(out) / ch

	written := 0
	for written < maxOut {
		i := int(r.pos / r.dstRate)
		if i+2 >= frames || i >= end {
			break
		}

		alpha := float32(r.pos%r.dstRate) / float32(r.dstRate)
		y0 := r.work[(i-1)*ch : i*ch]
		y1 := r.work[i*ch : (i+1)*ch]
		y2 := r.work[(i+1)*ch : (i+2)*ch]
		y3 := r.work[(i+2)*ch : (i+3)*ch]
		dst := out[written*ch : (written+1)*ch]
		for c := range ch {
			dst[c] = utils.CubicInterpolate(y0[c], y1[c], y2[c], y3[c], alpha)
		}

		written++
		r.pos += r.srcRate
	}

	// Keep frame i-1 for the next interpolation window.
	drop := min(int(r.pos/r.dstRate)-1, frames)
	if drop > 0 {
		n := copy(r.work, r.work[drop*ch:])
		r.work = r.work[:n]
		r.pos -= int64(drop) * r.dstRate
	}

	return written * ch
}

// lowPass runs y[n] = alpha*x[n] + (1-alpha)*y[n-1] per channel.
func (r *Resampler) lowPass(frames []float32) {
	ch := r.channels
	a := r.filterAlpha
	for f := 0; f+ch <= len(frames); f += ch {
		for c := range ch {
			v := a*frames[f+c] + (1-a)*r.filterState[c]
			frames[f+c] = v
			r.filterState[c] = v
		}
	}
}
