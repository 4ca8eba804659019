// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// MaxChannels is the widest layout the remix tables know about.
const MaxChannels = 8

// Channel layouts used by the remix tables:
//
//	1: M
//	2: L R
//	6: L R C BL BR LFE
//	8: L R C BL BR LFE SL SR
//
// Center and rear channels are attenuated by 0.707 when folded into the front
// pair. LFE is dropped on downmix and silent on upmix.
const attenuation = 0.707

type remixPair struct {
	src, dst int
}

// frameFunc converts one frame. in is passed by value so it never escapes
// through the indirect call.
type frameFunc func(in [MaxChannels]float32, out []float32)

func fold6(in *[MaxChannels]float32) (l, r float32) {
	l = in[0] + attenuation*in[2] + attenuation*in[3]
	r = in[1] + attenuation*in[2] + attenuation*in[4]
	return l, r
}

func fold8(in *[MaxChannels]float32) (l, r float32) {
	l, r = fold6(in)
	return l + attenuation*in[6], r + attenuation*in[7]
}

var downmixers = map[remixPair]frameFunc{
	{2, 1}: func(in [MaxChannels]float32, out []float32) {
		out[0] = 0.5 * (in[0] + in[1])
	},
	{6, 1}: func(in [MaxChannels]float32, out []float32) {
		l, r := fold6(&in)
		out[0] = 0.5 * (l + r)
	},
	{6, 2}: func(in [MaxChannels]float32, out []float32) {
		out[0], out[1] = fold6(&in)
	},
	{8, 1}: func(in [MaxChannels]float32, out []float32) {
		l, r := fold8(&in)
		out[0] = 0.5 * (l + r)
	},
	{8, 2}: func(in [MaxChannels]float32, out []float32) {
		out[0], out[1] = fold8(&in)
	},
	{8, 6}: func(in [MaxChannels]float32, out []float32) {
		out[0], out[1], out[2] = in[0], in[1], in[2]
		out[3] = in[3] + attenuation*in[6]
		out[4] = in[4] + attenuation*in[7]
		out[5] = in[5]
	},
}

var upmixers = map[remixPair]frameFunc{
	{1, 2}: func(in [MaxChannels]float32, out []float32) {
		out[0], out[1] = in[0], in[0]
	},
	{1, 6}: func(in [MaxChannels]float32, out []float32) {
		x := in[0]
		out[0], out[1], out[2] = x, x, x+x
		out[3], out[4], out[5] = attenuation*x, attenuation*x, 0
	},
	{1, 8}: func(in [MaxChannels]float32, out []float32) {
		x := in[0]
		out[0], out[1], out[2] = x, x, x+x
		out[3], out[4], out[5] = attenuation*x, attenuation*x, 0
		out[6], out[7] = attenuation*x, attenuation*x
	},
	{2, 6}: func(in [MaxChannels]float32, out []float32) {
		l, r := in[0], in[1]
		out[0], out[1], out[2] = l, r, l+r
		out[3], out[4], out[5] = attenuation*l, attenuation*r, 0
	},
	{2, 8}: func(in [MaxChannels]float32, out []float32) {
		l, r := in[0], in[1]
		out[0], out[1], out[2] = l, r, l+r
		out[3], out[4], out[5] = attenuation*l, attenuation*r, 0
		out[6], out[7] = attenuation*l, attenuation*r
	},
	{6, 8}: func(in [MaxChannels]float32, out []float32) {
		copy(out[:6], in[:6])
		out[6], out[7] = in[3], in[4]
	},
}

// CanRemix reports whether converting srcCh to dstCh channels is supported.
func CanRemix(srcCh, dstCh int) bool {
	if srcCh == dstCh {
		return srcCh > 0
	}
	p := remixPair{srcCh, dstCh}
	if srcCh > dstCh {
		_, ok := downmixers[p]
		return ok
	}
	_, ok := upmixers[p]
	return ok
}

// Downmix converts the frames of src from srcCh to dstCh < srcCh channels
// and returns the number of frames converted. dst may be src itself.
func Downmix(dst, src []float32, srcCh, dstCh int) (int, error) {
	fn, ok := downmixers[remixPair{srcCh, dstCh}]
	if !ok {
		return 0, fmt.Errorf("%w: downmix %d -> %d", ErrUnsupportedRemix, srcCh, dstCh)
	}

	frames := len(src) / srcCh
	if len(dst) < frames*dstCh {
		return 0, ErrInvalidDstSize
	}

	// Forward order: dst frame f never reaches src frame f+1.
	var tmp [MaxChannels]float32
	for f := range frames {
		copy(tmp[:srcCh], src[f*srcCh:(f+1)*srcCh])
		fn(tmp, dst[f*dstCh:(f+1)*dstCh])
	}

	return frames, nil
}

// Upmix converts the frames of src from srcCh to dstCh > srcCh channels and
// returns the number of frames converted. dst may start at src's first
// sample; any other overlap is not supported.
func Upmix(dst, src []float32, srcCh, dstCh int) (int, error) {
	fn, ok := upmixers[remixPair{srcCh, dstCh}]
	if !ok {
		return 0, fmt.Errorf("%w: upmix %d -> %d", ErrUnsupportedRemix, srcCh, dstCh)
	}

	frames := len(src) / srcCh
	if len(dst) < frames*dstCh {
		return 0, ErrInvalidDstSize
	}

	// Backward order: dst frame f only overlaps src frames >= f.
	var tmp [MaxChannels]float32
	for f := frames - 1; f >= 0; f-- {
		copy(tmp[:srcCh], src[f*srcCh:(f+1)*srcCh])
		fn(tmp, dst[f*dstCh:(f+1)*dstCh])
	}

	return frames, nil
}

// Remix dispatches to Downmix or Upmix, or copies when the counts match.
func Remix(dst, src []float32, srcCh, dstCh int) (int, error) {
	switch {
	case srcCh <= 0 || dstCh <= 0:
		return 0, fmt.Errorf("%w: %d -> %d", ErrUnsupportedRemix, srcCh, dstCh)
	case srcCh > dstCh:
		return Downmix(dst, src, srcCh, dstCh)
	case srcCh < dstCh:
		return Upmix(dst, src, srcCh, dstCh)
	}

	frames := len(src) / srcCh
	if len(dst) < frames*dstCh {
		return 0, ErrInvalidDstSize
	}
	copy(dst, src[:frames*srcCh])
	return frames, nil
}
