// SPDX-License-Identifier: EPL-2.0

package utils

// Float32ToInt16 clamps x to [-1, 1] and scales it to 16-bit PCM.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	// 32767 keeps +1.0 from overflowing
	return int16(x * 32767.0)
}

// Zero clears buf.
func Zero(buf []float32) {
	clear(buf)
}

// Add accumulates src into dst. Only min(len(dst), len(src)) samples are touched.
func Add(dst, src []float32) {
	n := min(len(dst), len(src))
	dst = dst[:n]
	src = src[:n]
	for i := range dst {
		dst[i] += src[i]
	}
}

// AddScaled accumulates src*gain into dst.
func AddScaled(dst, src []float32, gain float32) {
	n := min(len(dst), len(src))
	dst = dst[:n]
	src = src[:n]
	for i := range dst {
		dst[i] += src[i] * gain
	}
}

// Scale multiplies every sample of buf by gain.
func Scale(buf []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i := range buf {
		buf[i] *= gain
	}
}

// Silent reports whether every sample of buf is within eps of zero.
func Silent(buf []float32, eps float32) bool {
	for _, s := range buf {
		if s > eps || s < -eps {
			return false
		}
	}
	return true
}
