package bulkconvert

import "math"

// Window holds VOI window parameters after any multi-valued fields have been
// resolved down to scalars. The window spans Center plus or minus
// floor(Width / 2).
type Window struct {
	Center float64
	Width  float64
}

// Bounds returns the low and high edges of the display range. Halving
// truncates toward negative infinity, so an odd width loses its half unit
// rather than rounding up.
func (w Window) Bounds() (lo, hi float64) {
	half := math.Floor(w.Width / 2)

	return w.Center - half, w.Center + half
}

// NormalizePixels maps raw sample values onto the full 8-bit display range.
// With a window, samples are clamped into the window's bounds before
// rescaling; without one, the samples' own minimum and maximum define the
// range. A degenerate range (hi <= lo, e.g. a constant image or a collapsed
// window) yields an all-zero output of the same length. The fractional part
// of each rescaled value is truncated, not rounded.
func NormalizePixels(samples []int, window *Window) []uint8 {
	out := make([]uint8, len(samples))
	if len(samples) == 0 {
		return out
	}

	var lo, hi float64
	if window != nil {
		lo, hi = window.Bounds()
	} else {
		lo = float64(samples[0])
		hi = float64(samples[0])
		for _, v := range samples[1:] {
			fv := float64(v)
			if fv < lo {
				lo = fv
			}
			if fv > hi {
				hi = fv
			}
		}
	}

	// NaN window parameters land here too, since the comparison is false.
	if !(hi > lo) {
		return out
	}

	for i, v := range samples {
		x := float64(v)
		if window != nil {
			if x > hi {
				x = hi
			}
			if x < lo {
				x = lo
			}
		}

		out[i] = uint8((x - lo) / (hi - lo) * 255.0)
	}

	return out
}
