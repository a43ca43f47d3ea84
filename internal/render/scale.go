package render

import "math"

// Layout defaults.
const (
	DefaultMaxDimension  = 800
	DefaultPaddingWidth  = 100
	DefaultPaddingHeight = 100 + 120 // frame plus caption band
)

// FitWithin scales (w, h) so neither side exceeds max, preserving aspect
// ratio. The larger side is pinned to max (width wins ties) and the other is
// floored. Images already within bounds are returned unchanged.
func FitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		return max, int(math.Floor(float64(h) * (float64(max) / float64(w))))
	}
	return int(math.Floor(float64(w) * (float64(max) / float64(h)))), max
}

// Viewport returns the browser viewport for an image of the given scaled size.
func Viewport(w, h, padW, padH int) (int, int) {
	return w + padW, h + padH
}
