// Package mathutil holds the small numeric helpers shared by the control and
// simulation code.
package mathutil

import "golang.org/x/exp/constraints"

// Constrain clamps v to [lo, hi]. A NaN input is returned unchanged.
func Constrain[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Abs returns the absolute value of v.
func Abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// MinC returns a when a < b, otherwise b. Unlike the builtin min, a NaN in a
// yields b, so an undefined product such as 0*Inf saturates to the bound.
func MinC[T constraints.Float](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// MaxAbs returns the larger magnitude of a and b.
func MaxAbs[T constraints.Signed | constraints.Float](a, b T) T {
	a, b = Abs(a), Abs(b)
	if a > b {
		return a
	}
	return b
}

// MapRange linearly maps value from [fromMin, fromMax] onto [toMin, toMax].
func MapRange[T constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)/(fromMax-fromMin)*(toMax-toMin) + toMin
}
