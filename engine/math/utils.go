package math

import "golang.org/x/exp/constraints"

// Clamp limits v to [low, high] for any ordered type.
func Clamp[T constraints.Ordered](v, low, high T) T {
	v, _ = Clamped(v, low, high)
	return v
}

// Clamped is Clamp that also reports whether v was out of range.
func Clamped[T constraints.Ordered](v, low, high T) (T, bool) {
	switch {
	case v < low:
		return low, true
	case v > high:
		return high, true
	}
	return v, false
}
