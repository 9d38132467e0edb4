package grid

import (
	"github.com/chewxy/math32"

	"github.com/chazu/splatmesh/pkg/parallel"
)

// Sanitize replaces every non-finite value with a sentinel that sits
// unambiguously outside the iso surface: iso-1 when inside means greater,
// iso+1 otherwise.
func Sanitize(values []float32, iso float32, insideIsGreater bool, workers int) {
	outside := iso + 1
	if insideIsGreater {
		outside = iso - 1
	}
	parallel.For(len(values), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if !finite(values[i]) {
				values[i] = outside
			}
		}
	})
}

// Peak returns the largest finite value, or 0 when no value is positive.
func Peak(values []float32) float32 {
	var peak float32
	for _, v := range values {
		if finite(v) && v > peak {
			peak = v
		}
	}
	return peak
}

// Blur smooths a scalar grid with iterations of a separable 3-tap box
// filter and rescales the result so its peak matches the pre-blur peak.
func Blur(values []float32, s Spec, iterations, workers int) {
	if iterations <= 0 || len(values) == 0 {
		return
	}
	before := Peak(values)
	blurRaw(values, s, iterations, 1, workers)
	if before <= 0 {
		return
	}
	after := Peak(values)
	if after <= 0 {
		return
	}
	scale := before / after
	parallel.For(len(values), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			values[i] *= scale
		}
	})
}

// blurRaw applies the filter along x, then y, then z, each pass reading
// the fully written output of the previous one. values holds channels
// interleaved floats per lattice point.
func blurRaw(values []float32, s Spec, iterations, channels, workers int) {
	if iterations <= 0 || len(values) == 0 {
		return
	}
	temp := make([]float32, len(values))
	for range iterations {
		blurPass(values, temp, s, 0, channels, workers)
		blurPass(temp, values, s, 1, channels, workers)
		blurPass(values, temp, s, 2, channels, workers)
		copy(values, temp)
	}
}

const oneThird = float32(1.0 / 3.0)

// blurPass writes the 3-tap average of src along axis into dst. Samples
// past the lattice edge repeat the edge value.
func blurPass(src, dst []float32, s Spec, axis, channels, workers int) {
	strides := [3]int{1, s.Nx, s.Nx * s.Ny}
	stride := strides[axis]
	dim := s.Dims()[axis]
	parallel.For(s.Len(), workers, func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			ix, iy, iz := s.Coords(idx)
			c := [3]int{ix, iy, iz}[axis]
			prev, next := idx, idx
			if c > 0 {
				prev = idx - stride
			}
			if c+1 < dim {
				next = idx + stride
			}
			for ch := 0; ch < channels; ch++ {
				dst[idx*channels+ch] = (src[prev*channels+ch] + src[idx*channels+ch] + src[next*channels+ch]) * oneThird
			}
		}
	})
}

// Negated returns a copy of values with every sign flipped.
func Negated(values []float32) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = -v
	}
	return out
}

// IsFinite reports whether every value is finite.
func IsFinite(values []float32) bool {
	for _, v := range values {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}
