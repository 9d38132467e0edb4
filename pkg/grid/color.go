package grid

import "github.com/chazu/splatmesh/pkg/parallel"

// minColorWeight is the accumulated weight below which a sample falls
// back to white.
const minColorWeight = 1e-6

// ColorGrid accumulates weighted colors alongside a scalar grid. Sum holds
// interleaved RGB per lattice point. Colors are normalized only when
// sampled.
type ColorGrid struct {
	Sum    []float32
	Weight []float32
}

// NewColorGrid allocates an empty color grid for n lattice points.
func NewColorGrid(n int) *ColorGrid {
	return &ColorGrid{
		Sum:    make([]float32, 3*n),
		Weight: make([]float32, n),
	}
}

// Len returns the number of lattice points.
func (c *ColorGrid) Len() int {
	return len(c.Weight)
}

// Add accumulates weight*color and weight at idx.
func (c *ColorGrid) Add(idx int, weight float32, color [3]float32) {
	c.Sum[3*idx] += color[0] * weight
	c.Sum[3*idx+1] += color[1] * weight
	c.Sum[3*idx+2] += color[2] * weight
	c.Weight[idx] += weight
}

// AddRange adds o into c for lattice points [lo, hi).
func (c *ColorGrid) AddRange(o *ColorGrid, lo, hi int) {
	for i := lo; i < hi; i++ {
		c.Weight[i] += o.Weight[i]
	}
	for i := 3 * lo; i < 3*hi; i++ {
		c.Sum[i] += o.Sum[i]
	}
}

// Blur smooths both channels with the same separable filter as the scalar
// grid. Neither channel is rescaled.
func (c *ColorGrid) Blur(s Spec, iterations, workers int) {
	if iterations <= 0 || c.Len() == 0 {
		return
	}
	blurRaw(c.Sum, s, iterations, 3, workers)
	blurRaw(c.Weight, s, iterations, 1, workers)
}

// Sample returns the normalized color at world position p, clamping p
// into the lattice. Points with negligible weight are white.
func (c *ColorGrid) Sample(s Spec, p [3]float32) [3]float32 {
	idx, t, ok := s.cell(p, true)
	if !ok {
		return [3]float32{1, 1, 1}
	}
	var w [8]float32
	for i, j := range idx {
		w[i] = c.Weight[j]
	}
	weight := trilerp(w, t)
	if !(weight > minColorWeight) {
		return [3]float32{1, 1, 1}
	}
	var out [3]float32
	for ch := 0; ch < 3; ch++ {
		var v [8]float32
		for i, j := range idx {
			v[i] = c.Sum[3*j+ch]
		}
		out[ch] = trilerp(v, t) / weight
	}
	return out
}

// Resample samples the color grid at every vertex of a flat xyz position
// slice and returns a flat rgb slice of the same length.
func (c *ColorGrid) Resample(s Spec, vertices []float32, workers int) []float32 {
	n := len(vertices) / 3
	colors := make([]float32, 3*n)
	parallel.For(n, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p := [3]float32{vertices[3*i], vertices[3*i+1], vertices[3*i+2]}
			col := c.Sample(s, p)
			copy(colors[3*i:3*i+3], col[:])
		}
	})
	return colors
}
