// Package raster splats Gaussian samples onto a dense grid, either as
// additive density or as a smooth minimum of ellipsoid shell distances.
//
// Splats are processed splat-major. Each worker owns a partial grid for a
// contiguous run of samples and the partials are merged elementwise, so no
// cell is ever written by two goroutines.
package raster

import (
	"github.com/chewxy/math32"

	"github.com/chazu/splatmesh/pkg/grid"
	"github.com/chazu/splatmesh/pkg/parallel"
	"github.com/chazu/splatmesh/pkg/splat"
)

const (
	// minSamplesPerWorker keeps tiny inputs on one partial grid.
	minSamplesPerWorker = 64

	// partialBudget caps the float32 values held across all partial grids.
	partialBudget = 64 << 20

	// expClamp bounds the smooth-min exponent.
	expClamp = 50
)

// Options controls both rasterizers.
type Options struct {
	NSigma      float32 // support radius in standard deviations
	MaxM2       float32 // clamp applied to m2 after the cutoff test
	SmoothK     float32 // smooth-min sharpness; 0 selects a hard minimum
	ShellRadius float32 // ellipsoid shell radius in Mahalanobis units
	Workers     int     // 0 means GOMAXPROCS
}

// visitFunc receives one in-support cell for a sample.
type visitFunc func(idx int, m2 float32)

// forEachCell calls visit for every lattice point within the sample's
// support whose m2 passes the hard cutoff. m2 is already clamped to maxM2.
func forEachCell(s *splat.Sample, spec grid.Spec, nSigma, maxM2 float32, visit visitFunc) {
	if !s.Valid() {
		return
	}
	cutoff := nSigma * nSigma
	r := nSigma * s.MaxSigma
	lo := [3]float32{s.Mu[0] - r, s.Mu[1] - r, s.Mu[2] - r}
	hi := [3]float32{s.Mu[0] + r, s.Mu[1] + r, s.Mu[2] + r}
	i0, i1 := spec.IndexRange(lo, hi)
	for iz := i0[2]; iz <= i1[2]; iz++ {
		for iy := i0[1]; iy <= i1[1]; iy++ {
			for ix := i0[0]; ix <= i1[0]; ix++ {
				m2 := s.M2(spec.Point(ix, iy, iz))
				if math32.IsNaN(m2) || math32.IsInf(m2, 0) || m2 > cutoff {
					continue
				}
				if m2 > maxM2 {
					m2 = maxM2
				}
				visit(spec.Index(ix, iy, iz), m2)
			}
		}
	}
}

// partial is one worker's private accumulation target.
type partial struct {
	values []float32
	color  *grid.ColorGrid
}

// workerCount decides how many partial grids to use.
func workerCount(requested, samples, cells int, withColor bool) int {
	w := parallel.Workers(requested)
	if bySamples := samples / minSamplesPerWorker; bySamples < w {
		w = bySamples
	}
	perGrid := cells
	if withColor {
		perGrid *= 5
	}
	if perGrid > 0 {
		if byMemory := partialBudget / perGrid; byMemory < w {
			w = byMemory
		}
	}
	if w < 1 {
		w = 1
	}
	return w
}

// accumulate runs fn over contiguous sample runs, one partial grid per
// run, and merges the partials into the first one with merge. Partial
// values start at init. The returned color grid is nil unless withColor.
func accumulate(
	samples []splat.Sample,
	spec grid.Spec,
	workers int,
	init float32,
	withColor bool,
	fn func(s *splat.Sample, p *partial),
	merge func(dst, src []float32, lo, hi int),
) ([]float32, *grid.ColorGrid) {
	n := spec.Len()
	chunks := parallel.Chunks(len(samples), workerCount(workers, len(samples), n, withColor))
	if len(chunks) == 0 {
		chunks = [][2]int{{0, 0}}
	}
	parts := make([]*partial, len(chunks))
	for i := range parts {
		p := &partial{values: make([]float32, n)}
		if init != 0 {
			for j := range p.values {
				p.values[j] = init
			}
		}
		if withColor {
			p.color = grid.NewColorGrid(n)
		}
		parts[i] = p
	}

	parallel.Tasks(len(chunks), func(c int) {
		p := parts[c]
		for i := chunks[c][0]; i < chunks[c][1]; i++ {
			fn(&samples[i], p)
		}
	})

	out := parts[0]
	if len(parts) > 1 {
		parallel.For(n, workers, func(lo, hi int) {
			for _, p := range parts[1:] {
				merge(out.values, p.values, lo, hi)
				if withColor {
					out.color.AddRange(p.color, lo, hi)
				}
			}
		})
	}
	return out.values, out.color
}

func sumRange(dst, src []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		dst[i] += src[i]
	}
}

func minRange(dst, src []float32, lo, hi int) {
	for i := lo; i < hi; i++ {
		if src[i] < dst[i] {
			dst[i] = src[i]
		}
	}
}
