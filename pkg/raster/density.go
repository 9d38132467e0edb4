package raster

import (
	"github.com/chewxy/math32"

	"github.com/chazu/splatmesh/pkg/grid"
	"github.com/chazu/splatmesh/pkg/splat"
)

// Density accumulates alpha*exp(-0.5*m2) from every sample into a fresh
// grid. With withColor the same weights feed a color grid; otherwise the
// returned color grid is nil.
func Density(samples []splat.Sample, spec grid.Spec, opts Options, withColor bool) ([]float32, *grid.ColorGrid) {
	if spec.IsEmpty() {
		return nil, nil
	}
	values, colors := accumulate(samples, spec, opts.Workers, 0, withColor,
		func(s *splat.Sample, p *partial) {
			forEachCell(s, spec, opts.NSigma, opts.MaxM2, func(idx int, m2 float32) {
				w := s.Alpha * math32.Exp(-0.5*m2)
				p.values[idx] += w
				if p.color != nil {
					p.color.Add(idx, w, s.Color)
				}
			})
		},
		sumRange,
	)
	return values, colors
}
