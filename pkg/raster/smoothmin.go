package raster

import (
	"github.com/chewxy/math32"

	"github.com/chazu/splatmesh/pkg/grid"
	"github.com/chazu/splatmesh/pkg/parallel"
	"github.com/chazu/splatmesh/pkg/splat"
)

// SmoothMin builds a signed-distance-like field from ellipsoid shells.
// Each in-support cell sees d = sqrt(m2) - ShellRadius. With SmoothK > 0
// the field is -k*ln(sum alpha*exp(-d/k)); cells with no contribution are
// +Inf. With SmoothK == 0 the field is the hard minimum of d.
//
// Colors, when requested, use the density weight alpha*exp(-0.5*m2).
func SmoothMin(samples []splat.Sample, spec grid.Spec, opts Options, withColor bool) ([]float32, *grid.ColorGrid) {
	if spec.IsEmpty() {
		return nil, nil
	}
	k := opts.SmoothK
	if !(k > 0) {
		k = 0
	}
	init := float32(0)
	merge := sumRange
	if k == 0 {
		init = math32.Inf(1)
		merge = minRange
	}
	values, colors := accumulate(samples, spec, opts.Workers, init, withColor,
		func(s *splat.Sample, p *partial) {
			forEachCell(s, spec, opts.NSigma, opts.MaxM2, func(idx int, m2 float32) {
				d := math32.Sqrt(m2) - opts.ShellRadius
				if k > 0 {
					arg := -d / k
					if arg > expClamp {
						arg = expClamp
					} else if arg < -expClamp {
						arg = -expClamp
					}
					p.values[idx] += s.Alpha * math32.Exp(arg)
				} else if d < p.values[idx] {
					p.values[idx] = d
				}
				if p.color != nil {
					p.color.Add(idx, s.Alpha*math32.Exp(-0.5*m2), s.Color)
				}
			})
		},
		merge,
	)
	if k > 0 {
		parallel.For(len(values), opts.Workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				if v := values[i]; v > 0 {
					values[i] = -k * math32.Log(v)
				} else {
					values[i] = math32.Inf(1)
				}
			}
		})
	}
	return values, colors
}
