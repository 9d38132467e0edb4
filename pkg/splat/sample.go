package splat

import (
	"github.com/chewxy/math32"

	"github.com/chazu/splatmesh/pkg/parallel"
)

const (
	// MinSigma floors every standard deviation so the metric stays invertible.
	MinSigma = 1e-5

	// maxLogScale keeps exp(logScale) finite in float32.
	maxLogScale = 20

	// logitClamp bounds the opacity logit before the sigmoid.
	logitClamp = 20

	// degenerateQuat is the squared length below which a rotation is
	// treated as identity.
	degenerateQuat = 1e-12

	// SHC0 is the zeroth-order spherical harmonic basis constant.
	SHC0 = 0.2820948
)

// Sample is the evaluatable form of one splat.
type Sample struct {
	Mu       [3]float32
	Rt       [3][3]float32 // world offset -> local frame
	Sigma    [3]float32
	Alpha    float32
	MaxSigma float32
	Color    [3]float32
}

// M2 returns the squared Mahalanobis distance of p from the splat center.
func (s *Sample) M2(p [3]float32) float32 {
	dx := p[0] - s.Mu[0]
	dy := p[1] - s.Mu[1]
	dz := p[2] - s.Mu[2]
	var m2 float32
	for r := 0; r < 3; r++ {
		u := s.Rt[r][0]*dx + s.Rt[r][1]*dy + s.Rt[r][2]*dz
		v := u / s.Sigma[r]
		m2 += v * v
	}
	return m2
}

// Valid reports whether the splat center is finite.
func (s *Sample) Valid() bool {
	return finite(s.Mu[0]) && finite(s.Mu[1]) && finite(s.Mu[2])
}

// BuildSamples converts every splat into a Sample. Defects are clamped to
// safe defaults; this never fails. workers <= 0 uses GOMAXPROCS.
func BuildSamples(s *Splats, workers int) []Sample {
	n := s.Len()
	if n == 0 {
		return nil
	}
	useSH := UsesSH(s)
	samples := make([]Sample, n)
	parallel.For(n, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			samples[i] = buildSample(s.At(i), useSH)
		}
	})
	return samples
}

// UsesSH reports whether the DC colors are SH-encoded, signaled by any
// finite negative channel anywhere in the set.
func UsesSH(s *Splats) bool {
	for _, c := range s.SH0 {
		for _, v := range c {
			if finite(v) && v < 0 {
				return true
			}
		}
	}
	return false
}

func buildSample(sp Splat, useSH bool) Sample {
	rt := rotationTranspose(sp.Rotation)

	var sigma [3]float32
	for a := 0; a < 3; a++ {
		ls := sp.LogScale[a]
		if !finite(ls) && !math32.IsInf(ls, 1) {
			sigma[a] = MinSigma
			continue
		}
		if ls > maxLogScale {
			ls = maxLogScale
		}
		sigma[a] = math32.Max(math32.Exp(ls), MinSigma)
	}
	maxSigma := math32.Max(sigma[0], math32.Max(sigma[1], sigma[2]))

	logit := sp.Logit
	if !finite(logit) {
		logit = 0
	}
	logit = clamp(logit, -logitClamp, logitClamp)
	alpha := 1 / (1 + math32.Exp(-logit))

	color := sp.Color
	if !finite(color[0]) || !finite(color[1]) || !finite(color[2]) {
		color = [3]float32{1, 1, 1}
	}
	if useSH {
		for c := range color {
			color[c] = color[c]*SHC0 + 0.5
		}
	}

	return Sample{
		Mu:       sp.Position,
		Rt:       rt,
		Sigma:    sigma,
		Alpha:    alpha,
		MaxSigma: maxSigma,
		Color:    color,
	}
}

// rotationTranspose builds R^T from a (w, x, y, z) quaternion.
func rotationTranspose(q [4]float32) [3][3]float32 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	l2 := w*w + x*x + y*y + z*z
	if !finite(l2) || l2 <= degenerateQuat {
		w, x, y, z = 1, 0, 0, 0
	} else {
		inv := 1 / math32.Sqrt(l2)
		w, x, y, z = w*inv, x*inv, y*inv, z*inv
	}
	r := [3][3]float32{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
	var rt [3][3]float32
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rt[i][j] = r[j][i]
		}
	}
	return rt
}

// Bounds is the axis-aligned box of the finite sample centers together
// with the largest MaxSigma among them.
type Bounds struct {
	Min, Max [3]float32
	MaxSigma float32
	Count    int // samples with a finite center
}

// ComputeBounds scans the samples. Count is zero when no center is finite.
func ComputeBounds(samples []Sample) Bounds {
	var b Bounds
	for i := range samples {
		s := &samples[i]
		if !s.Valid() {
			continue
		}
		if b.Count == 0 {
			b.Min, b.Max, b.MaxSigma = s.Mu, s.Mu, s.MaxSigma
			b.Count = 1
			continue
		}
		for a := 0; a < 3; a++ {
			b.Min[a] = math32.Min(b.Min[a], s.Mu[a])
			b.Max[a] = math32.Max(b.Max[a], s.Mu[a])
		}
		b.MaxSigma = math32.Max(b.MaxSigma, s.MaxSigma)
		b.Count++
	}
	return b
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
