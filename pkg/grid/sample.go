package grid

import "github.com/chewxy/math32"

// cell locates the 8 lattice points around p. With clampToLattice the
// fractional coordinates are clamped into the lattice; otherwise ok is
// false for points outside it.
func (s Spec) cell(p [3]float32, clampToLattice bool) (idx [8]int, t [3]float32, ok bool) {
	if s.IsEmpty() {
		return idx, t, false
	}
	n := s.Dims()
	var i0, i1 [3]int
	for a := 0; a < 3; a++ {
		f := (p[a] - s.Min[a]) / s.Dx
		hi := float32(n[a] - 1)
		if clampToLattice {
			if !(f > 0) {
				f = 0
			}
			if f > hi {
				f = hi
			}
		} else if !(f >= 0) || f > hi {
			return idx, t, false
		}
		i0[a] = int(math32.Floor(f))
		i1[a] = i0[a] + 1
		if i1[a] > n[a]-1 {
			i1[a] = n[a] - 1
		}
		if i0[a] != i1[a] {
			t[a] = f - float32(i0[a])
		}
	}
	idx = [8]int{
		s.Index(i0[0], i0[1], i0[2]),
		s.Index(i1[0], i0[1], i0[2]),
		s.Index(i0[0], i1[1], i0[2]),
		s.Index(i1[0], i1[1], i0[2]),
		s.Index(i0[0], i0[1], i1[2]),
		s.Index(i1[0], i0[1], i1[2]),
		s.Index(i0[0], i1[1], i1[2]),
		s.Index(i1[0], i1[1], i1[2]),
	}
	return idx, t, true
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// trilerp interpolates the corner values c ordered 000,100,010,110,001,101,011,111.
func trilerp(c [8]float32, t [3]float32) float32 {
	c00 := lerp(c[0], c[1], t[0])
	c10 := lerp(c[2], c[3], t[0])
	c01 := lerp(c[4], c[5], t[0])
	c11 := lerp(c[6], c[7], t[0])
	c0 := lerp(c00, c10, t[1])
	c1 := lerp(c01, c11, t[1])
	return lerp(c0, c1, t[2])
}

// Trilinear samples values at world position p. Points outside the
// lattice return outside.
func Trilinear(values []float32, s Spec, p [3]float32, outside float32) float32 {
	idx, t, ok := s.cell(p, false)
	if !ok || len(values) < s.Len() {
		return outside
	}
	var c [8]float32
	for i, j := range idx {
		c[i] = values[j]
	}
	return trilerp(c, t)
}

// TrilinearClamped samples values at p with coordinates clamped into the
// lattice.
func TrilinearClamped(values []float32, s Spec, p [3]float32) float32 {
	idx, t, ok := s.cell(p, true)
	if !ok || len(values) < s.Len() {
		return 0
	}
	var c [8]float32
	for i, j := range idx {
		c[i] = values[j]
	}
	return trilerp(c, t)
}
