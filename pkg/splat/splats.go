// Package splat holds the Gaussian splat collection consumed by the
// converters and the analytic per-splat samples derived from it.
package splat

import "fmt"

// Splats is a collection of anisotropic Gaussians stored as parallel
// slices. Rotations are quaternions in (w, x, y, z) order, scales are the
// natural log of the per-axis standard deviation and opacity is a logit.
type Splats struct {
	Positions [][3]float32 `json:"positions"`
	Rotations [][4]float32 `json:"rotations"`
	Scales    [][3]float32 `json:"scales"`
	Opacity   []float32    `json:"opacity"`
	SH0       [][3]float32 `json:"sh0"`
}

// Splat is a single raw splat, used when building a collection
// incrementally.
type Splat struct {
	Position [3]float32
	Rotation [4]float32
	LogScale [3]float32
	Logit    float32
	Color    [3]float32
}

// New returns n splats at the origin with identity rotation, unit scale,
// zero logit and white color.
func New(n int) *Splats {
	s := &Splats{
		Positions: make([][3]float32, n),
		Rotations: make([][4]float32, n),
		Scales:    make([][3]float32, n),
		Opacity:   make([]float32, n),
		SH0:       make([][3]float32, n),
	}
	for i := range n {
		s.Rotations[i] = [4]float32{1, 0, 0, 0}
		s.SH0[i] = [3]float32{1, 1, 1}
	}
	return s
}

// Len returns the number of splats.
func (s *Splats) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Positions)
}

// IsEmpty returns true if the collection holds no splats.
func (s *Splats) IsEmpty() bool {
	return s.Len() == 0
}

// Append adds one splat to the end of the collection.
func (s *Splats) Append(sp Splat) {
	s.Positions = append(s.Positions, sp.Position)
	s.Rotations = append(s.Rotations, sp.Rotation)
	s.Scales = append(s.Scales, sp.LogScale)
	s.Opacity = append(s.Opacity, sp.Logit)
	s.SH0 = append(s.SH0, sp.Color)
}

// At returns the i-th splat.
func (s *Splats) At(i int) Splat {
	return Splat{
		Position: s.Positions[i],
		Rotation: s.Rotations[i],
		LogScale: s.Scales[i],
		Logit:    s.Opacity[i],
		Color:    s.SH0[i],
	}
}

// Validate checks that every attribute slice has one entry per position.
func (s *Splats) Validate() error {
	if s == nil {
		return nil
	}
	n := len(s.Positions)
	check := func(name string, got int) error {
		if got != n {
			return fmt.Errorf("splats: %s has %d entries, expected %d", name, got, n)
		}
		return nil
	}
	if err := check("rotations", len(s.Rotations)); err != nil {
		return err
	}
	if err := check("scales", len(s.Scales)); err != nil {
		return err
	}
	if err := check("opacity", len(s.Opacity)); err != nil {
		return err
	}
	return check("sh0", len(s.SH0))
}
