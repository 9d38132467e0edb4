// Package grid defines the dense regular lattice used by the splat
// converters: its spec, sanitizing and smoothing of scalar grids, the
// weighted color grid, and trilinear sampling.
package grid

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// DefaultMaxPoints is the default hard cap on lattice points.
const DefaultMaxPoints = 32_000_000

// minDx floors the voxel size to avoid division by zero.
const minDx = 1e-4

var (
	// ErrGridTooLarge matches every *SizeError.
	ErrGridTooLarge = errors.New("grid too large")

	// ErrDegenerateBounds is returned when the bounds have no finite extent.
	ErrDegenerateBounds = errors.New("degenerate grid bounds")
)

// SizeError reports a grid whose lattice would exceed the point cap.
type SizeError struct {
	Dims   [3]int
	Points uint64
	Limit  uint64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("grid too large (%dx%dx%d = %d points, limit %d): increase voxel size or lower voxel_size_max",
		e.Dims[0], e.Dims[1], e.Dims[2], e.Points, e.Limit)
}

// Is lets errors.Is match ErrGridTooLarge.
func (e *SizeError) Is(target error) bool {
	return target == ErrGridTooLarge
}

// Spec describes a regular lattice. Nx, Ny and Nz count lattice points,
// not cells.
type Spec struct {
	Min [3]float32 `json:"min"`
	Dx  float32    `json:"dx"`
	Nx  int        `json:"nx"`
	Ny  int        `json:"ny"`
	Nz  int        `json:"nz"`
}

// Len returns the number of lattice points.
func (s Spec) Len() int {
	return s.Nx * s.Ny * s.Nz
}

// IsEmpty returns true if the lattice has no points.
func (s Spec) IsEmpty() bool {
	return s.Nx <= 0 || s.Ny <= 0 || s.Nz <= 0
}

// Dims returns the lattice dimensions.
func (s Spec) Dims() [3]int {
	return [3]int{s.Nx, s.Ny, s.Nz}
}

// Index returns the flat index of a lattice point, x fastest.
func (s Spec) Index(ix, iy, iz int) int {
	return ix + s.Nx*(iy+s.Ny*iz)
}

// Coords inverts Index.
func (s Spec) Coords(idx int) (ix, iy, iz int) {
	slice := s.Nx * s.Ny
	iz = idx / slice
	rem := idx - iz*slice
	iy = rem / s.Nx
	ix = rem - iy*s.Nx
	return ix, iy, iz
}

// Point returns the world position of a lattice point.
func (s Spec) Point(ix, iy, iz int) [3]float32 {
	return [3]float32{
		s.Min[0] + float32(ix)*s.Dx,
		s.Min[1] + float32(iy)*s.Dx,
		s.Min[2] + float32(iz)*s.Dx,
	}
}

// Max returns the world position of the last lattice point.
func (s Spec) Max() [3]float32 {
	return s.Point(s.Nx-1, s.Ny-1, s.Nz-1)
}

// IndexRange converts the world box [lo, hi] into an inclusive index range
// clamped to the lattice.
func (s Spec) IndexRange(lo, hi [3]float32) (i0, i1 [3]int) {
	n := s.Dims()
	for a := 0; a < 3; a++ {
		i0[a] = toIndex(math32.Floor((lo[a]-s.Min[a])/s.Dx), n[a])
		i1[a] = toIndex(math32.Ceil((hi[a]-s.Min[a])/s.Dx), n[a])
	}
	return i0, i1
}

// SpecParams controls BuildSpec.
type SpecParams struct {
	VoxelSize   float32 // requested voxel size; raised to honor MaxVoxelDim
	Padding     float32 // in units of the largest splat sigma
	MaxVoxelDim int     // maximum cells along any axis
	MaxPoints   uint64  // hard cap on lattice points; 0 means DefaultMaxPoints
}

// BuildSpec computes the lattice covering [min, max] expanded by
// padding*maxSigma on every side. It fails with a *SizeError instead of
// truncating when the lattice would exceed MaxPoints.
func BuildSpec(min, max [3]float32, maxSigma float32, p SpecParams) (Spec, error) {
	pad := p.Padding * maxSigma
	maxDim := float32(p.MaxVoxelDim)
	if p.MaxVoxelDim < 1 {
		maxDim = 1
	}
	limit := p.MaxPoints
	if limit == 0 {
		limit = DefaultMaxPoints
	}

	var extent [3]float32
	dx := p.VoxelSize
	for a := 0; a < 3; a++ {
		min[a] -= pad
		max[a] += pad
		extent[a] = max[a] - min[a]
		if !finite(extent[a]) || !finite(min[a]) {
			return Spec{}, ErrDegenerateBounds
		}
		if extent[a] > 0 {
			dx = math32.Max(dx, extent[a]/maxDim)
		}
	}
	if math32.IsNaN(dx) || dx < minDx {
		dx = minDx
	}

	var n [3]int
	for a := 0; a < 3; a++ {
		c := math32.Ceil(extent[a] / dx)
		if c > float32(limit) {
			c = float32(limit)
		}
		cells := int(c)
		if cells < 1 {
			cells = 1
		}
		n[a] = cells + 1
	}
	total := uint64(n[0]) * uint64(n[1]) * uint64(n[2])
	if total > limit {
		return Spec{}, &SizeError{Dims: n, Points: total, Limit: limit}
	}
	return Spec{Min: min, Dx: dx, Nx: n[0], Ny: n[1], Nz: n[2]}, nil
}

// toIndex clamps a fractional lattice coordinate to [0, n-1] before the
// integer conversion so far-away values cannot overflow.
func toIndex(f float32, n int) int {
	if !(f > 0) {
		return 0
	}
	if f >= float32(n-1) {
		return n - 1
	}
	return int(f)
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
