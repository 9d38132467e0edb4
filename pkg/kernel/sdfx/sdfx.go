// Package sdfx implements kernel.Extractor using the marching cubes
// renderer of the github.com/deadsy/sdfx SDF-based CAD library.
//
// sdfx renders signed distance functions rather than sampled grids. The
// grid is wrapped as an sdf.SDF3 living in lattice index space, with a
// bounding box shrunk by half a cell so that the renderer's padded
// sampling box lands exactly on the lattice. Every corner sdfx evaluates
// is a lattice point and every vertex is interpolated along a lattice
// edge. The resulting triangle soup is mapped to world space and welded
// into an indexed mesh.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/splatmesh/pkg/grid"
	"github.com/chazu/splatmesh/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var (
	_ kernel.Extractor = (*MarchingCubes)(nil)
	_ sdf.SDF3         = (*gridSDF)(nil)
)

const (
	// weldTolerance is the vertex merge distance as a fraction of the voxel size.
	weldTolerance = 1e-3

	// snapTolerance is how far, in lattice units, a sample may sit from a
	// lattice point and still read it directly.
	snapTolerance = 1e-6
)

// gridSDF wraps a prepared grid (negative inside) to implement sdf.SDF3.
// Coordinates are lattice indices multiplied by scale. scale is 1 except
// for single-cell grids, which are rendered as two half cells per axis.
type gridSDF struct {
	values []float32
	spec   grid.Spec
	scale  float64
	bb     sdf.Box3
}

func newGridSDF(values []float32, spec grid.Spec) *gridSDF {
	dims := spec.Dims()
	scale := 1.0
	if max(dims[0], dims[1], dims[2]) == 2 {
		scale = 2
	}
	// An axis with two points collapses to a zero-width box on the cell
	// center, which sdfx pads back out to the full cell.
	top := func(n int) float64 { return float64(n-1)*scale - 0.5 }
	lo := v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	hi := v3.Vec{X: top(dims[0]), Y: top(dims[1]), Z: top(dims[2])}
	return &gridSDF{
		values: values,
		spec:   spec,
		scale:  scale,
		bb:     sdf.Box3{Min: lo, Max: hi},
	}
}

// cells returns the sdfx cell count on the longest axis. With the shrunk
// bounding box this makes the sampling step exactly one lattice unit.
func (g *gridSDF) cells() int {
	size := g.bb.Size()
	return int(math.Round(size.MaxComponent()))
}

// Evaluate returns the field value at p. Points on the lattice read the
// grid directly and the half-cell midpoints of single-cell grids are
// interpolated. The sampling box never leaves the lattice, so clamping
// only absorbs rounding.
func (g *gridSDF) Evaluate(p v3.Vec) float64 {
	f := [3]float64{p.X / g.scale, p.Y / g.scale, p.Z / g.scale}
	dims := g.spec.Dims()
	var idx [3]int
	onLattice := true
	for a := 0; a < 3; a++ {
		r := math.Round(f[a])
		if math.Abs(f[a]-r) > snapTolerance || r < 0 || int(r) >= dims[a] {
			onLattice = false
			break
		}
		idx[a] = int(r)
	}
	if onLattice {
		return float64(g.values[g.spec.Index(idx[0], idx[1], idx[2])])
	}
	return float64(grid.TrilinearClamped(g.values, g.spec, g.world(p)))
}

// world maps a point from scaled index space to world space.
func (g *gridSDF) world(p v3.Vec) [3]float32 {
	dx := float64(g.spec.Dx) / g.scale
	return [3]float32{
		g.spec.Min[0] + float32(p.X*dx),
		g.spec.Min[1] + float32(p.Y*dx),
		g.spec.Min[2] + float32(p.Z*dx),
	}
}

// BoundingBox returns the shrunk lattice bounds in scaled index space.
func (g *gridSDF) BoundingBox() sdf.Box3 {
	return g.bb
}

// MarchingCubes extracts iso-surfaces with sdfx's uniform marching cubes.
type MarchingCubes struct{}

// New returns a new MarchingCubes extractor.
func New() *MarchingCubes {
	return &MarchingCubes{}
}

// Extract implements kernel.Extractor. Vertices are in world space and
// the mesh carries no normals. Surfaces that reach the lattice boundary
// are left open.
func (mc *MarchingCubes) Extract(values []float32, spec grid.Spec, iso float32, insideIsGreater bool) (mesh *kernel.Mesh, err error) {
	if spec.Nx < 2 || spec.Ny < 2 || spec.Nz < 2 {
		return &kernel.Mesh{}, nil
	}
	if len(values) != spec.Len() {
		return nil, fmt.Errorf("marching cubes: %d values for %v grid", len(values), spec.Dims())
	}

	prepared := make([]float32, len(values))
	for i, v := range values {
		if insideIsGreater {
			prepared[i] = iso - v
		} else {
			prepared[i] = v - iso
		}
	}

	defer func() {
		if r := recover(); r != nil {
			mesh, err = nil, fmt.Errorf("marching cubes: %v", r)
		}
	}()

	field := newGridSDF(prepared, spec)
	renderer := render.NewMarchingCubesUniform(field.cells())
	triangles := render.ToTriangles(field, renderer)

	w := newWelder(len(triangles), float64(spec.Dx)*weldTolerance)
	for _, tri := range triangles {
		w.add(field.world(tri[0]), field.world(tri[1]), field.world(tri[2]))
	}
	return w.mesh(), nil
}

// welder merges coincident triangle corners and drops triangles that
// collapse after merging.
type welder struct {
	eps      float64
	lookup   map[[3]int64]uint32
	vertices []float32
	indices  []uint32
}

func newWelder(triangles int, eps float64) *welder {
	return &welder{
		eps:      eps,
		lookup:   make(map[[3]int64]uint32, triangles),
		vertices: make([]float32, 0, triangles*3),
		indices:  make([]uint32, 0, triangles*3),
	}
}

func (w *welder) vertex(v [3]float32) uint32 {
	k := [3]int64{
		int64(math.Round(float64(v[0]) / w.eps)),
		int64(math.Round(float64(v[1]) / w.eps)),
		int64(math.Round(float64(v[2]) / w.eps)),
	}
	i, ok := w.lookup[k]
	if !ok {
		i = uint32(len(w.vertices) / 3)
		w.lookup[k] = i
		w.vertices = append(w.vertices, v[0], v[1], v[2])
	}
	return i
}

func (w *welder) add(a, b, c [3]float32) {
	ia, ib, ic := w.vertex(a), w.vertex(b), w.vertex(c)
	if ia == ib || ib == ic || ia == ic {
		return
	}
	w.indices = append(w.indices, ia, ib, ic)
}

func (w *welder) mesh() *kernel.Mesh {
	return &kernel.Mesh{
		Vertices: w.vertices,
		Indices:  w.indices,
	}
}
