package graph

import (
	"github.com/chazu/splatmesh/pkg/kernel"
	"github.com/chazu/splatmesh/pkg/splat"
)

// Geometry is the bundle passed between operators.
type Geometry struct {
	Splats  []*splat.Splats
	Meshes  []*kernel.Mesh
	Volumes []*kernel.Volume
}

// IsEmpty returns true if the bundle carries nothing.
func (g *Geometry) IsEmpty() bool {
	return g == nil || (len(g.Splats) == 0 && len(g.Meshes) == 0 && len(g.Volumes) == 0)
}

// MergedMesh merges all non-empty meshes, or returns nil if there are none.
func (g *Geometry) MergedMesh() *kernel.Mesh {
	if g == nil {
		return nil
	}
	m := kernel.MergeMeshes(g.Meshes...)
	if m.IsEmpty() {
		return nil
	}
	return m
}

// MergedSplats concatenates all splat collections, or returns nil if the
// bundle has no splats.
func (g *Geometry) MergedSplats() *splat.Splats {
	if g == nil || len(g.Splats) == 0 {
		return nil
	}
	if len(g.Splats) == 1 {
		return g.Splats[0]
	}
	out := splat.New(0)
	for _, s := range g.Splats {
		for i := 0; i < s.Len(); i++ {
			out.Append(s.At(i))
		}
	}
	return out
}
