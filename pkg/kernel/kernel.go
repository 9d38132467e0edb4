// Package kernel defines the geometry values produced by conversion and
// the iso-surface extraction interface. Implementations (sdfx) provide
// marching cubes behind Extractor so the rest of the system never talks
// to a meshing library directly.
package kernel

import "github.com/chazu/splatmesh/pkg/grid"

// Extractor turns a scalar grid into a triangle mesh at an iso level.
type Extractor interface {
	// Extract polygonizes values laid out by spec at iso. When
	// insideIsGreater is true, points with values above iso are inside;
	// otherwise points below iso are inside. Grids with fewer than two
	// points on any axis produce an empty mesh and no error.
	Extract(values []float32, spec grid.Spec, iso float32, insideIsGreater bool) (*Mesh, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(values []float32, spec grid.Spec, iso float32, insideIsGreater bool) (*Mesh, error)

// Extract calls f.
func (f ExtractorFunc) Extract(values []float32, spec grid.Spec, iso float32, insideIsGreater bool) (*Mesh, error) {
	return f(values, spec, iso, insideIsGreater)
}
