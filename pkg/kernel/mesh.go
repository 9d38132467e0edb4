package kernel

import "fmt"

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// colors has 3 floats per vertex (r,g,b) when present, indices has 3
// uint32s per triangle. Normals are optional.
type Mesh struct {
	Vertices []float32 `json:"vertices"`         // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`          // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`          // [i0,i1,i2, ...] triangles
	Colors   []float32 `json:"colors,omitempty"` // [r0,g0,b0, ...]
	PartName string    `json:"partName"`         // which recipe step produced it
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return m == nil || (len(m.Vertices) == 0 && len(m.Indices) == 0)
}

// Position returns vertex i.
func (m *Mesh) Position(i int) [3]float32 {
	return [3]float32{m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]}
}

// SetColors attaches one rgb triple per vertex.
func (m *Mesh) SetColors(colors []float32) error {
	if len(colors) != len(m.Vertices) {
		return fmt.Errorf("mesh colors: got %d values for %d vertices", len(colors), m.VertexCount())
	}
	m.Colors = colors
	return nil
}

// HasColors reports whether every vertex carries a color.
func (m *Mesh) HasColors() bool {
	return len(m.Colors) > 0 && len(m.Colors) == len(m.Vertices)
}

// MergeMeshes concatenates meshes into one, offsetting indices. Colors
// are kept only if any input has them; inputs without colors are filled
// with white. Normals are kept only if every non-empty input has them.
// Nil and empty meshes are skipped. The result takes the first non-empty
// part name.
func MergeMeshes(meshes ...*Mesh) *Mesh {
	out := &Mesh{}
	anyColors, allNormals := false, true
	for _, m := range meshes {
		if m.IsEmpty() {
			continue
		}
		if m.HasColors() {
			anyColors = true
		}
		if len(m.Normals) != len(m.Vertices) {
			allNormals = false
		}
	}
	for _, m := range meshes {
		if m.IsEmpty() {
			continue
		}
		if out.PartName == "" {
			out.PartName = m.PartName
		}
		base := uint32(out.VertexCount())
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, idx := range m.Indices {
			out.Indices = append(out.Indices, base+idx)
		}
		if allNormals {
			out.Normals = append(out.Normals, m.Normals...)
		}
		if anyColors {
			if m.HasColors() {
				out.Colors = append(out.Colors, m.Colors...)
			} else {
				for range m.VertexCount() {
					out.Colors = append(out.Colors, 1, 1, 1)
				}
			}
		}
	}
	if !allNormals || len(out.Normals) == 0 {
		out.Normals = nil
	}
	return out
}
