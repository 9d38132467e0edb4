package kernel

import (
	"testing"

	"github.com/chazu/splatmesh/pkg/grid"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := &Mesh{Vertices: []float32{1, 2, 3}}
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
	t.Run("nil mesh", func(t *testing.T) {
		var m *Mesh
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for nil mesh, want true")
		}
	})
}

// --- Merge ---

func triangle(offset float32) *Mesh {
	return &Mesh{
		Vertices: []float32{offset, 0, 0, offset + 1, 0, 0, offset, 1, 0},
		Indices:  []uint32{0, 1, 2},
	}
}

func TestMergeMeshesOffsetsIndices(t *testing.T) {
	a, b := triangle(0), triangle(5)
	a.PartName = "first"
	m := MergeMeshes(nil, a, &Mesh{}, b)
	if m.VertexCount() != 6 {
		t.Fatalf("VertexCount() = %d, want 6", m.VertexCount())
	}
	want := []uint32{0, 1, 2, 3, 4, 5}
	for i, idx := range m.Indices {
		if idx != want[i] {
			t.Fatalf("Indices[%d] = %d, want %d", i, idx, want[i])
		}
	}
	if m.PartName != "first" {
		t.Errorf("PartName = %q, want %q", m.PartName, "first")
	}
	if m.Colors != nil || m.Normals != nil {
		t.Error("merge of plain meshes should carry no colors or normals")
	}
}

func TestMergeMeshesFillsMissingColors(t *testing.T) {
	a, b := triangle(0), triangle(5)
	if err := a.SetColors([]float32{1, 0, 0, 1, 0, 0, 1, 0, 0}); err != nil {
		t.Fatalf("SetColors() error = %v", err)
	}
	m := MergeMeshes(a, b)
	if !m.HasColors() {
		t.Fatal("merged mesh lost its colors")
	}
	if got := m.Colors[9:12]; got[0] != 1 || got[1] != 1 || got[2] != 1 {
		t.Errorf("fill color = %v, want white", got)
	}
}

func TestSetColorsLengthMismatch(t *testing.T) {
	if err := triangle(0).SetColors([]float32{1, 1, 1}); err == nil {
		t.Fatal("SetColors() with short slice should fail")
	}
}

// --- Volume ---

func TestVolumeSample(t *testing.T) {
	spec := grid.Spec{Dx: 1, Nx: 2, Ny: 2, Nz: 2}
	values := []float32{0, 1, 0, 1, 0, 1, 0, 1} // value = x
	tests := []struct {
		name string
		kind VolumeKind
		p    [3]float32
		want float32
	}{
		{"interior sdf", VolumeSDF, [3]float32{0.25, 0.5, 0.5}, 0.25},
		{"outside sdf", VolumeSDF, [3]float32{2, 0, 0}, 1e6},
		{"outside density", VolumeDensity, [3]float32{-0.5, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVolume(tt.kind, spec, values)
			if got := v.Sample(tt.p); got != tt.want {
				t.Errorf("Sample(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestNewVolumeBand(t *testing.T) {
	v := NewVolume(VolumeSDF, grid.Spec{Dx: 0.25, Nx: 1, Ny: 1, Nz: 1}, []float32{0})
	if v.Band != 0.5 {
		t.Errorf("Band = %v, want 0.5", v.Band)
	}
	if err := v.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	v.Values = nil
	if err := v.Validate(); err == nil {
		t.Error("Validate() should reject a value count mismatch")
	}
}

func TestVolumeKindText(t *testing.T) {
	b, _ := VolumeDensity.MarshalText()
	if string(b) != "density" {
		t.Errorf("MarshalText() = %q, want density", b)
	}
}

func TestExtractorFunc(t *testing.T) {
	var called bool
	var e Extractor = ExtractorFunc(func([]float32, grid.Spec, float32, bool) (*Mesh, error) {
		called = true
		return &Mesh{}, nil
	})
	if _, err := e.Extract(nil, grid.Spec{}, 0, false); err != nil || !called {
		t.Fatalf("Extract() err = %v, called = %v", err, called)
	}
}
