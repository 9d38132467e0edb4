package kernel

import (
	"fmt"

	"github.com/chazu/splatmesh/pkg/grid"
)

// VolumeKind tells how a volume's values are interpreted.
type VolumeKind int

const (
	// VolumeSDF holds signed distances, negative inside.
	VolumeSDF VolumeKind = iota
	// VolumeDensity holds non-negative densities, larger inside.
	VolumeDensity
)

// String returns the lowercase kind name.
func (k VolumeKind) String() string {
	switch k {
	case VolumeSDF:
		return "sdf"
	case VolumeDensity:
		return "density"
	default:
		return fmt.Sprintf("VolumeKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k VolumeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const (
	// sdfOutside is returned when sampling an SDF volume off its lattice.
	sdfOutside = 1e6

	minVoxelSize = 1e-6
)

// Volume is a dense scalar field on a regular lattice.
type Volume struct {
	Kind      VolumeKind `json:"kind"`
	Origin    [3]float32 `json:"origin"`
	VoxelSize float32    `json:"voxelSize"`
	Dims      [3]int     `json:"dims"`
	Values    []float32  `json:"values"`
	Band      float32    `json:"band"` // SDF narrow-band half-width
}

// NewVolume builds a volume from a grid spec and its values.
func NewVolume(kind VolumeKind, spec grid.Spec, values []float32) *Volume {
	return &Volume{
		Kind:      kind,
		Origin:    spec.Min,
		VoxelSize: spec.Dx,
		Dims:      spec.Dims(),
		Values:    values,
		Band:      max(spec.Dx, minVoxelSize) * 2,
	}
}

// Len returns the number of lattice points.
func (v *Volume) Len() int {
	return len(v.Values)
}

// IsEmpty returns true if the volume holds no values.
func (v *Volume) IsEmpty() bool {
	return v == nil || len(v.Values) == 0
}

// Spec returns the lattice layout of the volume.
func (v *Volume) Spec() grid.Spec {
	return grid.Spec{
		Min: v.Origin,
		Dx:  max(v.VoxelSize, minVoxelSize),
		Nx:  v.Dims[0],
		Ny:  v.Dims[1],
		Nz:  v.Dims[2],
	}
}

// Outside returns the value reported for points off the lattice.
func (v *Volume) Outside() float32 {
	if v.Kind == VolumeSDF {
		return sdfOutside
	}
	return 0
}

// Sample returns the trilinearly interpolated value at world position p.
func (v *Volume) Sample(p [3]float32) float32 {
	if len(v.Values) == 0 {
		return v.Outside()
	}
	return grid.Trilinear(v.Values, v.Spec(), p, v.Outside())
}

// Validate checks that the value count matches the dimensions.
func (v *Volume) Validate() error {
	want := v.Dims[0] * v.Dims[1] * v.Dims[2]
	if v.Dims[0] < 0 || v.Dims[1] < 0 || v.Dims[2] < 0 || len(v.Values) != want {
		return fmt.Errorf("volume: %d values for dims %v", len(v.Values), v.Dims)
	}
	return nil
}
