package convert

import (
	"errors"
	"fmt"
	"slices"

	"github.com/chewxy/math32"

	"github.com/chazu/splatmesh/pkg/grid"
	"github.com/chazu/splatmesh/pkg/kernel"
	"github.com/chazu/splatmesh/pkg/parallel"
)

// ErrNotSDF is returned where an SDF volume is required and another kind
// was supplied.
var ErrNotSDF = errors.New("expected an SDF volume")

// Tolerances for treating a volume's lattice as identical to a spec.
const (
	matchVoxelTol  = 1e-6
	matchOriginTol = 1e-4
)

// GridFromVolume returns the volume's values on target, or on the
// volume's own lattice when target is nil. Values are copied when the
// lattices match and trilinearly resampled otherwise; points off the
// volume take its outside value. SDF volumes give iso 0 with inside below
// it; density volumes give DefaultDensityIso with inside above it.
func GridFromVolume(vol *kernel.Volume, target *grid.Spec) (*Grid, error) {
	if vol == nil {
		return nil, errors.New("grid from volume: nil volume")
	}
	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("grid from volume: %w", err)
	}
	g := &Grid{Iso: 0, InsideIsGreater: false}
	if vol.Kind == kernel.VolumeDensity {
		g.Iso, g.InsideIsGreater = DefaultDensityIso, true
	}

	g.Spec = vol.Spec()
	if target != nil {
		g.Spec = *target
	}
	if g.Spec.IsEmpty() {
		return g, nil
	}
	if volumeMatches(vol, g.Spec) {
		g.Values = slices.Clone(vol.Values)
		return g, nil
	}

	spec := g.Spec
	values := make([]float32, spec.Len())
	parallel.For(len(values), 0, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			values[i] = vol.Sample(spec.Point(spec.Coords(i)))
		}
	})
	g.Values = values
	return g, nil
}

func volumeMatches(vol *kernel.Volume, s grid.Spec) bool {
	if vol.Dims != s.Dims() || math32.Abs(vol.VoxelSize-s.Dx) >= matchVoxelTol {
		return false
	}
	var d2 float32
	for a := 0; a < 3; a++ {
		d := vol.Origin[a] - s.Min[a]
		d2 += d * d
	}
	return math32.Sqrt(d2) < matchOriginTol
}

// ResampleVolume resamples vol onto a lattice with spacing voxelSize that
// covers the same bounds. The result keeps the volume's kind.
func ResampleVolume(vol *kernel.Volume, voxelSize float32, maxPoints uint64) (*kernel.Volume, error) {
	if vol.IsEmpty() {
		return vol, nil
	}
	src := vol.Spec()
	spec, err := grid.BuildSpec(src.Min, src.Max(), 0, grid.SpecParams{
		VoxelSize:   voxelSize,
		MaxVoxelDim: max(src.Nx, src.Ny, src.Nz, int(math32.Ceil(maxExtent(src)/max(voxelSize, minVoxelSize)))),
		MaxPoints:   maxPoints,
	})
	if err != nil {
		return nil, fmt.Errorf("resample volume: %w", err)
	}
	g, err := GridFromVolume(vol, &spec)
	if err != nil {
		return nil, err
	}
	return kernel.NewVolume(vol.Kind, g.Spec, g.Values), nil
}

func maxExtent(s grid.Spec) float32 {
	hi := s.Max()
	return max(hi[0]-s.Min[0], hi[1]-s.Min[1], hi[2]-s.Min[2])
}

// VolumeToMesh polygonizes a volume at iso. The volume is not modified;
// non-finite values are sanitized in a copy. Volumes with fewer than two
// points on any axis give an empty mesh.
func (c *Converter) VolumeToMesh(vol *kernel.Volume, iso float32, insideIsGreater bool) (*kernel.Mesh, error) {
	if vol == nil || vol.Dims[0] < 2 || vol.Dims[1] < 2 || vol.Dims[2] < 2 {
		return &kernel.Mesh{}, nil
	}
	g, err := GridFromVolume(vol, nil)
	if err != nil {
		return nil, err
	}
	g.Iso, g.InsideIsGreater = iso, insideIsGreater
	grid.Sanitize(g.Values, iso, insideIsGreater, 0)
	c.logger.Debug("volume to mesh", "kind", vol.Kind, "dims", vol.Dims, "iso", iso)
	return c.extract(g, 0)
}
