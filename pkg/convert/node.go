package convert

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/splatmesh/pkg/graph"
	"github.com/chazu/splatmesh/pkg/kernel"
)

// Operator names.
const (
	SplatToMeshName  = "Splat to Mesh"
	VolumeToMeshName = "Volume to Mesh"
)

// ParamSpecs describes the Splat to Mesh parameters.
func ParamSpecs() []graph.ParamSpec {
	return []graph.ParamSpec{
		graph.IntEnum("output", "Output",
			graph.EnumOption{Value: int(OutputMesh), Label: "Mesh"},
			graph.EnumOption{Value: int(OutputVolume), Label: "SDF Volume"}).
			WithHelp("Output type (mesh or SDF volume)."),
		graph.IntEnum("algorithm", "Method",
			graph.EnumOption{Value: int(AlgorithmDensity), Label: "Density (Iso)"},
			graph.EnumOption{Value: int(AlgorithmEllipsoid), Label: "Ellipsoid (Smooth Min)"}).
			WithHelp("Conversion method.").
			VisibleWhenInt("output", int(OutputMesh)),
		graph.FloatSlider("voxel_size", "Voxel Size", 0, 10).
			WithHelp("Voxel size for density grid."),
		graph.IntSlider("voxel_size_max", "Max Voxel Dimension", 8, 2048).
			WithHelp("Max voxel dimension (safety clamp)."),
		graph.FloatSlider("n_sigma", "Support Sigma", 0, 6).
			WithHelp("Gaussian support radius in sigmas."),
		graph.FloatSlider("density_iso", "Density Threshold", 0, 10).
			WithHelp("Density threshold for marching cubes.").
			VisibleWhenInt("output", int(OutputMesh)).
			VisibleWhenInt("algorithm", int(AlgorithmDensity)),
		graph.FloatSlider("surface_iso", "Surface Threshold", -5, 5).
			WithHelp("Surface threshold for ellipsoid method.").
			VisibleWhenInt("output", int(OutputMesh)).
			VisibleWhenInt("algorithm", int(AlgorithmEllipsoid)),
		graph.FloatSlider("bounds_padding", "Bounds Padding (sigma)", 0, 10).
			WithHelp("Padding around bounds in sigmas."),
		graph.Toggle("transfer_color", "Transfer Color").
			WithHelp("Transfer splat color to mesh vertex colors.").
			VisibleWhenInt("output", int(OutputMesh)),
		graph.FloatSlider("max_m2", "Exponent Clamp", 0, 10).
			WithHelp("Exponent clamp for ellipsoid blend."),
		graph.FloatSlider("smooth_k", "Blend Sharpness", 0.001, 2).
			WithHelp("Smooth-min blend sharpness.").
			VisibleWhenInt("algorithm", int(AlgorithmEllipsoid)),
		graph.FloatSlider("shell_radius", "Shell Radius", 0.1, 4).
			WithHelp("Shell thickness for ellipsoid.").
			VisibleWhenInt("algorithm", int(AlgorithmEllipsoid)),
		graph.IntSlider("blur_iters", "Density Blur", 0, 6).
			WithHelp("Density blur iterations.").
			VisibleWhenInt("output", int(OutputMesh)).
			VisibleWhenInt("algorithm", int(AlgorithmDensity)),
	}
}

// DefaultParams returns the parameter values equivalent to DefaultConfig.
func DefaultParams() graph.Params {
	return ParamsFromConfig(DefaultConfig())
}

// ParamsFromConfig expresses cfg as operator parameters.
func ParamsFromConfig(cfg Config) graph.Params {
	return graph.Params{
		"output":         graph.Int(int(cfg.Output)),
		"algorithm":      graph.Int(int(cfg.Algorithm)),
		"voxel_size":     graph.Float(cfg.VoxelSize),
		"voxel_size_max": graph.Int(cfg.VoxelSizeMax),
		"n_sigma":        graph.Float(cfg.NSigma),
		"density_iso":    graph.Float(cfg.DensityIso),
		"surface_iso":    graph.Float(cfg.SurfaceIso),
		"bounds_padding": graph.Float(cfg.BoundsPadding),
		"transfer_color": graph.Bool(cfg.TransferColor),
		"max_m2":         graph.Float(cfg.MaxM2),
		"smooth_k":       graph.Float(cfg.SmoothK),
		"shell_radius":   graph.Float(cfg.ShellRadius),
		"blur_iters":     graph.Int(cfg.BlurIters),
	}
}

// ConfigFromParams overlays params onto base and normalizes the result.
// Enum values outside their range are clamped.
func ConfigFromParams(params graph.Params, base Config) Config {
	c := base
	c.Output = Output(clampInt(params.GetInt("output", int(base.Output)), 0, 1))
	c.Algorithm = Algorithm(clampInt(params.GetInt("algorithm", int(base.Algorithm)), 0, 1))
	c.VoxelSize = params.GetFloat("voxel_size", base.VoxelSize)
	c.VoxelSizeMax = params.GetInt("voxel_size_max", base.VoxelSizeMax)
	c.NSigma = params.GetFloat("n_sigma", base.NSigma)
	c.DensityIso = params.GetFloat("density_iso", base.DensityIso)
	c.SurfaceIso = params.GetFloat("surface_iso", base.SurfaceIso)
	c.BoundsPadding = params.GetFloat("bounds_padding", base.BoundsPadding)
	c.TransferColor = params.GetBool("transfer_color", base.TransferColor)
	c.MaxM2 = params.GetFloat("max_m2", base.MaxM2)
	c.SmoothK = params.GetFloat("smooth_k", base.SmoothK)
	c.ShellRadius = params.GetFloat("shell_radius", base.ShellRadius)
	c.BlurIters = params.GetInt("blur_iters", base.BlurIters)
	return c.Normalize()
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// checkParams joins blocking findings into one error and logs warnings.
func (c *Converter) checkParams(op string, specs []graph.ParamSpec, params graph.Params) error {
	errs, warnings := graph.Split(graph.ValidateParams(specs, params))
	for _, w := range warnings {
		c.logger.Warn("parameter warning", "operator", op, "param", w.Param, "message", w.Message)
	}
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return fmt.Errorf("%s: %w", op, errors.Join(joined...))
}

// ApplyToGeometry runs the Splat to Mesh operator. inputs[0] must carry
// splats. An optional inputs[1] must carry an SDF volume, which then
// replaces the splats as the surface source. Existing meshes on input 0
// are merged with the generated mesh; input volumes are kept and a
// generated volume is prepended. Splats are consumed.
func (c *Converter) ApplyToGeometry(params graph.Params, base Config, inputs []*graph.Geometry) (*graph.Geometry, error) {
	if len(inputs) == 0 || inputs[0] == nil {
		return &graph.Geometry{}, nil
	}
	if err := c.checkParams(SplatToMeshName, ParamSpecs(), params); err != nil {
		return nil, err
	}
	input := inputs[0]
	splats := input.MergedSplats()
	if splats == nil {
		return nil, fmt.Errorf("%s requires splat geometry on input 0", SplatToMeshName)
	}
	var external *kernel.Volume
	if len(inputs) > 1 && inputs[1] != nil {
		if len(inputs[1].Volumes) == 0 || inputs[1].Volumes[0] == nil {
			return nil, fmt.Errorf("%s SDF input requires a volume", SplatToMeshName)
		}
		external = inputs[1].Volumes[0]
		if external.Kind != kernel.VolumeSDF {
			return nil, fmt.Errorf("%s SDF input: %w", SplatToMeshName, ErrNotSDF)
		}
	}
	cfg := ConfigFromParams(params, base)

	out := &graph.Geometry{}
	if cfg.Output == OutputVolume {
		vol := external
		if vol == nil {
			v, err := c.ToVolume(splats, cfg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", SplatToMeshName, err)
			}
			vol = v
		}
		if existing := input.MergedMesh(); existing != nil {
			out.Meshes = append(out.Meshes, existing)
		}
		out.Volumes = append([]*kernel.Volume{vol}, input.Volumes...)
		return out, nil
	}

	var mesh *kernel.Mesh
	var err error
	if external != nil {
		mesh, err = c.VolumeToMesh(external, cfg.SurfaceIso, false)
	} else {
		mesh, err = c.ToMesh(splats, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SplatToMeshName, err)
	}
	out.Meshes = mergeExisting(input.MergedMesh(), mesh)
	out.Volumes = input.Volumes
	return out, nil
}

// mergeExisting combines an input mesh with a generated one, dropping
// whichever is empty.
func mergeExisting(existing, generated *kernel.Mesh) []*kernel.Mesh {
	switch {
	case existing != nil && generated.IsEmpty():
		return []*kernel.Mesh{existing}
	case existing != nil:
		return []*kernel.Mesh{kernel.MergeMeshes(existing, generated)}
	case !generated.IsEmpty():
		return []*kernel.Mesh{generated}
	default:
		return nil
	}
}

// VolumeParamSpecs describes the Volume to Mesh parameters.
func VolumeParamSpecs() []graph.ParamSpec {
	return []graph.ParamSpec{
		graph.Text("mode", "Mode").
			WithHelp("Volume interpretation: sdf or density."),
		graph.FloatSlider("density_iso", "Density Iso", 0, 1).
			WithHelp("Isovalue for density volumes."),
		graph.FloatSlider("surface_iso", "Surface Iso", -1, 1).
			WithHelp("Isovalue for SDF surfaces."),
		graph.FloatSlider("voxel_size", "Voxel Size", 0, 10).
			WithHelp("Resample the volume at this spacing first; 0 keeps its lattice."),
	}
}

// ApplyVolumeToMesh runs the Volume to Mesh operator on the first volume
// of inputs[0]. The volume is consumed and the mesh merged with any
// existing input mesh.
func (c *Converter) ApplyVolumeToMesh(params graph.Params, inputs []*graph.Geometry) (*graph.Geometry, error) {
	if len(inputs) == 0 || inputs[0] == nil {
		return &graph.Geometry{}, nil
	}
	if err := c.checkParams(VolumeToMeshName, VolumeParamSpecs(), params); err != nil {
		return nil, err
	}
	input := inputs[0]
	if len(input.Volumes) == 0 || input.Volumes[0] == nil {
		return nil, fmt.Errorf("%s requires a volume input", VolumeToMeshName)
	}
	vol := input.Volumes[0]

	density := !strings.Contains(strings.ToLower(params.GetString("mode", "sdf")), "sdf")
	iso := params.GetFloat("surface_iso", DefaultSurfaceIso)
	if density {
		iso = params.GetFloat("density_iso", DefaultDensityIso)
	}
	if size := params.GetFloat("voxel_size", 0); size > 0 {
		resampled, err := ResampleVolume(vol, size, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", VolumeToMeshName, err)
		}
		vol = resampled
	}
	mesh, err := c.VolumeToMesh(vol, iso, density)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VolumeToMeshName, err)
	}
	return &graph.Geometry{
		Splats:  input.Splats,
		Meshes:  mergeExisting(input.MergedMesh(), mesh),
		Volumes: input.Volumes[1:],
	}, nil
}
