// Package convert turns Gaussian splat collections into triangle meshes
// or signed distance volumes.
//
// A conversion builds analytic samples from the splats, lays a regular
// grid over their padded bounds, rasterizes either additive density or a
// smooth minimum of ellipsoid shells, cleans and optionally blurs the
// grid, and then either polygonizes it with a kernel.Extractor or hands
// it back as a volume.
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chazu/splatmesh/pkg/grid"
	"github.com/chazu/splatmesh/pkg/kernel"
	"github.com/chazu/splatmesh/pkg/kernel/sdfx"
	"github.com/chazu/splatmesh/pkg/raster"
	"github.com/chazu/splatmesh/pkg/splat"
)

// Converter runs conversions with a fixed extractor and logger. It holds
// no per-call state and is safe for concurrent use.
type Converter struct {
	extractor kernel.Extractor
	logger    *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Converter. A nil extractor selects sdfx marching cubes.
func New(extractor kernel.Extractor, opts ...Option) *Converter {
	if extractor == nil {
		extractor = sdfx.New()
	}
	c := &Converter{extractor: extractor, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Grid is a sanitized scalar grid ready for extraction.
type Grid struct {
	Values          []float32
	Colors          *grid.ColorGrid // nil unless color transfer was requested
	Spec            grid.Spec
	Iso             float32
	InsideIsGreater bool
}

// IsEmpty reports whether the grid has no lattice points.
func (g *Grid) IsEmpty() bool {
	return g == nil || g.Spec.IsEmpty() || len(g.Values) == 0
}

// Result holds the output of Convert. Exactly one field is set.
type Result struct {
	Mesh   *kernel.Mesh
	Volume *kernel.Volume
}

// BuildGrid rasterizes s into a grid for the given output. Volume output
// always uses the ellipsoid algorithm and never blurs or accumulates
// color. Empty input yields an empty grid and no error.
func (c *Converter) BuildGrid(s *splat.Splats, cfg Config, out Output) (*Grid, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()
	algorithm := cfg.Algorithm
	if out == OutputVolume {
		algorithm = AlgorithmEllipsoid
	}
	inside := algorithm == AlgorithmDensity
	g := &Grid{Iso: cfg.SurfaceIso, InsideIsGreater: inside}
	if inside {
		g.Iso = cfg.DensityIso
	}
	if s.IsEmpty() {
		return g, nil
	}

	start := time.Now()
	samples := splat.BuildSamples(s, cfg.Workers)
	bounds := splat.ComputeBounds(samples)
	if bounds.Count == 0 {
		c.logger.Debug("no splat has a finite center", "splats", len(samples))
		return g, nil
	}
	spec, err := grid.BuildSpec(bounds.Min, bounds.Max, bounds.MaxSigma, grid.SpecParams{
		VoxelSize:   cfg.VoxelSize,
		Padding:     cfg.BoundsPadding,
		MaxVoxelDim: cfg.VoxelSizeMax,
		MaxPoints:   cfg.MaxGridPoints,
	})
	if errors.Is(err, grid.ErrDegenerateBounds) {
		c.logger.Debug("splat bounds are not finite", "min", bounds.Min, "max", bounds.Max)
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("splat grid: %w", err)
	}
	if cfg.FlatKernel() {
		c.logger.Debug("max_m2 clamps inside the support radius",
			"max_m2", cfg.MaxM2, "n_sigma", cfg.NSigma)
	}

	opts := raster.Options{
		NSigma:      cfg.NSigma,
		MaxM2:       cfg.MaxM2,
		SmoothK:     cfg.SmoothK,
		ShellRadius: cfg.ShellRadius,
		Workers:     cfg.Workers,
	}
	withColor := out == OutputMesh && cfg.TransferColor
	var values []float32
	var colors *grid.ColorGrid
	if algorithm == AlgorithmEllipsoid {
		values, colors = raster.SmoothMin(samples, spec, opts, withColor)
	} else {
		values, colors = raster.Density(samples, spec, opts, withColor)
	}

	grid.Sanitize(values, g.Iso, inside, cfg.Workers)
	if out == OutputMesh && algorithm == AlgorithmDensity && cfg.BlurIters > 0 {
		grid.Blur(values, spec, cfg.BlurIters, cfg.Workers)
		if colors != nil {
			colors.Blur(spec, cfg.BlurIters, cfg.Workers)
		}
	}

	c.logger.Debug("rasterized splats",
		"algorithm", algorithm,
		"splats", len(samples),
		"dims", spec.Dims(),
		"dx", spec.Dx,
		"color", withColor,
		"elapsed", time.Since(start))

	g.Values, g.Colors, g.Spec = values, colors, spec
	return g, nil
}

// ToMesh converts s into a mesh. When color transfer is on, every vertex
// gets the resampled splat color.
func (c *Converter) ToMesh(s *splat.Splats, cfg Config) (*kernel.Mesh, error) {
	g, err := c.BuildGrid(s, cfg, OutputMesh)
	if err != nil {
		return nil, err
	}
	return c.extract(g, cfg.Workers)
}

// ToVolume converts s into an SDF volume, negative inside.
func (c *Converter) ToVolume(s *splat.Splats, cfg Config) (*kernel.Volume, error) {
	g, err := c.BuildGrid(s, cfg, OutputVolume)
	if err != nil {
		return nil, err
	}
	if g.IsEmpty() {
		return &kernel.Volume{Kind: kernel.VolumeSDF}, nil
	}
	return kernel.NewVolume(kernel.VolumeSDF, g.Spec, g.Values), nil
}

// Convert dispatches on cfg.Output.
func (c *Converter) Convert(s *splat.Splats, cfg Config) (*Result, error) {
	if cfg.Normalize().Output == OutputVolume {
		v, err := c.ToVolume(s, cfg)
		if err != nil {
			return nil, err
		}
		return &Result{Volume: v}, nil
	}
	m, err := c.ToMesh(s, cfg)
	if err != nil {
		return nil, err
	}
	return &Result{Mesh: m}, nil
}

// extract polygonizes g and attaches colors when g carries them.
func (c *Converter) extract(g *Grid, workers int) (*kernel.Mesh, error) {
	if g.IsEmpty() {
		return &kernel.Mesh{}, nil
	}
	start := time.Now()
	mesh, err := c.extractor.Extract(g.Values, g.Spec, g.Iso, g.InsideIsGreater)
	if err != nil {
		return nil, fmt.Errorf("extract surface: %w", err)
	}
	if mesh == nil {
		mesh = &kernel.Mesh{}
	}
	if g.Colors != nil && !mesh.IsEmpty() {
		if err := mesh.SetColors(g.Colors.Resample(g.Spec, mesh.Vertices, workers)); err != nil {
			return nil, err
		}
	}
	c.logger.Debug("extracted surface",
		"iso", g.Iso,
		"vertices", mesh.VertexCount(),
		"triangles", mesh.TriangleCount(),
		"elapsed", time.Since(start))
	return mesh, nil
}
