package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/chazu/splatmesh/pkg/grid"
)

// Algorithm selects the rasterizer.
type Algorithm int

const (
	// AlgorithmDensity accumulates Gaussian density; inside is above the iso.
	AlgorithmDensity Algorithm = iota
	// AlgorithmEllipsoid blends ellipsoid shells with a smooth minimum;
	// inside is below the iso.
	AlgorithmEllipsoid
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmDensity:
		return "density"
	case AlgorithmEllipsoid:
		return "ellipsoid"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if a != AlgorithmDensity && a != AlgorithmEllipsoid {
		return nil, fmt.Errorf("invalid algorithm %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "density", "iso", "0":
		*a = AlgorithmDensity
	case "ellipsoid", "smooth-min", "smoothmin", "1":
		*a = AlgorithmEllipsoid
	default:
		return fmt.Errorf("unknown algorithm %q (want density or ellipsoid)", text)
	}
	return nil
}

// Output selects what a conversion produces.
type Output int

const (
	OutputMesh Output = iota
	OutputVolume
)

func (o Output) String() string {
	switch o {
	case OutputMesh:
		return "mesh"
	case OutputVolume:
		return "volume"
	default:
		return fmt.Sprintf("Output(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Output) MarshalText() ([]byte, error) {
	if o != OutputMesh && o != OutputVolume {
		return nil, fmt.Errorf("invalid output %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Output) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "mesh", "0":
		*o = OutputMesh
	case "volume", "sdf", "1":
		*o = OutputVolume
	default:
		return fmt.Errorf("unknown output %q (want mesh or volume)", text)
	}
	return nil
}

// Defaults.
const (
	DefaultVoxelSize     = 0.1
	DefaultVoxelSizeMax  = 256
	DefaultNSigma        = 3
	DefaultDensityIso    = 0.5
	DefaultSurfaceIso    = 0
	DefaultBoundsPadding = 3
	DefaultMaxM2         = 3
	DefaultSmoothK       = 0.1
	DefaultShellRadius   = 1
	DefaultBlurIters     = 1

	minVoxelSize   = 1e-4
	minNSigma      = 0.1
	maxMaxM2       = 10
	minShellRadius = 0.01
)

// Config holds every conversion parameter.
type Config struct {
	Output        Output    `toml:"output" yaml:"output"`
	Algorithm     Algorithm `toml:"algorithm" yaml:"algorithm"`
	VoxelSize     float32   `toml:"voxel_size" yaml:"voxel_size"`         // voxel size hint
	VoxelSizeMax  int       `toml:"voxel_size_max" yaml:"voxel_size_max"` // max cells along any axis
	NSigma        float32   `toml:"n_sigma" yaml:"n_sigma"`
	DensityIso    float32   `toml:"density_iso" yaml:"density_iso"`
	SurfaceIso    float32   `toml:"surface_iso" yaml:"surface_iso"`
	BoundsPadding float32   `toml:"bounds_padding" yaml:"bounds_padding"` // in units of the largest sigma
	TransferColor bool      `toml:"transfer_color" yaml:"transfer_color"`
	MaxM2         float32   `toml:"max_m2" yaml:"max_m2"`
	SmoothK       float32   `toml:"smooth_k" yaml:"smooth_k"`
	ShellRadius   float32   `toml:"shell_radius" yaml:"shell_radius"`
	BlurIters     int       `toml:"blur_iters" yaml:"blur_iters"`

	MaxGridPoints uint64 `toml:"max_grid_points" yaml:"max_grid_points"`
	Workers       int    `toml:"workers" yaml:"workers"` // 0 means GOMAXPROCS
}

// DefaultConfig returns the default conversion settings.
func DefaultConfig() Config {
	return Config{
		Output:        OutputMesh,
		Algorithm:     AlgorithmDensity,
		VoxelSize:     DefaultVoxelSize,
		VoxelSizeMax:  DefaultVoxelSizeMax,
		NSigma:        DefaultNSigma,
		DensityIso:    DefaultDensityIso,
		SurfaceIso:    DefaultSurfaceIso,
		BoundsPadding: DefaultBoundsPadding,
		TransferColor: true,
		MaxM2:         DefaultMaxM2,
		SmoothK:       DefaultSmoothK,
		ShellRadius:   DefaultShellRadius,
		BlurIters:     DefaultBlurIters,
		MaxGridPoints: grid.DefaultMaxPoints,
	}
}

// atLeast clamps v from below; NaN becomes def.
func atLeast(v, lo, def float32) float32 {
	if math32.IsNaN(v) {
		return def
	}
	return max(v, lo)
}

// Normalize returns c with every field clamped into its legal range.
func (c Config) Normalize() Config {
	if c.Output != OutputMesh && c.Output != OutputVolume {
		c.Output = OutputMesh
	}
	if c.Algorithm != AlgorithmDensity && c.Algorithm != AlgorithmEllipsoid {
		c.Algorithm = AlgorithmDensity
	}
	c.VoxelSize = atLeast(c.VoxelSize, minVoxelSize, DefaultVoxelSize)
	c.VoxelSizeMax = max(c.VoxelSizeMax, 1)
	c.NSigma = atLeast(c.NSigma, minNSigma, DefaultNSigma)
	c.BoundsPadding = atLeast(c.BoundsPadding, 0, DefaultBoundsPadding)
	c.MaxM2 = min(atLeast(c.MaxM2, 0, DefaultMaxM2), maxMaxM2)
	c.SmoothK = atLeast(c.SmoothK, 0, DefaultSmoothK)
	c.ShellRadius = atLeast(c.ShellRadius, minShellRadius, DefaultShellRadius)
	c.BlurIters = max(c.BlurIters, 0)
	if math32.IsNaN(c.DensityIso) {
		c.DensityIso = DefaultDensityIso
	}
	if math32.IsNaN(c.SurfaceIso) {
		c.SurfaceIso = DefaultSurfaceIso
	}
	if c.MaxGridPoints == 0 {
		c.MaxGridPoints = grid.DefaultMaxPoints
	}
	c.Workers = max(c.Workers, 0)
	return c
}

// FlatKernel reports whether MaxM2 clamps m2 inside the n_sigma support,
// which makes the kernel constant beyond sqrt(MaxM2) sigmas.
func (c Config) FlatKernel() bool {
	c = c.Normalize()
	return c.MaxM2 < c.NSigma*c.NSigma
}

// ParseConfig decodes TOML on top of DefaultConfig. Unknown keys are an
// error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ParseConfigYAML decodes YAML on top of DefaultConfig. Unknown keys are
// an error.
func ParseConfigYAML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and parses a config file. Files ending in .yaml or
// .yml are YAML; everything else is TOML.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	parse := ParseConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parse = ParseConfigYAML
	}
	cfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// MarshalTOML encodes the config as TOML.
func (c Config) MarshalTOML() ([]byte, error) {
	return toml.Marshal(c)
}
