package main

import (
	"log/slog"

	"github.com/chazu/splatmesh/pkg/convert"
	"github.com/chazu/splatmesh/pkg/engine"
	"github.com/chazu/splatmesh/pkg/kernel"
	"github.com/chazu/splatmesh/pkg/kernel/sdfx"
	"github.com/chazu/splatmesh/pkg/tessellate"
)

// colorPalette is a default palette used to tint meshes without vertex colors.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App runs recipes: it evaluates the source into splats and conversion
// steps, then executes the steps with the converter.
type App struct {
	engine    *engine.Engine
	converter *convert.Converter
	config    convert.Config
	logger    *slog.Logger
}

// MeshData is the JSON-serializable mesh format.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Colors   []float32 `json:"colors,omitempty"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// VolumeData is the JSON-serializable volume format.
type VolumeData struct {
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	Origin    [3]float32 `json:"origin"`
	VoxelSize float32    `json:"voxelSize"`
	Dims      [3]int     `json:"dims"`
	Band      float32    `json:"band"`
	Values    []float32  `json:"values"`
}

// EvalErrorData is a JSON-serializable eval error or warning. Step names
// the conversion step a warning belongs to, matching the PartName of the
// mesh that step produces.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
}

// EvalResult is the full result of running a recipe.
type EvalResult struct {
	Splats   int             `json:"splats"`
	Meshes   []MeshData      `json:"meshes"`
	Volumes  []VolumeData    `json:"volumes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates an App with the default conversion config, the sdfx
// extractor and the default logger.
func NewApp() *App {
	return NewAppWithConfig(convert.DefaultConfig(), slog.Default())
}

// NewAppWithConfig creates an App whose conversion steps start from cfg.
func NewAppWithConfig(cfg convert.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		engine:    engine.NewEngine(),
		converter: convert.New(sdfx.New(), convert.WithLogger(logger)),
		config:    cfg.Normalize(),
		logger:    logger,
	}
}

// Evaluate takes recipe source and returns meshes, volumes and errors.
// Volumes not consumed by a volume-to-mesh step are returned as volumes.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Volumes:  []VolumeData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: Evaluate the source into a recipe.
	rec, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.logger.Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Report eval errors.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	for _, w := range rec.Warnings {
		data := EvalErrorData{
			Line:    w.Line,
			Col:     w.Col,
			Message: w.Message,
		}
		if w.Step >= 0 && w.Step < len(rec.Steps) {
			data.Step = tessellate.StepName(w.Step, rec.Steps[w.Step])
		}
		result.Warnings = append(result.Warnings, data)
	}
	result.Splats = rec.Splats.Len()
	a.logger.Debug("recipe evaluated", "splats", rec.Splats.Len(), "steps", len(rec.Steps))

	// Step 3: Run the conversion steps.
	out, err := tessellate.Tessellate(rec, a.converter, a.config)
	if err != nil {
		a.logger.Error("tessellate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "conversion failed: " + err.Error(),
		})
		return result
	}

	// Step 4: Convert kernel output to the JSON format.
	for i, m := range out.Meshes {
		result.Meshes = append(result.Meshes, meshData(m, i))
	}
	for _, v := range out.Volumes {
		result.Volumes = append(result.Volumes, volumeData(v.Name, v.Volume))
	}
	return result
}

func meshData(m *kernel.Mesh, i int) MeshData {
	normals := m.Normals
	if normals == nil {
		normals = []float32{}
	}
	return MeshData{
		Vertices: m.Vertices,
		Normals:  normals,
		Indices:  m.Indices,
		Colors:   m.Colors,
		PartName: m.PartName,
		Color:    colorPalette[i%len(colorPalette)],
	}
}

func volumeData(name string, v *kernel.Volume) VolumeData {
	return VolumeData{
		Name:      name,
		Kind:      v.Kind.String(),
		Origin:    v.Origin,
		VoxelSize: v.VoxelSize,
		Dims:      v.Dims,
		Band:      v.Band,
		Values:    v.Values,
	}
}
