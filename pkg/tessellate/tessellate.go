// Package tessellate runs the conversion steps of a recipe and produces
// triangle meshes using the splat converter. One mesh is produced per
// step that yields a surface.
package tessellate

import (
	"fmt"

	"github.com/chazu/splatmesh/pkg/convert"
	"github.com/chazu/splatmesh/pkg/engine"
	"github.com/chazu/splatmesh/pkg/graph"
	"github.com/chazu/splatmesh/pkg/kernel"
	"github.com/chazu/splatmesh/pkg/splat"
)

// NamedVolume is a volume together with the step that produced it.
type NamedVolume struct {
	Name   string
	Volume *kernel.Volume
}

// Output collects what a recipe produced.
type Output struct {
	Meshes  []*kernel.Mesh // PartName is the producing step's name
	Volumes []NamedVolume  // volumes no volume-to-mesh step consumed
}

// volumeQueue holds volumes produced by earlier steps until a
// volume-to-mesh step consumes them, oldest first.
type volumeQueue struct {
	items []NamedVolume
}

func (q *volumeQueue) push(v NamedVolume) {
	q.items = append(q.items, v)
}

func (q *volumeQueue) pop() (NamedVolume, bool) {
	if len(q.items) == 0 {
		return NamedVolume{}, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// StepName returns the step's name, or step-N (1-based) if it has none.
func StepName(i int, st engine.Step) string {
	if st.Name != "" {
		return st.Name
	}
	return fmt.Sprintf("step-%d", i+1)
}

// Tessellate runs every step of rec in order. base supplies the
// conversion settings a step does not override. A recipe with splats but
// no steps is converted once with base. The recipe is never mutated.
func Tessellate(rec *engine.Recipe, conv *convert.Converter, base convert.Config) (*Output, error) {
	out := &Output{}
	if rec == nil {
		return out, nil
	}

	steps := rec.Steps
	if len(steps) == 0 && !rec.Splats.IsEmpty() {
		steps = []engine.Step{{Op: convert.SplatToMeshName}}
	}

	var queue volumeQueue
	for i, st := range steps {
		name := StepName(i, st)
		geo, err := runStep(conv, base, st, rec.Splats, &queue)
		if err != nil {
			return nil, fmt.Errorf("tessellate: %s: %w", name, err)
		}
		for _, m := range geo.Meshes {
			if m.IsEmpty() {
				continue
			}
			m.PartName = name
			out.Meshes = append(out.Meshes, m)
		}
		for _, v := range geo.Volumes {
			queue.push(NamedVolume{Name: name, Volume: v})
		}
	}
	out.Volumes = queue.items
	return out, nil
}

// runStep dispatches one step to its operator.
func runStep(conv *convert.Converter, base convert.Config, st engine.Step, splats *splat.Splats, queue *volumeQueue) (*graph.Geometry, error) {
	params := st.Params
	if params == nil {
		params = graph.Params{}
	}

	switch st.Op {
	case convert.SplatToMeshName:
		in := &graph.Geometry{Splats: []*splat.Splats{splats}}
		return conv.ApplyToGeometry(params, base, []*graph.Geometry{in})

	case convert.VolumeToMeshName:
		v, ok := queue.pop()
		if !ok {
			return nil, fmt.Errorf("no volume to convert; add (splat-to-mesh :output :volume) first")
		}
		in := &graph.Geometry{Volumes: []*kernel.Volume{v.Volume}}
		return conv.ApplyVolumeToMesh(params, []*graph.Geometry{in})

	default:
		return nil, fmt.Errorf("unknown operator %q", st.Op)
	}
}
