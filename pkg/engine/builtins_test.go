package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/splatmesh/pkg/convert"
	"github.com/chazu/splatmesh/pkg/graph"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(splat :opacity 0.5)`,
			expect: `(splat "__kw_opacity" 0.5)`,
		},
		{
			name:   "multiple keywords",
			input:  `(splat :pos p :scale 2)`,
			expect: `(splat "__kw_pos" p "__kw_scale" 2)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(splat-to-mesh :voxel-size v)`,
			expect: `(splat_to_mesh "__kw_voxel-size" v)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "negative literal preserved",
			input:  `(vec3 -1 0 1e-3)`,
			expect: `(vec3 -1 0 1e-3)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:log-scale`,
			expect: `"__kw_log-scale"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// evalOK evaluates source and fails the test on any error.
func evalOK(t *testing.T, source string) *Recipe {
	t.Helper()
	rec, evalErrs, err := NewEngine().Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if rec == nil {
		t.Fatal("expected non-nil recipe")
	}
	return rec
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

// ---------------------------------------------------------------------------
// Splat builtins
// ---------------------------------------------------------------------------

func TestSplatDefaults(t *testing.T) {
	rec := evalOK(t, `(splat)`)
	if rec.Splats.Len() != 1 {
		t.Fatalf("expected 1 splat, got %d", rec.Splats.Len())
	}
	sp := rec.Splats.At(0)
	if sp.Position != [3]float32{} {
		t.Errorf("position = %v, want origin", sp.Position)
	}
	if sp.Rotation != [4]float32{1, 0, 0, 0} {
		t.Errorf("rotation = %v, want identity", sp.Rotation)
	}
	ls := float32(math.Log(defaultSigma))
	for a := 0; a < 3; a++ {
		if !near(sp.LogScale[a], ls) {
			t.Errorf("log scale[%d] = %v, want %v", a, sp.LogScale[a], ls)
		}
	}
	wantLogit := float32(math.Log(defaultOpacity / (1 - defaultOpacity)))
	if !near(sp.Logit, wantLogit) {
		t.Errorf("logit = %v, want %v", sp.Logit, wantLogit)
	}
	if sp.Color != [3]float32{1, 1, 1} {
		t.Errorf("color = %v, want white", sp.Color)
	}
}

func TestSplatKeywords(t *testing.T) {
	source := `
(splat :pos (vec3 1 2 3)
       :scale (vec3 0.5 1 2)
       :rot (quat 0 0 0 1)
       :opacity 0.5
       :color (rgb 1 0 0))
`
	rec := evalOK(t, source)
	sp := rec.Splats.At(0)
	if sp.Position != [3]float32{1, 2, 3} {
		t.Errorf("position = %v", sp.Position)
	}
	if sp.Rotation != [4]float32{0, 0, 0, 1} {
		t.Errorf("rotation = %v", sp.Rotation)
	}
	for a, sigma := range []float64{0.5, 1, 2} {
		if !near(sp.LogScale[a], float32(math.Log(sigma))) {
			t.Errorf("log scale[%d] = %v, want ln %v", a, sp.LogScale[a], sigma)
		}
	}
	if !near(sp.Logit, 0) {
		t.Errorf("opacity 0.5 should give logit 0, got %v", sp.Logit)
	}
	if sp.Color != [3]float32{1, 0, 0} {
		t.Errorf("color = %v", sp.Color)
	}
}

func TestSplatRawAttributes(t *testing.T) {
	rec := evalOK(t, `(splat :log-scale (vec3 -1 -2 -3) :logit 4 :sh (vec3 -1 0 1))`)
	sp := rec.Splats.At(0)
	if sp.LogScale != [3]float32{-1, -2, -3} {
		t.Errorf("log scale = %v", sp.LogScale)
	}
	if sp.Logit != 4 {
		t.Errorf("logit = %v, want 4", sp.Logit)
	}
	if sp.Color != [3]float32{-1, 0, 1} {
		t.Errorf("sh = %v", sp.Color)
	}
}

func TestSplatOpacityExtremesStayFinite(t *testing.T) {
	rec := evalOK(t, `(splat :opacity 1) (splat :opacity 0)`)
	for i := 0; i < 2; i++ {
		l := float64(rec.Splats.At(i).Logit)
		if math.IsInf(l, 0) || math.IsNaN(l) {
			t.Errorf("splat %d logit not finite: %v", i, l)
		}
	}
	if rec.Splats.At(0).Logit <= 0 || rec.Splats.At(1).Logit >= 0 {
		t.Errorf("logit signs wrong: %v, %v", rec.Splats.At(0).Logit, rec.Splats.At(1).Logit)
	}
}

func TestVariableReference(t *testing.T) {
	source := `
(def s 0.25)
(def p (vec3 0 1 0))
(splat :pos p :scale s)
(splat :pos p :scale (* s 2))
`
	rec := evalOK(t, source)
	if rec.Splats.Len() != 2 {
		t.Fatalf("expected 2 splats, got %d", rec.Splats.Len())
	}
	if !near(rec.Splats.At(1).LogScale[0], float32(math.Log(0.5))) {
		t.Errorf("second splat log scale = %v", rec.Splats.At(1).LogScale[0])
	}
}

func TestSplatSphere(t *testing.T) {
	rec := evalOK(t, `(splat-sphere :center (vec3 1 0 0) :radius 2 :count 10 :scale 0.3 :color (rgb 0 1 0))`)
	if rec.Splats.Len() != 10 {
		t.Fatalf("expected 10 splats, got %d", rec.Splats.Len())
	}
	for i := 0; i < rec.Splats.Len(); i++ {
		sp := rec.Splats.At(i)
		dx, dy, dz := sp.Position[0]-1, sp.Position[1], sp.Position[2]
		r := math.Sqrt(float64(dx*dx + dy*dy + dz*dz))
		if math.Abs(r-2) > 1e-4 {
			t.Errorf("splat %d at distance %v, want 2", i, r)
		}
		if sp.Color != [3]float32{0, 1, 0} {
			t.Errorf("splat %d color = %v", i, sp.Color)
		}
	}
}

func TestSplatCount(t *testing.T) {
	rec := evalOK(t, `
(splat)
(splat-sphere :count 4)
(def n (splat-count))
(splat :pos (vec3 n 0 0))
`)
	if rec.Splats.Len() != 6 {
		t.Fatalf("expected 6 splats, got %d", rec.Splats.Len())
	}
	if rec.Splats.At(5).Position[0] != 5 {
		t.Errorf("splat-count before last splat = %v, want 5", rec.Splats.At(5).Position[0])
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantMsg string
	}{
		{"vec3 arity", `(vec3 1 2)`, "exactly 3"},
		{"quat arity", `(quat 1 0 0)`, "exactly 4"},
		{"pos not vector", `(splat :pos 1)`, "expected vec3"},
		{"scale not positive", `(splat :scale 0)`, "positive"},
		{"opacity out of range", `(splat :opacity 2)`, "opacity"},
		{"scale and log-scale", `(splat :scale 1 :log-scale (vec3 0 0 0))`, "mutually exclusive"},
		{"unknown splat keyword", `(splat :bogus 1)`, "unknown keyword"},
		{"sphere count", `(splat-sphere :count 0)`, "positive"},
		{"bad algorithm", `(splat-to-mesh :algorithm :bogus)`, "algorithm"},
		{"output not an option", `(splat-to-mesh :output 5)`, "not one of"},
		{"kind mismatch", `(splat-to-mesh :voxel-size "big")`, "expected float"},
		{"positional argument", `(volume-to-mesh 1)`, "keyword arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, evalErrs, err := NewEngine().Evaluate(tt.source)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if rec != nil {
				t.Fatal("expected nil recipe on eval error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected an eval error")
			}
			if !strings.Contains(evalErrs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.wantMsg)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Conversion steps
// ---------------------------------------------------------------------------

func TestSplatToMeshStep(t *testing.T) {
	source := `
(splat)
(splat-to-mesh :name "shell"
               :algorithm :ellipsoid
               :output :mesh
               :voxel-size 0.05
               :smooth-k 0.2
               :blur-iters 2
               :transfer-color true)
`
	rec := evalOK(t, source)
	if len(rec.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(rec.Steps))
	}
	st := rec.Steps[0]
	if st.Op != convert.SplatToMeshName {
		t.Errorf("op = %q, want %q", st.Op, convert.SplatToMeshName)
	}
	if st.Name != "shell" {
		t.Errorf("name = %q, want shell", st.Name)
	}
	if _, ok := st.Params["name"]; ok {
		t.Error("name should not be a parameter")
	}
	if got := st.Params.GetInt("algorithm", -1); got != int(convert.AlgorithmEllipsoid) {
		t.Errorf("algorithm = %d", got)
	}
	if got := st.Params.GetInt("output", -1); got != int(convert.OutputMesh) {
		t.Errorf("output = %d", got)
	}
	if got := st.Params.GetFloat("voxel_size", 0); !near(got, 0.05) {
		t.Errorf("voxel_size = %v", got)
	}
	if got := st.Params.GetFloat("smooth_k", 0); !near(got, 0.2) {
		t.Errorf("smooth_k = %v", got)
	}
	if got := st.Params.GetInt("blur_iters", 0); got != 2 {
		t.Errorf("blur_iters = %d", got)
	}
	if !st.Params.GetBool("transfer_color", false) {
		t.Error("transfer_color should be true")
	}
	if len(rec.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rec.Warnings)
	}
}

func TestSplatToMeshEnumByNumber(t *testing.T) {
	rec := evalOK(t, `(splat-to-mesh :output 1 :algorithm 0)`)
	p := rec.Steps[0].Params
	if p["output"] != graph.Int(int(convert.OutputVolume)) {
		t.Errorf("output = %v", p["output"])
	}
	if p["algorithm"] != graph.Int(int(convert.AlgorithmDensity)) {
		t.Errorf("algorithm = %v", p["algorithm"])
	}
}

func TestStepWarnings(t *testing.T) {
	rec := evalOK(t, `
(splat-to-mesh)
(splat-to-mesh :n-sigma 50 :frobnicate 1)
`)
	if len(rec.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(rec.Steps))
	}
	if len(rec.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", rec.Warnings)
	}
	var sawRange, sawUnknown bool
	for _, w := range rec.Warnings {
		if w.Step != 1 {
			t.Errorf("warning %q attached to step %d, want 1", w.Message, w.Step)
		}
		sawRange = sawRange || strings.Contains(w.Message, "outside suggested range")
		sawUnknown = sawUnknown || strings.Contains(w.Message, "unknown parameter")
	}
	if !sawRange || !sawUnknown {
		t.Errorf("warnings = %v", rec.Warnings)
	}
}

func TestVolumeToMeshStep(t *testing.T) {
	rec := evalOK(t, `
(splat-to-mesh :output :volume)
(volume-to-mesh :mode :density :density-iso 0.3 :voxel-size 0.2)
`)
	if len(rec.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(rec.Steps))
	}
	st := rec.Steps[1]
	if st.Op != convert.VolumeToMeshName {
		t.Errorf("op = %q", st.Op)
	}
	if got := st.Params.GetString("mode", ""); got != "density" {
		t.Errorf("mode = %q, want density", got)
	}
	if got := st.Params.GetFloat("density_iso", 0); !near(got, 0.3) {
		t.Errorf("density_iso = %v", got)
	}
	if got := st.Params.GetFloat("voxel_size", 0); !near(got, 0.2) {
		t.Errorf("voxel_size = %v", got)
	}
}

func TestArithmeticStillWorks(t *testing.T) {
	rec := evalOK(t, `(def r (+ 0.5 0.5)) (splat :scale r)`)
	if !near(rec.Splats.At(0).LogScale[0], 0) {
		t.Errorf("log scale = %v, want 0", rec.Splats.At(0).LogScale[0])
	}
}
