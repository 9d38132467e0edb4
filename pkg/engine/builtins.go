package engine

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/splatmesh/pkg/convert"
	"github.com/chazu/splatmesh/pkg/graph"
	"github.com/chazu/splatmesh/pkg/splat"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms recipe source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: splat-to-mesh -> splat_to_mesh
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a 3-vector. It is produced by both vec3 and rgb.
type sexpVec3 struct {
	vec [3]float32
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpQuat wraps a (w, x, y, z) rotation.
type sexpQuat struct {
	q [4]float32
}

func (q *sexpQuat) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(quat %g %g %g %g)", q.q[0], q.q[1], q.q[2], q.q[3])
}
func (q *sexpQuat) Type() *zygo.RegisteredType { return nil }

// sexpStepRef is returned by the conversion builtins.
type sexpStepRef struct {
	index int
	op    string
}

func (s *sexpStepRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(step %d %q)", s.index, s.op)
}
func (s *sexpStepRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as a flag.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a Sexp. Floats must be integral.
func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_sdf) and plain strings ("sdf").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a vector from a sexpVec3.
func toVec3(s zygo.Sexp) ([3]float32, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return [3]float32{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toQuat extracts a rotation from a sexpQuat.
func toQuat(s zygo.Sexp) ([4]float32, error) {
	if q, ok := s.(*sexpQuat); ok {
		return q.q, nil
	}
	return [4]float32{}, fmt.Errorf("expected quat, got %T (%s)", s, s.SexpString(nil))
}

// toScale accepts either a vec3 of standard deviations or a single number
// used on every axis, and returns the log scale.
func toScale(s zygo.Sexp) ([3]float32, error) {
	var sigma [3]float32
	if v, ok := s.(*sexpVec3); ok {
		sigma = v.vec
	} else {
		f, err := toFloat64(s)
		if err != nil {
			return sigma, fmt.Errorf("expected vec3 or number: %w", err)
		}
		sigma = [3]float32{float32(f), float32(f), float32(f)}
	}
	var out [3]float32
	for a, v := range sigma {
		if !(v > 0) {
			return out, fmt.Errorf("scale must be positive, got %g", v)
		}
		out[a] = float32(math.Log(float64(v)))
	}
	return out, nil
}

// opacityEpsilon keeps the logit of a user opacity finite.
const opacityEpsilon = 1e-6

// opacityToLogit inverts the sigmoid applied when splats are sampled.
func opacityToLogit(p float64) (float32, error) {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return 0, fmt.Errorf("opacity must be in [0, 1], got %g", p)
	}
	p = math.Min(math.Max(p, opacityEpsilon), 1-opacityEpsilon)
	return float32(math.Log(p / (1 - p))), nil
}

// vecArgs reads exactly n numbers for the vector builtins.
func vecArgs(op string, args []zygo.Sexp, n int) ([]float32, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires exactly %d arguments, got %d", op, n, len(args))
	}
	out := make([]float32, n)
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", op, i+1, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// paramKey maps a keyword such as voxel-size to its parameter name.
func paramKey(kw string) string {
	return strings.ReplaceAll(kw, "-", "_")
}

// toParamValue converts a Sexp into a parameter value of the natural kind.
func toParamValue(s zygo.Sexp) (graph.ParamValue, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return graph.Int(int(v.Val)), nil
	case *zygo.SexpFloat:
		return graph.Float(float32(v.Val)), nil
	case *zygo.SexpBool:
		return graph.Bool(v.Val), nil
	case *zygo.SexpStr:
		str, _ := toKeywordString(v)
		return graph.String(str), nil
	}
	return graph.ParamValue{}, fmt.Errorf("unsupported value %T (%s)", s, s.SexpString(nil))
}

// toEnum converts a keyword, string or integer into an enum parameter
// using the enum type's text form.
func toEnum(s zygo.Sexp, parse func([]byte) error, value func() int) (graph.ParamValue, error) {
	if _, ok := s.(*zygo.SexpStr); ok {
		name, _ := toKeywordString(s)
		if err := parse([]byte(name)); err != nil {
			return graph.ParamValue{}, err
		}
		return graph.Int(value()), nil
	}
	n, err := toInt(s)
	if err != nil {
		return graph.ParamValue{}, err
	}
	return graph.Int(n), nil
}

// stepParams turns the keyword arguments of a conversion builtin into
// operator parameters. The name keyword is returned separately.
func stepParams(pa kwArgs) (name string, params graph.Params, err error) {
	params = graph.Params{}
	for kw, v := range pa.kw {
		key := paramKey(kw)
		var pv graph.ParamValue
		switch key {
		case "name":
			if name, err = toString(v); err != nil {
				return "", nil, fmt.Errorf("name: %w", err)
			}
			continue
		case "output":
			var o convert.Output
			pv, err = toEnum(v, o.UnmarshalText, func() int { return int(o) })
		case "algorithm":
			var a convert.Algorithm
			pv, err = toEnum(v, a.UnmarshalText, func() int { return int(a) })
		default:
			pv, err = toParamValue(v)
		}
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", kw, err)
		}
		params[key] = pv
	}
	return name, params, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// Default splat attributes used when a keyword is omitted.
const (
	defaultOpacity = 0.9
	defaultSigma   = 0.1
)

// registerBuiltins installs the recipe builtins into a zygomys environment.
// The builtins populate rec during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, rec *Recipe) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := vecArgs("vec3", args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: [3]float32{v[0], v[1], v[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (rgb 1 0.5 0)
	// -----------------------------------------------------------------------
	env.AddFunction("rgb", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := vecArgs("rgb", args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: [3]float32{v[0], v[1], v[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (quat w x y z)
	// -----------------------------------------------------------------------
	env.AddFunction("quat", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := vecArgs("quat", args, 4)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpQuat{q: [4]float32{v[0], v[1], v[2], v[3]}}, nil
	})

	// -----------------------------------------------------------------------
	// (splat :pos (vec3 0 0 0) :scale 0.1 :rot (quat 1 0 0 0)
	//        :opacity 0.9 :color (rgb 1 1 1))
	// -----------------------------------------------------------------------
	env.AddFunction("splat", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		sp, err := parseSplat(parseArgs(args))
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("splat: %w", err)
		}
		rec.Splats.Append(sp)
		return &zygo.SexpInt{Val: int64(rec.Splats.Len() - 1)}, nil
	})

	// -----------------------------------------------------------------------
	// (splat-sphere :center (vec3 0 0 0) :radius 1 :count 200 :scale 0.1)
	//
	// Places count splats on a sphere shell using a Fibonacci lattice. The
	// remaining keywords are those of splat.
	// -----------------------------------------------------------------------
	env.AddFunction("splat_sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		center := [3]float32{}
		if v, ok := pa.kw["center"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("splat-sphere: center: %w", err)
			}
			center = c
		}
		radius := 1.0
		if v, ok := pa.kw["radius"]; ok {
			r, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("splat-sphere: radius: %w", err)
			}
			radius = r
		}
		count := 64
		if v, ok := pa.kw["count"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("splat-sphere: count: %w", err)
			}
			if n < 1 {
				return zygo.SexpNull, fmt.Errorf("splat-sphere: count must be positive, got %d", n)
			}
			count = n
		}
		delete(pa.kw, "center")
		delete(pa.kw, "radius")
		delete(pa.kw, "count")
		base, err := parseSplat(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("splat-sphere: %w", err)
		}
		for _, p := range fibonacciSphere(count) {
			sp := base
			for a := 0; a < 3; a++ {
				sp.Position[a] = center[a] + float32(radius)*p[a]
			}
			rec.Splats.Append(sp)
		}
		return &zygo.SexpInt{Val: int64(count)}, nil
	})

	// -----------------------------------------------------------------------
	// (splat-count)
	// -----------------------------------------------------------------------
	env.AddFunction("splat_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(rec.Splats.Len())}, nil
	})

	// -----------------------------------------------------------------------
	// (splat-to-mesh :algorithm :ellipsoid :voxel-size 0.05 :name "shell")
	// -----------------------------------------------------------------------
	env.AddFunction("splat_to_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return addStep(rec, "splat-to-mesh", convert.SplatToMeshName, convert.ParamSpecs(), args)
	})

	// -----------------------------------------------------------------------
	// (volume-to-mesh :mode :sdf :surface-iso 0 :voxel-size 0.1)
	// -----------------------------------------------------------------------
	env.AddFunction("volume_to_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return addStep(rec, "volume-to-mesh", convert.VolumeToMeshName, convert.VolumeParamSpecs(), args)
	})
}

// parseSplat reads the splat keywords. Omitted attributes take the
// defaults: origin, identity rotation, sigma 0.1, opacity 0.9, white.
func parseSplat(pa kwArgs) (splat.Splat, error) {
	logit, _ := opacityToLogit(defaultOpacity)
	ls := float32(math.Log(defaultSigma))
	sp := splat.Splat{
		Rotation: [4]float32{1, 0, 0, 0},
		LogScale: [3]float32{ls, ls, ls},
		Logit:    logit,
		Color:    [3]float32{1, 1, 1},
	}
	for kw, v := range pa.kw {
		var err error
		switch kw {
		case "pos":
			sp.Position, err = toVec3(v)
		case "scale":
			if _, dup := pa.kw["log-scale"]; dup {
				return sp, fmt.Errorf("scale and log-scale are mutually exclusive")
			}
			sp.LogScale, err = toScale(v)
		case "log-scale":
			sp.LogScale, err = toVec3(v)
		case "rot":
			sp.Rotation, err = toQuat(v)
		case "opacity":
			if _, dup := pa.kw["logit"]; dup {
				return sp, fmt.Errorf("opacity and logit are mutually exclusive")
			}
			var p float64
			if p, err = toFloat64(v); err == nil {
				sp.Logit, err = opacityToLogit(p)
			}
		case "logit":
			var f float64
			f, err = toFloat64(v)
			sp.Logit = float32(f)
		case "color", "sh":
			sp.Color, err = toVec3(v)
		default:
			err = fmt.Errorf("unknown keyword")
		}
		if err != nil {
			return sp, fmt.Errorf("%s: %w", kw, err)
		}
	}
	return sp, nil
}

// addStep validates the parameters of a conversion builtin and appends
// the step to rec. Validation errors fail the call; warnings are kept on
// the recipe.
func addStep(rec *Recipe, builtin, op string, specs []graph.ParamSpec, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if len(pa.positional) > 0 {
		return zygo.SexpNull, fmt.Errorf("%s takes only keyword arguments", builtin)
	}
	stepName, params, err := stepParams(pa)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", builtin, err)
	}

	errs, warnings := graph.Split(graph.ValidateParams(specs, params))
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return zygo.SexpNull, fmt.Errorf("%s: %s", builtin, strings.Join(msgs, "; "))
	}

	index := len(rec.Steps)
	for _, w := range warnings {
		rec.Warnings = append(rec.Warnings, EvalWarning{
			Message: fmt.Sprintf("%s: %s", builtin, w.Error()),
			Step:    index,
		})
	}
	rec.Steps = append(rec.Steps, Step{Op: op, Name: stepName, Params: params})
	return &sexpStepRef{index: index, op: op}, nil
}

// fibonacciSphere returns n unit vectors spread evenly over the sphere.
func fibonacciSphere(n int) [][3]float32 {
	golden := math.Pi * (3 - math.Sqrt(5))
	out := make([][3]float32, n)
	for i := range n {
		y := 1.0
		if n > 1 {
			y = 1 - 2*float64(i)/float64(n-1)
		}
		r := math.Sqrt(math.Max(0, 1-y*y))
		theta := golden * float64(i)
		out[i] = [3]float32{
			float32(r * math.Cos(theta)),
			float32(y),
			float32(r * math.Sin(theta)),
		}
	}
	return out
}
