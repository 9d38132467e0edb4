package graph

import (
	"fmt"
	"slices"
)

// ParamWidget selects how a parameter is edited.
type ParamWidget int

const (
	WidgetSlider ParamWidget = iota
	WidgetEnum
	WidgetToggle
	WidgetText
)

// EnumOption is one choice of an integer enum parameter.
type EnumOption struct {
	Value int
	Label string
}

// ParamSpec describes one operator parameter for editors and validation.
type ParamSpec struct {
	Key      string
	Label    string
	Kind     ParamKind
	Widget   ParamWidget
	Min, Max float64 // slider range; both zero means unbounded
	Options  []EnumOption
	Help     string

	// VisibleWhen lists int parameters that must hold the given values
	// for this parameter to matter.
	VisibleWhen map[string]int
}

// FloatSlider describes a float parameter with a suggested range.
func FloatSlider(key, label string, min, max float64) ParamSpec {
	return ParamSpec{Key: key, Label: label, Kind: ParamFloat, Widget: WidgetSlider, Min: min, Max: max}
}

// IntSlider describes an int parameter with a suggested range.
func IntSlider(key, label string, min, max int) ParamSpec {
	return ParamSpec{Key: key, Label: label, Kind: ParamInt, Widget: WidgetSlider, Min: float64(min), Max: float64(max)}
}

// IntEnum describes an int parameter restricted to options.
func IntEnum(key, label string, options ...EnumOption) ParamSpec {
	return ParamSpec{Key: key, Label: label, Kind: ParamInt, Widget: WidgetEnum, Options: options}
}

// Toggle describes a bool parameter.
func Toggle(key, label string) ParamSpec {
	return ParamSpec{Key: key, Label: label, Kind: ParamBool, Widget: WidgetToggle}
}

// Text describes a string parameter.
func Text(key, label string) ParamSpec {
	return ParamSpec{Key: key, Label: label, Kind: ParamString, Widget: WidgetText}
}

// WithHelp sets the help string.
func (s ParamSpec) WithHelp(help string) ParamSpec {
	s.Help = help
	return s
}

// VisibleWhenInt adds a visibility condition on another int parameter.
func (s ParamSpec) VisibleWhenInt(key string, value int) ParamSpec {
	vw := make(map[string]int, len(s.VisibleWhen)+1)
	for k, v := range s.VisibleWhen {
		vw[k] = v
	}
	vw[key] = value
	s.VisibleWhen = vw
	return s
}

// IsVisible reports whether every visibility condition holds in params.
// Missing parameters count as zero.
func (s ParamSpec) IsVisible(params Params) bool {
	for k, want := range s.VisibleWhen {
		if params.GetInt(k, 0) != want {
			return false
		}
	}
	return true
}

// hasRange reports whether the spec carries slider bounds.
func (s ParamSpec) hasRange() bool {
	return s.Min != 0 || s.Max != 0
}

// compatible reports whether v can be read as kind.
func compatible(kind ParamKind, v ParamValue) bool {
	if kind == ParamString || v.Kind == ParamString {
		return kind == v.Kind
	}
	return true
}

// ValidateParams checks params against specs. Unknown names and values
// outside a slider range are warnings, since operators clamp them. Kind
// mismatches and values that are not enum options are errors.
func ValidateParams(specs []ParamSpec, params Params) []ValidationError {
	var errs []ValidationError
	known := make(map[string]ParamSpec, len(specs))
	for _, s := range specs {
		known[s.Key] = s
	}

	for _, name := range params.Keys() {
		v := params[name]
		s, ok := known[name]
		if !ok {
			errs = append(errs, ValidationError{
				Param:    name,
				Message:  "unknown parameter",
				Severity: SeverityWarning,
			})
			continue
		}
		if !compatible(s.Kind, v) {
			errs = append(errs, ValidationError{
				Param:    name,
				Message:  fmt.Sprintf("expected %s, got %s %s", s.Kind, v.Kind, v.Format()),
				Severity: SeverityError,
			})
			continue
		}
		switch s.Widget {
		case WidgetEnum:
			n := params.GetInt(name, 0)
			if !slices.ContainsFunc(s.Options, func(o EnumOption) bool { return o.Value == n }) {
				errs = append(errs, ValidationError{
					Param:    name,
					Message:  fmt.Sprintf("%d is not one of %s", n, optionList(s.Options)),
					Severity: SeverityError,
				})
			}
		case WidgetSlider:
			f, _ := v.asFloat()
			if s.hasRange() && (f < s.Min || f > s.Max) {
				errs = append(errs, ValidationError{
					Param:    name,
					Message:  fmt.Sprintf("%s outside suggested range [%g, %g]", v.Format(), s.Min, s.Max),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}

func optionList(opts []EnumOption) string {
	out := "["
	for i, o := range opts {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%d (%s)", o.Value, o.Label)
	}
	return out + "]"
}
