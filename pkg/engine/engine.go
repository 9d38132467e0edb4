// Package engine provides the Lisp evaluation engine for splat recipes.
// It wraps zygomys in a sandboxed environment and produces a Recipe (a
// splat collection plus the conversion steps to run on it) from user
// source code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/splatmesh/pkg/graph"
	"github.com/chazu/splatmesh/pkg/splat"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
	Step    int // index into Recipe.Steps, -1 if not step-specific
}

// Step is one conversion requested by a recipe.
type Step struct {
	Op     string // convert.SplatToMeshName or convert.VolumeToMeshName
	Name   string // optional label, used as the output mesh part name
	Params graph.Params
}

// Recipe is the result of evaluating a program.
type Recipe struct {
	Splats   *splat.Splats
	Steps    []Step
	Warnings []EvalWarning
}

func newRecipe() *Recipe {
	return &Recipe{Splats: splat.New(0)}
}

// Engine wraps the zygomys interpreter for recipe evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	// Timeout bounds a single evaluation. Zero means EvalTimeout.
	Timeout time.Duration

	gens generations
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate is EvaluateContext with a background context.
func (e *Engine) Evaluate(source string) (*Recipe, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source)
}

// EvaluateContext takes Lisp source code and produces a new Recipe.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns recipe + nil errors + nil error
//   - On parse/eval failure: returns nil recipe + eval errors + nil error
//   - On fatal failure (timeout, cancellation, panic, superseded by a
//     newer call): returns nil + nil + error
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*Recipe, []EvalError, error) {
	ticket := e.gens.next()
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec, evalErrs, err := bounded(ctx, &e.gens, ticket, func() outcome {
		rec, evalErrs, err := e.evaluate(source)
		return outcome{recipe: rec, errors: evalErrs, err: err}
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, nil, fmt.Errorf("%w after %s", ErrTimedOut, timeout)
	}
	return rec, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Recipe, []EvalError, error) {
	// Empty source is a valid program that produces an empty recipe.
	if strings.TrimSpace(source) == "" {
		return newRecipe(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	rec := newRecipe()
	registerBuiltins(env, rec)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return rec, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
