package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimedOut is returned when an evaluation outlives its deadline.
	ErrTimedOut = errors.New("evaluation timed out")

	// ErrSuperseded is returned when a newer evaluation started before this
	// one finished.
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// outcome is what one sandboxed run produces.
type outcome struct {
	recipe *Recipe
	errors []EvalError
	err    error
}

// generations hands out evaluation tickets. Only the newest ticket's
// outcome is delivered.
type generations struct {
	mu     sync.Mutex
	latest uint64
}

func (g *generations) next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.latest++
	return g.latest
}

func (g *generations) isLatest(ticket uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ticket == g.latest
}

// bounded runs fn on its own goroutine and waits until it finishes or ctx
// is done. A run that loses the race keeps going and its outcome is
// dropped once it completes.
func bounded(ctx context.Context, gens *generations, ticket uint64, fn func() outcome) (*Recipe, []EvalError, error) {
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		ch <- fn()
	}()

	select {
	case out := <-ch:
		if !gens.isLatest(ticket) {
			return nil, nil, ErrSuperseded
		}
		return out.recipe, out.errors, out.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
