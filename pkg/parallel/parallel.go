// Package parallel provides data-parallel loops over index ranges.
// Work is split into contiguous chunks, one per worker, so callers that
// write only to their own indices need no synchronization.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Threshold is the range length below which loops run on the calling
// goroutine.
const Threshold = 1024

// Workers resolves a requested worker count. Zero or negative means
// GOMAXPROCS.
func Workers(requested int) int {
	if requested <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return requested
}

// Chunks splits [0,n) into at most workers contiguous half-open ranges of
// near-equal length. The split depends only on n and workers.
func Chunks(n, workers int) [][2]int {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	size := n / workers
	rem := n % workers
	out := make([][2]int, 0, workers)
	lo := 0
	for w := 0; w < workers; w++ {
		hi := lo + size
		if w < rem {
			hi++
		}
		out = append(out, [2]int{lo, hi})
		lo = hi
	}
	return out
}

// For runs fn over [0,n) in contiguous chunks on up to workers goroutines
// and waits for all of them.
func For(n, workers int, fn func(lo, hi int)) {
	_ = ForErr(n, workers, func(lo, hi int) error {
		fn(lo, hi)
		return nil
	})
}

// ForErr is For with error propagation. The first error returned by any
// chunk is returned after all chunks finish.
func ForErr(n, workers int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers = Workers(workers)
	if n < Threshold || workers == 1 {
		return fn(0, n)
	}
	var g errgroup.Group
	for _, c := range Chunks(n, workers) {
		lo, hi := c[0], c[1]
		g.Go(func() error {
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// ForEach calls fn for every index in [0,n) using GOMAXPROCS workers.
func ForEach(n int, fn func(i int)) {
	For(n, 0, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(i)
		}
	})
}

// Tasks runs fn(i) for i in [0,n) with one goroutine per task, regardless
// of Threshold. Callers keep n small, typically one task per worker.
func Tasks(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if n == 1 {
		fn(0)
		return
	}
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
