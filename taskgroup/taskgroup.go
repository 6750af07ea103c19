// Package taskgroup runs a set of independent asynchronous operations under a
// structured scope, in either fail-fast or partial-results mode. It is the
// single concurrency primitive behind every fan-out pattern in this module.
package taskgroup

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of asynchronous work. Tasks must honor ctx cancellation at
// their suspension points; cancellation is cooperative, never forced.
type Task func(ctx context.Context) (any, error)

// Result is the outcome of one task. Results are always returned at the same
// index as the task that produced them, independent of completion order.
type Result struct {
	Value any
	Err   error
}

// Run executes all tasks concurrently.
//
// With failFast true, the first task failure cancels the shared context; the
// remaining tasks are abandoned as soon as they observe the cancellation.
// The failures are returned as a single joined error with the triggering
// failure first (see First to unwrap it); cancellation errors reported by
// abandoned siblings are not part of the join. The result slice is nil on
// failure.
//
// With failFast false, every task runs to completion regardless of individual
// failures, and the returned slice holds one Result per input position with
// Err set for the positions that failed. The error return is always nil in
// this mode; callers filter.
func Run(ctx context.Context, tasks []Task, failFast bool) ([]Result, error) {
	if failFast {
		return runFailFast(ctx, tasks)
	}
	return runPartial(ctx, tasks), nil
}

func runFailFast(ctx context.Context, tasks []Task) ([]Result, error) {
	results := make([]Result, len(tasks))

	var mu sync.Mutex
	type indexedErr struct {
		idx int
		err error
	}
	var failures []indexedErr

	g, ctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			v, err := task(ctx)
			if err != nil {
				mu.Lock()
				failures = append(failures, indexedErr{idx: i, err: err})
				mu.Unlock()
				return err
			}
			results[i] = Result{Value: v}
			return nil
		})
	}

	waitErr := g.Wait()
	if waitErr == nil {
		return results, nil
	}

	// The triggering failure leads the joined error so First returns it.
	// Cancellation errors from cooperatively-abandoned siblings are noise,
	// not failures, and are dropped.
	sort.Slice(failures, func(a, b int) bool { return failures[a].idx < failures[b].idx })
	errs := []error{waitErr}
	for _, f := range failures {
		if f.err == waitErr || errors.Is(f.err, context.Canceled) || errors.Is(f.err, context.DeadlineExceeded) {
			continue
		}
		errs = append(errs, f.err)
	}
	return nil, errors.Join(errs...)
}

func runPartial(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		i, task := i, task
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := task(ctx)
			results[i] = Result{Value: v, Err: err}
		}()
	}
	wg.Wait()
	return results
}

// First unwraps the earliest underlying error from a joined fail-fast error.
// It returns err unchanged when err does not wrap multiple errors. Patterns
// use it to surface a single participant failure to single-error callers.
func First(err error) error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return err
}

// Values extracts the successful values from a partial-results slice,
// preserving input order and dropping failed positions.
func Values(results []Result) []any {
	out := make([]any, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}
