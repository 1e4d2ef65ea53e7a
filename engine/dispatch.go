package engine

import "context"

// RunInCoro synchronously runs f and returns what it returns, dispatching
// onto p by one of three routes:
//
//  1. The caller is already executing on p (case 1): f runs inline, with
//     no goroutine switch. This avoids deadlocking a single-worker
//     processor against itself and avoids a pointless hop.
//  2. The caller is executing on a different processor q (case 2): f is
//     scheduled on p as a critical task and the caller's goroutine
//     suspends on a channel receive until it completes.
//  3. The caller is not executing on any processor at all — the plain
//     host goroutine that constructs or destroys the Manager (case 3):
//     f is scheduled on p as a critical task the same way as case 2. Go
//     has no distinct "OS thread with no cooperative context" below the
//     goroutine scheduler, so cases 2 and 3 share an implementation; the
//     three-way branch is preserved because it documents which caller
//     situation each case handles.
//
// Any error f returns propagates to the caller unchanged.
func RunInCoro[T any](ctx context.Context, p *TaskProcessor, f func(context.Context) (T, error)) (T, error) {
	if processorFromContext(ctx) == p {
		return f(ctx)
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	if err := p.Schedule(ctx, true, func(taskCtx context.Context) {
		v, err := f(taskCtx)
		done <- result{val: v, err: err}
	}); err != nil {
		var zero T
		return zero, err
	}

	r := <-done
	return r.val, r.err
}
