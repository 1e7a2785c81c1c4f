/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"context"

	"go.uber.org/atomic"
)

// Future is a one-shot holder for the Result of a submitted Descriptor.
// It is settled exactly once; the first resolution wins and all later
// attempts are ignored.
type Future struct {
	done       chan struct{}
	resolved   atomic.Bool
	res        Result
	onComplete func(Result)
}

func newFuture(onComplete func(Result)) *Future {
	return &Future{done: make(chan struct{}), onComplete: onComplete}
}

// resolve settles the future and fires the descriptor's continuation.
// Only the first call has an effect.
func (f *Future) resolve(res Result) {
	if !f.resolved.CompareAndSwap(false, true) {
		return
	}
	f.res = res
	close(f.done)
	if f.onComplete != nil {
		f.onComplete(res)
	}
}

// Done returns a channel that is closed when the future is settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled result. ok is false while the future is not settled yet.
func (f *Future) Result() (res Result, ok bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the future is settled or the passed context is done.
// A context error does not cancel the dispatch itself, the descriptor will
// still be sent and the future settled eventually.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
