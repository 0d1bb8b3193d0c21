package store

import (
	"context"
	"sync"
)

// Callback receives the outcome of an operation. found is false when the
// addressed value does not exist.
type Callback func(value any, found bool, err error)

// Result is the completion handle returned by every store operation.
//
// A Result is either immediate, already holding its outcome when the
// operation returns, or deferred, completing later from another goroutine.
// Callers that need the outcome without blocking check Ready first; Value
// refuses to report a deferred outcome that has not arrived yet.
type Result struct {
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	callbacks []Callback

	value any
	found bool
	err   error
}

// Resolved returns an immediate, successful Result.
func Resolved(value any, found bool) *Result {
	r := &Result{done: make(chan struct{})}
	r.complete(value, found, nil)
	return r
}

// Rejected returns an immediate, failed Result.
func Rejected(err error) *Result {
	r := &Result{done: make(chan struct{})}
	r.complete(nil, false, err)
	return r
}

// Pending returns a deferred Result and the function that completes it.
// Only the first call to complete has any effect.
func Pending() (*Result, Callback) {
	r := &Result{done: make(chan struct{})}
	return r, r.complete
}

// Go runs fn on a new goroutine and returns a deferred Result for its
// outcome.
func Go(fn func() (any, bool, error)) *Result {
	r, complete := Pending()
	go func() {
		complete(fn())
	}()
	return r
}

func (r *Result) complete(value any, found bool, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.value, r.found, r.err = value, found, err
		callbacks := r.callbacks
		r.callbacks = nil
		close(r.done)
		r.mu.Unlock()

		for _, cb := range callbacks {
			cb(value, found, err)
		}
	})
}

// Ready reports whether the outcome is available.
func (r *Result) Ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once the outcome is available.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Value returns the outcome without blocking. It returns ErrPending when the
// Result is not ready.
func (r *Result) Value() (any, bool, error) {
	if !r.Ready() {
		return nil, false, ErrPending
	}
	return r.value, r.found, r.err
}

// Err returns the error of a ready Result, or ErrPending.
func (r *Result) Err() error {
	_, _, err := r.Value()
	return err
}

// Wait blocks until the outcome is available or ctx is done.
func (r *Result) Wait(ctx context.Context) (any, bool, error) {
	select {
	case <-r.done:
		return r.value, r.found, r.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Then registers cb to receive the outcome. A ready Result invokes cb before
// Then returns; otherwise cb runs on the completing goroutine. Callbacks run
// in registration order.
func (r *Result) Then(cb Callback) *Result {
	r.mu.Lock()
	if !r.Ready() {
		r.callbacks = append(r.callbacks, cb)
		r.mu.Unlock()
		return r
	}
	r.mu.Unlock()

	cb(r.value, r.found, r.err)
	return r
}

// Chain feeds the outcome of r into fn and returns the Result fn produces.
// When r is ready, fn runs immediately and its Result is returned as is, so
// a chain of immediate steps stays immediate.
func Chain(r *Result, fn func(value any, found bool, err error) *Result) *Result {
	if r.Ready() {
		return fn(r.value, r.found, r.err)
	}

	next, complete := Pending()
	r.Then(func(value any, found bool, err error) {
		fn(value, found, err).Then(complete)
	})
	return next
}
