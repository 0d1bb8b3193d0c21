package store

import (
	"context"

	"github.com/thoreinstein/strata/pkg/keypath"
)

// ReadOnly wraps a store and absorbs writes. Set, Merge and Clear resolve
// immediately to not found and never reach the wrapped store; everything
// else is delegated.
type ReadOnly struct {
	inner Store
}

// NewReadOnly wraps inner. Wrapping a ReadOnly returns it unchanged.
func NewReadOnly(inner Store) *ReadOnly {
	if ro, ok := inner.(*ReadOnly); ok {
		return ro
	}
	return &ReadOnly{inner: inner}
}

var (
	_ Store    = (*ReadOnly)(nil)
	_ OpSyncer = (*ReadOnly)(nil)
)

// Unwrap returns the wrapped store.
func (r *ReadOnly) Unwrap() Store { return r.inner }

// Name returns the wrapped store's name.
func (r *ReadOnly) Name() string { return r.inner.Name() }

// Sync reports the wrapped store's synchrony.
func (r *ReadOnly) Sync() bool { return r.inner.Sync() }

// SyncOp reports writes as synchronous since they never dispatch.
func (r *ReadOnly) SyncOp(op Op) bool {
	switch op {
	case OpSet, OpMerge, OpClear:
		return true
	default:
		return IsSync(r.inner, op)
	}
}

// Get reads from the wrapped store.
func (r *ReadOnly) Get(ctx context.Context, p keypath.Path) *Result {
	return r.inner.Get(ctx, p)
}

// Set resolves to not found and leaves the wrapped store untouched.
func (r *ReadOnly) Set(context.Context, keypath.Path, any) *Result {
	return Resolved(nil, false)
}

// Merge resolves to not found and leaves the wrapped store untouched.
func (r *ReadOnly) Merge(context.Context, keypath.Path, any) *Result {
	return Resolved(nil, false)
}

// Clear resolves to not found and leaves the wrapped store untouched.
func (r *ReadOnly) Clear(context.Context, keypath.Path) *Result {
	return Resolved(nil, false)
}

// Load loads the wrapped store.
func (r *ReadOnly) Load(ctx context.Context) *Result {
	return r.inner.Load(ctx)
}

// Save delegates to the wrapped store.
func (r *ReadOnly) Save(ctx context.Context) *Result {
	return r.inner.Save(ctx)
}

// OnReload subscribes to the wrapped store's reloads.
func (r *ReadOnly) OnReload(fn func(Event)) func() {
	return r.inner.OnReload(fn)
}
