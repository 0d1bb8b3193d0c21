// Package store defines the capability contract shared by every
// configuration backend, along with the in-memory reference store and the
// read-only and cached wrappers built on it.
//
// Every operation returns a *Result. Synchronous stores return Results that
// are already ready; asynchronous stores return Results that complete later.
// A store advertises which one to expect through Sync, refined per operation
// by the optional OpSyncer interface.
package store

import (
	"context"

	"github.com/thoreinstein/strata/pkg/keypath"
)

// Op names a store operation.
type Op int

const (
	OpGet Op = iota
	OpSet
	OpMerge
	OpClear
	OpLoad
	OpSave
)

// Ops lists every operation in declaration order.
var Ops = []Op{OpGet, OpSet, OpMerge, OpClear, OpLoad, OpSave}

func (o Op) String() string {
	switch o {
	case OpGet:
		return "get"
	case OpSet:
		return "set"
	case OpMerge:
		return "merge"
	case OpClear:
		return "clear"
	case OpLoad:
		return "load"
	case OpSave:
		return "save"
	default:
		return "unknown"
	}
}

// Store is a named source of configuration that owns its tree.
//
// Get, Set, Merge and Clear address the tree with a parsed path; the root
// path addresses the whole tree. Set, Merge and Clear resolve to the store's
// tree after the change. Load pulls the durable representation into the tree
// and notifies OnReload subscribers. Save pushes the tree back.
type Store interface {
	Name() string
	Sync() bool

	Get(ctx context.Context, p keypath.Path) *Result
	Set(ctx context.Context, p keypath.Path, value any) *Result
	Merge(ctx context.Context, p keypath.Path, value any) *Result
	Clear(ctx context.Context, p keypath.Path) *Result
	Load(ctx context.Context) *Result
	Save(ctx context.Context) *Result

	// OnReload subscribes fn to reload notifications. The returned function
	// removes the subscription.
	OnReload(fn func(Event)) (cancel func())
}

// OpSyncer is implemented by stores whose operations differ in whether they
// complete synchronously.
type OpSyncer interface {
	SyncOp(op Op) bool
}

// IsSync reports whether s completes op before returning.
func IsSync(s Store, op Op) bool {
	if syncer, ok := s.(OpSyncer); ok {
		return syncer.SyncOp(op)
	}
	return s.Sync()
}

// Event is delivered to reload subscribers after a store's tree has been
// replaced.
type Event struct {
	Store string
	Tree  any
}

// Reset clears the whole tree of s.
func Reset(ctx context.Context, s Store) *Result {
	return s.Clear(ctx, keypath.Root)
}

// Replicate copies the whole tree of src into dst.
func Replicate(ctx context.Context, src, dst Store) *Result {
	return Chain(src.Get(ctx, keypath.Root), func(value any, _ bool, err error) *Result {
		if err != nil {
			return Rejected(err)
		}
		return dst.Set(ctx, keypath.Root, value)
	})
}

// Unwrap returns the store that s decorates, or nil when s is not a
// wrapper such as ReadOnly or Cached.
func Unwrap(s Store) Store {
	switch w := s.(type) {
	case interface{ Unwrap() Store }:
		return w.Unwrap()
	case interface{ Upstream() Store }:
		return w.Upstream()
	default:
		return nil
	}
}

// As walks the wrapper chain of s and returns the first store of type T.
func As[T any](s Store) (T, bool) {
	for s != nil {
		if t, ok := s.(T); ok {
			return t, true
		}
		s = Unwrap(s)
	}
	var zero T
	return zero, false
}
