// Package aggregate layers an ordered registry of stores into one logical
// store.
//
// Every operation fans out to all registered stores, waits for all of them
// and folds their results with tree.MergeObjects so that the store at the
// front of the registry wins conflicts. Writes are broadcast: every store
// receives the same change, and the merged result is folded the same way.
//
// Two dispatch strategies are offered. The Store methods (Get, Set, ...)
// always return a *store.Result, immediate when every store completed
// synchronously. The Sync methods (GetSync, SetSync, ...) return plain
// values and refuse with *store.AsyncDispatchRequiredError, before touching
// any store, when a registered store cannot complete the operation
// synchronously.
package aggregate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/tree"
)

// Aggregate is a store made of other stores. It is safe for concurrent use;
// each fan-out operates on the registry as it was when the call started.
type Aggregate struct {
	store.Notifier

	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries []*entry
}

// Option configures an Aggregate.
type Option func(*Aggregate)

// WithLogger sets the logger used for dispatch tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregate) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New returns an empty Aggregate named name.
func New(name string, opts ...Option) *Aggregate {
	a := &Aggregate{
		name:   name,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var (
	_ store.Store    = (*Aggregate)(nil)
	_ store.OpSyncer = (*Aggregate)(nil)
)

// Name returns the aggregate's own name, used in events and errors.
func (a *Aggregate) Name() string { return a.name }

// Sync reports whether every registered store is synchronous for every
// operation.
func (a *Aggregate) Sync() bool {
	for _, op := range store.Ops {
		if !a.SyncOp(op) {
			return false
		}
	}
	return true
}

// SyncOp reports whether every registered store completes op synchronously.
func (a *Aggregate) SyncOp(op store.Op) bool {
	return len(asyncNames(a.snapshot(), op)) == 0
}

// AsyncStores names the stores, in precedence order, that complete op
// asynchronously.
func (a *Aggregate) AsyncStores(op store.Op) []string {
	return asyncNames(a.snapshot(), op)
}

func asyncNames(entries []*entry, op store.Op) []string {
	var names []string
	for _, e := range entries {
		if !store.IsSync(e.Store, op) {
			names = append(names, e.Name)
		}
	}
	return names
}

// Get reads p from every store and overlays the values found, front of the
// registry last so that it wins.
func (a *Aggregate) Get(ctx context.Context, p keypath.Path) *store.Result {
	return a.fanOut(a.snapshot(), store.OpGet, p, func(s store.Store) *store.Result {
		return s.Get(ctx, p)
	})
}

// Set writes value at p in every store.
func (a *Aggregate) Set(ctx context.Context, p keypath.Path, value any) *store.Result {
	return a.fanOut(a.snapshot(), store.OpSet, p, func(s store.Store) *store.Result {
		return s.Set(ctx, p, value)
	})
}

// Merge deep-folds value into p in every store.
func (a *Aggregate) Merge(ctx context.Context, p keypath.Path, value any) *store.Result {
	return a.fanOut(a.snapshot(), store.OpMerge, p, func(s store.Store) *store.Result {
		return s.Merge(ctx, p, value)
	})
}

// Clear removes p from every store.
func (a *Aggregate) Clear(ctx context.Context, p keypath.Path) *store.Result {
	return a.fanOut(a.snapshot(), store.OpClear, p, func(s store.Store) *store.Result {
		return s.Clear(ctx, p)
	})
}

// Reset clears the whole tree of every store.
func (a *Aggregate) Reset(ctx context.Context) *store.Result {
	return a.Clear(ctx, keypath.Root)
}

// Load reloads every store.
func (a *Aggregate) Load(ctx context.Context) *store.Result {
	return a.fanOut(a.snapshot(), store.OpLoad, keypath.Root, func(s store.Store) *store.Result {
		return s.Load(ctx)
	})
}

// Save persists every store.
func (a *Aggregate) Save(ctx context.Context) *store.Result {
	return a.fanOut(a.snapshot(), store.OpSave, keypath.Root, func(s store.Store) *store.Result {
		return s.Save(ctx)
	})
}

// GetSync is Get for registries whose stores all read synchronously.
func (a *Aggregate) GetSync(ctx context.Context, p keypath.Path) (any, bool, error) {
	return a.syncCall(store.OpGet, p, func(s store.Store) *store.Result {
		return s.Get(ctx, p)
	})
}

// SetSync is Set for registries whose stores all write synchronously.
func (a *Aggregate) SetSync(ctx context.Context, p keypath.Path, value any) (any, bool, error) {
	return a.syncCall(store.OpSet, p, func(s store.Store) *store.Result {
		return s.Set(ctx, p, value)
	})
}

// MergeSync is Merge for registries whose stores all merge synchronously.
func (a *Aggregate) MergeSync(ctx context.Context, p keypath.Path, value any) (any, bool, error) {
	return a.syncCall(store.OpMerge, p, func(s store.Store) *store.Result {
		return s.Merge(ctx, p, value)
	})
}

// ClearSync is Clear for registries whose stores all clear synchronously.
func (a *Aggregate) ClearSync(ctx context.Context, p keypath.Path) (any, bool, error) {
	return a.syncCall(store.OpClear, p, func(s store.Store) *store.Result {
		return s.Clear(ctx, p)
	})
}

// ResetSync is Reset for registries whose stores all clear synchronously.
func (a *Aggregate) ResetSync(ctx context.Context) (any, bool, error) {
	return a.ClearSync(ctx, keypath.Root)
}

// LoadSync is Load for registries whose stores all load synchronously.
func (a *Aggregate) LoadSync(ctx context.Context) (any, bool, error) {
	return a.syncCall(store.OpLoad, keypath.Root, func(s store.Store) *store.Result {
		return s.Load(ctx)
	})
}

// SaveSync is Save for registries whose stores all save synchronously.
func (a *Aggregate) SaveSync(ctx context.Context) (any, bool, error) {
	return a.syncCall(store.OpSave, keypath.Root, func(s store.Store) *store.Result {
		return s.Save(ctx)
	})
}

func (a *Aggregate) syncCall(op store.Op, p keypath.Path, call func(store.Store) *store.Result) (any, bool, error) {
	entries := a.snapshot()
	if async := asyncNames(entries, op); len(async) > 0 {
		a.logger.Debug("synchronous dispatch refused", "op", op.String(), "async", async)
		return nil, false, &store.AsyncDispatchRequiredError{Op: op, Stores: async}
	}

	r := a.fanOut(entries, op, p, call)
	v, found, err := r.Value()
	if errors.Is(err, store.ErrPending) {
		return nil, false, errors.Wrapf(err, "%s: a store reported synchronous %s but did not complete", a.name, op)
	}
	return v, found, err
}

// fanOut dispatches call to every entry and joins the results.
//
// The first error to arrive wins and is delivered once; when every Result is
// already complete, the first error in registry order wins. Stores that
// completed before the error are not rolled back.
func (a *Aggregate) fanOut(entries []*entry, op store.Op, p keypath.Path, call func(store.Store) *store.Result) *store.Result {
	a.logger.Debug("dispatch", "op", op.String(), "path", p.String(), "stores", len(entries))

	results := make([]*store.Result, len(entries))
	pending := 0
	for i, e := range entries {
		results[i] = call(e.Store)
		if !results[i].Ready() {
			pending++
		}
	}

	if pending == 0 {
		for i, r := range results {
			if err := r.Err(); err != nil {
				return store.Rejected(a.storeError(entries[i], op, err))
			}
		}
		v, found := a.fold(op, results)
		return store.Resolved(v, found)
	}

	out, complete := store.Pending()

	var (
		mu        sync.Mutex
		remaining = len(results)
		failed    bool
	)
	for i, r := range results {
		e := entries[i]
		r.Then(func(_ any, _ bool, err error) {
			mu.Lock()
			if failed {
				mu.Unlock()
				return
			}
			if err != nil {
				failed = true
				mu.Unlock()
				complete(nil, false, a.storeError(e, op, err))
				return
			}
			remaining--
			last := remaining == 0
			mu.Unlock()

			if last {
				v, found := a.fold(op, results)
				complete(v, found, nil)
			}
		})
	}

	return out
}

// fold overlays the found values of results, which are all complete, in
// reverse registry order.
func (a *Aggregate) fold(op store.Op, results []*store.Result) (any, bool) {
	values := make([]any, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		v, found, _ := results[i].Value()
		if found {
			values = append(values, v)
		}
	}

	v, found := tree.MergeObjects(values...)
	a.logger.Debug("joined", "op", op.String(), "contributing", len(values), "found", found)
	return v, found
}

func (a *Aggregate) storeError(e *entry, op store.Op, err error) error {
	a.logger.Debug("store failed", "op", op.String(), "store", e.Name, "error", err)
	return errors.Wrapf(err, "%s %s", e.Name, op)
}
