package store

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/keypath"
)

// Cached keeps a synchronous in-memory mirror of an upstream store.
//
// Reads and writes only touch the mirror and complete immediately. Load
// replaces the mirror with the upstream's tree and Save flushes the mirror
// upstream, so both are exactly as synchronous as the upstream's own Load
// and Save.
type Cached struct {
	*Memory

	upstream Store
	loading  atomic.Int32
	cancel   func()
}

// NewCached wraps upstream. The mirror starts empty until Load. Reloads the
// upstream emits on its own, outside of Load, refresh the mirror and are
// forwarded to the Cached store's subscribers.
func NewCached(upstream Store) *Cached {
	c := &Cached{
		Memory:   NewMemory(upstream.Name()),
		upstream: upstream,
	}
	c.cancel = upstream.OnReload(c.upstreamReloaded)
	return c
}

var (
	_ Store    = (*Cached)(nil)
	_ OpSyncer = (*Cached)(nil)
)

// Upstream returns the wrapped store.
func (c *Cached) Upstream() Store { return c.upstream }

// Sync reports whether every operation, Load and Save included, completes
// immediately.
func (c *Cached) Sync() bool {
	return c.SyncOp(OpLoad) && c.SyncOp(OpSave)
}

// SyncOp reports mirror operations as synchronous. Load and Save follow the
// upstream.
func (c *Cached) SyncOp(op Op) bool {
	switch op {
	case OpLoad:
		return IsSync(c.upstream, OpLoad) && IsSync(c.upstream, OpGet)
	case OpSave:
		return IsSync(c.upstream, OpSet) && IsSync(c.upstream, OpSave)
	default:
		return true
	}
}

// Load loads the upstream, then adopts its whole tree as the mirror. A tree
// that is not a mapping resets the mirror to an empty mapping. The resolved
// value is the tree the upstream returned.
func (c *Cached) Load(ctx context.Context) *Result {
	c.loading.Add(1)
	done := func() { c.loading.Add(-1) }

	loaded := Chain(c.upstream.Load(ctx), func(_ any, _ bool, err error) *Result {
		if err != nil {
			return Rejected(errors.Wrapf(err, "load upstream of %s", c.Name()))
		}
		return Chain(c.upstream.Get(ctx, keypath.Root), func(root any, found bool, err error) *Result {
			if err != nil {
				return Rejected(errors.Wrapf(err, "read upstream of %s", c.Name()))
			}
			c.Replace(root)
			c.Emit(Event{Store: c.Name(), Tree: c.Snapshot()})
			return Resolved(root, found)
		})
	})

	loaded.Then(func(any, bool, error) { done() })
	return loaded
}

// Save pushes the whole mirror to the upstream and, only when that
// succeeds, asks the upstream to save.
func (c *Cached) Save(ctx context.Context) *Result {
	return Chain(c.upstream.Set(ctx, keypath.Root, c.Snapshot()), func(_ any, _ bool, err error) *Result {
		if err != nil {
			return Rejected(errors.Wrapf(err, "flush %s", c.Name()))
		}
		return c.upstream.Save(ctx)
	})
}

// Close stops listening to upstream reloads and closes the upstream when it
// holds resources.
func (c *Cached) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if closer, ok := c.upstream.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cached) upstreamReloaded(ev Event) {
	if c.loading.Load() > 0 {
		return
	}
	c.Replace(ev.Tree)
	c.Emit(Event{Store: c.Name(), Tree: c.Snapshot()})
}

