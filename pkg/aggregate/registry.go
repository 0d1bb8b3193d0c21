package aggregate

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/store"
)

// Tier groups registry entries. Every entry of a higher tier takes
// precedence over every entry of a lower one; within a tier the most
// recently added entry wins.
type Tier int

const (
	TierDefaults Tier = iota - 1
	TierNormal
	TierOverrides
)

func (t Tier) String() string {
	switch t {
	case TierDefaults:
		return "defaults"
	case TierNormal:
		return "normal"
	case TierOverrides:
		return "overrides"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a tier name into a Tier. The empty string is
// TierNormal.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "", "normal":
		return TierNormal, nil
	case "defaults":
		return TierDefaults, nil
	case "overrides":
		return TierOverrides, nil
	default:
		return TierNormal, errors.Newf("unknown tier %q", s)
	}
}

// Entry describes one registered store.
type Entry struct {
	Name     string
	Store    store.Store
	Tier     Tier
	ReadOnly bool
}

type entry struct {
	Entry
	orig   store.Store
	cancel func()
}

// AddOption configures how a store is registered.
type AddOption func(*addOptions)

type addOptions struct {
	name     string
	readOnly bool
	tier     Tier
}

// WithName registers the store under name instead of its own Name.
func WithName(name string) AddOption {
	return func(o *addOptions) { o.name = name }
}

// WithReadOnly wraps the store so that writes are absorbed.
func WithReadOnly() AddOption {
	return func(o *addOptions) { o.readOnly = true }
}

// WithTier places the store in tier t.
func WithTier(t Tier) AddOption {
	return func(o *addOptions) { o.tier = t }
}

// Add registers s at the front of its tier and loads it. An entry with the
// same name is removed first. The returned Result is the store's Load.
func (a *Aggregate) Add(ctx context.Context, s store.Store, opts ...AddOption) *store.Result {
	o := addOptions{tier: TierNormal}
	for _, opt := range opts {
		opt(&o)
	}

	wrapped := s
	if o.readOnly {
		wrapped = store.NewReadOnly(wrapped)
	}
	if o.name != "" && o.name != s.Name() {
		wrapped = &named{Store: wrapped, name: o.name}
	}

	e := &entry{
		Entry: Entry{
			Name:     wrapped.Name(),
			Store:    wrapped,
			Tier:     o.tier,
			ReadOnly: o.readOnly,
		},
		orig: s,
	}
	e.cancel = wrapped.OnReload(func(ev store.Event) {
		a.Emit(store.Event{Store: e.Name, Tree: ev.Tree})
	})

	a.mu.Lock()
	a.removeLocked(func(x *entry) bool { return x.Name == e.Name })
	a.insertLocked(e)
	a.mu.Unlock()

	a.logger.Debug("store added",
		"store", e.Name,
		"tier", e.Tier.String(),
		"readonly", e.ReadOnly,
		"sync", wrapped.Sync(),
	)

	return wrapped.Load(ctx)
}

// Use registers s under name, replacing any entry of that name.
func (a *Aggregate) Use(ctx context.Context, name string, s store.Store, opts ...AddOption) *store.Result {
	return a.Add(ctx, s, append(opts, WithName(name))...)
}

// Remove deletes the entry named name. It reports whether one existed.
func (a *Aggregate) Remove(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeLocked(func(e *entry) bool { return e.Name == name }) != nil
}

// RemoveStore deletes the entry holding s, whether s was registered directly
// or wrapped. It reports whether one existed.
func (a *Aggregate) RemoveStore(s store.Store) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeLocked(func(e *entry) bool { return e.orig == s || e.Store == s }) != nil
}

// Names returns entry names in precedence order, highest first.
func (a *Aggregate) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.entries))
	for i, e := range a.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns the registry in precedence order, highest first.
func (a *Aggregate) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Entry
	}
	return out
}

// Lookup returns the registered store named name.
func (a *Aggregate) Lookup(name string) (store.Store, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, e := range a.entries {
		if e.Name == name {
			return e.Store, true
		}
	}
	return nil, false
}

// Len returns the number of registered stores.
func (a *Aggregate) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func (a *Aggregate) insertLocked(e *entry) {
	pos := len(a.entries)
	for i, x := range a.entries {
		if x.Tier <= e.Tier {
			pos = i
			break
		}
	}
	a.entries = append(a.entries, nil)
	copy(a.entries[pos+1:], a.entries[pos:])
	a.entries[pos] = e
}

func (a *Aggregate) removeLocked(match func(*entry) bool) *entry {
	for i, e := range a.entries {
		if !match(e) {
			continue
		}
		a.entries = append(a.entries[:i:i], a.entries[i+1:]...)
		if e.cancel != nil {
			e.cancel()
		}
		a.logger.Debug("store removed", "store", e.Name)
		return e
	}
	return nil
}

// snapshot copies the registry so a fan-out sees one consistent order.
func (a *Aggregate) snapshot() []*entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// named overrides the registry name of a store.
type named struct {
	store.Store
	name string
}

func (n *named) Name() string { return n.name }

func (n *named) SyncOp(op store.Op) bool { return store.IsSync(n.Store, op) }

func (n *named) Unwrap() store.Store { return n.Store }
