package store

import (
	"context"
	"sync"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/tree"
)

// Memory is the synchronous in-memory reference store. Its root is always a
// mapping. Values are cloned when they enter and leave the store, so callers
// never share containers with it.
type Memory struct {
	Notifier

	name string

	mu   sync.RWMutex
	root map[string]any
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithRoot seeds the store with a copy of root. A root that does not
// normalize to a mapping is ignored.
func WithRoot(root any) MemoryOption {
	return func(m *Memory) {
		if r, ok := tree.Clone(root).(map[string]any); ok {
			m.root = r
		}
	}
}

// NewMemory returns an empty Memory store named name.
func NewMemory(name string, opts ...MemoryOption) *Memory {
	m := &Memory{
		name: name,
		root: map[string]any{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*Memory)(nil)

// Name returns the store's name.
func (m *Memory) Name() string { return m.name }

// Sync reports true.
func (m *Memory) Sync() bool { return true }

// Get returns a copy of the value at p.
func (m *Memory) Get(_ context.Context, p keypath.Path) *Result {
	v, found := m.Lookup(p)
	return Resolved(v, found)
}

// Lookup is the synchronous form of Get.
func (m *Memory) Lookup(p keypath.Path) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, found := tree.Get(p, m.root)
	if !found {
		return nil, false
	}
	return tree.Clone(v), true
}

// Set stores value at p. Replacing the root with a non-mapping value fails
// with *RootTypeError.
func (m *Memory) Set(_ context.Context, p keypath.Path, value any) *Result {
	if p.IsRoot() && !tree.IsMergeable(tree.Clone(value)) {
		return Rejected(&RootTypeError{Store: m.name, Op: OpSet, Value: value})
	}

	m.mu.Lock()
	m.root = tree.Set(p, m.root, tree.Clone(value)).(map[string]any)
	out := tree.Clone(m.root)
	m.mu.Unlock()

	return Resolved(out, true)
}

// Merge deep-folds value into the value at p. Merging a non-mapping value
// into the root fails with *RootTypeError.
func (m *Memory) Merge(_ context.Context, p keypath.Path, value any) *Result {
	value = tree.Clone(value)
	if p.IsRoot() && !tree.IsMergeable(value) {
		return Rejected(&RootTypeError{Store: m.name, Op: OpMerge, Value: value})
	}

	m.mu.Lock()
	m.root = tree.Merge(p, m.root, value).(map[string]any)
	out := tree.Clone(m.root)
	m.mu.Unlock()

	return Resolved(out, true)
}

// Clear removes the value at p. Clearing the root empties the store and
// resolves to not found.
func (m *Memory) Clear(_ context.Context, p keypath.Path) *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IsRoot() {
		m.root = map[string]any{}
		return Resolved(nil, false)
	}

	cleared, _ := tree.Clear(p, m.root)
	m.root = cleared.(map[string]any)
	return Resolved(tree.Clone(m.root), true)
}

// Load notifies reload subscribers with the current tree.
func (m *Memory) Load(_ context.Context) *Result {
	snapshot := m.Snapshot()
	m.Emit(Event{Store: m.name, Tree: snapshot})
	return Resolved(snapshot, true)
}

// Save has nothing to persist and resolves to the current tree.
func (m *Memory) Save(_ context.Context) *Result {
	return Resolved(m.Snapshot(), true)
}

// Snapshot returns a copy of the whole tree.
func (m *Memory) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tree.Clone(m.root).(map[string]any)
}

// Replace swaps in a copy of root without notifying subscribers. A root that
// is not a mapping resets the store to an empty mapping.
func (m *Memory) Replace(root any) {
	r, ok := tree.Clone(root).(map[string]any)
	if !ok {
		r = map[string]any{}
	}

	m.mu.Lock()
	m.root = r
	m.mu.Unlock()
}
