package store

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/strata/pkg/keypath"
)

func mustValue(t *testing.T, r *Result) (any, bool) {
	t.Helper()
	v, found, err := r.Value()
	require.NoError(t, err)
	return v, found
}

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("mem")

	root, _ := mustValue(t, m.Set(ctx, keypath.Parse("db:host"), "localhost"))
	assert.Equal(t, map[string]any{"db": map[string]any{"host": "localhost"}}, root)

	v, found := mustValue(t, m.Get(ctx, keypath.Parse("db:host")))
	assert.True(t, found)
	assert.Equal(t, "localhost", v)

	_, found = mustValue(t, m.Get(ctx, keypath.Parse("db:port")))
	assert.False(t, found)
}

func TestMemory_RootTypeError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("mem", WithRoot(map[string]any{"a": 1}))

	for name, r := range map[string]*Result{
		"set":   m.Set(ctx, keypath.Root, "scalar"),
		"merge": m.Merge(ctx, keypath.Root, []any{1}),
	} {
		var rootErr *RootTypeError
		require.Truef(t, errors.As(r.Err(), &rootErr), "%s: got %v", name, r.Err())
		assert.Equal(t, "mem", rootErr.Store)
	}

	// the failed writes left the tree alone
	assert.Equal(t, map[string]any{"a": 1}, m.Snapshot())
}

func TestMemory_ClearRoot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("mem", WithRoot(map[string]any{"a": 1}))

	v, found := mustValue(t, m.Clear(ctx, keypath.Root))
	assert.False(t, found)
	assert.Nil(t, v)
	assert.Equal(t, map[string]any{}, m.Snapshot())
}

func TestMemory_Merge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("mem", WithRoot(map[string]any{"a": map[string]any{"x": 1}}))

	root, _ := mustValue(t, m.Merge(ctx, keypath.Root, map[string]any{"a": map[string]any{"y": 2}}))
	assert.Equal(t, map[string]any{"a": map[string]any{"x": 1, "y": 2}}, root)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("mem")

	in := map[string]any{"k": "v"}
	m.Set(ctx, keypath.Parse("a"), in)
	in["k"] = "mutated"

	out, _ := mustValue(t, m.Get(ctx, keypath.Parse("a")))
	out.(map[string]any)["k"] = "also mutated"

	v, _ := mustValue(t, m.Get(ctx, keypath.Parse("a:k")))
	assert.Equal(t, "v", v)
}

func TestMemory_LoadEmits(t *testing.T) {
	m := NewMemory("mem", WithRoot(map[string]any{"a": 1}))

	var events []Event
	cancel := m.OnReload(func(ev Event) { events = append(events, ev) })

	m.Load(context.Background())
	cancel()
	m.Load(context.Background())

	require.Len(t, events, 1)
	assert.Equal(t, "mem", events[0].Store)
	assert.Equal(t, map[string]any{"a": 1}, events[0].Tree)
}

func TestReplicate(t *testing.T) {
	ctx := context.Background()
	src := NewMemory("src", WithRoot(map[string]any{"a": 1}))
	dst := NewMemory("dst", WithRoot(map[string]any{"b": 2}))

	_, _, err := Replicate(ctx, src, dst).Value()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, dst.Snapshot())
}

func TestReset(t *testing.T) {
	m := NewMemory("mem", WithRoot(map[string]any{"a": 1}))
	Reset(context.Background(), m)
	assert.Empty(t, m.Snapshot())
}

func TestFuncs_Unimplemented(t *testing.T) {
	f := &Funcs{StoreName: "partial", Synchronous: true}

	var capErr *UnimplementedCapabilityError
	require.True(t, errors.As(f.Save(context.Background()).Err(), &capErr))
	assert.Equal(t, OpSave, capErr.Op)
	assert.Equal(t, "store \"partial\" does not implement save", capErr.Error())
}

func TestIsSync(t *testing.T) {
	async := &Funcs{StoreName: "remote"}
	assert.False(t, IsSync(async, OpGet))

	ro := NewReadOnly(async)
	assert.True(t, IsSync(ro, OpSet))
	assert.False(t, IsSync(ro, OpGet))
}

func TestAs(t *testing.T) {
	mem := NewMemory("m")
	wrapped := NewReadOnly(NewCached(mem))

	got, ok := As[*Memory](wrapped)
	require.True(t, ok)
	assert.Same(t, mem, got)

	cached, ok := As[*Cached](wrapped)
	require.True(t, ok)
	assert.Same(t, mem, cached.Upstream())

	_, ok = As[*Funcs](wrapped)
	assert.False(t, ok)
	assert.Nil(t, Unwrap(mem))
}
