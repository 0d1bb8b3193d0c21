package store

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/strata/pkg/keypath"
)

// mockStore is a testify double for Store. Reload subscriptions go through
// the embedded Notifier so tests can emit upstream reloads directly.
type mockStore struct {
	mock.Mock
	Notifier
}

func (m *mockStore) Name() string { return m.Called().String(0) }
func (m *mockStore) Sync() bool   { return m.Called().Bool(0) }

func (m *mockStore) Get(ctx context.Context, p keypath.Path) *Result {
	return m.Called(ctx, p).Get(0).(*Result)
}

func (m *mockStore) Set(ctx context.Context, p keypath.Path, value any) *Result {
	return m.Called(ctx, p, value).Get(0).(*Result)
}

func (m *mockStore) Merge(ctx context.Context, p keypath.Path, value any) *Result {
	return m.Called(ctx, p, value).Get(0).(*Result)
}

func (m *mockStore) Clear(ctx context.Context, p keypath.Path) *Result {
	return m.Called(ctx, p).Get(0).(*Result)
}

func (m *mockStore) Load(ctx context.Context) *Result {
	return m.Called(ctx).Get(0).(*Result)
}

func (m *mockStore) Save(ctx context.Context) *Result {
	return m.Called(ctx).Get(0).(*Result)
}

func newMockStore(name string) *mockStore {
	m := &mockStore{}
	m.On("Name").Return(name).Maybe()
	return m
}

func TestCached_SaveStopsWhenUpstreamSetFails(t *testing.T) {
	up := newMockStore("remote")
	up.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(Rejected(errors.New("write refused")))

	c := NewCached(up)
	err := c.Save(context.Background()).Err()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write refused")
	up.AssertNotCalled(t, "Save", mock.Anything)
}

func TestCached_SaveFlushesMirrorThenSaves(t *testing.T) {
	ctx := context.Background()
	up := newMockStore("remote")

	c := NewCached(up)
	c.Set(ctx, keypath.Parse("a"), 1)

	up.On("Set", mock.Anything, keypath.Root, map[string]any{"a": 1}).Return(Resolved(map[string]any{"a": 1}, true)).Once()
	up.On("Save", mock.Anything).Return(Resolved(map[string]any{"a": 1}, true)).Once()

	require.NoError(t, c.Save(ctx).Err())
	up.AssertExpectations(t)
}

func TestCached_LoadAdoptsMapping(t *testing.T) {
	ctx := context.Background()
	up := NewMemory("remote", WithRoot(map[string]any{"a": map[string]any{"b": 1}}))

	c := NewCached(up)

	var events []Event
	c.OnReload(func(ev Event) { events = append(events, ev) })

	r := c.Load(ctx)
	require.True(t, r.Ready(), "load over a synchronous upstream is immediate")
	require.NoError(t, r.Err())

	v, found := mustValue(t, c.Get(ctx, keypath.Parse("a:b")))
	assert.True(t, found)
	assert.Equal(t, 1, v)

	// the upstream's own reload during Load is not forwarded a second time
	require.Len(t, events, 1)
	assert.Equal(t, "remote", events[0].Store)
}

func TestCached_LoadResetsOnNonMapping(t *testing.T) {
	ctx := context.Background()
	up := newMockStore("remote")
	up.On("Load", mock.Anything).Return(Resolved(nil, true))
	up.On("Get", mock.Anything, keypath.Root).Return(Resolved("not a mapping", true))

	c := NewCached(up)
	c.Set(ctx, keypath.Parse("stale"), true)

	require.NoError(t, c.Load(ctx).Err())
	assert.Equal(t, map[string]any{}, c.Snapshot())
}

func TestCached_LoadError(t *testing.T) {
	up := newMockStore("remote")
	up.On("Load", mock.Anything).Return(Rejected(&TransportError{Store: "remote", Op: OpLoad, Status: 503}))

	c := NewCached(up)
	err := c.Load(context.Background()).Err()

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 503, te.Status)
	up.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestCached_AsyncUpstream(t *testing.T) {
	ctx := context.Background()
	up := newMockStore("remote")

	loaded, completeLoad := Pending()
	up.On("Load", mock.Anything).Return(loaded)
	up.On("Get", mock.Anything, keypath.Root).Return(Resolved(map[string]any{"k": "v"}, true))

	c := NewCached(up)
	r := c.Load(ctx)
	assert.False(t, r.Ready())

	// reads stay synchronous while the upstream is in flight
	_, found := mustValue(t, c.Get(ctx, keypath.Parse("k")))
	assert.False(t, found)

	completeLoad(nil, true, nil)
	require.NoError(t, r.Err())

	v, _ := mustValue(t, c.Get(ctx, keypath.Parse("k")))
	assert.Equal(t, "v", v)
}

func TestCached_ForwardsUpstreamReloads(t *testing.T) {
	up := newMockStore("remote")
	c := NewCached(up)

	var got []Event
	c.OnReload(func(ev Event) { got = append(got, ev) })

	up.Emit(Event{Store: "remote", Tree: map[string]any{"fresh": true}})

	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"fresh": true}, c.Snapshot())

	require.NoError(t, c.Close())
	up.Emit(Event{Store: "remote", Tree: map[string]any{}})
	assert.Len(t, got, 1)
}

func TestCached_SyncFollowsUpstream(t *testing.T) {
	async := &Funcs{StoreName: "remote"}
	c := NewCached(async)

	assert.True(t, c.SyncOp(OpGet))
	assert.True(t, c.SyncOp(OpSet))
	assert.False(t, c.SyncOp(OpLoad))
	assert.False(t, c.SyncOp(OpSave))
	assert.False(t, c.Sync())

	assert.True(t, NewCached(NewMemory("local")).Sync())
}

func TestReadOnly_NeverWrites(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory("inner", WithRoot(map[string]any{"a": 1, "b": map[string]any{"c": 2}}))
	ro := NewReadOnly(inner)

	ops := []*Result{
		ro.Set(ctx, keypath.Parse("a"), 10),
		ro.Set(ctx, keypath.Root, "not even a mapping"),
		ro.Merge(ctx, keypath.Parse("b"), map[string]any{"d": 3}),
		ro.Clear(ctx, keypath.Parse("b:c")),
		ro.Clear(ctx, keypath.Root),
	}
	for i, r := range ops {
		v, found, err := r.Value()
		require.NoErrorf(t, err, "op %d", i)
		assert.Falsef(t, found, "op %d", i)
		assert.Nilf(t, v, "op %d", i)
	}

	assert.Equal(t, map[string]any{"a": 1, "b": map[string]any{"c": 2}}, inner.Snapshot())

	v, _ := mustValue(t, ro.Get(ctx, keypath.Parse("b:c")))
	assert.Equal(t, 2, v)
	assert.Same(t, ro, NewReadOnly(ro))
}
