package httpstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
)

func wait(t *testing.T, r *store.Result) (any, bool, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Wait(ctx)
}

func newBackend(t *testing.T, root map[string]any) (*store.Memory, *Store) {
	t.Helper()
	backend := store.NewMemory("backend", store.WithRoot(root))
	srv := httptest.NewServer(http.StripPrefix("/conf", NewHandler(backend)))
	t.Cleanup(srv.Close)

	client, err := New("remote", Options{URL: srv.URL + "/conf", Client: srv.Client()})
	require.NoError(t, err)
	return backend, client
}

func TestNew_Validation(t *testing.T) {
	_, err := New("remote", Options{})
	assert.ErrorIs(t, err, ErrMissingURL)

	_, err = New("remote", Options{URL: "http://localhost", Format: "xml"})
	assert.Error(t, err)
}

func TestStore_URL(t *testing.T) {
	s, err := New("remote", Options{URL: "http://example.com/base/"})
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/base", s.URL(keypath.Root))
	assert.Equal(t, "http://example.com/base/db/host", s.URL(keypath.Path{"db", "host"}))
	assert.Equal(t, "http://example.com/base/a%2Fb/c%20d", s.URL(keypath.Path{"a/b", "c d"}))
	assert.Equal(t, "http://example.com/base/a/", s.URL(keypath.Path{"a", ""}))
	assert.Equal(t, "http://example.com/base/a//b", s.URL(keypath.Path{"a", "", "b"}))
}

func TestStore_EmptySegments(t *testing.T) {
	backend, s := newBackend(t, map[string]any{
		"keep": 1,
		"a":    map[string]any{"": "e", "x": 2},
	})
	ctx := context.Background()

	v, found, err := wait(t, s.Get(ctx, keypath.Parse("a:")))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "e", v)

	_, _, err = wait(t, s.Set(ctx, keypath.Parse("m::n"), "v"))
	require.NoError(t, err)
	got, found, _ := backend.Get(ctx, keypath.Path{"m"}).Value()
	assert.True(t, found)
	assert.Equal(t, map[string]any{"": map[string]any{"n": "v"}}, got)

	v, found, err = wait(t, s.Get(ctx, keypath.Parse("m::n")))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)

	_, _, err = wait(t, s.Clear(ctx, keypath.Parse("a:")))
	require.NoError(t, err)
	got, _, _ = backend.Get(ctx, keypath.Path{"a"}).Value()
	assert.Equal(t, map[string]any{"x": 2}, got)
}

func TestStore_LoneEmptyKeyRejected(t *testing.T) {
	backend, s := newBackend(t, map[string]any{"keep": 1})
	ctx := context.Background()

	for _, r := range []*store.Result{
		s.Set(ctx, keypath.Parse(""), map[string]any{"k": "v"}),
		s.Merge(ctx, keypath.Parse(""), map[string]any{"k": "v"}),
		s.Clear(ctx, keypath.Parse("")),
		s.Get(ctx, keypath.Parse("")),
	} {
		_, _, err := wait(t, r)
		assert.ErrorIs(t, err, ErrEmptyKeyPath)
	}

	got, _, _ := backend.Get(ctx, keypath.Root).Value()
	assert.Equal(t, map[string]any{"keep": 1}, got)
}

func TestStore_GetSetMergeClear(t *testing.T) {
	backend, s := newBackend(t, map[string]any{
		"db": map[string]any{"host": "localhost", "port": 5432},
	})
	ctx := context.Background()
	assert.False(t, s.Sync())

	v, found, err := wait(t, s.Get(ctx, keypath.Parse("db:host")))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "localhost", v)

	_, found, err = wait(t, s.Get(ctx, keypath.Parse("db:missing")))
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = wait(t, s.Set(ctx, keypath.Parse("db:host"), "remote"))
	require.NoError(t, err)
	got, _ := backend.Lookup(keypath.Parse("db:host"))
	assert.Equal(t, "remote", got)

	v, _, err = wait(t, s.Merge(ctx, keypath.Parse("db"), map[string]any{"user": "app"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"db": map[string]any{"host": "remote", "port": float64(5432), "user": "app"},
	}, v)

	_, _, err = wait(t, s.Clear(ctx, keypath.Parse("db:port")))
	require.NoError(t, err)
	_, found = backend.Lookup(keypath.Parse("db:port"))
	assert.False(t, found)

	v, found, err = wait(t, s.Clear(ctx, keypath.Root))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
	assert.Equal(t, map[string]any{}, backend.Snapshot())
}

func TestStore_SegmentWithSlash(t *testing.T) {
	backend, s := newBackend(t, nil)
	ctx := context.Background()

	_, _, err := wait(t, s.Set(ctx, keypath.Path{"routes", "/api/v1"}, "svc"))
	require.NoError(t, err)

	got, found := backend.Lookup(keypath.Path{"routes", "/api/v1"})
	assert.True(t, found)
	assert.Equal(t, "svc", got)
}

func TestStore_RootTypeErrorIsTransport(t *testing.T) {
	_, s := newBackend(t, nil)

	_, _, err := wait(t, s.Set(context.Background(), keypath.Root, "scalar"))
	var te *store.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.Status)
	assert.Equal(t, store.OpSet, te.Op)
}

func TestStore_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{ not json"))
	}))
	t.Cleanup(srv.Close)

	s, err := New("remote", Options{URL: srv.URL})
	require.NoError(t, err)

	_, _, err = wait(t, s.Get(context.Background(), keypath.Parse("a")))
	var pe *store.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "json", pe.Format)
}

func TestStore_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s, err := New("remote", Options{URL: srv.URL})
	require.NoError(t, err)

	_, _, err = wait(t, s.Get(context.Background(), keypath.Root))
	var te *store.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Contains(t, te.Error(), "boom")
}

func TestStore_Headers(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	s, err := New("remote", Options{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer x"}})
	require.NoError(t, err)
	_, _, err = wait(t, s.Get(context.Background(), keypath.Root))
	require.NoError(t, err)
	assert.Equal(t, "Bearer x", <-got)
}

func TestStore_LoadEmitsAndSaveIsNoop(t *testing.T) {
	_, s := newBackend(t, map[string]any{"a": 1})

	var mu sync.Mutex
	var events []store.Event
	s.OnReload(func(ev store.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	v, _, err := wait(t, s.Load(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)

	mu.Lock()
	require.Len(t, events, 1)
	assert.Equal(t, "remote", events[0].Store)
	mu.Unlock()

	r := s.Save(context.Background())
	assert.True(t, r.Ready())
	assert.NoError(t, r.Err())
}

func TestStore_Poll(t *testing.T) {
	_, s := newBackend(t, map[string]any{"a": 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.Watch(ctx)

	go s.Poll(ctx, 10*time.Millisecond)

	select {
	case ev := <-events:
		assert.Equal(t, map[string]any{"a": float64(1)}, ev.Tree)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload from poll")
	}
}

func TestHandler_Methods(t *testing.T) {
	backend := store.NewMemory("backend", store.WithRoot(map[string]any{"a": map[string]any{"b": 1}}))
	h := NewHandler(backend)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		want   string
	}{
		{name: "get leaf", method: http.MethodGet, path: "/a/b", status: http.StatusOK, want: "1"},
		{name: "get missing", method: http.MethodGet, path: "/x", status: http.StatusNotFound},
		{name: "put", method: http.MethodPut, path: "/a/c", body: `"v"`, status: http.StatusOK},
		{name: "post", method: http.MethodPost, path: "/a", body: `{"d": true}`, status: http.StatusOK},
		{name: "put empty body", method: http.MethodPut, path: "/a", status: http.StatusBadRequest},
		{name: "put root scalar", method: http.MethodPut, path: "/", body: `5`, status: http.StatusBadRequest},
		{name: "patch", method: http.MethodPatch, path: "/a", status: http.StatusMethodNotAllowed},
		{name: "delete root", method: http.MethodDelete, path: "/", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.want != "" {
				assert.JSONEq(t, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandler_EmptySegments(t *testing.T) {
	backend := store.NewMemory("backend", store.WithRoot(map[string]any{
		"a": map[string]any{"": "e", "x": 2},
	}))
	h := NewHandler(backend)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"e"`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/a//b", strings.NewReader(`3`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	got, found, _ := backend.Get(context.Background(), keypath.Path{"a", "", "b"}).Value()
	assert.True(t, found)
	assert.Equal(t, float64(3), got)
	x, _, _ := backend.Get(context.Background(), keypath.Path{"a", "x"}).Value()
	assert.Equal(t, 2, x)
}

func TestHandler_OverAsyncStore(t *testing.T) {
	inner := store.NewMemory("inner", store.WithRoot(map[string]any{"k": "v"}))
	async := &store.Funcs{
		StoreName: "async",
		GetFunc: func(ctx context.Context, p keypath.Path) *store.Result {
			return store.Go(func() (any, bool, error) {
				return inner.Get(ctx, p).Value()
			})
		},
	}

	rec := httptest.NewRecorder()
	NewHandler(async).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/k", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"v"`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHandler(async).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/k", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
