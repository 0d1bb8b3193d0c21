// Package etcd implements a store that keeps the whole configuration tree
// as one JSON document under a single etcd key.
//
// Reads and writes operate on an in-memory mirror. Load fetches the key and
// Save writes the mirror back; both complete asynchronously. The cluster is
// not contacted until the first Load, which also lists the cluster members
// so a misconfigured endpoint fails there rather than at construction.
package etcd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/store"
)

// Defaults applied by New.
const (
	DefaultKey         = "strata"
	DefaultEndpoint    = "127.0.0.1:2379"
	DefaultDialTimeout = 5 * time.Second
)

// Options configures an etcd store.
type Options struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	Key         string        `mapstructure:"key"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`

	// ReadOnly stops Save from writing to the cluster.
	ReadOnly bool `mapstructure:"readonly"`

	// Client replaces the dialed client. Mostly useful in tests.
	Client Client       `mapstructure:"-"`
	Logger *slog.Logger `mapstructure:"-"`
}

// Store is an etcd-backed store.
type Store struct {
	*store.Memory

	key      string
	readOnly bool
	logger   *slog.Logger

	dial func() (Client, error)

	mu     sync.Mutex
	client Client
	peers  []string
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.OpSyncer = (*Store)(nil)
)

// New returns a store for opts.Key. No connection is made until Load.
func New(name string, opts Options) *Store {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	endpoints := opts.Endpoints
	if len(endpoints) == 0 {
		endpoints = []string{DefaultEndpoint}
	}
	timeout := opts.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		Memory:   store.NewMemory(name),
		key:      key,
		readOnly: opts.ReadOnly,
		logger:   logger,
	}
	if opts.Client != nil {
		s.dial = func() (Client, error) { return opts.Client, nil }
	} else {
		s.dial = func() (Client, error) {
			return Dial(endpoints, timeout, opts.Username, opts.Password)
		}
	}
	return s
}

// Key returns the etcd key holding the tree.
func (s *Store) Key() string { return s.key }

// Peers returns the client URLs discovered on the first successful Load.
func (s *Store) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.peers...)
}

// Sync reports false since Load and Save leave the process.
func (s *Store) Sync() bool { return false }

// SyncOp reports reads and writes against the mirror as synchronous.
func (s *Store) SyncOp(op store.Op) bool {
	return op != store.OpLoad && op != store.OpSave
}

// Load fetches the key into the mirror. A missing key loads as an empty
// tree.
func (s *Store) Load(ctx context.Context) *store.Result {
	return store.Go(func() (any, bool, error) {
		client, err := s.connect(ctx)
		if err != nil {
			return nil, false, err
		}

		data, found, err := client.Get(ctx, s.key)
		if err != nil {
			return nil, false, &store.TransportError{Store: s.Name(), Op: store.OpLoad, Err: err}
		}

		root := map[string]any{}
		if found {
			if root, err = s.decode(data); err != nil {
				return nil, false, err
			}
		}

		s.Replace(root)
		snapshot := s.Snapshot()
		s.Emit(store.Event{Store: s.Name(), Tree: snapshot})
		return snapshot, true, nil
	})
}

// Save writes the mirror to the key. A read-only store resolves without
// writing.
func (s *Store) Save(ctx context.Context) *store.Result {
	return store.Go(func() (any, bool, error) {
		snapshot := s.Snapshot()
		if s.readOnly {
			return snapshot, true, nil
		}

		client, err := s.connect(ctx)
		if err != nil {
			return nil, false, err
		}
		data, err := codec.JSON.Encode(snapshot)
		if err != nil {
			return nil, false, err
		}
		if err := client.Put(ctx, s.key, data); err != nil {
			return nil, false, &store.TransportError{Store: s.Name(), Op: store.OpSave, Err: err}
		}
		return snapshot, true, nil
	})
}

// Watch follows changes to the key until ctx is done. A put replaces the
// mirror and a delete empties it; both notify reload subscribers. A broken
// watch is re-established with exponential backoff.
func (s *Store) Watch(ctx context.Context) error {
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}

	delay := minBackoff
	for {
		healthy := s.follow(ctx, client)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if healthy {
			delay = minBackoff
		}

		s.logger.Warn("etcd watch interrupted, retrying", "store", s.Name(), "key", s.key, "backoff", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxBackoff)
	}
}

const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// follow consumes one watch stream. It reports whether any event was
// applied before the stream ended.
func (s *Store) follow(ctx context.Context, client Client) bool {
	applied := false
	for ev := range client.Watch(ctx, s.key) {
		if ev.Err != nil {
			s.logger.Warn("etcd watch failed", "store", s.Name(), "error", ev.Err)
			return applied
		}

		switch ev.Type {
		case EventDelete:
			s.Replace(map[string]any{})
		case EventPut:
			root, err := s.decode(ev.Value)
			if err != nil {
				s.logger.Warn("ignoring malformed update", "store", s.Name(), "error", err)
				continue
			}
			s.Replace(root)
		}
		applied = true
		s.Emit(store.Event{Store: s.Name(), Tree: s.Snapshot()})
	}
	return applied
}

// Close releases the cluster connection, if one was made.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// connect dials the cluster and discovers its members once. A failed
// attempt is retried on the next call.
func (s *Store) connect(ctx context.Context) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	client, err := s.dial()
	if err != nil {
		return nil, &store.TransportError{Store: s.Name(), Op: store.OpLoad, Err: err}
	}
	peers, err := client.MemberList(ctx)
	if err == nil && len(peers) == 0 {
		err = errors.New("cluster reported no members")
	}
	if err != nil {
		_ = client.Close()
		return nil, &store.TransportError{
			Store: s.Name(),
			Op:    store.OpLoad,
			Err:   errors.Wrap(err, "discovering cluster members"),
		}
	}

	s.logger.Debug("etcd cluster discovered", "store", s.Name(), "peers", peers)
	s.client = client
	s.peers = peers
	return client, nil
}

func (s *Store) decode(data []byte) (map[string]any, error) {
	v, err := codec.JSON.Decode(s.key, data)
	if err != nil {
		return nil, err
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, &store.ParseError{
			Source: s.key,
			Format: "json",
			Err:    errors.Newf("value is %T, not a mapping", v),
		}
	}
	return root, nil
}
