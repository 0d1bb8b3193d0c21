package backup

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
)

// Session snapshots each store at most once, before its first change in
// this process.
type Session struct {
	mgr *Manager

	mu   sync.Mutex
	done map[string]bool
}

// NewSession returns a Session writing through mgr.
func NewSession(mgr *Manager) *Session {
	return &Session{mgr: mgr, done: make(map[string]bool)}
}

// EnsureBackedUp snapshots s under name unless this session already did.
// A failed snapshot is not remembered, so the next call retries.
func (s *Session) EnsureBackedUp(ctx context.Context, name string, st store.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done[name] {
		return nil
	}

	t, _, err := st.Get(ctx, keypath.Root).Wait(ctx)
	if err != nil {
		return errors.Wrapf(err, "reading %s for backup", name)
	}
	if _, err := s.mgr.Backup(name, t); err != nil {
		return errors.Wrapf(err, "creating backup for %s", name)
	}
	s.done[name] = true
	return nil
}
