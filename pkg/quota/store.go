package quota

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/papercomputeco/formu/pkg/logger"
)

// FetchFunc retrieves the authoritative snapshot from the backend.
type FetchFunc func(ctx context.Context) (Snapshot, error)

// Listener receives every snapshot the store publishes.
type Listener func(Snapshot)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is the single owner of the current quota Snapshot.
//
// Listeners are invoked synchronously, one publication at a time, in the order
// they subscribed. A listener must not call Refresh or Reset on the same store
// from its own goroutine; it may Subscribe, unsubscribe, or read Snapshot.
type Store struct {
	fetch FetchFunc

	mu        sync.Mutex
	current   Snapshot
	listeners map[uint64]Listener
	nextID    uint64

	// notifyMu serializes publications so listeners see snapshots in the
	// order they were applied.
	notifyMu sync.Mutex

	logger *slog.Logger
}

// NewStore returns a store in the logged-out state.
func NewStore(fetch FetchFunc, opts ...Option) *Store {
	s := &Store{
		fetch:     fetch,
		current:   LoggedOut(),
		listeners: make(map[uint64]Listener),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers fn for future publications and returns a function that
// removes it. The returned function is idempotent.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	count := len(s.listeners)
	s.mu.Unlock()

	s.logger.Debug("quota subscribe", "subscribers", count)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
			s.logger.Debug("quota unsubscribe")
		})
	}
}

// Refresh fetches the authoritative snapshot and publishes it. Any fetch error
// degrades the store to LoggedOut and is logged, never returned, so callers
// can fire and forget. When refreshes overlap, the one whose fetch resolves
// last wins. Refresh returns the snapshot it published.
func (s *Store) Refresh(ctx context.Context) Snapshot {
	if s.fetch == nil {
		return s.publish(LoggedOut())
	}

	snap, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("quota refresh failed, falling back to logged out", "error", err)
		snap = LoggedOut()
	} else {
		s.logger.Debug("quota refreshed",
			"used", snap.Used,
			"remaining", snap.Remaining.String(),
			"can_use", snap.CanUse,
			"plan", snap.PlanName,
		)
	}

	return s.publish(snap)
}

// Reset publishes LoggedOut immediately, discarding the previous session's
// quota.
func (s *Store) Reset() {
	s.publish(LoggedOut())
}

func (s *Store) publish(snap Snapshot) Snapshot {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = snap
	ids := slices.Sorted(maps.Keys(s.listeners))
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}
