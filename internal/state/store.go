package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"veggiemarket/backend/internal/store"
)

const persistTimeout = 5 * time.Second

// Store owns the authoritative State. Every mutation goes through Dispatch,
// which reduces and swaps under a single lock, so check-and-decrement of
// stock can never interleave between two commits.
type Store struct {
	mu     sync.Mutex
	state  State
	policy Policy
	now    func() time.Time

	snapshots store.Snapshots
	logger    *zap.Logger

	subMu       sync.RWMutex
	subscribers []func(Event)

	persistMu    sync.Mutex
	savedVersion uint64
}

type Option func(*Store)

func WithSnapshots(snapshots store.Snapshots) Option {
	return func(s *Store) { s.snapshots = snapshots }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(initial State, policy Policy, opts ...Option) *Store {
	if policy.PriceOverride == "" {
		policy.PriceOverride = KeepFirstPrice
	}
	s := &Store{
		state:  initial,
		policy: policy,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Policy() Policy {
	return s.policy
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn for every event emitted after the subscription.
// Handlers run on the dispatching goroutine and must not block.
func (s *Store) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Dispatch applies cmd. On success it returns a copy of the new state and the
// emitted events; on failure the state is unchanged.
func (s *Store) Dispatch(ctx context.Context, cmd Command) (State, []Event, error) {
	s.mu.Lock()
	next, events, err := Reduce(s.state, cmd, s.policy)
	if err != nil {
		s.mu.Unlock()
		return State{}, nil, err
	}
	next.Version = s.state.Version + 1
	s.state = next
	view := next.Clone()
	doc := next.Document(s.now().UTC())
	s.mu.Unlock()

	s.logger.Debug("state changed",
		zap.String("command", cmd.Name()),
		zap.Uint64("version", next.Version),
		zap.Int("events", len(events)),
	)

	s.persist(ctx, next.Version, doc)
	s.publish(events)
	return view, events, nil
}

// Restore replaces the durable collections with the persisted document, if any.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.snapshots == nil {
		return false, nil
	}
	payload, err := s.snapshots.Load(ctx, SnapshotKey)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	s.state.applyDocument(doc)
	s.state.Version++
	version := s.state.Version
	s.mu.Unlock()

	s.persistMu.Lock()
	s.savedVersion = version
	s.persistMu.Unlock()

	s.logger.Info("state restored",
		zap.Int("products", len(doc.Products)),
		zap.Int("customers", len(doc.Customers)),
		zap.Int("sales", len(doc.Sales)),
	)
	return true, nil
}

// Flush writes the current state regardless of what was saved before.
func (s *Store) Flush(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	s.mu.Lock()
	version := s.state.Version
	doc := s.state.Document(s.now().UTC())
	s.mu.Unlock()

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.snapshots.Save(ctx, SnapshotKey, payload); err != nil {
		return err
	}
	s.savedVersion = max(s.savedVersion, version)
	return nil
}

// persist saves doc unless a newer version has already been written. A failed
// save is logged and does not undo the dispatch.
func (s *Store) persist(ctx context.Context, version uint64, doc Document) {
	if s.snapshots == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.savedVersion {
		return
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		s.logger.Error("encode snapshot", zap.Error(err))
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.snapshots.Save(saveCtx, SnapshotKey, payload); err != nil {
		s.logger.Warn("snapshot save failed", zap.Uint64("version", version), zap.Error(err))
		return
	}
	s.savedVersion = version
}

func (s *Store) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	s.subMu.RLock()
	subscribers := slices.Clone(s.subscribers)
	s.subMu.RUnlock()

	for _, event := range events {
		for _, fn := range subscribers {
			fn(event)
		}
	}
}
