package engagement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/clock"
	"github.com/glabrego/easel-cli/internal/logging"
	"github.com/glabrego/easel-cli/internal/metrics"
)

const (
	DefaultReconcileDelay = 2 * time.Second
	defaultReloadTimeout  = 10 * time.Second
)

var ErrClosed = errors.New("engagement store closed")

type Remote interface {
	ToggleLike(ctx context.Context, id api.ItemID) (api.LikeResult, error)
	ListLikedIDs(ctx context.Context, feed string) ([]api.ItemID, error)
}

// Snapshot is the liked state and count of one item at a point in time.
type Snapshot struct {
	Liked     bool
	LikeCount int
}

type Config struct {
	// Feed names the liked-set endpoint, e.g. "artworks".
	Feed string
	// ReconcileDelay is how long a forced bulk reload waits for the server to commit.
	ReconcileDelay time.Duration
	// MergeWindow protects local mutations this recent from a bulk reload.
	// Defaults to ReconcileDelay.
	MergeWindow time.Duration
	Clock       clock.Clock
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

// Store is the shared liked-set and like-count state for one session. Every
// surface that shows likes must read and write through the same instance.
type Store struct {
	remote  Remote
	feed    string
	delay   time.Duration
	window  time.Duration
	clock   clock.Clock
	log     *log.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	loaded     bool
	liked      map[api.ItemID]struct{}
	counts     map[api.ItemID]int
	touched    map[api.ItemID]time.Time
	inflight   map[api.ItemID]int
	overlapped map[api.ItemID]bool
	loadErr    error
	timer      clock.Timer
	closed     bool
}

func NewStore(remote Remote, cfg Config) *Store {
	if cfg.Feed == "" {
		cfg.Feed = "artworks"
	}
	if cfg.ReconcileDelay <= 0 {
		cfg.ReconcileDelay = DefaultReconcileDelay
	}
	if cfg.MergeWindow <= 0 {
		cfg.MergeWindow = cfg.ReconcileDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Store{
		remote:     remote,
		feed:       cfg.Feed,
		delay:      cfg.ReconcileDelay,
		window:     cfg.MergeWindow,
		clock:      cfg.Clock,
		log:        logging.OrDiscard(cfg.Logger),
		metrics:    cfg.Metrics,
		liked:      make(map[api.ItemID]struct{}),
		counts:     make(map[api.ItemID]int),
		touched:    make(map[api.ItemID]time.Time),
		inflight:   make(map[api.ItemID]int),
		overlapped: make(map[api.ItemID]bool),
	}
}

// Loaded reports whether a bulk liked-set load has completed.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// IsLiked reports whether id is liked. Before the first bulk load it is
// false unless the item was mutated locally in this session, so a like made
// while the liked set is still loading stays visible (see "IsLiked before the
// first bulk load" in DESIGN.md).
func (s *Store) IsLiked(id api.ItemID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLikedLocked(id)
}

func (s *Store) isLikedLocked(id api.ItemID) bool {
	if _, known := s.touched[id]; !s.loaded && !known {
		return false
	}
	_, ok := s.liked[id]
	return ok
}

// LikeCount returns the current like count for id and whether it is known.
func (s *Store) LikeCount(id api.ItemID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.counts[id]
	return n, ok
}

func (s *Store) Snapshot(id api.ItemID) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(id)
}

func (s *Store) snapshotLocked(id api.ItemID) Snapshot {
	return Snapshot{Liked: s.isLikedLocked(id), LikeCount: s.counts[id]}
}

// SeedCounts records like counts from fetched items. Items with local
// mutations keep their local count.
func (s *Store) SeedCounts(items []api.Artwork) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if _, touched := s.touched[item.ID]; touched {
			continue
		}
		s.counts[item.ID] = item.LikeCount
	}
}

// ToggleLike optimistically flips the liked state of id and moves its count
// by one. It returns the state from before the flip, for Rollback.
func (s *Store) ToggleLike(id api.ItemID) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggleLocked(id)
}

func (s *Store) toggleLocked(id api.ItemID) Snapshot {
	prev := s.snapshotLocked(id)
	if prev.Liked {
		delete(s.liked, id)
		s.counts[id] = max(prev.LikeCount-1, 0)
	} else {
		s.liked[id] = struct{}{}
		s.counts[id] = prev.LikeCount + 1
	}
	s.touched[id] = s.clock.Now()
	return prev
}

// Reconcile overwrites the local state of id with the server's answer.
func (s *Store) Reconcile(id api.ItemID, liked bool, likeCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(id, Snapshot{Liked: liked, LikeCount: likeCount})
}

// Rollback restores the state captured before an optimistic toggle.
func (s *Store) Rollback(id api.ItemID, prev Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(id, prev)
}

func (s *Store) setLocked(id api.ItemID, snap Snapshot) {
	if snap.Liked {
		s.liked[id] = struct{}{}
	} else {
		delete(s.liked, id)
	}
	s.counts[id] = max(snap.LikeCount, 0)
	s.touched[id] = s.clock.Now()
}

// Like runs the full like protocol for id: optimistic toggle, network call,
// then reconcile with the server answer or roll back on failure. A rate
// limited call keeps the optimistic state and schedules a bulk reconcile
// instead of failing. The returned snapshot is the state after settling.
func (s *Store) Like(ctx context.Context, id api.ItemID) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	prev := s.toggleLocked(id)
	s.inflight[id]++
	if s.inflight[id] > 1 {
		s.overlapped[id] = true
	}
	s.mu.Unlock()

	res, err := s.remote.ToggleLike(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, nil
	}

	s.inflight[id]--
	settledOverlap := false
	if s.inflight[id] <= 0 {
		delete(s.inflight, id)
		settledOverlap = s.overlapped[id]
		delete(s.overlapped, id)
	}

	switch {
	case err == nil:
		s.setLocked(id, Snapshot{Liked: res.Liked, LikeCount: res.LikeCount})
		s.metrics.LikeOutcome("reconciled")
	case api.IsRateLimited(err):
		s.metrics.LikeOutcome("rate_limited")
		s.scheduleReconcileLocked()
		return s.snapshotLocked(id), nil
	default:
		s.setLocked(id, prev)
		s.metrics.LikeOutcome("rolled_back")
		s.log.Warn("like failed, rolled back", "artwork", id, "err", err)
		return prev, fmt.Errorf("like artwork %s: %w", id, err)
	}

	if settledOverlap {
		s.log.Debug("overlapping like toggles settled, scheduling reconcile", "artwork", id)
		s.scheduleReconcileLocked()
	}
	return s.snapshotLocked(id), nil
}

// LoadLiked fetches the full liked set and merges it into local state.
// Reload failures leave state untouched; 429 responses are ignored.
func (s *Store) LoadLiked(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	requestedAt := s.clock.Now()
	s.mu.Unlock()

	ids, err := s.remote.ListLikedIDs(ctx, s.feed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err != nil {
		if api.IsRateLimited(err) {
			return nil
		}
		s.loadErr = fmt.Errorf("load liked %s: %w", s.feed, err)
		s.log.Warn("liked set reload failed", "feed", s.feed, "err", err)
		return s.loadErr
	}
	s.loadErr = nil
	s.mergeLocked(ids, requestedAt)
	return nil
}

// ApplyLiked merges an externally fetched liked set, read at requestedAt.
func (s *Store) ApplyLiked(ids []api.ItemID, requestedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.mergeLocked(ids, requestedAt)
}

// mergeLocked replaces the liked set with server state, except for items that
// have a toggle in flight or were mutated locally within the merge window of
// the read.
func (s *Store) mergeLocked(ids []api.ItemID, requestedAt time.Time) {
	server := make(map[api.ItemID]struct{}, len(ids))
	for _, id := range ids {
		server[id] = struct{}{}
	}

	cutoff := requestedAt.Add(-s.window)
	keep := func(id api.ItemID) bool {
		if s.inflight[id] > 0 {
			return true
		}
		t, ok := s.touched[id]
		return ok && t.After(cutoff)
	}

	kept := 0
	for id := range s.liked {
		if _, ok := server[id]; ok {
			continue
		}
		if keep(id) {
			kept++
			continue
		}
		delete(s.liked, id)
	}
	for id := range server {
		if _, ok := s.liked[id]; ok {
			continue
		}
		if keep(id) {
			kept++
			continue
		}
		s.liked[id] = struct{}{}
	}
	s.loaded = true
	s.log.Debug("liked set merged", "feed", s.feed, "server", len(server), "kept_local", kept)
}

// LoadErr returns the error of the last bulk reload, if it failed.
func (s *Store) LoadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// ScheduleReconcile forces a bulk reload after the reconcile delay,
// replacing any reload already scheduled.
func (s *Store) ScheduleReconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.scheduleReconcileLocked()
}

func (s *Store) scheduleReconcileLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultReloadTimeout)
		defer cancel()
		_ = s.LoadLiked(ctx)
	})
}

// Close cancels the scheduled reload and discards state. Network calls that
// resolve afterwards are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.loaded = false
	s.liked = make(map[api.ItemID]struct{})
	s.counts = make(map[api.ItemID]int)
	s.touched = make(map[api.ItemID]time.Time)
	s.inflight = make(map[api.ItemID]int)
	s.overlapped = make(map[api.ItemID]bool)
}
