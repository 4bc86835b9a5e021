package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/clock"
	"github.com/glabrego/easel-cli/internal/engagement"
	"github.com/glabrego/easel-cli/internal/feed"
	"github.com/glabrego/easel-cli/internal/gesture"
	"github.com/glabrego/easel-cli/internal/logging"
	"github.com/glabrego/easel-cli/internal/metrics"
	"github.com/glabrego/easel-cli/internal/telemetry"
)

const (
	DefaultPageSize = 20
	likeTimeout     = 10 * time.Second
)

// Client is the remote API the session talks to.
type Client interface {
	feed.PageSource
	engagement.Remote
	telemetry.Sender
	Authenticated() bool
}

type Options struct {
	PageSize  int
	Columns   int
	ItemWidth float64
	LikedFeed string
	Clock     clock.Clock
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// LikeOutcome reports how a like started in the background settled.
type LikeOutcome struct {
	ID       api.ItemID
	Snapshot engagement.Snapshot
	Err      error
}

// Session owns the feed, engagement, gesture and telemetry state for one
// signed-in run of the app. Every screen reads and writes through the same
// Session so a like on one surface is visible on all of them.
type Session struct {
	client     Client
	Feed       *feed.Aggregator
	Engagement *engagement.Store
	Taps       *gesture.Disambiguator
	Telemetry  *telemetry.Batcher
	log        *log.Logger

	outcomes  chan LikeOutcome
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(client Client, opts Options) *Session {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	logger := logging.OrDiscard(opts.Logger)

	s := &Session{
		client:   client,
		log:      logger,
		outcomes: make(chan LikeOutcome, 16),
		done:     make(chan struct{}),
	}
	s.Engagement = engagement.NewStore(client, engagement.Config{
		Feed:    opts.LikedFeed,
		Clock:   opts.Clock,
		Logger:  logger.WithPrefix("engagement"),
		Metrics: opts.Metrics,
	})
	s.Feed = feed.NewAggregator(client, feed.AggregatorConfig{
		PageSize:  opts.PageSize,
		Columns:   opts.Columns,
		ItemWidth: opts.ItemWidth,
		Logger:    logger.WithPrefix("feed"),
		Metrics:   opts.Metrics,
		OnPage:    s.Engagement.SeedCounts,
	})
	s.Taps = gesture.NewDisambiguator(s.Engagement, gesture.Config{
		Clock:         opts.Clock,
		Authenticated: client.Authenticated,
		OnLike:        func(id api.ItemID) { s.likeInBackground(id, "double_tap") },
		Metrics:       opts.Metrics,
	})
	s.Telemetry = telemetry.NewBatcher(client, telemetry.Config{
		Clock:   opts.Clock,
		Logger:  logger.WithPrefix("telemetry"),
		Metrics: opts.Metrics,
	})
	return s
}

func (s *Session) Authenticated() bool {
	return s.client.Authenticated()
}

// Bootstrap loads the first feed page and, when signed in, the liked set in
// parallel.
func (s *Session) Bootstrap(ctx context.Context) error {
	return s.reload(ctx)
}

// Refresh discards the feed and reloads it from the first page together with
// the liked set. Items shown before a failed refresh stay in place.
func (s *Session) Refresh(ctx context.Context) error {
	return s.reload(ctx)
}

func (s *Session) reload(ctx context.Context) error {
	// The liked-set load runs to completion even when the feed page fails.
	var g errgroup.Group
	g.Go(func() error {
		return s.Feed.LoadPage(ctx, true)
	})
	if s.Authenticated() {
		g.Go(func() error {
			return s.Engagement.LoadLiked(ctx)
		})
	}
	return g.Wait()
}

// LoadMore appends the next feed page.
func (s *Session) LoadMore(ctx context.Context) error {
	return s.Feed.LoadPage(ctx, false)
}

// Like runs the like protocol for id and records a like event when it
// settles. Without a token nothing is toggled.
func (s *Session) Like(ctx context.Context, id api.ItemID, source string) (engagement.Snapshot, error) {
	if !s.Authenticated() {
		return s.Engagement.Snapshot(id), api.ErrUnauthenticated
	}
	snap, err := s.Engagement.Like(ctx, id)
	if err != nil {
		return snap, err
	}
	if snap.Liked {
		s.Telemetry.Record(telemetry.Event{ItemID: id, Kind: telemetry.Like, Source: source})
	}
	return snap, nil
}

// Tap feeds a tap on id into the double-tap detector. A double tap that likes
// the item starts the like in the background; its outcome is delivered on
// LikeOutcomes.
func (s *Session) Tap(id api.ItemID) gesture.Result {
	return s.Taps.Tap(id)
}

func (s *Session) likeInBackground(id api.ItemID, source string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), likeTimeout)
		defer cancel()
		snap, err := s.Like(ctx, id, source)
		select {
		case s.outcomes <- LikeOutcome{ID: id, Snapshot: snap, Err: err}:
		case <-s.done:
		}
	}()
}

// LikeOutcomes delivers the results of likes started by double taps.
func (s *Session) LikeOutcomes() <-chan LikeOutcome {
	return s.outcomes
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Record enqueues a telemetry event.
func (s *Session) Record(event telemetry.Event) {
	s.Telemetry.Record(event)
}

// Track sends a telemetry event immediately.
func (s *Session) Track(ctx context.Context, event telemetry.Event) {
	s.Telemetry.Track(ctx, event)
}

// Close tears the session down: timers are cancelled, queued telemetry is
// flushed and late network results are dropped.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.Taps.Close()
		s.Feed.Close()
		s.Engagement.Close()
		if flushErr := s.Telemetry.Close(ctx); flushErr != nil {
			err = fmt.Errorf("flush telemetry: %w", flushErr)
		}
		s.log.Debug("session closed")
	})
	return err
}
