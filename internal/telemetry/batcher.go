package telemetry

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/clock"
	"github.com/glabrego/easel-cli/internal/logging"
	"github.com/glabrego/easel-cli/internal/metrics"
)

const (
	DefaultBatchSize = 10
	DefaultDebounce  = 2000 * time.Millisecond

	sendTimeout = 10 * time.Second
)

type Kind string

const (
	View              Kind = "view"
	Click             Kind = "click"
	Like              Kind = "like"
	Save              Kind = "save"
	Share             Kind = "share"
	CommissionInquiry Kind = "commission_inquiry"
)

// Event is one tracked interaction. Source names the screen that produced it
// and is sent as the "source" metadata tag.
type Event struct {
	ItemID   api.ItemID
	Kind     Kind
	Source   string
	Duration *float64
	Metadata map[string]string
}

func (e Event) wire() api.EngagementEvent {
	var meta map[string]string
	if len(e.Metadata) > 0 || e.Source != "" {
		meta = make(map[string]string, len(e.Metadata)+1)
		maps.Copy(meta, e.Metadata)
		if e.Source != "" {
			meta["source"] = e.Source
		}
	}
	return api.EngagementEvent{
		ArtworkID: e.ItemID,
		EventType: string(e.Kind),
		Duration:  e.Duration,
		Metadata:  meta,
	}
}

type Sender interface {
	TrackBatch(ctx context.Context, batchID string, events []api.EngagementEvent) error
	TrackEvent(ctx context.Context, event api.EngagementEvent) error
}

type Config struct {
	BatchSize int
	Debounce  time.Duration
	Clock     clock.Clock
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// Batcher queues engagement events in memory and sends them in batches.
// Delivery is at most once: a batch that fails to send is dropped.
type Batcher struct {
	sender  Sender
	size    int
	delay   time.Duration
	clock   clock.Clock
	log     *log.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending []api.EngagementEvent
	timer   clock.Timer
	// gen identifies the armed debounce timer; a callback carrying an older
	// value lost a race with Stop and must not flush.
	gen     uint64
	closed  bool

	sends sync.WaitGroup
}

func NewBatcher(sender Sender, cfg Config) *Batcher {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Batcher{
		sender:  sender,
		size:    cfg.BatchSize,
		delay:   cfg.Debounce,
		clock:   cfg.Clock,
		log:     logging.OrDiscard(cfg.Logger),
		metrics: cfg.Metrics,
	}
}

// Record enqueues an event. It never blocks on the network: reaching the
// batch size starts a send in the background, otherwise the debounce timer is
// restarted.
func (b *Batcher) Record(event Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.pending = append(b.pending, event.wire())
	b.metrics.TelemetryEvent(string(event.Kind))

	b.stopTimerLocked()
	if len(b.pending) >= b.size {
		batch := b.swapLocked()
		b.mu.Unlock()
		b.send(batch)
		return
	}
	gen := b.gen
	b.timer = b.clock.AfterFunc(b.delay, func() { b.debounced(gen) })
	b.mu.Unlock()
}

// Flush sends everything queued so far as one batch.
func (b *Batcher) Flush() {
	b.mu.Lock()
	b.stopTimerLocked()
	batch := b.swapLocked()
	b.mu.Unlock()
	b.send(batch)
}

func (b *Batcher) debounced(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	batch := b.swapLocked()
	b.mu.Unlock()
	b.send(batch)
}

func (b *Batcher) stopTimerLocked() {
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Batcher) swapLocked() []api.EngagementEvent {
	batch := b.pending
	b.pending = nil
	return batch
}

func (b *Batcher) send(batch []api.EngagementEvent) {
	if len(batch) == 0 {
		return
	}
	b.sends.Add(1)
	go func() {
		defer b.sends.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		batchID := uuid.NewString()
		err := b.sender.TrackBatch(ctx, batchID, batch)
		switch {
		case err == nil:
			b.metrics.TelemetryBatch("sent")
		case api.IsRateLimited(err):
			b.metrics.TelemetryBatch("rate_limited")
		default:
			b.metrics.TelemetryBatch("dropped")
			b.log.Debug("telemetry batch dropped", "batch", batchID, "events", len(batch), "err", err)
		}
	}()
}

// Track sends a single event right away, bypassing the queue. It is used for
// interactions that should not wait for a batch, such as commission
// inquiries. Failures are dropped like batch failures.
func (b *Batcher) Track(ctx context.Context, event Event) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.metrics.TelemetryEvent(string(event.Kind))
	if err := b.sender.TrackEvent(ctx, event.wire()); err != nil && !api.IsRateLimited(err) {
		b.log.Debug("telemetry event dropped", "artwork", event.ItemID, "kind", event.Kind, "err", err)
	}
}

// Pending returns the number of queued events.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Wait blocks until every batch handed to the sender has returned.
func (b *Batcher) Wait() {
	b.sends.Wait()
}

// Close stops the debounce timer, flushes what is queued and waits for the
// outstanding sends or ctx, whichever comes first. Records after Close are
// ignored.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.stopTimerLocked()
	batch := b.swapLocked()
	b.mu.Unlock()
	b.send(batch)

	done := make(chan struct{})
	go func() {
		b.sends.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
