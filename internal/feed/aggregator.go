package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/logging"
	"github.com/glabrego/easel-cli/internal/metrics"
)

type PageSource interface {
	ListArtworks(ctx context.Context, page, limit int) (api.ArtworkPage, error)
}

type AggregatorConfig struct {
	PageSize  int
	Columns   int
	ItemWidth float64
	Logger    *log.Logger
	Metrics   *metrics.Metrics
	// OnPage receives the newly appended items of every accepted page.
	OnPage func([]api.Artwork)
}

// Aggregator pages through one logical feed, deduplicating items across
// refresh and append cycles and keeping the column assignment current.
type Aggregator struct {
	source    PageSource
	pageSize  int
	columns   int
	itemWidth float64
	log       *log.Logger
	metrics   *metrics.Metrics
	onPage    func([]api.Artwork)

	mu         sync.Mutex
	items      []api.Artwork
	seen       map[api.ItemID]struct{}
	page       int
	hasMore    bool
	loading    bool
	err        error
	closed     bool
	assignment Assignment
}

func NewAggregator(source PageSource, cfg AggregatorConfig) *Aggregator {
	if cfg.PageSize < 1 {
		cfg.PageSize = 20
	}
	if cfg.Columns < 1 {
		cfg.Columns = DefaultColumns
	}
	if cfg.ItemWidth <= 0 {
		cfg.ItemWidth = 160
	}
	return &Aggregator{
		source:     source,
		pageSize:   cfg.PageSize,
		columns:    cfg.Columns,
		itemWidth:  cfg.ItemWidth,
		log:        logging.OrDiscard(cfg.Logger),
		metrics:    cfg.Metrics,
		onPage:     cfg.OnPage,
		seen:       make(map[api.ItemID]struct{}),
		hasMore:    true,
		assignment: AssignColumns(nil, cfg.Columns, cfg.ItemWidth),
	}
}

// LoadPage fetches the next page, or the first page when reset is set.
// It is a no-op while another load for this feed is in flight, when the
// feed is exhausted, or after Close. A failed load keeps the items that were
// shown before it and records the error.
func (a *Aggregator) LoadPage(ctx context.Context, reset bool) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	if a.loading {
		a.mu.Unlock()
		a.metrics.FeedPage("suppressed")
		a.log.Debug("feed load suppressed, another load in flight", "reset", reset)
		return nil
	}
	if !reset && !a.hasMore {
		a.mu.Unlock()
		return nil
	}

	var stash previousState
	if reset {
		stash = a.discardLocked()
	}
	a.loading = true
	next := a.page + 1
	a.mu.Unlock()

	page, err := a.source.ListArtworks(ctx, next, a.pageSize)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.loading = false

	if err != nil {
		if reset {
			a.restoreLocked(stash)
		}
		loadErr := fmt.Errorf("load feed page %d: %w", next, err)
		a.err = loadErr
		a.mu.Unlock()
		a.metrics.FeedPage("failed")
		if !api.IsRateLimited(err) {
			a.log.Warn("feed page load failed", "page", next, "err", err)
		}
		return loadErr
	}

	a.err = nil
	a.page = next
	a.hasMore = page.HasMore()
	added := a.appendLocked(page.Artworks)
	a.assignment = AssignColumns(a.items, a.columns, a.itemWidth)
	hasMore := a.hasMore
	a.mu.Unlock()

	a.metrics.FeedPage("loaded")
	a.log.Debug("feed page loaded", "page", next, "received", len(page.Artworks), "added", len(added), "has_more", hasMore)

	if a.onPage != nil && len(added) > 0 {
		a.onPage(added)
	}
	return nil
}

type previousState struct {
	items   []api.Artwork
	seen    map[api.ItemID]struct{}
	page    int
	hasMore bool
}

func (a *Aggregator) discardLocked() previousState {
	prev := previousState{items: a.items, seen: a.seen, page: a.page, hasMore: a.hasMore}
	a.items = nil
	a.seen = make(map[api.ItemID]struct{})
	a.page = 0
	a.hasMore = true
	a.assignment = AssignColumns(nil, a.columns, a.itemWidth)
	return prev
}

func (a *Aggregator) restoreLocked(prev previousState) {
	a.items = prev.items
	a.seen = prev.seen
	a.page = prev.page
	a.hasMore = prev.hasMore
	a.assignment = AssignColumns(a.items, a.columns, a.itemWidth)
}

func (a *Aggregator) appendLocked(incoming []api.Artwork) []api.Artwork {
	added := make([]api.Artwork, 0, len(incoming))
	for _, item := range incoming {
		if item.ID == "" {
			continue
		}
		if _, dup := a.seen[item.ID]; dup {
			continue
		}
		a.seen[item.ID] = struct{}{}
		a.items = append(a.items, item)
		added = append(added, item)
	}
	return added
}

// Items returns a copy of the known items in feed order.
func (a *Aggregator) Items() []api.Artwork {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]api.Artwork(nil), a.items...)
}

// Item looks up a known item by id.
func (a *Aggregator) Item(id api.ItemID) (api.Artwork, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, item := range a.items {
		if item.ID == id {
			return item, true
		}
	}
	return api.Artwork{}, false
}

// Assignment returns the column assignment for the current item list.
func (a *Aggregator) Assignment() Assignment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.assignment
}

func (a *Aggregator) HasMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasMore
}

func (a *Aggregator) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

func (a *Aggregator) Page() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page
}

// Err returns the error of the last load, or nil if it succeeded.
func (a *Aggregator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Close discards state. Loads that resolve afterwards are dropped.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.loading = false
	a.items = nil
	a.seen = make(map[api.ItemID]struct{})
	a.assignment = AssignColumns(nil, a.columns, a.itemWidth)
}
