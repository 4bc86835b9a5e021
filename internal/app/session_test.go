package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/clock"
	"github.com/glabrego/easel-cli/internal/telemetry"
)

// fakeAPI is an in-memory stand-in for the artwork API.
type fakeAPI struct {
	mu       sync.Mutex
	likes    map[string]int
	liked    map[string]bool
	pageFail bool
	batches  int
	events   []string
	tracked  []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		likes: map[string]int{"a": 3, "b": 0, "c": 8},
		liked: map[string]bool{"c": true},
	}
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /artworks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.pageFail {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, `{"artworks":[
			{"_id":"a","title":"Dusk","aspectRatio":"1:1","likeCount":%d},
			{"_id":"b","title":"Tide","aspectRatio":"16:9","likeCount":%d},
			{"_id":"c","title":"Moss","likeCount":%d}
		],"pagination":{"page":1,"totalPages":1}}`, f.likes["a"], f.likes["b"], f.likes["c"])
	})
	mux.HandleFunc("POST /artworks/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("like without bearer token")
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		msg := "Artwork liked"
		if f.liked[id] {
			f.liked[id] = false
			f.likes[id]--
			msg = "Artwork unliked"
		} else {
			f.liked[id] = true
			f.likes[id]++
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": msg, "likeCount": f.likes[id]})
	})
	mux.HandleFunc("GET /artworks/liked", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ids := []string{}
		for id, ok := range f.liked {
			if ok {
				ids = append(ids, id)
			}
		}
		_ = json.NewEncoder(w).Encode(ids)
	})
	mux.HandleFunc("POST /engagement/batch", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events []api.EngagementEvent `json:"events"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.batches++
		for _, ev := range body.Events {
			f.events = append(f.events, ev.EventType+":"+string(ev.ArtworkID)+":"+ev.Metadata["source"])
		}
	})
	mux.HandleFunc("POST /engagement/track", func(w http.ResponseWriter, r *http.Request) {
		var ev api.EngagementEvent
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.tracked = append(f.tracked, ev.EventType+":"+string(ev.ArtworkID))
	})
	return mux
}

func newTestSession(t *testing.T, fake *fakeAPI, token string) (*Session, *clock.Fake) {
	t.Helper()
	ts := httptest.NewServer(fake.handler(t))
	t.Cleanup(ts.Close)

	fc := clock.NewFake(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	client := api.NewClient(ts.URL, token, ts.Client())
	s := NewSession(client, Options{Columns: 2, ItemWidth: 100, Clock: fc})
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, fc
}

func TestSession_BootstrapLoadsFeedAndLikedSet(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI(), "token")

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if len(s.Feed.Items()) != 3 {
		t.Fatalf("expected 3 items, got %d", len(s.Feed.Items()))
	}
	if !s.Engagement.Loaded() || !s.Engagement.IsLiked("c") || s.Engagement.IsLiked("a") {
		t.Fatal("expected liked set loaded from the server")
	}
	if n, ok := s.Engagement.LikeCount("a"); !ok || n != 3 {
		t.Fatalf("expected like count seeded from the feed, got %d %v", n, ok)
	}

	cols := s.Feed.Assignment().Columns
	if len(cols) != 2 || len(cols[0]) != 1 || len(cols[1]) != 2 {
		t.Fatalf("unexpected column sizes: %d/%d", len(cols[0]), len(cols[1]))
	}
	if cols[0][0].Item.ID != "a" || cols[1][0].Item.ID != "b" || cols[1][1].Item.ID != "c" {
		t.Fatal("unexpected greedy column assignment")
	}
}

func TestSession_BootstrapWithoutTokenSkipsLikedSet(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI(), "")

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	if s.Engagement.Loaded() {
		t.Fatal("expected liked set to stay unloaded without a token")
	}
	if s.Engagement.IsLiked("c") {
		t.Fatal("expected IsLiked false before the liked set is loaded")
	}
}

func TestSession_BootstrapReportsFeedFailureButLoadsLikes(t *testing.T) {
	fake := newFakeAPI()
	fake.pageFail = true
	s, _ := newTestSession(t, fake, "token")

	err := s.Bootstrap(context.Background())
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status error, got %v", err)
	}
	if !s.Engagement.Loaded() {
		t.Fatal("expected liked set to load despite the feed failure")
	}
}

func TestSession_LikeIsSharedAcrossSurfacesAndRecorded(t *testing.T) {
	fake := newFakeAPI()
	s, fc := newTestSession(t, fake, "token")
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	snap, err := s.Like(context.Background(), "a", "detail")
	if err != nil {
		t.Fatalf("Like returned error: %v", err)
	}
	if !snap.Liked || snap.LikeCount != 4 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	// The feed grid reads the same store as the detail screen.
	if !s.Engagement.IsLiked("a") {
		t.Fatal("expected like visible through the shared store")
	}

	fc.Advance(telemetry.DefaultDebounce)
	s.Telemetry.Wait()
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.batches != 1 || len(fake.events) != 1 || fake.events[0] != "like:a:detail" {
		t.Fatalf("unexpected telemetry: batches=%d events=%v", fake.batches, fake.events)
	}
}

func TestSession_LikeWithoutTokenDoesNotToggle(t *testing.T) {
	s, _ := newTestSession(t, newFakeAPI(), "")
	_ = s.Bootstrap(context.Background())

	if _, err := s.Like(context.Background(), "a", "feed"); !errors.Is(err, api.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if s.Engagement.IsLiked("a") {
		t.Fatal("expected no optimistic toggle without a token")
	}
}

func TestSession_DoubleTapLikesInBackground(t *testing.T) {
	s, fc := newTestSession(t, newFakeAPI(), "token")
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	s.Tap("b")
	fc.Advance(100 * time.Millisecond)
	res := s.Tap("b")
	if !res.Liked {
		t.Fatalf("expected double tap to like, got %+v", res)
	}

	select {
	case out := <-s.LikeOutcomes():
		if out.ID != "b" || out.Err != nil || !out.Snapshot.Liked || out.Snapshot.LikeCount != 1 {
			t.Fatalf("unexpected outcome: %+v", out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for like outcome")
	}
	if !s.Taps.Animating("b") {
		t.Fatal("expected like animation running")
	}
}

func TestSession_CloseFlushesTelemetry(t *testing.T) {
	fake := newFakeAPI()
	s, _ := newTestSession(t, fake, "token")

	s.Record(telemetry.Event{ItemID: "a", Kind: telemetry.View, Source: "feed"})
	s.Track(context.Background(), telemetry.Event{ItemID: "a", Kind: telemetry.CommissionInquiry, Source: "detail"})
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if strings.Join(fake.events, ",") != "view:a:feed" {
		t.Fatalf("expected queued event flushed on close, got %v", fake.events)
	}
	if strings.Join(fake.tracked, ",") != "commission_inquiry:a" {
		t.Fatalf("expected immediate track, got %v", fake.tracked)
	}

	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done closed")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}
