package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/app"
	"github.com/glabrego/easel-cli/internal/clock"
	"github.com/glabrego/easel-cli/internal/gesture"
	"github.com/glabrego/easel-cli/internal/tui/actions"
)

type fakeAPI struct {
	mu     sync.Mutex
	pages  int
	liked  map[string]bool
	events []string
	spent  []float64
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /artworks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page <= 1 {
			fmt.Fprintf(w, `{"artworks":[
				{"_id":"a","title":"Dusk","aspectRatio":"1:1","images":["https://img.example/a.jpg"]},
				{"_id":"b","title":"Tide","aspectRatio":"16:9"},
				{"_id":"c","title":"Moss","artist":{"_id":"u1","username":"mira"},"likeCount":2}
			],"pagination":{"page":1,"totalPages":%d}}`, f.pages)
			return
		}
		fmt.Fprintf(w, `{"artworks":[{"_id":"d","title":"Fern","aspectRatio":"1:1"}],
			"pagination":{"page":%d,"totalPages":%d}}`, page, f.pages)
	})
	mux.HandleFunc("POST /artworks/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		f.liked[id] = !f.liked[id]
		msg := "Artwork unliked"
		if f.liked[id] {
			msg = "Artwork liked"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": msg, "likeCount": 1})
	})
	mux.HandleFunc("GET /artworks/liked", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("POST /engagement/batch", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events []api.EngagementEvent `json:"events"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, ev := range body.Events {
			f.events = append(f.events, ev.EventType+":"+string(ev.ArtworkID)+":"+ev.Metadata["source"])
			if ev.Duration != nil {
				f.spent = append(f.spent, *ev.Duration)
			}
		}
	})
	mux.HandleFunc("POST /engagement/track", func(w http.ResponseWriter, r *http.Request) {
		var ev api.EngagementEvent
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, "track:"+ev.EventType+":"+string(ev.ArtworkID))
	})
	return mux
}

func (f *fakeAPI) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type harness struct {
	m       Model
	session *app.Session
	clock   *clock.Fake
	api     *fakeAPI
}

func newHarness(t *testing.T, token string, pages int) *harness {
	t.Helper()
	fake := &fakeAPI{pages: pages, liked: map[string]bool{}}
	ts := httptest.NewServer(fake.handler())
	t.Cleanup(ts.Close)

	fc := clock.NewFake(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	session := app.NewSession(api.NewClient(ts.URL, token, ts.Client()), app.Options{
		Columns:   2,
		ItemWidth: 100,
		Clock:     fc,
	})
	t.Cleanup(func() { _ = session.Close(context.Background()) })
	if err := session.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	m := NewModel(session, Options{Columns: 2, ItemWidth: 100})
	m.nowFn = fc.Now
	m.openURLFn = func(string) error { return errors.New("no browser") }
	m.copyURLFn = func(string) error { return nil }
	h := &harness{m: m, session: session, clock: fc, api: fake}
	h.send(tea.WindowSizeMsg{Width: 80, Height: 60})
	h.send(actions.RefreshSuccessMsg{Source: "init"})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

func (h *harness) key(s string) tea.Cmd {
	switch s {
	case " ":
		return h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	case "enter":
		return h.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return h.send(tea.KeyMsg{Type: tea.KeyEsc})
	}
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) flushTelemetry() {
	h.session.Telemetry.Flush()
	h.session.Telemetry.Wait()
}

func TestModel_GridShowsColumnsAndMovesCursor(t *testing.T) {
	h := newHarness(t, "token", 1)

	out := h.m.View()
	for _, want := range []string{"Easel", "Dusk", "Tide", "Moss", "by mira", "3 shown", "cols 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
	if h.m.selectedID != "a" {
		t.Fatalf("expected first card selected, got %q", h.m.selectedID)
	}

	h.key("l")
	if h.m.selectedID != "b" || h.m.cursor.Col != 1 {
		t.Fatalf("expected b in column 1, got %q at %+v", h.m.selectedID, h.m.cursor)
	}
	h.key("j")
	if h.m.selectedID != "c" || h.m.cursor.Row != 1 {
		t.Fatalf("expected c below b, got %q at %+v", h.m.selectedID, h.m.cursor)
	}
	h.key("j")
	if h.m.selectedID != "c" {
		t.Fatalf("expected cursor clamped at the column end, got %q", h.m.selectedID)
	}

	h.flushTelemetry()
	got := strings.Join(h.api.recorded(), ",")
	if got != "view:a:feed,view:b:feed,view:c:feed" {
		t.Fatalf("unexpected focus views: %s", got)
	}
}

func TestModel_DoubleSpaceLikesAndAnimates(t *testing.T) {
	h := newHarness(t, "token", 1)

	if cmd := h.key(" "); cmd != nil {
		t.Fatal("single tap must not issue a command")
	}
	if !strings.Contains(h.m.View(), "tap again to like") {
		t.Fatal("expected armed hint after the first tap")
	}

	if cmd := h.key(" "); cmd == nil {
		t.Fatal("expected animation tick after a double tap")
	}
	if !h.m.animating || !h.session.Taps.Animating("a") {
		t.Fatal("expected like animation running")
	}

	msg := actions.WaitForLikeCmd(h.session.LikeOutcomes(), h.session.Done())()
	liked, ok := msg.(actions.LikeSuccessMsg)
	if !ok || !liked.FromTap || liked.ID != "a" {
		t.Fatalf("unexpected like outcome: %#v", msg)
	}
	if cmd := h.send(liked); cmd == nil {
		t.Fatal("expected the model to keep listening for background likes")
	}
	if !h.session.Engagement.IsLiked("a") || !strings.Contains(h.m.View(), "Liked artwork") {
		t.Fatal("expected liked state in store and status")
	}

	h.clock.Advance(gesture.DefaultHold + gesture.DefaultFade)
	if cmd := h.send(actions.AnimationTickMsg{}); cmd != nil {
		t.Fatal("expected ticking to stop after the sequence finished")
	}
	if h.m.animating || h.session.Taps.Animating("a") {
		t.Fatal("expected animation completed")
	}

	// Already liked: another double tap does nothing.
	h.key(" ")
	if cmd := h.key(" "); cmd != nil {
		t.Fatal("double tap on a liked artwork must not like again")
	}
}

func TestModel_LikeWithoutTokenShowsHint(t *testing.T) {
	h := newHarness(t, "", 1)

	h.key(" ")
	if cmd := h.key(" "); cmd != nil {
		t.Fatal("double tap without a token must not like")
	}
	if cmd := h.key("L"); cmd == nil {
		t.Fatal("expected status timeout command")
	}
	out := h.m.View()
	if !strings.Contains(out, "Set EASEL_TOKEN to like artworks") {
		t.Fatalf("expected sign-in hint, got:\n%s", out)
	}
	if h.session.Engagement.IsLiked("a") {
		t.Fatal("like without token toggled state")
	}
}

func TestModel_LikeKeyRoundTrip(t *testing.T) {
	h := newHarness(t, "token", 1)

	cmd := h.key("L")
	if cmd == nil {
		t.Fatal("expected like command")
	}
	msg, ok := cmd().(actions.LikeSuccessMsg)
	if !ok || !msg.Snapshot.Liked || msg.FromTap {
		t.Fatalf("unexpected like result: %#v", msg)
	}
	h.send(msg)
	if !strings.Contains(h.m.View(), "♥") {
		t.Fatal("expected filled heart on the liked card")
	}
}

func TestModel_DetailRecordsClickAndViewDuration(t *testing.T) {
	h := newHarness(t, "token", 1)
	h.key("l")
	h.key("j")

	h.key("enter")
	if !h.m.inDetail {
		t.Fatal("expected detail screen")
	}
	out := h.m.View()
	if !strings.Contains(out, "Artist: mira") || !strings.Contains(out, "2 likes") {
		t.Fatalf("unexpected detail view:\n%s", out)
	}

	h.key("[")
	if h.m.selectedID != "b" || !h.m.inDetail {
		t.Fatalf("expected previous artwork in detail, got %q", h.m.selectedID)
	}
	h.clock.Advance(5 * time.Second)
	h.key("esc")
	if h.m.inDetail {
		t.Fatal("expected back on the grid")
	}

	h.flushTelemetry()
	events := strings.Join(h.api.recorded(), ",")
	for _, want := range []string{"click:c:feed", "view:c:detail", "view:b:detail"} {
		if !strings.Contains(events, want) {
			t.Fatalf("expected %s in %s", want, events)
		}
	}
	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	spent := slices.Sorted(slices.Values(h.api.spent))
	if !slices.Equal(spent, []float64{0, 5}) {
		t.Fatalf("unexpected view durations: %v", spent)
	}
}

func TestModel_CommissionInquiryIsTrackedImmediately(t *testing.T) {
	h := newHarness(t, "token", 1)
	h.key("enter")

	cmd := h.key("c")
	if cmd == nil {
		t.Fatal("expected track command")
	}
	h.send(cmd())
	if !strings.Contains(h.m.View(), "Commission inquiry sent") {
		t.Fatal("expected confirmation status")
	}
	events := h.api.recorded()
	if len(events) == 0 || events[len(events)-1] != "track:commission_inquiry:a" {
		t.Fatalf("unexpected tracked events: %v", events)
	}
}

func TestModel_LoadMoreAppendsPage(t *testing.T) {
	h := newHarness(t, "token", 2)

	cmd := h.key("n")
	if cmd == nil || !h.m.loading {
		t.Fatal("expected load more command")
	}
	h.send(cmd())
	out := h.m.View()
	if !strings.Contains(out, "Fern") || !strings.Contains(out, "4 shown") {
		t.Fatalf("expected second page rendered:\n%s", out)
	}
	if h.m.selectedID != "a" {
		t.Fatalf("expected selection kept across relayout, got %q", h.m.selectedID)
	}

	h.key("n")
	if !strings.Contains(h.m.View(), "No more artworks") {
		t.Fatal("expected end-of-feed status")
	}
}

func TestModel_ErrorsAreShownExceptRateLimit(t *testing.T) {
	h := newHarness(t, "token", 1)

	h.send(actions.RefreshErrorMsg{Err: &api.StatusError{Op: "list artworks", StatusCode: http.StatusTooManyRequests}})
	if h.m.err != nil {
		t.Fatalf("rate limit must stay silent, got %v", h.m.err)
	}

	h.send(actions.RefreshErrorMsg{Err: errors.New("feed unavailable")})
	if !strings.Contains(h.m.View(), "feed unavailable") {
		t.Fatal("expected refresh error in view")
	}
	if !strings.Contains(h.m.View(), "Dusk") {
		t.Fatal("expected previous items kept after a failed refresh")
	}
}

func TestModel_OpenFallsBackToClipboardAndCopyRecordsShare(t *testing.T) {
	h := newHarness(t, "token", 1)

	cmd := h.key("o")
	if cmd == nil {
		t.Fatal("expected open command")
	}
	msg, ok := cmd().(actions.OpenURLSuccessMsg)
	if !ok || msg.Opened {
		t.Fatalf("expected clipboard fallback, got %#v", msg)
	}

	if cmd := h.key("y"); cmd == nil {
		t.Fatal("expected copy command")
	}
	h.flushTelemetry()
	if events := strings.Join(h.api.recorded(), ","); !strings.Contains(events, "share:a:feed") {
		t.Fatalf("expected share event, got %s", events)
	}

	h.key("l")
	h.key("o")
	if !strings.Contains(h.m.View(), "artwork has no image") {
		t.Fatal("expected validation status for an artwork without image")
	}
}
