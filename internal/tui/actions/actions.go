package actions

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/app"
	"github.com/glabrego/easel-cli/internal/engagement"
	"github.com/glabrego/easel-cli/internal/telemetry"
)

// AnimationInterval is the redraw rate while a like animation is playing.
const AnimationInterval = time.Second / 30

type Service interface {
	Refresh(ctx context.Context) error
	LoadMore(ctx context.Context) error
	Like(ctx context.Context, id api.ItemID, source string) (engagement.Snapshot, error)
	Track(ctx context.Context, event telemetry.Event)
}

type RefreshSuccessMsg struct {
	Duration time.Duration
	Source   string
}

type RefreshErrorMsg struct {
	Err      error
	Duration time.Duration
	Source   string
}

type LoadMoreSuccessMsg struct{}

type LoadMoreErrorMsg struct {
	Err error
}

// LikeSuccessMsg and LikeErrorMsg carry FromTap when the like was started by
// a double tap and delivered through WaitForLikeCmd.
type LikeSuccessMsg struct {
	ID       api.ItemID
	Snapshot engagement.Snapshot
	Status   string
	FromTap  bool
}

type LikeErrorMsg struct {
	ID      api.ItemID
	Err     error
	FromTap bool
}

type TrackedMsg struct {
	Status string
}

type OpenURLSuccessMsg struct {
	Status string
	Opened bool
}

type OpenURLErrorMsg struct {
	Err error
}

type AnimationTickMsg struct{}

type ClearStatusMsg struct {
	ID int
}

func RefreshCmd(service Service, source string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		start := time.Now()

		if err := service.Refresh(ctx); err != nil {
			return RefreshErrorMsg{Err: err, Duration: time.Since(start), Source: source}
		}
		return RefreshSuccessMsg{Duration: time.Since(start), Source: source}
	}
}

func LoadMoreCmd(service Service) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()

		if err := service.LoadMore(ctx); err != nil {
			return LoadMoreErrorMsg{Err: err}
		}
		return LoadMoreSuccessMsg{}
	}
}

func likeMsg(id api.ItemID, snap engagement.Snapshot, err error, fromTap bool) tea.Msg {
	if err != nil {
		return LikeErrorMsg{ID: id, Err: err, FromTap: fromTap}
	}
	status := "Unliked artwork"
	if snap.Liked {
		status = "Liked artwork"
	}
	return LikeSuccessMsg{ID: id, Snapshot: snap, Status: status, FromTap: fromTap}
}

func LikeCmd(service Service, id api.ItemID, source string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		snap, err := service.Like(ctx, id, source)
		return likeMsg(id, snap, err, false)
	}
}

// WaitForLikeCmd waits for the next like started in the background by a
// double tap. It returns nil once done is closed.
func WaitForLikeCmd(outcomes <-chan app.LikeOutcome, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case out := <-outcomes:
			return likeMsg(out.ID, out.Snapshot, out.Err, true)
		case <-done:
			return nil
		}
	}
}

func TrackCmd(service Service, event telemetry.Event, status string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		service.Track(ctx, event)
		return TrackedMsg{Status: status}
	}
}

func OpenURLCmd(url string, openFn, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if openFn != nil {
			if err := openFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Opened image in browser", Opened: true}
			}
		}
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "Could not open browser, URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not open URL or copy to clipboard")}
	}
}

func CopyURLCmd(url string, copyFn func(string) error) tea.Cmd {
	return func() tea.Msg {
		if copyFn != nil {
			if err := copyFn(url); err == nil {
				return OpenURLSuccessMsg{Status: "URL copied to clipboard"}
			}
		}
		return OpenURLErrorMsg{Err: fmt.Errorf("could not copy URL to clipboard")}
	}
}

func AnimationTickCmd() tea.Cmd {
	return tea.Tick(AnimationInterval, func(time.Time) tea.Msg {
		return AnimationTickMsg{}
	})
}

func ClearStatusCmd(id int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearStatusMsg{ID: id}
	})
}
