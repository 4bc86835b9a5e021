package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/app"
	"github.com/glabrego/easel-cli/internal/feed"
	"github.com/glabrego/easel-cli/internal/telemetry"
	"github.com/glabrego/easel-cli/internal/tui/actions"
	"github.com/glabrego/easel-cli/internal/tui/platform"
	"github.com/glabrego/easel-cli/internal/tui/state"
	tuitheme "github.com/glabrego/easel-cli/internal/tui/theme"
	"github.com/glabrego/easel-cli/internal/tui/view"
)

const (
	sourceFeed   = "feed"
	sourceDetail = "detail"

	// Cards below the cursor at which the next page is requested.
	loadAheadCards = 2
	maxImageRows   = 10
)

type Options struct {
	Columns   int
	ItemWidth float64
}

type Model struct {
	session    *app.Session
	theme      tuitheme.Theme
	spinner    spinner.Model
	columns    int
	itemWidth  float64
	cursor     state.GridCursor
	selectedID api.ItemID
	inDetail   bool
	detailTop  int
	detailFrom time.Time
	animating  bool
	width      int
	height     int
	loading    bool
	status     string
	statusID   int
	err        error
	openURLFn  func(string) error
	copyURLFn  func(string) error
	nowFn      func() time.Time
}

func NewModel(session *app.Session, opts Options) Model {
	if opts.Columns < 1 {
		opts.Columns = feed.DefaultColumns
	}
	if opts.ItemWidth <= 0 {
		opts.ItemWidth = 160
	}
	return Model{
		session:   session,
		theme:     tuitheme.Default(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		columns:   opts.Columns,
		itemWidth: opts.ItemWidth,
		loading:   true,
		openURLFn: platform.OpenURLInBrowser,
		copyURLFn: platform.CopyURLToClipboard,
		nowFn:     time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		actions.RefreshCmd(m.session, "init"),
		actions.WaitForLikeCmd(m.session.LikeOutcomes(), m.session.Done()),
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.inDetail {
			return m.updateDetailKey(msg)
		}
		return m.updateGridKey(msg)
	case actions.RefreshSuccessMsg:
		m.loading = false
		m.err = nil
		m.restoreSelection()
		if msg.Source != "init" {
			m.status = "Feed refreshed"
			return m.withStatusTimeout(3 * time.Second)
		}
		m.recordFocusView()
		return m, nil
	case actions.RefreshErrorMsg:
		m.loading = false
		m.restoreSelection()
		m.setError(msg.Err)
		return m, nil
	case actions.LoadMoreSuccessMsg:
		m.loading = false
		m.err = nil
		m.restoreSelection()
		m.status = fmt.Sprintf("Loaded page %d", m.session.Feed.Page())
		return m.withStatusTimeout(3 * time.Second)
	case actions.LoadMoreErrorMsg:
		m.loading = false
		m.setError(msg.Err)
		return m, nil
	case actions.LikeSuccessMsg:
		m.err = nil
		m.status = msg.Status
		next, cmd := m.withStatusTimeout(3 * time.Second)
		if msg.FromTap {
			return next, tea.Batch(cmd, m.waitForLike())
		}
		return next, cmd
	case actions.LikeErrorMsg:
		var cmd tea.Cmd
		if errors.Is(msg.Err, api.ErrUnauthenticated) {
			m.err = nil
			m.status = "Set EASEL_TOKEN to like artworks"
		} else {
			m.status = ""
			m.err = fmt.Errorf("could not update like: %w", msg.Err)
		}
		if msg.FromTap {
			cmd = m.waitForLike()
		}
		return m, cmd
	case actions.TrackedMsg:
		m.status = msg.Status
		return m.withStatusTimeout(3 * time.Second)
	case actions.OpenURLSuccessMsg:
		m.err = nil
		m.status = msg.Status
		return m.withStatusTimeout(3 * time.Second)
	case actions.OpenURLErrorMsg:
		m.err = nil
		m.status = msg.Err.Error()
		return m.withStatusTimeout(4 * time.Second)
	case actions.AnimationTickMsg:
		return m.advanceAnimations()
	case actions.ClearStatusMsg:
		if msg.ID == m.statusID {
			m.status = ""
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updateGridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := m.session.Feed.Assignment()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		return m.moveTo(state.MoveRow(a, m.cursor, -1))
	case "down", "j":
		return m.moveTo(state.MoveRow(a, m.cursor, 1))
	case "left", "h":
		return m.moveTo(state.MoveColumn(a, m.cursor, -1))
	case "right", "l":
		return m.moveTo(state.MoveColumn(a, m.cursor, 1))
	case "pgup", "ctrl+b":
		return m.moveTo(state.MoveRow(a, m.cursor, -m.pageCards()))
	case "pgdown", "ctrl+f":
		return m.moveTo(state.MoveRow(a, m.cursor, m.pageCards()))
	case "g":
		return m.moveTo(state.GridCursor{Col: m.cursor.Col})
	case "G":
		return m.moveTo(state.MoveRow(a, m.cursor, a.Len()))
	case " ":
		return m.tapCurrent()
	case "L":
		return m.likeCurrent(sourceFeed)
	case "enter":
		item, ok := m.currentItem()
		if !ok {
			return m, nil
		}
		m.inDetail = true
		m.detailTop = 0
		m.detailFrom = m.nowFn()
		m.session.Record(telemetry.Event{ItemID: item.ID, Kind: telemetry.Click, Source: sourceFeed})
		return m, nil
	case "r":
		m.loading = true
		m.status = ""
		m.err = nil
		return m, actions.RefreshCmd(m.session, "manual")
	case "n":
		return m.loadMore()
	case "o":
		return m.openCurrentURL()
	case "y":
		return m.copyCurrentURL()
	}
	return m, nil
}

func (m Model) updateDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "backspace":
		m.leaveDetail()
		return m, nil
	case "up", "k":
		if m.detailTop > 0 {
			m.detailTop--
		}
		return m, nil
	case "down", "j":
		maxTop := view.DetailMaxTop(len(m.detailLines()), m.detailBodyHeight())
		if m.detailTop < maxTop {
			m.detailTop++
		}
		return m, nil
	case "[":
		return m.stepDetail(-1)
	case "]":
		return m.stepDetail(1)
	case " ":
		return m.tapCurrent()
	case "l", "L":
		return m.likeCurrent(sourceDetail)
	case "c":
		item, ok := m.currentItem()
		if !ok {
			return m, nil
		}
		event := telemetry.Event{
			ItemID:   item.ID,
			Kind:     telemetry.CommissionInquiry,
			Source:   sourceDetail,
			Metadata: map[string]string{"artist": item.ArtistName()},
		}
		return m, actions.TrackCmd(m.session, event, "Commission inquiry sent")
	case "o":
		return m.openCurrentURL()
	case "y":
		return m.copyCurrentURL()
	}
	return m, nil
}

func (m Model) moveTo(c state.GridCursor) (tea.Model, tea.Cmd) {
	a := m.session.Feed.Assignment()
	c = state.ClampGrid(a, c)
	moved := c != m.cursor
	m.cursor = c
	if item, ok := state.ItemAt(a, c); ok {
		m.selectedID = item.ID
	}

	if moved {
		m.recordFocusView()
	}
	if a.Len() > 0 && state.NearEnd(a, c, loadAheadCards) && m.session.Feed.HasMore() && !m.loading {
		m.loading = true
		return m, actions.LoadMoreCmd(m.session)
	}
	return m, nil
}

// recordFocusView queues a view event for the card under the cursor.
func (m Model) recordFocusView() {
	if item, ok := m.currentItem(); ok {
		m.session.Record(telemetry.Event{ItemID: item.ID, Kind: telemetry.View, Source: sourceFeed})
	}
}

func (m Model) tapCurrent() (tea.Model, tea.Cmd) {
	item, ok := m.currentItem()
	if !ok {
		return m, nil
	}
	res := m.session.Tap(item.ID)
	if !res.Liked {
		return m, nil
	}
	m.status = "Liking…"
	return m.startAnimation()
}

func (m Model) likeCurrent(source string) (tea.Model, tea.Cmd) {
	item, ok := m.currentItem()
	if !ok {
		return m, nil
	}
	if !m.session.Authenticated() {
		m.status = "Set EASEL_TOKEN to like artworks"
		return m.withStatusTimeout(4 * time.Second)
	}
	return m, actions.LikeCmd(m.session, item.ID, source)
}

func (m Model) startAnimation() (tea.Model, tea.Cmd) {
	if m.animating {
		return m, nil
	}
	m.animating = true
	return m, actions.AnimationTickCmd()
}

// advanceAnimations completes finished like animations and keeps ticking
// while any are still playing.
func (m Model) advanceAnimations() (tea.Model, tea.Cmd) {
	running := false
	for _, item := range m.session.Feed.Items() {
		frame, ok := m.session.Taps.Animation(item.ID)
		if !ok {
			continue
		}
		if frame.Done {
			m.session.Taps.Complete(item.ID)
			continue
		}
		running = true
	}
	if !running {
		m.animating = false
		return m, nil
	}
	return m, actions.AnimationTickCmd()
}

func (m Model) loadMore() (tea.Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	if !m.session.Feed.HasMore() {
		m.status = "No more artworks"
		return m.withStatusTimeout(3 * time.Second)
	}
	m.loading = true
	m.status = ""
	m.err = nil
	return m, actions.LoadMoreCmd(m.session)
}

func (m Model) stepDetail(delta int) (tea.Model, tea.Cmd) {
	items := m.session.Feed.Items()
	idx := -1
	for i, item := range items {
		if item.ID == m.selectedID {
			idx = i
			break
		}
	}
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(items) {
		return m, nil
	}
	m.leaveDetail()
	m.selectedID = items[next].ID
	m.restoreSelection()
	m.inDetail = true
	m.detailTop = 0
	m.detailFrom = m.nowFn()
	return m, nil
}

// leaveDetail closes the detail screen and records how long it was open.
func (m *Model) leaveDetail() {
	if item, ok := m.currentItem(); ok {
		seconds := m.nowFn().Sub(m.detailFrom).Seconds()
		m.session.Record(telemetry.Event{
			ItemID:   item.ID,
			Kind:     telemetry.View,
			Source:   sourceDetail,
			Duration: &seconds,
		})
	}
	m.inDetail = false
	m.detailTop = 0
}

func (m Model) openCurrentURL() (tea.Model, tea.Cmd) {
	item, ok := m.currentItem()
	if !ok {
		return m, nil
	}
	validURL, err := platform.ValidateImageURL(item.ImageURL())
	if err != nil {
		m.err = nil
		m.status = err.Error()
		return m.withStatusTimeout(4 * time.Second)
	}
	return m, actions.OpenURLCmd(validURL, m.openURLFn, m.copyURLFn)
}

func (m Model) copyCurrentURL() (tea.Model, tea.Cmd) {
	item, ok := m.currentItem()
	if !ok {
		return m, nil
	}
	validURL, err := platform.ValidateImageURL(item.ImageURL())
	if err != nil {
		m.err = nil
		m.status = err.Error()
		return m.withStatusTimeout(4 * time.Second)
	}
	m.session.Record(telemetry.Event{
		ItemID:   item.ID,
		Kind:     telemetry.Share,
		Source:   m.source(),
		Metadata: map[string]string{"channel": "clipboard"},
	})
	return m, actions.CopyURLCmd(validURL, m.copyURLFn)
}

func (m Model) withStatusTimeout(d time.Duration) (tea.Model, tea.Cmd) {
	m.statusID++
	return m, actions.ClearStatusCmd(m.statusID, d)
}

func (m Model) waitForLike() tea.Cmd {
	return actions.WaitForLikeCmd(m.session.LikeOutcomes(), m.session.Done())
}

// setError shows err unless it is rate limiting, which stays silent.
func (m *Model) setError(err error) {
	m.status = ""
	if api.IsRateLimited(err) {
		return
	}
	m.err = err
}

func (m Model) source() string {
	if m.inDetail {
		return sourceDetail
	}
	return sourceFeed
}

func (m Model) currentItem() (api.Artwork, bool) {
	if m.selectedID != "" {
		if item, ok := m.session.Feed.Item(m.selectedID); ok {
			return item, true
		}
	}
	return state.ItemAt(m.session.Feed.Assignment(), m.cursor)
}

// restoreSelection keeps the cursor on the selected artwork after a relayout,
// or clamps it into the new grid when the artwork is gone.
func (m *Model) restoreSelection() {
	a := m.session.Feed.Assignment()
	if c, ok := state.CursorFor(a, m.selectedID); ok {
		m.cursor = c
		return
	}
	m.cursor = state.ClampGrid(a, m.cursor)
	if item, ok := state.ItemAt(a, m.cursor); ok {
		m.selectedID = item.ID
	} else {
		m.selectedID = ""
	}
}

func (m Model) pageCards() int {
	step := state.PageStep(m.height, m.status != "")
	return max(1, step/8)
}

func (m Model) View() string {
	var b strings.Builder
	mode := "grid"
	if m.inDetail {
		mode = "detail"
	}
	b.WriteString(m.theme.Title.Render("Easel") + " " + m.theme.ModePill.Render(mode) + "\n")
	b.WriteString(view.Toolbar(m.inDetail, m.session.Authenticated()) + "\n\n")

	switch {
	case m.inDetail:
		b.WriteString(view.RenderDetailLines(m.detailLines(), m.detailTop, m.detailBodyHeight()))
	case m.session.Feed.Assignment().Len() == 0 && m.loading:
		b.WriteString(m.spinner.View() + " Loading artworks...\n")
	case m.session.Feed.Assignment().Len() == 0:
		b.WriteString("No artworks available.\n")
	default:
		b.WriteString(m.gridView())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.messagePanel())
	b.WriteString("\n")
	b.WriteString(m.footer(mode))
	b.WriteString("\n")
	return b.String()
}

func (m Model) gridView() string {
	a := m.session.Feed.Assignment()
	colWidth := m.columnWidth()
	inner := colWidth - m.theme.Card.GetHorizontalFrameSize()

	cols := make([][]view.Card, len(a.Columns))
	for ci, col := range a.Columns {
		cards := make([]view.Card, 0, len(col))
		for ri, placed := range col {
			cards = append(cards, m.card(placed, inner, ci == m.cursor.Col && ri == m.cursor.Row))
		}
		cols[ci] = cards
	}
	return view.RenderGrid(view.GridParams{
		Columns:     cols,
		ColumnWidth: colWidth,
		Height:      m.gridBodyHeight(),
		ActiveCol:   m.cursor.Col,
		ActiveRow:   m.cursor.Row,
	}, m.theme)
}

func (m Model) card(p feed.Placed, inner int, active bool) view.Card {
	id := p.Item.ID
	snap := m.session.Engagement.Snapshot(id)
	c := view.Card{
		Title:     p.Item.Title,
		Artist:    p.Item.ArtistName(),
		LikeLabel: fmt.Sprintf("%d", snap.LikeCount),
		Liked:     snap.Liked,
		ImageRows: imageRows(p.ImageHeight, m.itemWidth, inner),
		Active:    active,
		Armed:     m.session.Taps.Armed(id),
	}
	if frame, ok := m.session.Taps.Animation(id); ok {
		c.Burst = m.theme.Burst(frame)
	}
	return c
}

// imageRows converts a layout image height to terminal rows for a card whose
// inner width is inner columns. Terminal cells are about twice as tall as
// they are wide.
func imageRows(imageHeight, itemWidth float64, inner int) int {
	if itemWidth <= 0 || inner <= 0 {
		return 1
	}
	rows := int(math.Round(imageHeight / itemWidth * float64(inner) / 2))
	return min(max(rows, 1), maxImageRows)
}

func (m Model) detailLines() []string {
	item, ok := m.currentItem()
	if !ok {
		return []string{"No artwork selected."}
	}
	snap := m.session.Engagement.Snapshot(item.ID)
	d := view.Detail{
		Title:     item.Title,
		Artist:    item.ArtistName(),
		Liked:     snap.Liked,
		LikeCount: snap.LikeCount,
		ViewCount: item.ViewCount,
		Aspect:    item.AspectRatio,
		ImageURL:  item.ImageURL(),
		Images:    len(item.Images),
	}
	if frame, ok := m.session.Taps.Animation(item.ID); ok {
		d.Burst = m.theme.Burst(frame)
	}
	return view.DetailLines(d, m.contentWidth(), m.theme)
}

func (m Model) messagePanel() string {
	warning := ""
	if m.err != nil {
		warning = m.err.Error()
	}
	return view.Message(m.loading, warning, m.status, m.spinner.View(), m.theme)
}

func (m Model) footer(mode string) string {
	liked := 0
	for _, item := range m.session.Feed.Items() {
		if m.session.Engagement.IsLiked(item.ID) {
			liked++
		}
	}
	return view.Footer(view.FooterParams{
		Mode:    mode,
		Page:    m.session.Feed.Page(),
		Shown:   m.session.Feed.Assignment().Len(),
		Liked:   liked,
		HasMore: m.session.Feed.HasMore(),
		Columns: m.columns,
	}, m.theme)
}

func (m Model) contentWidth() int {
	if m.width > 0 {
		return m.width - 1
	}
	return 100
}

func (m Model) columnWidth() int {
	return max(16, m.contentWidth()/m.columns)
}

func (m Model) gridBodyHeight() int {
	if m.height > 0 {
		if h := m.height - 7; h > 6 {
			return h
		}
	}
	return 30
}

func (m Model) detailBodyHeight() int {
	if m.height > 0 {
		if h := m.height - 7; h > 3 {
			return h
		}
	}
	return 16
}
