package view

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	tuitheme "github.com/glabrego/easel-cli/internal/tui/theme"
)

// Card is the display data of one artwork in the grid.
type Card struct {
	Title     string
	Artist    string
	LikeLabel string
	Liked     bool
	ImageRows int
	Active    bool
	Armed     bool
	// Burst is the rendered like animation frame, or empty.
	Burst string
}

const imageFill = "░"

// RenderCard renders c boxed to width columns.
func RenderCard(c Card, width int, th tuitheme.Theme) string {
	style := th.Card
	if c.Active {
		style = th.ActiveCard
	}
	inner := width - style.GetHorizontalFrameSize()
	if inner < 1 {
		inner = 1
	}

	rows := max(c.ImageRows, 1)
	lines := make([]string, 0, rows+3)
	for i := 0; i < rows; i++ {
		line := strings.Repeat(imageFill, inner)
		if c.Burst != "" && i == rows/2 {
			line = centerOver(c.Burst, inner)
		}
		lines = append(lines, th.Image.Render(line))
	}

	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = "(untitled)"
	}
	lines = append(lines, th.CardTitle.Render(truncate(title, inner)))
	if c.Artist != "" {
		lines = append(lines, th.Artist.Render(truncate("by "+c.Artist, inner)))
	}
	heart := th.Heart(c.Liked, c.LikeLabel)
	if c.Armed {
		heart += " " + th.Armed.Render("tap again to like")
	}
	lines = append(lines, truncate(heart, inner))

	return style.Width(inner + style.GetHorizontalPadding()).Render(strings.Join(lines, "\n"))
}

func centerOver(glyph string, width int) string {
	w := visibleLen(glyph)
	if w >= width {
		return truncate(glyph, width)
	}
	left := (width - w) / 2
	right := width - w - left
	return strings.Repeat(imageFill, left) + glyph + strings.Repeat(imageFill, right)
}

type GridParams struct {
	Columns     [][]Card
	ColumnWidth int
	Height      int
	// ActiveCol and ActiveRow locate the selected card; the window is
	// scrolled to keep it in view.
	ActiveCol int
	ActiveRow int
}

// RenderGrid lays the columns side by side and returns the Height lines
// around the active card.
func RenderGrid(p GridParams, th tuitheme.Theme) string {
	if len(p.Columns) == 0 {
		return ""
	}
	rendered := make([][]string, len(p.Columns))
	activeTop := 0
	total := 0
	for ci, col := range p.Columns {
		var lines []string
		for ri, card := range col {
			if ci == p.ActiveCol && ri == p.ActiveRow {
				activeTop = len(lines)
			}
			lines = append(lines, strings.Split(RenderCard(card, p.ColumnWidth, th), "\n")...)
		}
		rendered[ci] = lines
		total = max(total, len(lines))
	}

	start, end := 0, total
	if p.Height > 0 && total > p.Height {
		start = activeTop - p.Height/4
		start = max(0, min(start, total-p.Height))
		end = start + p.Height
	}

	blocks := make([]string, len(rendered))
	for ci, lines := range rendered {
		window := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			line := ""
			if i < len(lines) {
				line = lines[i]
			}
			window = append(window, padRight(line, p.ColumnWidth))
		}
		blocks[ci] = strings.Join(window, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}
