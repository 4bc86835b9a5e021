package state

import (
	"math"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/feed"
)

func ClampCursor(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	if cursor >= size {
		return size - 1
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

func PageStep(height int, hasStatus bool) int {
	if height <= 0 {
		return 10
	}
	headerLines := 6
	if hasStatus {
		headerLines += 2
	}
	step := height - headerLines
	if step < 3 {
		step = 3
	}
	return step
}

// GridCursor addresses one card in a column assignment.
type GridCursor struct {
	Col int
	Row int
}

// ClampGrid moves c onto an existing card, preferring its own column and
// falling back to the nearest non-empty column to the left.
func ClampGrid(a feed.Assignment, c GridCursor) GridCursor {
	if a.Len() == 0 {
		return GridCursor{}
	}
	c.Col = ClampCursor(c.Col, len(a.Columns))
	for col := c.Col; col >= 0; col-- {
		if n := len(a.Columns[col]); n > 0 {
			return GridCursor{Col: col, Row: ClampCursor(c.Row, n)}
		}
	}
	for col := c.Col + 1; col < len(a.Columns); col++ {
		if len(a.Columns[col]) > 0 {
			return GridCursor{Col: col}
		}
	}
	return GridCursor{}
}

// ItemAt returns the card under c.
func ItemAt(a feed.Assignment, c GridCursor) (api.Artwork, bool) {
	if c.Col < 0 || c.Col >= len(a.Columns) {
		return api.Artwork{}, false
	}
	col := a.Columns[c.Col]
	if c.Row < 0 || c.Row >= len(col) {
		return api.Artwork{}, false
	}
	return col[c.Row].Item, true
}

// CursorFor locates id in a, for keeping the selection across relayouts.
func CursorFor(a feed.Assignment, id api.ItemID) (GridCursor, bool) {
	col, row := a.ColumnOf(id)
	if col < 0 {
		return GridCursor{}, false
	}
	return GridCursor{Col: col, Row: row}, true
}

// MoveRow moves delta cards up or down within the current column.
func MoveRow(a feed.Assignment, c GridCursor, delta int) GridCursor {
	c = ClampGrid(a, c)
	if a.Len() == 0 {
		return c
	}
	c.Row = ClampCursor(c.Row+delta, len(a.Columns[c.Col]))
	return c
}

// MoveColumn moves delta columns sideways, landing on the card whose top edge
// is closest to the current card's top edge. Empty columns are skipped.
func MoveColumn(a feed.Assignment, c GridCursor, delta int) GridCursor {
	c = ClampGrid(a, c)
	if a.Len() == 0 || delta == 0 {
		return c
	}
	top := Offset(a, c)
	step := 1
	if delta < 0 {
		step = -1
	}
	col := c.Col
	for moved := 0; moved != delta; moved += step {
		next := col + step
		for next >= 0 && next < len(a.Columns) && len(a.Columns[next]) == 0 {
			next += step
		}
		if next < 0 || next >= len(a.Columns) {
			break
		}
		col = next
	}
	if col == c.Col {
		return c
	}
	return GridCursor{Col: col, Row: nearestRow(a.Columns[col], top)}
}

// Offset is the top edge of the card under c in layout units.
func Offset(a feed.Assignment, c GridCursor) float64 {
	top := 0.0
	for i := 0; i < c.Row && i < len(a.Columns[c.Col]); i++ {
		top += a.Columns[c.Col][i].TotalHeight + feed.ItemSpacing
	}
	return top
}

func nearestRow(col []feed.Placed, top float64) int {
	best, bestDist := 0, math.Inf(1)
	offset := 0.0
	for i, p := range col {
		if d := math.Abs(offset - top); d < bestDist {
			best, bestDist = i, d
		}
		offset += p.TotalHeight + feed.ItemSpacing
	}
	return best
}

// NearEnd reports whether c is within margin cards of the bottom of its
// column, the point at which the next page should be requested.
func NearEnd(a feed.Assignment, c GridCursor, margin int) bool {
	if a.Len() == 0 {
		return true
	}
	c = ClampGrid(a, c)
	return len(a.Columns[c.Col])-1-c.Row < margin
}
