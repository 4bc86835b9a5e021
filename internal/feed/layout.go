package feed

import (
	"math"
	"strconv"
	"strings"

	"github.com/glabrego/easel-cli/internal/api"
)

const (
	DefaultColumns = 2
	// TextBlockHeight is the estimated height of the title/artist block under each image.
	TextBlockHeight = 60.0
	// ItemSpacing is the vertical gap added below every item in a column.
	ItemSpacing = 12.0
	// FallbackRatio is height/width for items without a usable aspect ratio (4:5).
	FallbackRatio = 1.25
)

// Placed is an item together with its computed layout heights.
type Placed struct {
	Item        api.Artwork
	ImageHeight float64
	TotalHeight float64
}

// Assignment maps each column index to its ordered items and running height.
type Assignment struct {
	Columns [][]Placed
	Heights []float64
}

// Len returns the number of placed items across all columns.
func (a Assignment) Len() int {
	n := 0
	for _, col := range a.Columns {
		n += len(col)
	}
	return n
}

// ColumnOf returns the column and row of id, or -1, -1.
func (a Assignment) ColumnOf(id api.ItemID) (int, int) {
	for c, col := range a.Columns {
		for r, p := range col {
			if p.Item.ID == id {
				return c, r
			}
		}
	}
	return -1, -1
}

// HeightRatio parses a "W:H" string and returns H/W. Missing, malformed,
// non-finite or non-positive ratios yield FallbackRatio.
func HeightRatio(aspect string) float64 {
	w, h, ok := strings.Cut(strings.TrimSpace(aspect), ":")
	if !ok {
		return FallbackRatio
	}
	width, ok := dimension(w)
	if !ok {
		return FallbackRatio
	}
	height, ok := dimension(h)
	if !ok {
		return FallbackRatio
	}
	ratio := height / width
	if !finite(ratio) || ratio <= 0 {
		return FallbackRatio
	}
	return ratio
}

// dimension parses one side of a ratio, rejecting the "NaN" and "Inf"
// spellings ParseFloat accepts.
func dimension(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !finite(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AssignColumns greedily appends each item, in input order, to the column
// with the smallest accumulated height. Ties go to the lowest index.
func AssignColumns(items []api.Artwork, columns int, itemWidth float64) Assignment {
	if columns < 1 {
		columns = DefaultColumns
	}
	a := Assignment{
		Columns: make([][]Placed, columns),
		Heights: make([]float64, columns),
	}
	for i := range a.Columns {
		a.Columns[i] = []Placed{}
	}

	for _, item := range items {
		imageHeight := itemWidth * HeightRatio(item.AspectRatio)
		total := imageHeight + TextBlockHeight

		target := 0
		for c := 1; c < columns; c++ {
			if a.Heights[c] < a.Heights[target] {
				target = c
			}
		}

		a.Columns[target] = append(a.Columns[target], Placed{
			Item:        item,
			ImageHeight: imageHeight,
			TotalHeight: total,
		})
		a.Heights[target] += total + ItemSpacing
	}
	return a
}
