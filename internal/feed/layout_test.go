package feed

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/glabrego/easel-cli/internal/api"
)

func TestHeightRatio(t *testing.T) {
	cases := map[string]float64{
		"4:5":    1.25,
		"1:1":    1,
		"16:9":   9.0 / 16.0,
		" 2 : 3": 1.5,
		"0:5":    FallbackRatio,
		"5:0":    FallbackRatio,
		"-1:2":   FallbackRatio,
		"abc":    FallbackRatio,
		"a:b":    FallbackRatio,
		"":       FallbackRatio,
		"NaN:5":  FallbackRatio,
		"1:NaN":  FallbackRatio,
		"Inf:5":  FallbackRatio,
		"1:Inf":  FallbackRatio,
		"+Inf:1": FallbackRatio,
	}
	for in, want := range cases {
		if got := HeightRatio(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("HeightRatio(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAssignColumns_NonFiniteRatioKeepsBalancing(t *testing.T) {
	items := []api.Artwork{{ID: "x", AspectRatio: "1:NaN"}}
	for i := 0; i < 5; i++ {
		items = append(items, api.Artwork{ID: api.ItemID(fmt.Sprintf("s%d", i)), AspectRatio: "1:1"})
	}
	a := AssignColumns(items, 2, 100)
	for c, h := range a.Heights {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			t.Fatalf("column %d height is not finite: %v", c, h)
		}
	}
	if got := a.Columns[0][0].ImageHeight; got != 100*FallbackRatio {
		t.Fatalf("expected fallback image height, got %v", got)
	}
	if len(a.Columns[0]) != 3 || len(a.Columns[1]) != 3 {
		t.Fatalf("expected 3/3 split, got %d/%d", len(a.Columns[0]), len(a.Columns[1]))
	}
}

func TestAssignColumns_Empty(t *testing.T) {
	a := AssignColumns(nil, 2, 100)
	if len(a.Columns) != 2 || len(a.Heights) != 2 {
		t.Fatalf("expected 2 empty columns, got %+v", a)
	}
	for i, col := range a.Columns {
		if col == nil || len(col) != 0 {
			t.Fatalf("column %d not empty: %+v", i, col)
		}
	}
}

func TestAssignColumns_ComputesImageHeight(t *testing.T) {
	items := []api.Artwork{
		{ID: "a", AspectRatio: "4:5"},
		{ID: "b", AspectRatio: "0:5"},
		{ID: "c", AspectRatio: "abc"},
		{ID: "d"},
	}
	a := AssignColumns(items, 1, 200)
	for _, p := range a.Columns[0] {
		if p.ImageHeight != 250 {
			t.Fatalf("item %s: expected image height 250, got %v", p.Item.ID, p.ImageHeight)
		}
		if p.TotalHeight != 250+TextBlockHeight {
			t.Fatalf("item %s: unexpected total height %v", p.Item.ID, p.TotalHeight)
		}
	}
}

func TestAssignColumns_TieGoesToLowestIndex(t *testing.T) {
	items := []api.Artwork{{ID: "a", AspectRatio: "1:1"}, {ID: "b", AspectRatio: "1:1"}, {ID: "c", AspectRatio: "1:1"}}
	a := AssignColumns(items, 3, 100)
	for i, col := range a.Columns {
		if len(col) != 1 || col[0].Item.ID != items[i].ID {
			t.Fatalf("column %d: unexpected items %+v", i, col)
		}
	}
}

func TestAssignColumns_ThreeItemScenario(t *testing.T) {
	items := []api.Artwork{
		{ID: "item1", AspectRatio: "1:1"},
		{ID: "item2", AspectRatio: "16:9"},
		{ID: "item3"},
	}
	want := [][]api.ItemID{{"item1"}, {"item2", "item3"}}
	for run := 0; run < 3; run++ {
		a := AssignColumns(items, 2, 100)
		if got := columnIDs(a); !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: unexpected assignment %v", run, got)
		}
	}
}

func TestAssignColumns_ChoosesShortestColumnAtEveryStep(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ratios := []string{"1:1", "16:9", "9:16", "4:5", "", "bad", "3:2"}

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(40)
		columns := 1 + rng.Intn(4)
		items := make([]api.Artwork, n)
		for i := range items {
			items[i] = api.Artwork{ID: api.ItemID(fmt.Sprintf("t%d-%d", trial, i)), AspectRatio: ratios[rng.Intn(len(ratios))]}
		}

		got := AssignColumns(items, columns, 120)
		if len(got.Columns) != columns {
			t.Fatalf("expected %d columns, got %d", columns, len(got.Columns))
		}

		// Replay the input and check the choice made for every item.
		heights := make([]float64, columns)
		next := make([]int, columns)
		for _, item := range items {
			min := 0
			for c := 1; c < columns; c++ {
				if heights[c] < heights[min] {
					min = c
				}
			}
			col := got.Columns[min]
			if next[min] >= len(col) || col[next[min]].Item.ID != item.ID {
				t.Fatalf("trial %d: item %s not placed in shortest column %d", trial, item.ID, min)
			}
			heights[min] += col[next[min]].TotalHeight + ItemSpacing
			next[min]++
		}

		seen := make(map[api.ItemID]int)
		for _, col := range got.Columns {
			for _, p := range col {
				seen[p.Item.ID]++
			}
		}
		if len(seen) != n || got.Len() != n {
			t.Fatalf("trial %d: expected %d distinct items, got %d (len %d)", trial, n, len(seen), got.Len())
		}
		for id, count := range seen {
			if count != 1 {
				t.Fatalf("trial %d: item %s placed %d times", trial, id, count)
			}
		}
		if !reflect.DeepEqual(got.Heights, heights) {
			t.Fatalf("trial %d: heights %v, want %v", trial, got.Heights, heights)
		}
	}
}

func TestAssignment_ColumnOf(t *testing.T) {
	a := AssignColumns([]api.Artwork{{ID: "a"}, {ID: "b"}, {ID: "c"}}, 2, 100)
	if c, r := a.ColumnOf("c"); c != 0 || r != 1 {
		t.Fatalf("unexpected position of c: %d,%d", c, r)
	}
	if c, r := a.ColumnOf("zzz"); c != -1 || r != -1 {
		t.Fatalf("expected missing item, got %d,%d", c, r)
	}
}

func columnIDs(a Assignment) [][]api.ItemID {
	out := make([][]api.ItemID, len(a.Columns))
	for i, col := range a.Columns {
		out[i] = []api.ItemID{}
		for _, p := range col {
			out[i] = append(out[i], p.Item.ID)
		}
	}
	return out
}
