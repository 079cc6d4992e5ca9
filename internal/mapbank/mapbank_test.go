package mapbank

import (
	"testing"

	"github.com/pthm-cable/dronearena/internal/mathutil"
)

func TestDecodeRLEDigitPrefixedRuns(t *testing.T) {
	got := DecodeRLE("3.2s.", 1, 6)
	want := []CellKind{CellEmpty, CellEmpty, CellEmpty, CellStandardWall, CellStandardWall, CellEmpty}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeRLEBareCharImpliesCountOne(t *testing.T) {
	got := DecodeRLE("sbd.", 1, 4)
	want := []CellKind{CellStandardWall, CellBouncyWall, CellDeathWall, CellEmpty}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeRLETruncatesExcessCells(t *testing.T) {
	got := DecodeRLE("10.", 1, 4)
	if len(got) != 4 {
		t.Fatalf("expected decoder to stop at rows*columns=4, got %d cells", len(got))
	}
	for i, k := range got {
		if k != CellEmpty {
			t.Errorf("cell %d = %v, want CellEmpty", i, k)
		}
	}
}

func TestMapEntryCellIndexRoundTrip(t *testing.T) {
	m := &MapEntry{Columns: 5, Rows: 4}
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			idx := m.CellIndex(row, col)
			gotRow, gotCol := m.CellRowCol(idx)
			if gotRow != row || gotCol != col {
				t.Errorf("CellIndex(%d,%d)=%d, CellRowCol back = (%d,%d)", row, col, idx, gotRow, gotCol)
			}
		}
	}
}

func TestMapEntryCellCenter(t *testing.T) {
	m := &MapEntry{Columns: 4, Rows: 4, CellSize: 32}
	c := m.CellCenter(m.CellIndex(1, 2))
	if c.X != 2*32+16 || c.Y != 1*32+16 {
		t.Errorf("CellCenter = %v, want (%v,%v)", c, 2*32+16, 1*32+16)
	}
}

func TestMapEntryBoundsAndInBounds(t *testing.T) {
	m := &MapEntry{Columns: 4, Rows: 3, CellSize: 10}
	b := m.Bounds()
	if b.Min.X != 0 || b.Min.Y != 0 || b.Max.X != 40 || b.Max.Y != 30 {
		t.Errorf("Bounds = %+v, want min(0,0) max(40,30)", b)
	}
	if !m.InBounds(mathutil.Vec2{X: 0, Y: 0}) {
		t.Error("origin should be in bounds")
	}
	if !m.InBounds(mathutil.Vec2{X: 40, Y: 30}) {
		t.Error("far corner should be in bounds (inclusive)")
	}
	if m.InBounds(mathutil.Vec2{X: 40.1, Y: 0}) {
		t.Error("just past the right edge should be out of bounds")
	}
}

func TestAABBContainsIsInclusiveOfBounds(t *testing.T) {
	box := AABB{Min: mathutil.Vec2{X: 0, Y: 0}, Max: mathutil.Vec2{X: 10, Y: 10}}
	if !box.Contains(mathutil.Vec2{X: 0, Y: 0}) || !box.Contains(mathutil.Vec2{X: 10, Y: 10}) {
		t.Error("Contains should include both Min and Max corners")
	}
	if box.Contains(mathutil.Vec2{X: 10.01, Y: 5}) {
		t.Error("Contains should exclude points past Max")
	}
	if box.Contains(mathutil.Vec2{X: -0.01, Y: 5}) {
		t.Error("Contains should exclude points before Min")
	}
}

func TestBuildWallIndexNearestWalls(t *testing.T) {
	// A 3x3 grid with standard walls at (0,0) and (2,2), empty elsewhere.
	layout := []CellKind{
		CellStandardWall, CellEmpty, CellEmpty,
		CellEmpty, CellEmpty, CellEmpty,
		CellEmpty, CellEmpty, CellStandardWall,
	}
	m := &MapEntry{Columns: 3, Rows: 3, CellSize: 10, Layout: layout}

	idx := BuildWallIndex(m)
	nearest := idx.NearestWalls(mathutil.Vec2{X: 5, Y: 5}, 2)
	if len(nearest) != 2 {
		t.Fatalf("expected 2 nearest walls, got %d", len(nearest))
	}
	// Both wall centers are equidistant from the grid center (5,5), so either
	// ordering of the two is valid; just confirm both cells are represented.
	seen := map[int]bool{nearest[0]: true, nearest[1]: true}
	if !seen[m.CellIndex(0, 0)] || !seen[m.CellIndex(2, 2)] {
		t.Errorf("expected both wall cells among nearest, got %v", nearest)
	}
}

func TestNearestWallsEmptyIndex(t *testing.T) {
	m := &MapEntry{Columns: 3, Rows: 3, CellSize: 10, Layout: make([]CellKind, 9)}
	idx := BuildWallIndex(m)
	if got := idx.NearestWalls(mathutil.Vec2{X: 0, Y: 0}, 3); got != nil {
		t.Errorf("expected nil from an index with no walls, got %v", got)
	}
}
