package mapbank

import (
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

const defaultCellSize float32 = 32

// borderedLayout returns the decoded cell layout for a rows x columns map
// bordered by standard walls with an open interior, plus a few fixed bouncy
// and standard interior obstacles. This stands in for the map bank's externally
// curated layouts: real layouts are authored data the core never generates,
// but a self-contained default keeps env.Init usable without an external
// asset pipeline.
func borderedLayout(rows, columns int) []CellKind {
	cells := make([]CellKind, rows*columns)
	for row := 0; row < rows; row++ {
		for col := 0; col < columns; col++ {
			idx := row*columns + col
			edge := row == 0 || row == rows-1 || col == 0 || col == columns-1
			switch {
			case edge:
				cells[idx] = CellStandardWall
			default:
				cells[idx] = CellEmpty
			}
		}
	}
	// A handful of interior obstacles, placed deterministically.
	interior := []struct {
		row, col int
		kind     CellKind
	}{
		{rows / 2, columns / 4, CellBouncyWall},
		{rows / 2, columns * 3 / 4, CellBouncyWall},
		{rows / 4, columns / 2, CellStandardWall},
		{rows * 3 / 4, columns / 2, CellStandardWall},
	}
	for _, s := range interior {
		if s.row <= 0 || s.row >= rows-1 || s.col <= 0 || s.col >= columns-1 {
			continue
		}
		cells[s.row*columns+s.col] = s.kind
	}
	return cells
}

func quadrantAABBs(columns, rows int, cellSize float32) [4]AABB {
	w, h := float32(columns)*cellSize, float32(rows)*cellSize
	halfW, halfH := w/2, h/2
	return [4]AABB{
		{Min: mathutil.Vec2{X: 0, Y: 0}, Max: mathutil.Vec2{X: halfW, Y: halfH}},
		{Min: mathutil.Vec2{X: halfW, Y: 0}, Max: mathutil.Vec2{X: w, Y: halfH}},
		{Min: mathutil.Vec2{X: 0, Y: halfH}, Max: mathutil.Vec2{X: halfW, Y: h}},
		{Min: mathutil.Vec2{X: halfW, Y: halfH}, Max: mathutil.Vec2{X: w, Y: h}},
	}
}

func droneSpawnMask(layout []CellKind) DroneSpawnMask {
	mask := make(DroneSpawnMask, len(layout))
	for i, k := range layout {
		mask[i] = k == CellEmpty
	}
	return mask
}

// StandardArena is the default 2-4 drone map.
func StandardArena() *MapEntry {
	const rows, columns = 18, 24
	layout := borderedLayout(rows, columns)
	m := &MapEntry{
		Name:          "standard_arena",
		Columns:       columns,
		Rows:          rows,
		Layout:        layout,
		DefaultWeapon: weapons.Standard,
		WeaponPickups: 6,
		SpawnQuads:    quadrantAABBs(columns, rows, defaultCellSize),
		DroneSpawns:   droneSpawnMask(layout),
		FloatingWalls: []FloatingWallSpec{
			{Kind: CellStandardWall, Extent: mathutil.Vec2{X: 10, Y: 10}},
			{Kind: CellStandardWall, Extent: mathutil.Vec2{X: 10, Y: 10}},
			{Kind: CellBouncyWall, Extent: mathutil.Vec2{X: 8, Y: 8}},
		},
		CellSize: defaultCellSize,
	}
	return m
}
