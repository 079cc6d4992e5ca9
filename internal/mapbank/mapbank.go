// Package mapbank is the read-only map-bank external collaborator: static
// layouts, spawn-zone metadata, and a KD-tree over static wall centers
// rebuilt once at map load, used for the observation packer's nearest-wall
// queries.
package mapbank

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// CellKind enumerates a static map cell's content at load time.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellStandardWall
	CellBouncyWall
	CellDeathWall
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mathutil.Vec2
}

// Contains reports whether p lies within the box.
func (b AABB) Contains(p mathutil.Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// FloatingWallSpec describes one floating wall template to spawn at map load.
type FloatingWallSpec struct {
	Kind   CellKind // BouncyWall or DeathWall; StandardWall covers the plain case
	Extent mathutil.Vec2
}

// DroneSpawnMask is a bitset over cell indices: true means a drone may spawn
// in that cell.
type DroneSpawnMask []bool

// MapEntry is one read-only map layout.
type MapEntry struct {
	Name          string
	Columns, Rows int
	// Layout is the decoded per-cell kind, row*Columns+col indexed (see
	// DESIGN.md Open Question #1: this module standardizes on
	// row*columns+col everywhere).
	Layout          []CellKind
	DefaultWeapon   weapons.Kind
	WeaponPickups   int
	SpawnQuads      [4]AABB
	DroneSpawns     DroneSpawnMask
	FloatingWalls   []FloatingWallSpec
	CellSize        float32
}

// CellIndex converts (row, col) to a flat index using the module-wide
// convention row*columns+col.
func (m *MapEntry) CellIndex(row, col int) int { return row*m.Columns + col }

// CellRowCol converts a flat index back to (row, col).
func (m *MapEntry) CellRowCol(idx int) (row, col int) {
	return idx / m.Columns, idx % m.Columns
}

// CellCenter returns the world-space center of a cell.
func (m *MapEntry) CellCenter(idx int) mathutil.Vec2 {
	row, col := m.CellRowCol(idx)
	return mathutil.Vec2{
		X: (float32(col) + 0.5) * m.CellSize,
		Y: (float32(row) + 0.5) * m.CellSize,
	}
}

// Bounds returns the map's world-space AABB.
func (m *MapEntry) Bounds() AABB {
	return AABB{
		Min: mathutil.Vec2{},
		Max: mathutil.Vec2{X: float32(m.Columns) * m.CellSize, Y: float32(m.Rows) * m.CellSize},
	}
}

// InBounds reports whether p lies within the map.
func (m *MapEntry) InBounds(p mathutil.Vec2) bool { return m.Bounds().Contains(p) }

// wallPoint implements kdtree.Comparable over a static wall's center,
// carrying the wall's cell index as a payload for query results.
type wallPoint struct {
	pos     mathutil.Vec2
	cellIdx int
}

// Compare implements kdtree.Comparable.
func (p wallPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	o := c.(wallPoint)
	if d == 0 {
		return float64(p.pos.X - o.pos.X)
	}
	return float64(p.pos.Y - o.pos.Y)
}

// Dims implements kdtree.Comparable: this is a 2D tree.
func (p wallPoint) Dims() int { return 2 }

// Distance implements kdtree.Comparable.
func (p wallPoint) Distance(c kdtree.Comparable) float64 {
	o := c.(wallPoint)
	return float64(mathutil.DistanceSq(p.pos, o.pos))
}

// wallPoints implements kdtree.Interface over a slice of wallPoint.
type wallPoints []wallPoint

func (pts wallPoints) Len() int { return len(pts) }
func (pts wallPoints) Index(i int) kdtree.Comparable { return pts[i] }
func (pts wallPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(sortablePoints{pts, d}, kdtree.MedianOfMedians(sortablePoints{pts, d}))
}
func (pts wallPoints) Slice(start, end int) kdtree.Interface { return pts[start:end] }

// sortablePoints adapts wallPoints to sort.Interface along one dimension,
// required by kdtree.Partition/MedianOfMedians.
type sortablePoints struct {
	pts wallPoints
	d   kdtree.Dim
}

func (s sortablePoints) Len() int { return len(s.pts) }
func (s sortablePoints) Less(i, j int) bool {
	return s.pts[i].Compare(s.pts[j], s.d) < 0
}
func (s sortablePoints) Swap(i, j int) { s.pts[i], s.pts[j] = s.pts[j], s.pts[i] }

// WallIndex is a KD-tree over a map's static wall centers, rebuilt once at
// map load; floating walls move and so are never indexed.
type WallIndex struct {
	tree *kdtree.Tree
	pts  wallPoints
}

// BuildWallIndex constructs a WallIndex from a MapEntry's static wall cells.
func BuildWallIndex(m *MapEntry) *WallIndex {
	var pts wallPoints
	for idx, kind := range m.Layout {
		if kind == CellEmpty {
			continue
		}
		pts = append(pts, wallPoint{pos: m.CellCenter(idx), cellIdx: idx})
	}
	wi := &WallIndex{pts: pts}
	if len(pts) > 0 {
		wi.tree = kdtree.New(pts, false)
	}
	return wi
}

// NearestWalls returns up to n static wall cell indices nearest to pos,
// nearest first. Used by the observation packer's "N nearest walls" scalar
// block.
func (wi *WallIndex) NearestWalls(pos mathutil.Vec2, n int) []int {
	if wi.tree == nil || n <= 0 {
		return nil
	}
	keeper := kdtree.NewNKeeper(n)
	wi.tree.NearestSet(keeper, wallPoint{pos: pos})
	heap := keeper.Heap
	out := make([]int, 0, len(heap))
	// heap.Sort orders by ascending distance.
	heap.Sort()
	for _, comp := range heap {
		out = append(out, comp.Comparable.(wallPoint).cellIdx)
	}
	return out
}

// DecodeRLE expands a run-length-encoded layout string ("d" for 'd'ead,
// 's' standard, 'b' bouncy, '.' empty, each optionally preceded by a repeat
// count, e.g. "5.2s.") into a flat CellKind slice of length rows*columns.
func DecodeRLE(layout string, rows, columns int) []CellKind {
	cells := make([]CellKind, rows*columns)
	pos, count := 0, 0
	flush := func(k CellKind) {
		if count == 0 {
			count = 1
		}
		for i := 0; i < count && pos < len(cells); i++ {
			cells[pos] = k
			pos++
		}
		count = 0
	}
	for _, r := range layout {
		switch {
		case r >= '0' && r <= '9':
			count = count*10 + int(r-'0')
		case r == '.':
			flush(CellEmpty)
		case r == 's':
			flush(CellStandardWall)
		case r == 'b':
			flush(CellBouncyWall)
		case r == 'd':
			flush(CellDeathWall)
		}
	}
	return cells
}
