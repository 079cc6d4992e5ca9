// Package spawner finds open spawn positions and selects weapon-pickup
// types. It is pure logic over the entity store and map layout — it does
// not create bodies itself.
package spawner

import (
	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// ShapeKind distinguishes what FindOpenPos is trying to place, since drones
// and pickups have different rejection rules.
type ShapeKind uint8

const (
	ShapeDrone ShapeKind = iota
	ShapePickup
)

// Overlap reports whether a shape/body occupies a region near a candidate
// cell; the caller supplies this so the spawner needn't reach into physics
// directly (kept free of a *physics.World dependency).
type Overlap interface {
	// AnyNear reports whether any floating wall or drone's AABB comes
	// within minDist of pos.
	AnyNear(pos mathutil.Vec2, minDist float32) bool
}

// FindOpenPos iterates map cells in random order, rejecting cells that are
// occupied, fail the shape-kind's spacing rule, or overlap dynamic bodies
// within cfg.Drone.MinSpawnDistance. When quadrant >= 0, up to
// cfg.Spawn.MaxFindAttempts uniform points are drawn inside that quadrant's
// AABB, each tested against the cell it falls in, instead of scanning the
// whole map; the drawn point itself, not its cell center, is returned.
func FindOpenPos(
	store *entity.Store,
	m *mapbank.MapEntry,
	cfg *config.Config,
	rng *mathutil.RNG,
	ov Overlap,
	kind ShapeKind,
	quadrant int,
) (mathutil.Vec2, bool) {
	numCells := len(store.Cells)
	if quadrant >= 0 && quadrant < len(m.SpawnQuads) {
		quad := m.SpawnQuads[quadrant]
		for attempt := 0; attempt < cfg.Spawn.MaxFindAttempts; attempt++ {
			x := quad.Min.X + rng.Float32()*(quad.Max.X-quad.Min.X)
			y := quad.Min.Y + rng.Float32()*(quad.Max.Y-quad.Min.Y)
			p := mathutil.Vec2{X: x, Y: y}
			col := int(x / m.CellSize)
			row := int(y / m.CellSize)
			if row < 0 || row >= m.Rows || col < 0 || col >= m.Columns {
				continue
			}
			idx := store.CellIndex(row, col)
			if ok := tryCell(store, m, cfg, ov, kind, idx, p); ok {
				return p, true
			}
		}
		return mathutil.Vec2{}, false
	}

	order := rng.Perm(numCells)
	for _, idx := range order {
		p := m.CellCenter(idx)
		if tryCell(store, m, cfg, ov, kind, idx, p) {
			return p, true
		}
	}
	return mathutil.Vec2{}, false
}

func tryCell(
	store *entity.Store,
	m *mapbank.MapEntry,
	cfg *config.Config,
	ov Overlap,
	kind ShapeKind,
	idx int,
	p mathutil.Vec2,
) bool {
	if idx < 0 || idx >= len(store.Cells) {
		return false
	}
	if store.Cells[idx].Occupied {
		return false
	}
	if m.Layout[idx] != mapbank.CellEmpty {
		return false
	}

	switch kind {
	case ShapeDrone:
		if !m.DroneSpawns[idx] {
			return false
		}
		minDistSq := cfg.Drone.DroneDroneSpawnDistance * cfg.Drone.DroneDroneSpawnDistance
		for i := range store.Drones {
			d := &store.Drones[i]
			if d.Dead {
				continue
			}
			if mathutil.DistanceSq(p, d.Pos) < minDistSq {
				return false
			}
		}
	case ShapePickup:
		minDistSq := cfg.Spawn.PickupSpawnDistance * cfg.Spawn.PickupSpawnDistance
		for _, ref := range store.LivePickupRefs() {
			pk := store.Pickup(ref)
			if pk.BodyDestroyed {
				continue
			}
			if mathutil.DistanceSq(p, pk.Pos) < minDistSq {
				return false
			}
		}
	}

	if ov != nil && ov.AnyNear(p, cfg.Drone.MinSpawnDistance) {
		return false
	}
	return true
}

// PickupWeights tracks how many of each pickup weapon kind have spawned
// this episode, feeding the self-balancing weighted draw in
// RandWeaponPickupType.
type PickupWeights struct {
	SpawnedCount [weapons.NumWeapons]int
}

// RandWeaponPickupType draws a pickup weapon kind weighted by
// spawnWeight(w) / ((spawnedCount(w)+1)*2), excluding the map's default
// weapon, and increments the chosen kind's spawned count.
func RandWeaponPickupType(rng *mathutil.RNG, defaultWeapon weapons.Kind, w *PickupWeights) weapons.Kind {
	var weightSum float32
	var weightFor [weapons.NumWeapons]float32
	for k := weapons.Kind(0); k < weapons.NumWeapons; k++ {
		if k == defaultWeapon {
			continue
		}
		info := weapons.Table[k]
		weight := info.SpawnWeight / (float32(w.SpawnedCount[k]+1) * 2)
		weightFor[k] = weight
		weightSum += weight
	}
	if weightSum <= 0 {
		// Degenerate table (all weights zero): fall back to uniform over
		// non-default weapons.
		for k := weapons.Kind(0); k < weapons.NumWeapons; k++ {
			if k != defaultWeapon {
				weightFor[k] = 1
				weightSum++
			}
		}
	}

	roll := rng.Float32() * weightSum
	for k := weapons.Kind(0); k < weapons.NumWeapons; k++ {
		if k == defaultWeapon {
			continue
		}
		roll -= weightFor[k]
		if roll <= 0 {
			w.SpawnedCount[k]++
			return k
		}
	}
	// Floating-point fallthrough: pick the last non-default weapon.
	for k := weapons.NumWeapons - 1; k >= 0; k-- {
		if k != defaultWeapon {
			w.SpawnedCount[k]++
			return k
		}
	}
	return defaultWeapon
}

// DecrementSpawned undoes a prior increment when a pickup is disabled.
func (w *PickupWeights) DecrementSpawned(k weapons.Kind) {
	if w.SpawnedCount[k] > 0 {
		w.SpawnedCount[k]--
	}
}
