// Package suddendeath implements the periodic closing-ring controller:
// concentric rings of death walls are placed inward as the episode clock
// runs out, forcing engagement.
package suddendeath

import (
	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/spawner"
)

// Controller tracks ring placement progress for one episode.
type Controller struct {
	// WallCounter is the number of rings placed so far. Invariant: strictly
	// non-decreasing within an episode.
	WallCounter int
}

// Reset clears ring progress for a new episode.
func (c *Controller) Reset() { c.WallCounter = 0 }

// Result reports what one ring placement did, for the orchestrator's
// round-over and logging decisions.
type Result struct {
	WallsPlaced  int
	KilledDrones []int
}

// PlaceRing places the next concentric ring of death walls: weapon pickups
// at a new wall cell are disabled (not destroyed), existing walls are left
// in place. After placement it kills overlapping drones and destroys
// floating walls/projectiles whose cell now holds a wall.
func PlaceRing(
	w *physics.World,
	store *entity.Store,
	m *mapbank.MapEntry,
	cfg *config.Config,
	c *Controller,
	weights *spawner.PickupWeights,
) Result {
	if c.WallCounter >= cfg.Sudden.MaxRings {
		return Result{}
	}
	ring := c.WallCounter
	c.WallCounter++

	placed := 0
	for row := 0; row < m.Rows; row++ {
		for col := 0; col < m.Columns; col++ {
			if ringDistance(row, col, m.Rows, m.Columns) != ring {
				continue
			}
			idx := store.CellIndex(row, col)
			if m.Layout[idx] != mapbank.CellEmpty {
				continue
			}
			placeWallAt(w, store, m, idx, row, col, weights)
			placed++
		}
	}

	killed := killOverlappingDrones(w, store, m)
	destroyStaleFloatingWallsAndProjectiles(w, store, m)

	return Result{WallsPlaced: placed, KilledDrones: killed}
}

// ringDistance is the Chebyshev distance from the nearest map edge; ring 0
// is the border, ring 1 is one cell inward, and so on.
func ringDistance(row, col, rows, columns int) int {
	d := row
	if v := rows - 1 - row; v < d {
		d = v
	}
	if v := col; v < d {
		d = v
	}
	if v := columns - 1 - col; v < d {
		d = v
	}
	return d
}

func placeWallAt(w *physics.World, store *entity.Store, m *mapbank.MapEntry, idx, row, col int, weights *spawner.PickupWeights) {
	m.Layout[idx] = mapbank.CellDeathWall

	if store.Cells[idx].Occupied {
		occ := store.Cells[idx].Occupant
		if occ.Kind == entity.KindPickup {
			pk := store.Pickup(occ)
			if weights != nil && !pk.BodyDestroyed {
				weights.DecrementSpawned(pk.Weapon)
			}
			disablePickup(w, store, occ)
		}
	}

	pos := m.CellCenter(idx)
	half := m.CellSize / 2
	body := w.CreateBody(physics.BodyDef{Type: physics.BodyStatic, Position: pos})
	shape := w.CreateCircleShape(body, physics.ShapeDef{
		Filter:              entity.Filter(entity.CategoryWall, entity.MaskAll),
		EnableContactEvents: true,
	}, physics.CircleGeom{Radius: half})

	ref := store.CreateWall(entity.Wall{
		Pos:     pos,
		Extent:  mathutil.Vec2{X: half, Y: half},
		CellIdx: idx,
		Kind:    mapbank.CellDeathWall,
	})
	w.SetShapeUserData(shape, ref)
	wall := store.Wall(ref)
	wall.Body, wall.Shape = body, shape
	store.SetCellOccupant(idx, ref)
}

func disablePickup(w *physics.World, store *entity.Store, ref entity.Ref) {
	pk := store.Pickup(ref)
	if pk.BodyDestroyed {
		return
	}
	w.DestroyShape(pk.Body, pk.Shape)
	w.DestroyBody(pk.Body)
	pk.Body = physics.BodyID{}
	pk.Shape = physics.ShapeID{}
	pk.BodyDestroyed = true
	pk.RespawnWait = 1
}

func killOverlappingDrones(w *physics.World, store *entity.Store, m *mapbank.MapEntry) []int {
	var killed []int
	for i := range store.Drones {
		d := &store.Drones[i]
		if d.Dead {
			continue
		}
		col := int(d.Pos.X / m.CellSize)
		row := int(d.Pos.Y / m.CellSize)
		if row < 0 || row >= m.Rows || col < 0 || col >= m.Columns {
			continue
		}
		idx := store.CellIndex(row, col)
		if m.Layout[idx] == mapbank.CellDeathWall || m.Layout[idx] == mapbank.CellStandardWall {
			d.Dead = true
			d.DiedThisStep = true
			w.SetLinearVelocity(d.Body, mathutil.Vec2{})
			killed = append(killed, i)
		}
	}
	return killed
}

func destroyStaleFloatingWallsAndProjectiles(w *physics.World, store *entity.Store, m *mapbank.MapEntry) {
	for _, ref := range store.LiveWallRefs() {
		wall := store.Wall(ref)
		if !wall.Floating {
			continue
		}
		col := int(wall.Pos.X / m.CellSize)
		row := int(wall.Pos.Y / m.CellSize)
		if row < 0 || row >= m.Rows || col < 0 || col >= m.Columns {
			w.DestroyShape(wall.Body, wall.Shape)
			w.DestroyBody(wall.Body)
			store.DestroyWall(ref)
			continue
		}
		idx := store.CellIndex(row, col)
		if m.Layout[idx] == mapbank.CellStandardWall || m.Layout[idx] == mapbank.CellDeathWall {
			w.DestroyShape(wall.Body, wall.Shape)
			w.DestroyBody(wall.Body)
			store.DestroyWall(ref)
		}
	}

	for _, ref := range store.LiveProjectileRefs() {
		proj := store.Projectile(ref)
		col := int(proj.Pos.X / m.CellSize)
		row := int(proj.Pos.Y / m.CellSize)
		if row < 0 || row >= m.Rows || col < 0 || col >= m.Columns {
			continue
		}
		idx := store.CellIndex(row, col)
		if m.Layout[idx] == mapbank.CellStandardWall || m.Layout[idx] == mapbank.CellDeathWall {
			if proj.HasSensor {
				w.DestroyShape(proj.Body, proj.Sensor)
			}
			if proj.WeldJoint.Valid() {
				w.DestroyWeldJoint(proj.WeldJoint)
			}
			w.DestroyShape(proj.Body, proj.Shape)
			w.DestroyBody(proj.Body)
			store.DestroyProjectile(ref)
		}
	}
}
