// World construction: builds a fresh physics world, entity store, and map,
// then places static walls, floating walls, drones, and weapon pickups.
package env

import (
	"github.com/pthm-cable/dronearena/internal/dronelogic"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/explosion"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/spawner"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// pickupSensorRadius is a pickup's trigger radius; unlike walls and drones it
// has no config knob of its own.
const pickupSensorRadius = 8

// Reset tears down and rebuilds the episode: reseeding the RNG from e.Seed
// every time means two consecutive Reset calls leave identical state.
func (e *Env) Reset() {
	cfg := e.Cfg
	e.rng = mathutil.NewRNG(e.Seed)
	e.world = physics.CreateWorld(mathutil.Vec2{})

	m := mapbank.StandardArena()
	e.mapEntry = m
	e.wallIndex = mapbank.BuildWallIndex(m)
	e.store = entity.NewStore(m.Columns, m.Rows, e.NumDrones)
	e.explosionEng = explosion.NewEngine(e.world, e.store, m, e.rng)
	e.suddenDeath.Reset()
	e.pickupWeights = spawner.PickupWeights{}

	e.stepsLeft = cfg.Sim.EpisodeSteps
	e.suddenLeft = cfg.Sudden.IntervalSteps
	e.episodeStep = 0
	e.needsReset = false
	e.droneCellIdx = make([]int, e.NumDrones)

	e.createStaticWalls()
	e.createFloatingWalls()
	e.createDrones()
	e.createPickups()

	for i := range e.Rewards {
		e.Rewards[i] = 0
	}
	for i := range e.Terminals {
		e.Terminals[i] = 0
	}
	for i := range e.Truncations {
		e.Truncations[i] = 0
	}

	e.computeObs()
}

func (e *Env) createStaticWalls() {
	m := e.mapEntry
	half := m.CellSize / 2
	for idx, kind := range m.Layout {
		if kind == mapbank.CellEmpty {
			continue
		}
		pos := m.CellCenter(idx)
		body := e.world.CreateBody(physics.BodyDef{Type: physics.BodyStatic, Position: pos})
		shape := e.world.CreateCircleShape(body, physics.ShapeDef{
			Filter:              entity.Filter(entity.CategoryWall, entity.MaskAll),
			EnableContactEvents: true,
		}, physics.CircleGeom{Radius: half})

		ref := e.store.CreateWall(entity.Wall{
			Body:    body,
			Shape:   shape,
			Pos:     pos,
			Extent:  mathutil.Vec2{X: half, Y: half},
			CellIdx: idx,
			Kind:    kind,
		})
		e.world.SetShapeUserData(shape, ref)
		e.store.SetCellOccupant(idx, ref)
	}
}

func (e *Env) createFloatingWalls() {
	m := e.mapEntry
	ov := e.spawnOverlap()
	for _, spec := range m.FloatingWalls {
		pos, ok := spawner.FindOpenPos(e.store, m, e.Cfg, e.rng, ov, spawner.ShapePickup, -1)
		if !ok {
			continue
		}
		body := e.world.CreateBody(physics.BodyDef{
			Type: physics.BodyDynamic, Position: pos,
			LinearDamping: 0.5, AngularDamping: 0.5, CanSleep: true,
		})
		shape := e.world.CreateBoxShape(body, physics.ShapeDef{
			Density: 1, Friction: 0.3, Restitution: 0.1,
			Filter:              entity.Filter(entity.CategoryFloatingWall, entity.MaskAll),
			EnableContactEvents: true,
		}, physics.BoxGeom{HalfWidth: spec.Extent.X, HalfHeight: spec.Extent.Y})

		cellIdx := cellIndexAt(e.store, m, pos)
		ref := e.store.CreateWall(entity.Wall{
			Body: body, Shape: shape, Pos: pos, Extent: spec.Extent,
			CellIdx: cellIdx, Kind: spec.Kind, Floating: true,
		})
		e.world.SetShapeUserData(shape, ref)
		if !e.store.Cells[cellIdx].Occupied {
			e.store.SetCellOccupant(cellIdx, ref)
		}
	}
}

func (e *Env) createDrones() {
	cfg := e.Cfg
	m := e.mapEntry
	ov := e.spawnOverlap()
	for i := 0; i < e.NumDrones; i++ {
		pos, ok := spawner.FindOpenPos(e.store, m, cfg, e.rng, ov, spawner.ShapeDrone, i%len(m.SpawnQuads))
		if !ok {
			pos = m.CellCenter(0)
		}
		body := e.world.CreateBody(physics.BodyDef{
			Type: physics.BodyDynamic, Position: pos,
			LinearDamping: cfg.Drone.LinearDamping, FixedRotation: true,
		})
		shape := e.world.CreateCircleShape(body, physics.ShapeDef{
			Density: 1, Friction: 0.2,
			Filter:              entity.Filter(entity.CategoryDrone, entity.MaskAll),
			EnableContactEvents: true,
		}, physics.CircleGeom{Radius: cfg.Drone.Radius})

		d := &e.store.Drones[i]
		*d = entity.Drone{
			Body: body, Shape: shape, Idx: i, Team: uint8(i),
			Weapon: m.DefaultWeapon, Ammo: weapons.InfiniteAmmo,
			Pos: pos, LastPos: pos, InitialPos: pos,
			LastAim:       mathutil.Vec2{X: 0, Y: -1},
			EnergyLeft:    cfg.Drone.EnergyMax,
			InLineOfSight: make([]bool, e.NumDrones),
			StepInfo:      entity.NewDroneStepInfo(e.NumDrones),
		}
		ref := entity.Ref{Kind: entity.KindDrone, Index: i}
		e.world.SetShapeUserData(shape, ref)

		cellIdx := cellIndexAt(e.store, m, pos)
		if !e.store.Cells[cellIdx].Occupied {
			e.store.SetCellOccupant(cellIdx, ref)
		}
		e.droneCellIdx[i] = cellIdx

		dronelogic.CreateShield(e.world, cfg, e.store, i)
	}
}

func (e *Env) createPickups() {
	m := e.mapEntry
	for i := 0; i < m.WeaponPickups; i++ {
		pos, ok := spawner.FindOpenPos(e.store, m, e.Cfg, e.rng, e.spawnOverlap(), spawner.ShapePickup, -1)
		if !ok {
			continue
		}
		kind := spawner.RandWeaponPickupType(e.rng, m.DefaultWeapon, &e.pickupWeights)
		ref := e.store.CreatePickup(entity.WeaponPickup{Pos: pos, Weapon: kind})
		e.createPickupBody(ref, pos, kind)
	}
}

// createPickupBody (re)builds a pickup's sensor body at pos, used both for
// initial placement and for a respawn after its RespawnWait elapses.
func (e *Env) createPickupBody(ref entity.Ref, pos mathutil.Vec2, kind weapons.Kind) {
	m := e.mapEntry
	pk := e.store.Pickup(ref)

	body := e.world.CreateBody(physics.BodyDef{Type: physics.BodyStatic, Position: pos})
	shape := e.world.CreateCircleShape(body, physics.ShapeDef{
		IsSensor:           true,
		Filter:             entity.Filter(entity.CategoryPickup, entity.MaskSensor),
		EnableSensorEvents: true,
		UserData:           ref,
	}, physics.CircleGeom{Radius: pickupSensorRadius})

	cellIdx := cellIndexAt(e.store, m, pos)

	pk.Body, pk.Shape = body, shape
	pk.Pos, pk.Weapon = pos, kind
	pk.CellIdx = cellIdx
	pk.BodyDestroyed = false
	pk.RespawnWait = 0

	if !e.store.Cells[cellIdx].Occupied {
		e.store.SetCellOccupant(cellIdx, ref)
	}
}

// cellIndexAt resolves a world-space position to its grid cell, clamped to
// the map bounds so a position sitting exactly on the outer edge still
// resolves to a valid index.
func cellIndexAt(store *entity.Store, m *mapbank.MapEntry, pos mathutil.Vec2) int {
	col := mathutil.ClampInt(int(pos.X/m.CellSize), 0, m.Columns-1)
	row := mathutil.ClampInt(int(pos.Y/m.CellSize), 0, m.Rows-1)
	return store.CellIndex(row, col)
}

// storeOverlap adapts the entity store to spawner.Overlap: a candidate
// position is rejected if it comes within minDist of a floating wall or a
// live drone, neither of which shows up in findOpenPos's cell scan since
// both move independently of the static Cells grid.
type storeOverlap struct {
	store *entity.Store
}

func (o storeOverlap) AnyNear(pos mathutil.Vec2, minDist float32) bool {
	for _, ref := range o.store.LiveWallRefs() {
		w := o.store.Wall(ref)
		if !w.Floating {
			continue
		}
		if mathutil.Distance(pos, w.Pos) < minDist+w.Extent.Length() {
			return true
		}
	}
	for i := range o.store.Drones {
		d := &o.store.Drones[i]
		if d.Dead {
			continue
		}
		if mathutil.Distance(pos, d.Pos) < minDist {
			return true
		}
	}
	return false
}

func (e *Env) spawnOverlap() spawner.Overlap {
	return storeOverlap{store: e.store}
}
