package projlogic

import (
	"testing"

	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

func emptyTestMap() *mapbank.MapEntry {
	const columns, rows = 8, 8
	return &mapbank.MapEntry{Columns: columns, Rows: rows, Layout: make([]mapbank.CellKind, columns*rows), CellSize: 32}
}

func TestLineOfSightClearWhenNothingHit(t *testing.T) {
	w := physics.CreateWorld(mathutil.Vec2{})
	if !LineOfSight(w, mathutil.Vec2{X: 0}, mathutil.Vec2{X: 100}) {
		t.Error("an empty world should report unobstructed line of sight")
	}
}

func TestQueueDestroyIsIdempotent(t *testing.T) {
	store := entity.NewStore(8, 8, 2)
	ref := store.CreateProjectile(entity.Projectile{})
	QueueDestroy(store, ref, true)
	QueueDestroy(store, ref, false)

	p := store.Projectile(ref)
	if !p.NeedsToBeDestroyed || !p.ExplodeOnDestroy {
		t.Error("the first QueueDestroy call should stick; a later call must not downgrade ExplodeOnDestroy")
	}
}

func TestCreateProjectileSpawnsBodyAlongAim(t *testing.T) {
	w := physics.CreateWorld(mathutil.Vec2{})
	cfg := config.MustLoad()
	rng := mathutil.NewRNG(1)
	store := entity.NewStore(8, 8, 1)
	m := emptyTestMap()
	store.Drones[0] = entity.Drone{Idx: 0, LastAim: mathutil.Vec2{X: 1, Y: 0}}

	ref := CreateProjectile(w, store, m, cfg, rng, 0, weapons.MachineGun, mathutil.Vec2{X: 1, Y: 0})
	p := store.Projectile(ref)
	if p.Weapon != weapons.MachineGun {
		t.Errorf("Weapon = %v, want MachineGun", p.Weapon)
	}
	if p.Pos.X <= 0 {
		t.Errorf("expected the projectile spawned ahead of the drone along +X, got %v", p.Pos)
	}
	if !p.Body.Valid() || !p.Shape.Valid() {
		t.Error("expected a live body and shape after CreateProjectile")
	}
}

func TestHandleBeginContactSelfHitSetsOwnShotTaken(t *testing.T) {
	store := entity.NewStore(8, 8, 1)
	store.Drones[0] = entity.Drone{Idx: 0, Team: 0}
	projRef := store.CreateProjectile(entity.Projectile{DroneIdx: 0, Weapon: weapons.MachineGun})
	droneRef := entity.Ref{Kind: entity.KindDrone, Index: 0}

	HandleBeginContact(nil, store, projRef, droneRef, physics.Manifold{})

	if !store.Drones[0].StepInfo.OwnShotTaken {
		t.Error("a drone hit by its own projectile should set OwnShotTaken")
	}
}

func TestHandleBeginContactEnemyHitRecordsShotHitAndTaken(t *testing.T) {
	store := entity.NewStore(8, 8, 2)
	store.Drones[0] = entity.Drone{Idx: 0, Team: 0, StepInfo: entity.NewDroneStepInfo(2)}
	store.Drones[1] = entity.Drone{Idx: 1, Team: 1, StepInfo: entity.NewDroneStepInfo(2)}
	projRef := store.CreateProjectile(entity.Projectile{DroneIdx: 0, Weapon: weapons.MachineGun})
	droneRef := entity.Ref{Kind: entity.KindDrone, Index: 1}

	HandleBeginContact(nil, store, projRef, droneRef, physics.Manifold{})

	if store.Drones[0].StepInfo.ShotHit[1] == 0 {
		t.Error("shooter's ShotHit[target] should record the weapon kind+1")
	}
	if store.Drones[1].StepInfo.ShotTaken[0] == 0 {
		t.Error("target's ShotTaken[shooter] should record the weapon kind+1")
	}
}

func TestHandleBeginContactBouncyWallNeverBounces(t *testing.T) {
	store := entity.NewStore(8, 8, 1)
	projRef := store.CreateProjectile(entity.Projectile{DroneIdx: 0, Weapon: weapons.MachineGun})
	wallRef := store.CreateWall(entity.Wall{Kind: mapbank.CellBouncyWall})

	HandleBeginContact(nil, store, projRef, wallRef, physics.Manifold{})

	p := store.Projectile(projRef)
	if p.Bounces != 0 || p.NeedsToBeDestroyed {
		t.Error("a bouncy wall hit should neither count as a bounce nor destroy the projectile")
	}
}

func TestHandleBeginContactStandardWallCountsBounces(t *testing.T) {
	store := entity.NewStore(8, 8, 1)
	projRef := store.CreateProjectile(entity.Projectile{DroneIdx: 0, Weapon: weapons.MachineGun})
	wallRef := store.CreateWall(entity.Wall{Kind: mapbank.CellStandardWall})

	HandleBeginContact(nil, store, projRef, wallRef, physics.Manifold{})

	p := store.Projectile(projRef)
	if p.Bounces != 1 {
		t.Errorf("Bounces = %d, want 1 after a standard wall hit", p.Bounces)
	}
}

func TestHandleMineWallHitDestroysOnVisibleNearbyDrone(t *testing.T) {
	w := physics.CreateWorld(mathutil.Vec2{})
	store := entity.NewStore(8, 8, 1)
	store.Drones[0] = entity.Drone{Idx: 0, Pos: mathutil.Vec2{X: 20, Y: 0}}

	mineBody := w.CreateBody(physics.BodyDef{Type: physics.BodyDynamic})
	wallBody := w.CreateBody(physics.BodyDef{Type: physics.BodyStatic})
	projRef := store.CreateProjectile(entity.Projectile{Body: mineBody, Weapon: weapons.Imploder})
	wallRef := store.CreateWall(entity.Wall{Body: wallBody, Kind: mapbank.CellStandardWall})

	handleMineWallHit(w, store, projRef, wallRef, physics.Manifold{Point: mathutil.Vec2{}})

	p := store.Projectile(projRef)
	if !p.NeedsToBeDestroyed || !p.ExplodeOnDestroy {
		t.Error("a mine with an unobstructed nearby drone should detonate immediately instead of welding")
	}
	if p.SetMine {
		t.Error("an immediately-detonating mine should never reach SetMine")
	}
}

func TestHandleMineWallHitWeldsAndTracksOnlyInRadiusBlockedDrones(t *testing.T) {
	w := physics.CreateWorld(mathutil.Vec2{})
	store := entity.NewStore(8, 8, 2)
	// Drone 0 sits behind a blocking wall, inside the weapon's proximity radius.
	store.Drones[0] = entity.Drone{Idx: 0, Pos: mathutil.Vec2{X: 30, Y: 0}}
	// Drone 1 is also wall-blocked but far outside the radius; it must not be tracked.
	store.Drones[1] = entity.Drone{Idx: 1, Pos: mathutil.Vec2{X: 5000, Y: 0}}

	mineBody := w.CreateBody(physics.BodyDef{Type: physics.BodyDynamic})
	wallBody := w.CreateBody(physics.BodyDef{Type: physics.BodyStatic, Position: mathutil.Vec2{X: 15, Y: 0}})
	wallShape := w.CreateBoxShape(wallBody, physics.ShapeDef{
		Filter: entity.Filter(entity.CategoryWall, entity.MaskAll),
	}, physics.BoxGeom{HalfWidth: 5, HalfHeight: 20})
	wallRef := store.CreateWall(entity.Wall{Body: wallBody, Shape: wallShape, Kind: mapbank.CellStandardWall})
	w.SetShapeUserData(wallShape, wallRef)

	projRef := store.CreateProjectile(entity.Projectile{Body: mineBody, Weapon: weapons.Imploder})

	handleMineWallHit(w, store, projRef, wallRef, physics.Manifold{Point: mathutil.Vec2{}})

	p := store.Projectile(projRef)
	if p.NeedsToBeDestroyed {
		t.Fatal("a mine whose only nearby drone is wall-blocked should weld, not detonate")
	}
	if !p.SetMine || !p.WeldJoint.Valid() {
		t.Error("expected the mine to weld to the wall")
	}
	if p.NumDronesBehindWalls != 1 || p.DronesBehindWalls[0] != 0 {
		t.Errorf("expected only the in-radius blocked drone (0) tracked, got %d entries %v",
			p.NumDronesBehindWalls, p.DronesBehindWalls[:p.NumDronesBehindWalls])
	}
}

func TestDrainDestroyedInvokesExplodeOnlyWhenFlagged(t *testing.T) {
	w := physics.CreateWorld(mathutil.Vec2{})
	store := entity.NewStore(8, 8, 1)

	body := w.CreateBody(physics.BodyDef{Type: physics.BodyDynamic})
	shape := w.CreateCircleShape(body, physics.ShapeDef{}, physics.CircleGeom{Radius: 1})
	keep := store.CreateProjectile(entity.Projectile{Body: body, Shape: shape})

	body2 := w.CreateBody(physics.BodyDef{Type: physics.BodyDynamic})
	shape2 := w.CreateCircleShape(body2, physics.ShapeDef{}, physics.CircleGeom{Radius: 1})
	explode := store.CreateProjectile(entity.Projectile{Body: body2, Shape: shape2})

	QueueDestroy(store, explode, true)

	var exploded []entity.Ref
	DrainDestroyed(w, store, func(parentDrone int, proj entity.Ref, pos mathutil.Vec2, kind weapons.Kind) {
		exploded = append(exploded, proj)
	})

	if len(exploded) != 1 || exploded[0] != explode {
		t.Errorf("expected exactly the flagged projectile to explode, got %v", exploded)
	}
	if len(store.LiveProjectileRefs()) != 1 || store.LiveProjectileRefs()[0] != keep {
		t.Error("only the queued projectile should have been destroyed")
	}
}
