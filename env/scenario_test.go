package env

import (
	"testing"

	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/dronelogic"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/observation"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/projlogic"
	"github.com/pthm-cable/dronearena/internal/reward"
	"github.com/pthm-cable/dronearena/internal/suddendeath"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// newScenarioEnv mirrors env_test.go's buildEnv, duplicated here because this
// file lives in package env (not env_test) so its tests can reach unexported
// fields like e.store and e.world.
func newScenarioEnv(numDrones, numAgents int, seed uint64) *Env {
	cfg := config.MustLoad()
	obs := make([]byte, observation.ObsBytes(cfg, numDrones)*numAgents)
	contActions := make([]float32, numAgents*ContinuousActionSize)
	discActions := make([]int32, numAgents*DiscreteActionSize)
	rewards := make([]float32, numAgents)
	terminals := make([]uint8, numAgents)
	truncations := make([]uint8, numAgents)
	logs := reward.NewLogBuffer(4)
	return Init(numDrones, numAgents, false, obs, contActions, discActions, rewards, terminals, truncations, logs, seed, true)
}

// Scenario 1: an empty map, every agent holding a zero action, seeded
// 0x1234, truncates after the episode clock runs out without anyone dying.
func TestScenarioEmptyMapNoopTruncatesWithoutDeaths(t *testing.T) {
	e := newScenarioEnv(2, 1, 0x1234)
	e.Cfg.Sim.EpisodeSteps = 3
	e.Reset()

	for i := 0; i < 3; i++ {
		e.Step()
	}

	if e.Truncations[0] == 0 {
		t.Fatal("expected agent 0 to be truncated once the episode clock ran out")
	}
	if e.Terminals[0] != 0 {
		t.Error("a noop episode should truncate, not terminate")
	}
	for i := range e.store.Drones {
		if e.store.Drones[i].Dead {
			t.Errorf("drone %d died during a noop episode", i)
		}
	}
}

// Scenario 2: a shieldless drone firing with aim=(0,0) falls back to its
// last aim direction; a contact routed back onto the shooter's own body
// records OwnShotTaken instead of crediting a hit on anyone else.
func TestScenarioSelfHitRecordsOwnShotTaken(t *testing.T) {
	e := newScenarioEnv(2, 2, 0x1234)

	d := &e.store.Drones[0]
	dronelogic.DestroyShield(e.world, e.store, d.ShieldRef)
	d.LastAim = mathutil.Vec2{X: 0, Y: -1}
	d.Ammo = weapons.InfiniteAmmo

	dronelogic.Shoot(e.world, e.store, e.Cfg, e.rng, e.mapEntry, d, mathutil.Vec2{}, false, e.mapEntry.DefaultWeapon, e.Cfg.Sim.DeltaTime)

	refs := e.store.LiveProjectileRefs()
	if len(refs) == 0 {
		t.Fatal("expected Shoot to spawn a projectile")
	}
	projRef := refs[len(refs)-1]

	selfRef := entity.Ref{Kind: entity.KindDrone, Index: 0}
	projlogic.HandleBeginContact(e.world, e.store, projRef, selfRef, physics.Manifold{})

	if !d.StepInfo.OwnShotTaken {
		t.Error("expected OwnShotTaken set after the drone's own shot contacts its body")
	}
	if d.StepInfo.ShotTaken[0] != 0 {
		t.Error("a self-hit should not also be recorded as an enemy ShotTaken entry")
	}
}

// Scenario 3: standing on a weapon pickup collects it and records the swap
// in StepInfo; an immediate discard switches back to the default weapon and
// costs WeaponDiscardCost energy, a mechanic unreachable from the action
// surface and so only exercised directly.
func TestScenarioPickupAndDiscardWeapon(t *testing.T) {
	e := newScenarioEnv(2, 2, 0x1234)
	e.Cfg.Sim.FrameSkip = 1

	pickupRefs := e.store.LivePickupRefs()
	if len(pickupRefs) == 0 {
		t.Fatal("expected the standard arena to spawn at least one pickup")
	}
	pk := e.store.Pickup(pickupRefs[0])
	wantWeapon := pk.Weapon

	d := &e.store.Drones[0]
	e.world.SetTransform(d.Body, pk.Pos, 0)
	d.Pos = pk.Pos

	e.Step()

	if !d.StepInfo.PickedUpWeapon {
		t.Fatal("expected the drone standing on a pickup to collect it this step")
	}
	if d.StepInfo.PrevWeapon != weapons.Standard {
		t.Errorf("PrevWeapon = %v, want Standard", d.StepInfo.PrevWeapon)
	}
	if d.Weapon != wantWeapon {
		t.Errorf("Weapon = %v, want the collected pickup's weapon %v", d.Weapon, wantWeapon)
	}

	energyBefore := d.EnergyLeft
	dronelogic.DiscardWeapon(e.Cfg, e.mapEntry.DefaultWeapon, d)

	if d.Weapon != e.mapEntry.DefaultWeapon {
		t.Error("expected DiscardWeapon to switch back to the map's default weapon")
	}
	if want := energyBefore - e.Cfg.Drone.WeaponDiscardCost; d.EnergyLeft != want {
		t.Errorf("energy = %v, want %v (energy before minus WeaponDiscardCost %v)", d.EnergyLeft, want, e.Cfg.Drone.WeaponDiscardCost)
	}
}

// Scenario 4: a mine-class projectile hitting a wall with no drone in
// unobstructed range welds in place instead of detonating; once a drone
// moves into the blast radius with a clear line of sight, the next
// projectile step detonates it.
func TestScenarioMineWeldsThenDetonatesOnProximity(t *testing.T) {
	e := newScenarioEnv(2, 2, 0x1234)

	var wallRef entity.Ref
	for _, ref := range e.store.LiveWallRefs() {
		if w := e.store.Wall(ref); !w.Floating {
			wallRef = ref
			break
		}
	}
	if wallRef.IsNone() {
		t.Fatal("expected the standard arena to contain at least one static wall")
	}
	wall := e.store.Wall(wallRef)

	aim := wall.Pos.Sub(e.store.Drones[0].Pos).Normalized()
	projRef := projlogic.CreateProjectile(e.world, e.store, e.mapEntry, e.Cfg, e.rng, 0, weapons.Imploder, aim)

	contactPoint := wall.Pos.Sub(aim.Scale(wall.Extent.Length()))
	projlogic.HandleBeginContact(e.world, e.store, projRef, wallRef, physics.Manifold{Point: contactPoint})

	p := e.store.Projectile(projRef)
	if !p.SetMine || !p.WeldJoint.Valid() {
		t.Fatal("expected the mine to weld with no drone in unobstructed range")
	}

	enemy := &e.store.Drones[1]
	enemy.Pos = contactPoint
	e.world.SetTransform(enemy.Body, contactPoint, 0)

	projlogic.Step(e.world, e.store, e.mapEntry, e.Cfg.Sim.DeltaTime, e.explodeProjectile)

	stillLive := false
	for _, ref := range e.store.LiveProjectileRefs() {
		if ref == projRef {
			stillLive = true
		}
	}
	if stillLive {
		t.Error("expected the welded mine to detonate once an enemy drone is in unobstructed proximity")
	}
}

// Scenario 5: a drone sitting in a cell covered by the first ring that adds
// death walls is killed in the same call that places the ring. The standard
// arena's border (ring 0) is already all standard walls, which PlaceRing
// leaves in place, so ring 1 is the first ring to add walls.
func TestScenarioSuddenDeathRingKillsDroneInPlacedCell(t *testing.T) {
	e := newScenarioEnv(2, 2, 0x1234)

	suddendeath.PlaceRing(e.world, e.store, e.mapEntry, e.Cfg, &e.suddenDeath, &e.pickupWeights)

	ringPos := e.mapEntry.CellCenter(e.store.CellIndex(1, 1))
	d := &e.store.Drones[0]
	d.Pos = ringPos
	e.world.SetTransform(d.Body, ringPos, 0)

	result := suddendeath.PlaceRing(e.world, e.store, e.mapEntry, e.Cfg, &e.suddenDeath, &e.pickupWeights)

	if result.WallsPlaced == 0 {
		t.Fatal("expected ring 1 to place at least one death wall")
	}
	if !d.Dead {
		t.Error("expected the drone in the newly-walled ring-1 cell to die")
	}
	if e.suddenDeath.WallCounter != 2 {
		t.Errorf("WallCounter = %d, want 2 after the border ring and ring 1", e.suddenDeath.WallCounter)
	}
}

// Scenario 6: detonating one mine whose blast radius overlaps a second,
// already-welded mine chain-detonates the second in the same call instead
// of leaving it to a later substep.
func TestScenarioExplosionChainDetonatesNearbyWeldedMine(t *testing.T) {
	e := newScenarioEnv(2, 2, 0x1234)

	triggerPos := mathutil.Vec2{X: 500, Y: 500}
	chainedPos := mathutil.Vec2{X: 520, Y: 500} // within the Imploder's 40-unit blast radius

	triggerRef := createWeldedTestMine(e, triggerPos)
	chainedRef := createWeldedTestMine(e, chainedPos)

	projlogic.QueueDestroy(e.store, triggerRef, true)
	e.drainExplosions()

	for _, ref := range e.store.LiveProjectileRefs() {
		if ref == triggerRef || ref == chainedRef {
			t.Fatalf("expected both the trigger and the chained mine destroyed in the same call, found %v still live", ref)
		}
	}
}

func createWeldedTestMine(e *Env, pos mathutil.Vec2) entity.Ref {
	info := weapons.Table[weapons.Imploder]
	body := e.world.CreateBody(physics.BodyDef{Type: physics.BodyDynamic, Position: pos})
	shape := e.world.CreateCircleShape(body, physics.ShapeDef{
		Density: info.Density,
		Filter:  entity.Filter(entity.CategoryProjectile, entity.MaskProjectile),
	}, physics.CircleGeom{Radius: info.Radius})

	ref := e.store.CreateProjectile(entity.Projectile{
		DroneIdx: 0, Weapon: weapons.Imploder, Pos: pos, LastPos: pos,
		Body: body, Shape: shape, SetMine: true,
	})
	e.world.SetShapeUserData(shape, ref)
	return ref
}
