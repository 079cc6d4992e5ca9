// Step Orchestrator: sequences every subsystem once per frameskip substep
// and rolls the per-substep reward up into one Step call.
package env

import (
	"github.com/pthm-cable/dronearena/internal/contact"
	"github.com/pthm-cable/dronearena/internal/dronelogic"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/explosion"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/observation"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/projlogic"
	"github.com/pthm-cable/dronearena/internal/reward"
	"github.com/pthm-cable/dronearena/internal/spawner"
	"github.com/pthm-cable/dronearena/internal/suddendeath"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// Step advances the episode by one call: decode actions once, run them
// through FrameSkip physics substeps, and pack a fresh observation. If the
// previous call ended the episode, the world is rebuilt first.
func (e *Env) Step() {
	if e.needsReset {
		e.Reset()
	}
	cfg := e.Cfg
	actions := e.decodeActions()

	for i := range e.Rewards {
		e.Rewards[i] = 0
	}
	for i := range e.Terminals {
		e.Terminals[i] = 0
	}
	for i := range e.Truncations {
		e.Truncations[i] = 0
	}

	dt := cfg.Sim.DeltaTime
	for sub := 0; sub < cfg.Sim.FrameSkip; sub++ {
		e.substepPrelude()
		e.applyActions(actions, dt)
		e.world.Step(dt, cfg.Sim.Box2DSubsteps)
		e.reconcile()
		e.advanceStepsLeft()
		e.runProjectilesAndContacts(dt)
		e.runDroneAndPickupStep(dt)
		if e.finishSubstep() {
			break
		}
	}

	e.episodeStep++
	e.computeObs()
}

// decodeActions reads the caller-owned action buffer for every agent slot;
// drone indices at or beyond NumAgents get the zero DecodedAction (no move,
// no aim, no shoot). Neither encoding carries a field for brake, burst, or
// weapon switch/discard — §6's action tuple lists exactly moveX/moveY/
// aimX/aimY/shoot (or move/aim/shoot); those dronelogic mechanics exist but
// are unreachable from this action surface.
func (e *Env) decodeActions() []DecodedAction {
	actions := make([]DecodedAction, e.NumDrones)
	for i := 0; i < e.NumAgents; i++ {
		if e.Discretize {
			base := i * DiscreteActionSize
			actions[i] = decodeDiscrete(e.DiscActions[base], e.DiscActions[base+1], e.DiscActions[base+2])
		} else {
			base := i * ContinuousActionSize
			actions[i] = decodeContinuous(e.ContActions[base : base+ContinuousActionSize])
		}
	}
	return actions
}

// substepPrelude snapshots last-substep motion and clears per-substep state.
func (e *Env) substepPrelude() {
	for i := range e.store.Drones {
		d := &e.store.Drones[i]
		d.LastPos = d.Pos
		d.LastVelocity = d.Velocity
		d.ShotThisStep = false
		d.DiedThisStep = false
		d.EnergyFullyDepletedThisStep = false
		d.StepInfo.Clear()
		for j := range d.InLineOfSight {
			d.InLineOfSight[j] = false
		}
	}
}

// applyActions calls droneMove then droneShoot for every live drone;
// charging gates on the weapon's required charge time not yet being met.
func (e *Env) applyActions(actions []DecodedAction, dt float32) {
	cfg := e.Cfg
	for i := range e.store.Drones {
		d := &e.store.Drones[i]
		if d.Dead {
			continue
		}
		a := actions[i]
		dronelogic.Move(e.world, cfg, d, a.Move)
		if a.Shoot {
			required := weapons.WeaponCharge(d.Weapon)
			charging := required > 0 && d.WeaponCharge < required
			dronelogic.Shoot(e.world, e.store, cfg, e.rng, e.mapEntry, d, a.Aim, charging, e.mapEntry.DefaultWeapon, dt)
		}
	}
}

// reconcile refreshes cached positions from the body transforms the physics
// step just produced, updates the Cells grid for entities that move (drones
// and floating walls), kills/destroys anything that wandered out of bounds,
// and refreshes line-of-sight pairs now that every transform is current.
// Static walls and pickups never move, and projectiles refresh their own
// Pos inside projlogic.Step.
func (e *Env) reconcile() {
	e.world.DrainBodyEvents()
	m := e.mapEntry

	for i := range e.store.Drones {
		d := &e.store.Drones[i]
		if d.Dead {
			continue
		}
		d.Pos = physics.ClampFinite(e.world.Position(d.Body))
		d.Velocity = physics.ClampFinite(e.world.LinearVelocity(d.Body))

		if !m.InBounds(d.Pos) {
			dronelogic.KillDrone(e.world, d)
			e.clearDroneCell(i)
			continue
		}
		e.updateDroneCell(i)
	}

	for _, ref := range e.store.LiveWallRefs() {
		wall := e.store.Wall(ref)
		if !wall.Floating {
			continue
		}
		wall.Pos = physics.ClampFinite(e.world.Position(wall.Body))
		wall.Rot = e.world.Angle(wall.Body)
		wall.Velocity = physics.ClampFinite(e.world.LinearVelocity(wall.Body))

		if !m.InBounds(wall.Pos) {
			e.world.DestroyShape(wall.Body, wall.Shape)
			e.world.DestroyBody(wall.Body)
			e.store.DestroyWall(ref)
			continue
		}
		newCell := cellIndexAt(e.store, m, wall.Pos)
		if newCell == wall.CellIdx {
			continue
		}
		if e.store.Cells[wall.CellIdx].Occupied && e.store.Cells[wall.CellIdx].Occupant == ref {
			e.store.ClearCellOccupant(wall.CellIdx)
		}
		wall.CellIdx = newCell
		if !e.store.Cells[newCell].Occupied {
			e.store.SetCellOccupant(newCell, ref)
		}
	}

	for _, ref := range e.store.LiveProjectileRefs() {
		p := e.store.Projectile(ref)
		if p.NeedsToBeDestroyed {
			continue
		}
		if !m.InBounds(e.world.Position(p.Body)) {
			projlogic.QueueDestroy(e.store, ref, false)
		}
	}

	drones := e.store.Drones
	for i := range drones {
		di := &drones[i]
		if di.Dead {
			continue
		}
		for j := i + 1; j < len(drones); j++ {
			dj := &drones[j]
			if dj.Dead {
				continue
			}
			if projlogic.LineOfSight(e.world, di.Pos, dj.Pos) {
				di.InLineOfSight[j] = true
				dj.InLineOfSight[i] = true
			}
		}
	}
}

func (e *Env) clearDroneCell(idx int) {
	cell := e.droneCellIdx[idx]
	if cell < 0 {
		return
	}
	ref := entity.Ref{Kind: entity.KindDrone, Index: idx}
	if e.store.Cells[cell].Occupied && e.store.Cells[cell].Occupant == ref {
		e.store.ClearCellOccupant(cell)
	}
	e.droneCellIdx[idx] = -1
}

func (e *Env) updateDroneCell(idx int) {
	d := &e.store.Drones[idx]
	newCell := cellIndexAt(e.store, e.mapEntry, d.Pos)
	oldCell := e.droneCellIdx[idx]
	if newCell == oldCell {
		return
	}
	ref := entity.Ref{Kind: entity.KindDrone, Index: idx}
	if oldCell >= 0 && e.store.Cells[oldCell].Occupied && e.store.Cells[oldCell].Occupant == ref {
		e.store.ClearCellOccupant(oldCell)
	}
	if !e.store.Cells[newCell].Occupied {
		e.store.SetCellOccupant(newCell, ref)
	}
	e.droneCellIdx[idx] = newCell
}

// advanceStepsLeft applies the episode clock and sudden-death cadence: the
// ring timer only ticks once the episode clock has already run out and more
// than one drone remains.
func (e *Env) advanceStepsLeft() {
	e.stepsLeft--
	if e.stepsLeft > 0 {
		return
	}
	alive := 0
	for i := range e.store.Drones {
		if !e.store.Drones[i].Dead {
			alive++
		}
	}
	if alive <= 1 {
		return
	}
	e.suddenLeft--
	if e.suddenLeft > 0 {
		return
	}
	suddendeath.PlaceRing(e.world, e.store, e.mapEntry, e.Cfg, &e.suddenDeath, &e.pickupWeights)
	e.suddenLeft = e.Cfg.Sudden.IntervalSteps
}

// runProjectilesAndContacts drains projectile bookkeeping and the contact/
// sensor event queues the physics step produced. Each phase can queue
// further destroys (a mine weld rechecked into a kill, a sensor proximity
// trigger), so drainExplosions runs after each to fully settle same-substep
// chain detonations before the next phase reads store state.
func (e *Env) runProjectilesAndContacts(dt float32) {
	projlogic.Step(e.world, e.store, e.mapEntry, dt, e.explodeProjectile)
	e.drainExplosions()

	contact.DispatchContacts(e.world, e.store)
	contact.DispatchSensors(contact.SensorDeps{
		World:         e.world,
		Store:         e.store,
		Config:        e.Cfg,
		DefaultWeapon: e.mapEntry.DefaultWeapon,
		Weights:       &e.pickupWeights,
		// Reward left nil: reward.Step already applies the weapon-pickup
		// term once per substep from StepInfo, so routing it through here
		// too would double-count it.
	})
	e.drainExplosions()
}

// explodeProjectile is projlogic's ExplodeFn, bound to this episode's
// explosion engine.
func (e *Env) explodeProjectile(parentDrone int, proj entity.Ref, pos mathutil.Vec2, kind weapons.Kind) {
	var expl weapons.Explosion
	if !weapons.WeaponExplosion(kind, &expl) {
		return
	}
	e.explosionEng.CreateExplosion(parentDrone, proj, explosion.Def{
		Position:         pos,
		Radius:           expl.Radius,
		Falloff:          expl.Falloff,
		ImpulsePerLength: expl.ImpulsePerLength,
		IsImplosion:      weapons.Table[kind].Implosion,
		EnergyRefillCoef: e.Cfg.Explode.EnergyRefillCoef,
	})
	e.queueMinesForChain()
}

// queueMinesForChain marks every mine caught in the last explosion for
// destruction without draining them yet; the caller's drainExplosions loop
// settles the chain.
func (e *Env) queueMinesForChain() {
	for _, ref := range e.explosionEng.DrainPendingMines() {
		if p := e.store.Projectile(ref); !p.NeedsToBeDestroyed {
			projlogic.QueueDestroy(e.store, ref, true)
		}
	}
}

// drainExplosions repeatedly drains queued-destroyed projectiles until none
// remain, so a mine chain fully resolves within the same substep instead of
// leaking one link per call.
func (e *Env) drainExplosions() {
	for {
		pending := false
		for _, ref := range e.store.LiveProjectileRefs() {
			if e.store.Projectile(ref).NeedsToBeDestroyed {
				pending = true
				break
			}
		}
		if !pending {
			return
		}
		projlogic.DrainDestroyed(e.world, e.store, e.explodeProjectile)
	}
}

// runDroneAndPickupStep runs per-drone and per-pickup bookkeeping.
func (e *Env) runDroneAndPickupStep(dt float32) {
	for i := range e.store.Drones {
		d := &e.store.Drones[i]
		if d.Dead {
			continue
		}
		dronelogic.Step(e.world, e.Cfg, e.store, d, dt)
	}
	e.stepPickups(dt)
}

// stepPickups counts down a disabled pickup's RespawnWait and either
// respawns it at a freshly-drawn weapon kind and open position, or destroys
// it permanently if no open position can be found.
func (e *Env) stepPickups(dt float32) {
	for _, ref := range e.store.LivePickupRefs() {
		pk := e.store.Pickup(ref)
		if !pk.BodyDestroyed {
			continue
		}
		pk.RespawnWait -= dt
		if pk.RespawnWait > 0 {
			continue
		}
		pos, ok := spawner.FindOpenPos(e.store, e.mapEntry, e.Cfg, e.rng, e.spawnOverlap(), spawner.ShapePickup, -1)
		if !ok {
			e.store.DestroyPickup(ref)
			continue
		}
		kind := spawner.RandWeaponPickupType(e.rng, e.mapEntry.DefaultWeapon, &e.pickupWeights)
		e.createPickupBody(ref, pos, kind)
	}
}

// finishSubstep computes every agent's per-substep reward, then checks
// round-over and single-agent truncation. It returns true once the substep
// loop should stop early.
func (e *Env) finishSubstep() bool {
	deadCount, lastAlive := 0, -1
	for i := range e.store.Drones {
		if e.store.Drones[i].Dead {
			deadCount++
		} else {
			lastAlive = i
		}
	}
	roundOver := deadCount >= e.NumDrones-1
	truncated := !roundOver && e.NumAgents == 1 && e.stepsLeft <= 0

	rewCtx := reward.StepContext{
		Store:         e.store,
		Config:        e.Cfg,
		NumDrones:     e.NumDrones,
		DefaultWeapon: e.mapEntry.DefaultWeapon,
		RoundOver:     roundOver,
		LastAliveIdx:  lastAlive,
	}
	for i := 0; i < e.NumAgents; i++ {
		e.Rewards[i] += reward.Step(&rewCtx, i)
	}

	if !roundOver && !truncated {
		return false
	}

	for i := 0; i < e.NumAgents; i++ {
		if roundOver {
			e.Terminals[i] = 1
		}
		if truncated {
			e.Truncations[i] = 1
		}
	}
	if e.Logs != nil {
		e.Logs.Append(reward.NewLogEntry(e.store, e.mapEntry, e.episodeStep, lastAlive, truncated))
	}
	e.needsReset = true
	return true
}

// computeObs packs a fresh observation for every agent, run once per Step
// call regardless of how many substeps executed.
func (e *Env) computeObs() {
	ctx := observation.Context{
		Store:         e.store,
		Map:           e.mapEntry,
		WallIndex:     e.wallIndex,
		Config:        e.Cfg,
		NumDrones:     e.NumDrones,
		DefaultWeapon: e.mapEntry.DefaultWeapon,
		StepsLeft:     e.stepsLeft,
		EpisodeSteps:  e.Cfg.Sim.EpisodeSteps,
	}
	for i := 0; i < e.NumAgents; i++ {
		observation.Pack(&ctx, e.Obs[i*e.obsStride:(i+1)*e.obsStride], i)
	}
}
