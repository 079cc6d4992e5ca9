// Package projlogic implements projectile birth, per-substep bookkeeping,
// and begin/end-contact policy. It owns no state of its own; everything
// lives in the entity.Store and physics.World passed in.
package projlogic

import (
	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// LineOfSight reports whether the segment a-b is unobstructed by a static
// or floating wall.
func LineOfSight(w *physics.World, a, b mathutil.Vec2) bool {
	res := w.CastRayClosest(a, b)
	if !res.Hit {
		return true
	}
	ref, ok := res.Shape.UserData().(entity.Ref)
	if !ok {
		return true
	}
	return ref.Kind != entity.KindWall
}

// shieldRadius returns the hull radius to spawn projectiles outside of,
// accounting for an active shield.
func shieldRadius(store *entity.Store, cfg *config.Config, droneIdx int) float32 {
	d := &store.Drones[droneIdx]
	if !d.ShieldRef.IsNone() {
		return cfg.Drone.ShieldBufferRadius
	}
	return cfg.Drone.Radius
}

// CreateProjectile spawns one projectile fired by droneIdx along aim
// (already normalized by the caller).
func CreateProjectile(
	w *physics.World,
	store *entity.Store,
	m *mapbank.MapEntry,
	cfg *config.Config,
	rng *mathutil.RNG,
	droneIdx int,
	kind weapons.Kind,
	aim mathutil.Vec2,
) entity.Ref {
	drone := &store.Drones[droneIdx]
	info := weapons.Table[kind]

	normAim := aim.Normalized()
	if normAim.LengthSq() < 1e-8 {
		normAim = drone.LastAim
	}

	hull := shieldRadius(store, cfg, droneIdx)
	pos := drone.Pos.Add(normAim.Scale(hull + 1.5*info.Radius))

	if !cellIsOpen(store, m, pos) {
		castDist := hull + 2.5*info.Radius
		res := w.CastRayClosest(drone.Pos, drone.Pos.Add(normAim.Scale(castDist)))
		if res.Hit {
			pos = res.Point.Sub(normAim.Scale(1.5 * info.Radius))
		}
	}

	adjustedAim := weapons.WeaponAdjustAim(rng, kind, drone.Heat, normAim)
	speed := weapons.WeaponFire(rng, kind)
	impulse := adjustedAim.Scale(speed).Add(drone.Velocity.Scale(info.Density * cfg.Drone.MoveAimCoef))

	ref := store.CreateProjectile(entity.Projectile{
		DroneIdx: droneIdx,
		Weapon:   kind,
		Pos:      pos,
		LastPos:  pos,
	})
	proj := store.Projectile(ref)

	body := w.CreateBody(physics.BodyDef{
		Type:          physics.BodyDynamic,
		Position:      pos,
		LinearDamping: info.LinearDamping,
		Bullet:        info.IsPhysicsBullet,
		CanSleep:      info.CanSleep,
	})
	restitution := float32(0)
	if info.MaxBounces > 0 {
		restitution = 0.85
	}
	shape := w.CreateCircleShape(body, physics.ShapeDef{
		Density:             info.Density,
		Restitution:         restitution,
		Filter:              entity.Filter(entity.CategoryProjectile, entity.MaskProjectile),
		EnableContactEvents: true,
		UserData:            ref,
	}, physics.CircleGeom{Radius: info.Radius})

	proj.Body = body
	proj.Shape = shape

	if info.ProximityDetonates {
		sensor := w.CreateCircleShape(body, physics.ShapeDef{
			IsSensor:           true,
			Filter:             entity.Filter(entity.CategorySensor, entity.MaskSensor),
			EnableSensorEvents: true,
			UserData:           ref,
		}, physics.CircleGeom{Radius: info.Explosion.Radius})
		proj.Sensor = sensor
		proj.HasSensor = true
	}

	w.ApplyLinearImpulse(body, impulse, true)
	v := w.LinearVelocity(body)
	proj.Velocity, proj.LastVelocity = v, v
	proj.Speed, proj.LastSpeed = v.Length(), v.Length()

	return ref
}

func cellIsOpen(store *entity.Store, m *mapbank.MapEntry, pos mathutil.Vec2) bool {
	if !m.InBounds(pos) {
		return false
	}
	col := int(pos.X / m.CellSize)
	row := int(pos.Y / m.CellSize)
	if row < 0 || row >= m.Rows || col < 0 || col >= m.Columns {
		return false
	}
	return m.Layout[store.CellIndex(row, col)] == mapbank.CellEmpty
}

// ExplodeFn creates an explosion centered on a destroyed projectile; bound
// by the caller to internal/explosion.CreateExplosion to avoid a package
// cycle (the explosion engine does not need to know about projectile
// bookkeeping).
type ExplodeFn func(parentDrone int, proj entity.Ref, pos mathutil.Vec2, kind weapons.Kind)

// QueueDestroy marks a projectile for deferred destruction; see
// DrainDestroyed. Safe to call from within a physics callback.
func QueueDestroy(store *entity.Store, ref entity.Ref, explode bool) {
	p := store.Projectile(ref)
	if p.NeedsToBeDestroyed {
		return
	}
	p.NeedsToBeDestroyed = true
	p.ExplodeOnDestroy = explode
}

// Step advances per-substep projectile bookkeeping: distance accrual, mine
// re-test, max-distance retirement.
func Step(w *physics.World, store *entity.Store, m *mapbank.MapEntry, dt float32, explode ExplodeFn) {
	for _, ref := range store.LiveProjectileRefs() {
		p := store.Projectile(ref)
		if p.NeedsToBeDestroyed {
			continue
		}
		info := weapons.Table[p.Weapon]

		p.LastPos = p.Pos
		p.Pos = w.Position(p.Body)
		p.Distance += mathutil.Distance(p.Pos, p.LastPos)

		if p.SetMine && p.NumDronesBehindWalls > 0 {
			stillBlocked := false
			for i := 0; i < p.NumDronesBehindWalls; i++ {
				di := p.DronesBehindWalls[i]
				if !LineOfSight(w, p.Pos, store.Drones[di].Pos) {
					stillBlocked = true
					break
				}
			}
			if !stillBlocked {
				QueueDestroy(store, ref, true)
				continue
			}
		}

		if info.MaxDistance > 0 && p.Distance >= info.MaxDistance {
			QueueDestroy(store, ref, true)
		}
	}

	DrainDestroyed(w, store, explode)
}

// DrainDestroyed frees every projectile queued for destruction, exploding
// those that asked for it. Must only run outside an active physics query.
func DrainDestroyed(w *physics.World, store *entity.Store, explode ExplodeFn) {
	for _, ref := range store.LiveProjectileRefs() {
		p := store.Projectile(ref)
		if !p.NeedsToBeDestroyed {
			continue
		}
		pos, droneIdx, kind, shouldExplode := p.Pos, p.DroneIdx, p.Weapon, p.ExplodeOnDestroy
		destroy(w, store, ref)
		if shouldExplode && explode != nil {
			explode(droneIdx, ref, pos, kind)
		}
	}
}

func destroy(w *physics.World, store *entity.Store, ref entity.Ref) {
	p := store.Projectile(ref)
	if p.WeldJoint.Valid() {
		w.DestroyWeldJoint(p.WeldJoint)
	}
	if p.HasSensor {
		w.DestroyShape(p.Body, p.Sensor)
	}
	w.DestroyShape(p.Body, p.Shape)
	w.DestroyBody(p.Body)
	store.DestroyProjectile(ref)
}

// HandleBeginContact applies begin-contact policy for a projectile. other
// is the Ref on the opposing shape, or entity.NoRef for a world
// boundary/unrecognized shape.
func HandleBeginContact(
	w *physics.World,
	store *entity.Store,
	projRef entity.Ref,
	other entity.Ref,
	manifold physics.Manifold,
) {
	p := store.Projectile(projRef)
	if p.NeedsToBeDestroyed {
		return
	}
	info := weapons.Table[p.Weapon]

	if other.IsNone() || other.Kind == entity.KindProjectile {
		if info.ProximityDetonates {
			QueueDestroy(store, projRef, true)
		}
		return
	}

	if other.Kind == entity.KindWall {
		wall := store.Wall(other)
		if wall.Kind == mapbank.CellBouncyWall {
			return
		}
		if info.ProximityDetonates {
			handleMineWallHit(w, store, projRef, other, manifold)
			return
		}
		p.Bounces++
		if p.Bounces >= info.MaxBounces {
			QueueDestroy(store, projRef, true)
		}
		return
	}

	if other.Kind == entity.KindShield {
		return
	}

	if other.Kind == entity.KindDrone {
		handleDroneHit(store, projRef, other)
		p.Bounces++
		if info.DestroyedOnDroneHit {
			QueueDestroy(store, projRef, info.ExplodesOnDroneHit)
			return
		}
		if p.Bounces >= info.MaxBounces {
			QueueDestroy(store, projRef, true)
		}
		return
	}

	p.Bounces++
	if p.Bounces >= info.MaxBounces {
		QueueDestroy(store, projRef, true)
	}
}

func handleDroneHit(store *entity.Store, projRef, droneRef entity.Ref) {
	p := store.Projectile(projRef)
	shooter := &store.Drones[p.DroneIdx]
	target := &store.Drones[droneRef.Index]
	info := weapons.Table[p.Weapon]

	if target.Idx == shooter.Idx {
		shooter.StepInfo.OwnShotTaken = true
		shooter.Stats.OwnShotsTaken[p.Weapon]++
		return
	}

	if target.Team != shooter.Team {
		shooter.EnergyLeft = mathutil.Clamp01(shooter.EnergyLeft + info.EnergyRefill)
	}
	shooter.StepInfo.ShotHit[target.Idx] = uint8(p.Weapon) + 1
	target.StepInfo.ShotTaken[shooter.Idx] = uint8(p.Weapon) + 1
	shooter.Stats.ShotsHit[p.Weapon]++
	target.Stats.ShotsTaken[p.Weapon]++
	shooter.Stats.ShotDistances[p.Weapon] += p.Distance
}

func handleMineWallHit(w *physics.World, store *entity.Store, projRef, wallRef entity.Ref, manifold physics.Manifold) {
	p := store.Projectile(projRef)
	wall := store.Wall(wallRef)
	radius := weapons.Table[p.Weapon].Explosion.Radius

	visible := false
	for i := range store.Drones {
		d := &store.Drones[i]
		if d.Dead {
			continue
		}
		if mathutil.Distance(manifold.Point, d.Pos) <= radius && LineOfSight(w, manifold.Point, d.Pos) {
			visible = true
			break
		}
	}
	if visible {
		QueueDestroy(store, projRef, true)
		return
	}

	p.WeldJoint = w.CreateWeldJoint(p.Body, wall.Body, manifold.Point)
	w.SetLinearVelocity(p.Body, mathutil.Vec2{})
	p.SetMine = true
	p.Velocity = mathutil.Vec2{}

	n := 0
	for i := range store.Drones {
		d := &store.Drones[i]
		if d.Dead {
			continue
		}
		if mathutil.Distance(manifold.Point, d.Pos) <= radius && !LineOfSight(w, manifold.Point, d.Pos) {
			if p.DronesBehindWalls == nil {
				p.DronesBehindWalls = make([]int, len(store.Drones))
			}
			p.DronesBehindWalls[n] = i
			n++
		}
	}
	p.NumDronesBehindWalls = n
}

// HandleEndContact renormalizes projectile speed on end-contact,
// neutralizing physics-engine restitution drift.
func HandleEndContact(w *physics.World, store *entity.Store, projRef, other entity.Ref) {
	p := store.Projectile(projRef)
	if p.NeedsToBeDestroyed || p.SetMine {
		return
	}
	info := weapons.Table[p.Weapon]
	v := w.LinearVelocity(p.Body)
	speed := v.Length()

	if other.Kind == entity.KindProjectile {
		otherProj := store.Projectile(other)
		if otherProj.Weapon != p.Weapon {
			target := p.Speed
			if p.LastSpeed > target {
				target = p.LastSpeed
			}
			if speed > target {
				p.LastSpeed, p.Speed = speed, speed
				return
			}
			w.SetLinearVelocity(p.Body, v.Normalized().Scale(target))
			p.Speed = target
			return
		}
	}

	target := p.LastSpeed
	if info.Accelerator {
		target = mathutil.Clamp(speed, 0, weapons.AcceleratorMaxSpeed)
		if target < p.LastSpeed {
			target = p.LastSpeed
		}
	}
	if speed > 1e-6 {
		w.SetLinearVelocity(p.Body, v.Normalized().Scale(target))
	}
	p.LastSpeed, p.Speed = target, target
}
