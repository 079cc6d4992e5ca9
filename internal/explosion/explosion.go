// Package explosion implements the AABB-broadphase area-of-effect engine:
// projectile detonations and drone bursts both route through
// CreateExplosion, which filters candidate shapes, computes falloff-scaled
// impulses, and defers mine chain-detonation to a drained queue.
package explosion

import (
	"math"

	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// Def parameterizes one explosion; drone bursts and weapon detonations both
// construct one of these.
type Def struct {
	Position         mathutil.Vec2
	Radius           float32
	Falloff          float32
	ImpulsePerLength float32
	IsBurst          bool
	IsImplosion      bool
	EnergyRefillCoef float32
}

// Engine closes over the world, store, and map it was built with; its only
// state of its own is the queue of mines caught by explosions and not yet
// drained.
type Engine struct {
	World *physics.World
	Store *entity.Store
	Map   *mapbank.MapEntry
	RNG   *mathutil.RNG

	pendingMines []entity.Ref
}

// NewEngine constructs an Engine bound to one episode's world/store/map.
func NewEngine(w *physics.World, store *entity.Store, m *mapbank.MapEntry, rng *mathutil.RNG) *Engine {
	return &Engine{World: w, Store: store, Map: m, RNG: rng}
}

// CreateExplosion runs an AABB query around def.Position +/- (radius+
// falloff), narrow-phase filtered per candidate, applying shaped impulses
// and recording side effects (mine chain-detonation, energy refill, angular
// impulse on floating walls). parentDrone is the drone attributed for
// OwnShotTaken / energy-refill bookkeeping; projRef is entity.NoRef for a
// burst.
func (e *Engine) CreateExplosion(parentDrone int, projRef entity.Ref, def Def) int {
	reach := def.Radius + def.Falloff
	lower := mathutil.Vec2{X: def.Position.X - reach, Y: def.Position.Y - reach}
	upper := mathutil.Vec2{X: def.Position.X + reach, Y: def.Position.Y + reach}

	hits := 0
	e.World.OverlapAABB(lower, upper, func(s physics.ShapeID) bool {
		ref, ok := s.UserData().(entity.Ref)
		if !ok {
			return true
		}
		if e.handleCandidate(parentDrone, projRef, def, ref, s) {
			hits++
		}
		return true
	})
	return hits
}

func (e *Engine) handleCandidate(parentDrone int, projRef entity.Ref, def Def, ref entity.Ref, shape physics.ShapeID) bool {
	if ref.Kind == entity.KindProjectile {
		if ref == projRef {
			return false
		}
		if e.Store.Projectile(ref).NeedsToBeDestroyed {
			return false
		}
	}

	isParentDrone := ref.Kind == entity.KindDrone && ref.Index == parentDrone
	if isParentDrone {
		if !def.IsBurst {
			shooter := &e.Store.Drones[parentDrone]
			shooter.StepInfo.OwnShotTaken = true
		}
	}

	if ref.Kind == entity.KindWall {
		wall := e.Store.Wall(ref)
		if !wall.Floating {
			if !def.IsBurst {
				return false
			}
			return e.pushParentOffStaticWall(parentDrone, def, wall)
		}
	}

	targetPos, bodyID := e.entityPosAndBody(ref)
	if !bodyID.Valid() {
		return false
	}

	// Closest-point distance between the explosion center and the target;
	// the body origin approximates the shape's surface closely enough at
	// arena scale, avoiding a degenerate point-proxy GJK query.
	dist := mathutil.Distance(def.Position, targetPos)

	radiusForFalloff := def.Radius
	if ref.Kind == entity.KindWall {
		if dist > radiusForFalloff {
			return false
		}
	} else if dist > radiusForFalloff+def.Falloff {
		return false
	}

	if e.occluded(def, targetPos, ref) {
		return false
	}

	falloffScale := float32(1)
	if dist > def.Radius {
		over := dist - def.Radius
		falloffScale = 1 - mathutil.Clamp01(over/def.Falloff)
	}

	dir := def.Position.Sub(targetPos).Scale(-1)
	parentVel := mathutil.Vec2{}
	if parentDrone >= 0 && parentDrone < len(e.Store.Drones) {
		parentVel = e.Store.Drones[parentDrone].Velocity
	}
	impulseDir := dir.Normalized()
	if impulseDir.LengthSq() < 1e-8 {
		impulseDir = e.RNG.UnitVec2()
	}
	composedDir := impulseDir.Scale(float32(math.Abs(float64(def.ImpulsePerLength)))).Add(parentVel)
	finalDir := composedDir.Normalized()
	if finalDir.LengthSq() < 1e-8 {
		finalDir = impulseDir
	}
	if def.IsImplosion {
		finalDir = finalDir.Scale(-1)
	}

	speedProj := float32(0)
	if ref.Kind != entity.KindWall {
		speedProj = parentVel.Dot(finalDir)
	}
	perimeter := float32(2) * 3.14159265 * weaponRadiusFor(ref, e.Store)
	shieldReduction := float32(1)
	if ref.Kind == entity.KindDrone && !e.Store.Drones[ref.Index].ShieldRef.IsNone() {
		shieldReduction = 0.4
	}
	magnitude := (def.ImpulsePerLength + speedProj) * perimeter * falloffScale * shieldReduction
	impulse := finalDir.Scale(magnitude)

	e.World.ApplyLinearImpulse(bodyID, impulse, true)

	switch ref.Kind {
	case entity.KindWall:
		e.World.ApplyAngularImpulse(bodyID, magnitude)
	case entity.KindProjectile:
		p := e.Store.Projectile(ref)
		if p.SetMine && magnitude > 0 {
			e.pendingMines = append(e.pendingMines, ref)
		}
	case entity.KindDrone:
		d := &e.Store.Drones[ref.Index]
		if !def.IsBurst && parentDrone >= 0 && parentDrone < len(e.Store.Drones) && d.Team != e.Store.Drones[parentDrone].Team {
			hitStrength := mathutil.Clamp01(magnitude / 1000)
			e.Store.Drones[parentDrone].EnergyLeft = mathutil.Clamp01(e.Store.Drones[parentDrone].EnergyLeft + hitStrength*def.EnergyRefillCoef)
			d.StepInfo.ExplosionTaken[parentDrone] = 1
			if parentDrone != d.Idx {
				e.Store.Drones[parentDrone].StepInfo.ExplosionHit[d.Idx] = 1
			}
		}
		d.LastVelocity = d.Velocity
		d.Velocity = e.World.LinearVelocity(bodyID)
	}

	return true
}

// DrainPendingMines returns and clears mines caught in a positive explosion,
// queued for recursive (deferred) detonation by the caller.
func (e *Engine) DrainPendingMines() []entity.Ref {
	pending := e.pendingMines
	e.pendingMines = nil
	return pending
}

func (e *Engine) pushParentOffStaticWall(parentDrone int, def Def, wall *entity.Wall) bool {
	if parentDrone < 0 || parentDrone >= len(e.Store.Drones) {
		return false
	}
	drone := &e.Store.Drones[parentDrone]
	dist := mathutil.Distance(drone.Pos, wall.Pos)
	if dist > def.Radius+def.Falloff {
		return false
	}
	dir := drone.Pos.Sub(wall.Pos).Normalized()
	if dir.LengthSq() < 1e-8 {
		dir = e.RNG.UnitVec2()
	}
	magnitude := float32(math.Log1p(float64(def.ImpulsePerLength))) * 10
	e.World.ApplyLinearImpulse(drone.Body, dir.Scale(magnitude), true)
	return true
}

func (e *Engine) entityPosAndBody(ref entity.Ref) (mathutil.Vec2, physics.BodyID) {
	switch ref.Kind {
	case entity.KindWall:
		w := e.Store.Wall(ref)
		return w.Pos, w.Body
	case entity.KindProjectile:
		p := e.Store.Projectile(ref)
		return p.Pos, p.Body
	case entity.KindDrone:
		d := &e.Store.Drones[ref.Index]
		return d.Pos, d.Body
	case entity.KindPickup:
		p := e.Store.Pickup(ref)
		return p.Pos, p.Body
	case entity.KindShield:
		s := e.Store.Shield(ref)
		return s.Pos, s.Body
	}
	return mathutil.Vec2{}, physics.BodyID{}
}

func weaponRadiusFor(ref entity.Ref, store *entity.Store) float32 {
	switch ref.Kind {
	case entity.KindProjectile:
		return weapons.Table[store.Projectile(ref).Weapon].Radius
	case entity.KindDrone:
		return 10
	case entity.KindWall:
		return store.Wall(ref).Extent.Length()
	default:
		return 5
	}
}

// occluded reports whether a static wall (and, for non-implosions, a
// floating wall) between the entity and the explosion center blocks the
// hit. Mines always check floating walls too.
func (e *Engine) occluded(def Def, targetPos mathutil.Vec2, ref entity.Ref) bool {
	res := e.World.CastRayClosest(def.Position, targetPos)
	if !res.Hit {
		return false
	}
	hitRef, ok := res.Shape.UserData().(entity.Ref)
	if !ok || hitRef.Kind != entity.KindWall {
		return false
	}
	if hitRef == ref {
		return false
	}
	wall := e.Store.Wall(hitRef)
	if !wall.Floating {
		return true
	}
	if !def.IsImplosion {
		return true
	}
	return ref.Kind == entity.KindProjectile && e.Store.Projectile(ref).SetMine
}
