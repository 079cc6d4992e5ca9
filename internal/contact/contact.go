// Package contact is the begin/end-touch and sensor-overlap router: it
// drains the physics world's event queues each substep, resolves shape
// userdata back into entity.Refs, and dispatches to the owning subsystem's
// pair handler.
package contact

import (
	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/projlogic"
	"github.com/pthm-cable/dronearena/internal/spawner"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// PickupRespawnWait is the delay before a disabled pickup re-enters
// findOpenPos contention, long enough that a drone that just picked it up
// can't immediately re-trigger on the same frame.
const PickupRespawnWait float32 = 8.0

func resolve(s physics.ShapeID) (entity.Ref, bool) {
	ref, ok := s.UserData().(entity.Ref)
	return ref, ok
}

// DispatchContacts drains begin/end-touch events for non-sensor shape pairs
// and routes any pair involving a projectile to projlogic's handlers.
func DispatchContacts(w *physics.World, store *entity.Store) {
	for _, ev := range w.DrainContactBeginEvents() {
		refA, okA := resolve(ev.ShapeA)
		refB, okB := resolve(ev.ShapeB)

		aIsProj := okA && refA.Kind == entity.KindProjectile
		bIsProj := okB && refB.Kind == entity.KindProjectile

		if aIsProj && !store.Projectile(refA).NeedsToBeDestroyed {
			other := entity.NoRef
			if okB {
				other = refB
			}
			projlogic.HandleBeginContact(w, store, refA, other, ev.Manifold)
		}
		// Each side's handler runs independently. MaskProjectile keeps solid
		// projectile shapes from colliding with each other, so contact
		// events between two projectiles (e.g. two mines) do not arise.
		if bIsProj && !store.Projectile(refB).NeedsToBeDestroyed {
			other := entity.NoRef
			if okA {
				other = refA
			}
			projlogic.HandleBeginContact(w, store, refB, other, ev.Manifold)
		}
	}

	for _, ev := range w.DrainContactEndEvents() {
		refA, okA := resolve(ev.ShapeA)
		refB, okB := resolve(ev.ShapeB)
		switch {
		case okA && refA.Kind == entity.KindProjectile:
			if store.Projectile(refA).NeedsToBeDestroyed {
				continue
			}
			other := entity.NoRef
			if okB {
				other = refB
			}
			projlogic.HandleEndContact(w, store, refA, other)
		case okB && refB.Kind == entity.KindProjectile:
			if store.Projectile(refB).NeedsToBeDestroyed {
				continue
			}
			other := entity.NoRef
			if okA {
				other = refA
			}
			projlogic.HandleEndContact(w, store, refB, other)
		}
	}
}

// SensorDeps bundles collaborators pickup-collection dispatch needs.
type SensorDeps struct {
	World         *physics.World
	Store         *entity.Store
	Config        *config.Config
	DefaultWeapon weapons.Kind
	Weights       *spawner.PickupWeights
	Reward        func(droneIdx int, amount float32)
}

// DispatchSensors drains sensor-overlap begin events and routes pickup
// collection and mine proximity detonation. Detonation itself is deferred
// to the caller's drain pass (the mine is only queued here via
// projlogic.QueueDestroy), so this phase needs no explosion engine of its
// own.
func DispatchSensors(deps SensorDeps) {
	for _, ev := range deps.World.DrainSensorBeginEvents() {
		sensorRef, okS := resolve(ev.Sensor)
		visitorRef, okV := resolve(ev.Visitor)
		if !okS || !okV {
			continue
		}

		switch {
		case sensorRef.Kind == entity.KindPickup && visitorRef.Kind == entity.KindDrone:
			handlePickup(deps, sensorRef, visitorRef.Index)
		case sensorRef.Kind == entity.KindProjectile && visitorRef.Kind == entity.KindDrone:
			p := deps.Store.Projectile(sensorRef)
			if !p.NeedsToBeDestroyed {
				projlogic.QueueDestroy(deps.Store, sensorRef, true)
			}
		}
	}
	// Sensor-end events carry no behavior in this design; drain to avoid
	// unbounded growth.
	deps.World.DrainSensorEndEvents()
}

func handlePickup(deps SensorDeps, pickupRef entity.Ref, droneIdx int) {
	pk := deps.Store.Pickup(pickupRef)
	if pk.BodyDestroyed {
		return
	}
	d := &deps.Store.Drones[droneIdx]

	d.StepInfo.PrevWeapon = d.Weapon
	d.StepInfo.PickedUpWeapon = true
	wasDefault := d.Weapon == deps.DefaultWeapon

	newKind := pk.Weapon
	d.WeaponCooldown = 0
	d.WeaponCharge = 0
	d.Heat = 0
	d.ChargingWeapon = false
	d.Weapon = newKind
	d.Ammo = weapons.WeaponAmmo(deps.DefaultWeapon, newKind)
	d.Stats.WeaponsPickedUp[newKind]++

	if wasDefault && deps.Reward != nil {
		deps.Reward(droneIdx, deps.Config.Reward.WeaponPickup)
	}

	deps.Weights.DecrementSpawned(newKind)

	deps.World.DestroyShape(pk.Body, pk.Shape)
	deps.World.DestroyBody(pk.Body)
	pk.Body = physics.BodyID{}
	pk.Shape = physics.ShapeID{}
	pk.BodyDestroyed = true
	pk.RespawnWait = PickupRespawnWait
	deps.Store.ClearCellOccupant(pk.CellIdx)
}
