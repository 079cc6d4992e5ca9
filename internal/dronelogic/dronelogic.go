// Package dronelogic implements per-drone intent handlers: movement,
// shooting, braking, burst charge/discharge, weapon switch/discard, and the
// per-substep drone state machine.
package dronelogic

import (
	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/explosion"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/projlogic"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// Move applies a linear force along direction, which the action decoder has
// already clamped to the unit disc.
func Move(w *physics.World, cfg *config.Config, d *entity.Drone, direction mathutil.Vec2) {
	mag := cfg.Drone.MoveMagnitude
	if d.EnergyFullyDepleted && d.EnergyRefillWait > 0 {
		mag *= 0.5
	}
	w.ApplyForce(d.Body, direction.Scale(mag))
	d.LastMove = direction
}

// Shoot fires the drone's current weapon. aim must already be
// unit-normalized by the caller; a zero vector falls back to the drone's
// last aim direction instead of firing blind. defaultWeapon is the map's
// default weapon, needed for the ammo-depleted auto-switch.
func Shoot(
	w *physics.World,
	store *entity.Store,
	cfg *config.Config,
	rng *mathutil.RNG,
	m *mapbank.MapEntry,
	d *entity.Drone,
	aim mathutil.Vec2,
	charging bool,
	defaultWeapon weapons.Kind,
	dt float32,
) {
	if d.Ammo == 0 {
		return
	}
	if aim.LengthSq() < 1e-8 {
		aim = d.LastAim
	} else {
		d.LastAim = aim.Normalized()
	}

	d.ShotThisStep = true
	d.Heat = mathutil.Clamp01(d.Heat + dt*0.5)

	if d.WeaponCooldown > 0 {
		return
	}

	required := weapons.WeaponCharge(d.Weapon)
	if required > 0 {
		if charging {
			d.ChargingWeapon = true
			d.WeaponCharge = mathutil.Clamp(d.WeaponCharge+dt, 0, required)
			return
		}
		d.ChargingWeapon = false
		if d.WeaponCharge < required {
			d.WeaponCharge = mathutil.Clamp(d.WeaponCharge-dt, 0, required)
			return
		}
	}

	info := weapons.Table[d.Weapon]
	if d.Ammo > 0 {
		d.Ammo--
	}
	d.WeaponCooldown = info.CoolDown
	d.WeaponCharge = 0
	d.Stats.ShotsFired[d.Weapon]++
	d.StepInfo.FiredShot = true

	recoil := d.LastAim.Scale(-info.RecoilMagnitude)
	w.ApplyLinearImpulse(d.Body, recoil, true)

	for i := uint8(0); i < info.NumProjectiles; i++ {
		shotAim := d.LastAim
		if info.NumProjectiles > 1 {
			spread := (float32(i) - float32(info.NumProjectiles-1)/2) * 0.08
			shotAim = shotAim.Rotated(spread)
		}
		projlogic.CreateProjectile(w, store, m, cfg, rng, d.Idx, d.Weapon, shotAim)
	}

	if d.Ammo == 0 {
		d.Weapon = defaultWeapon
		d.WeaponCooldown = weapons.Table[defaultWeapon].CoolDown
		d.Ammo = weapons.InfiniteAmmo
	}
}

// Brake applies the braking damping multiplier and drains energy while held.
func Brake(w *physics.World, cfg *config.Config, d *entity.Drone, brake bool, dt float32) {
	d.Braking = brake
	if !brake || d.EnergyLeft <= 0 {
		w.SetLinearDamping(d.Body, cfg.Drone.LinearDamping)
		if !d.ChargingBurst {
			d.EnergyRefillWait = cfg.Drone.EnergyRefillWait
		}
		return
	}

	w.SetLinearDamping(d.Body, cfg.Drone.LinearDamping*cfg.Drone.BrakeDampingCoef)
	d.EnergyLeft = mathutil.Clamp01(d.EnergyLeft - cfg.Drone.BrakeDrainRate*dt)
	d.Stats.BrakeTime += dt

	if d.EnergyLeft <= 0 && !d.ChargingBurst {
		d.EnergyFullyDepleted = true
		d.EnergyFullyDepletedThisStep = true
		d.Stats.EnergyEmptiedCount++
		d.EnergyRefillWait = cfg.Drone.EnergyRefillEmptyWait
	}
}

// ChargeBurst accumulates burst charge from held energy, paying a one-time
// base cost on the first tick of a charge.
func ChargeBurst(cfg *config.Config, d *entity.Drone, dt float32) {
	if !d.ChargingBurst {
		d.EnergyLeft = mathutil.Clamp01(d.EnergyLeft - cfg.Drone.BurstChargeBaseCost)
		d.ChargingBurst = true
	}
	drain := cfg.Drone.BurstChargeRate * dt
	drain = mathutil.Clamp(drain, 0, d.EnergyLeft)
	d.EnergyLeft -= drain
	d.BurstCharge = mathutil.Clamp01(d.BurstCharge + drain)
}

// Burst discharges an omnidirectional explosion proportional to accumulated
// burst charge.
func Burst(eng *explosion.Engine, cfg *config.Config, d *entity.Drone) int {
	radius := cfg.Drone.BurstRadiusBase*d.BurstCharge + cfg.Drone.BurstRadiusMin
	impulse := cfg.Drone.BurstImpactBase*d.BurstCharge + cfg.Drone.BurstImpactMin

	hits := eng.CreateExplosion(d.Idx, entity.NoRef, explosion.Def{
		Position:         d.Pos,
		Radius:           radius,
		Falloff:          radius / 2,
		ImpulsePerLength: impulse,
		IsBurst:          true,
	})

	d.Stats.BurstsTotal++
	if hits > 0 {
		d.Stats.BurstsHit++
	}
	d.BurstCooldown = cfg.Drone.BurstCooldown
	d.EnergyRefillWait = cfg.Drone.EnergyRefillWait
	d.BurstCharge = 0
	d.ChargingBurst = false
	return hits
}

// ChangeWeapon switches to newKind, resetting cooldown/charge/heat state and
// assigning fresh ammo for the new weapon.
func ChangeWeapon(defaultWeapon weapons.Kind, d *entity.Drone, newKind weapons.Kind) {
	if newKind == d.Weapon {
		return
	}
	d.WeaponCooldown = 0
	d.WeaponCharge = 0
	d.Heat = 0
	d.ChargingWeapon = false
	d.Weapon = newKind
	d.Ammo = weapons.WeaponAmmo(defaultWeapon, newKind)
}

// DiscardWeapon switches back to the map's default weapon at an energy
// cost; a no-op if already on the default, or if energy is fully depleted
// while no burst is charging.
func DiscardWeapon(cfg *config.Config, defaultWeapon weapons.Kind, d *entity.Drone) {
	if d.Weapon == defaultWeapon {
		return
	}
	if d.EnergyFullyDepleted && !d.ChargingBurst {
		return
	}
	ChangeWeapon(defaultWeapon, d, defaultWeapon)
	d.EnergyLeft = mathutil.Clamp01(d.EnergyLeft - cfg.Drone.WeaponDiscardCost)
	if d.EnergyLeft <= 0 {
		d.EnergyFullyDepleted = true
		d.EnergyFullyDepletedThisStep = true
	}
}

// Step runs per-substep cooldown decay, energy refill, shield decay, and
// distance-traveled accrual.
func Step(w *physics.World, cfg *config.Config, store *entity.Store, d *entity.Drone, dt float32) {
	if d.WeaponCooldown > 0 {
		d.WeaponCooldown = mathutil.Clamp(d.WeaponCooldown-dt, 0, d.WeaponCooldown)
	}
	if d.BurstCooldown > 0 {
		d.BurstCooldown = mathutil.Clamp(d.BurstCooldown-dt, 0, d.BurstCooldown)
	}
	if !d.ShotThisStep {
		d.WeaponCharge = mathutil.Clamp(d.WeaponCharge-dt, 0, d.WeaponCharge)
		d.Heat = mathutil.Clamp(d.Heat-dt*0.25, 0, 1)
	}

	if d.EnergyRefillWait > 0 {
		d.EnergyRefillWait = mathutil.Clamp(d.EnergyRefillWait-dt, 0, d.EnergyRefillWait)
	} else {
		refillEnergy(cfg, d, dt)
	}

	if !d.ShieldRef.IsNone() {
		sh := store.Shield(d.ShieldRef)
		sh.Duration -= dt
		if sh.Duration <= 0 || sh.Health <= 0 {
			DestroyShield(w, store, d.ShieldRef)
		}
	}

	d.Stats.DistanceTraveledSum += mathutil.Distance(d.Pos, d.LastPos)
}

// refillEnergy regenerates energy once energyRefillWait has elapsed, and is
// skipped entirely while charging a burst.
func refillEnergy(cfg *config.Config, d *entity.Drone, dt float32) {
	if d.ChargingBurst || d.EnergyLeft >= cfg.Drone.EnergyMax {
		return
	}
	d.EnergyLeft = mathutil.Clamp(d.EnergyLeft+cfg.Drone.EnergyRefillRate*dt, 0, cfg.Drone.EnergyMax)
	if d.EnergyLeft > 0 {
		d.EnergyFullyDepleted = false
	}
}

// KillDrone marks a drone dead and zeroes its velocity. Idempotent.
func KillDrone(w *physics.World, d *entity.Drone) {
	if d.Dead {
		return
	}
	d.Dead = true
	d.DiedThisStep = true
	d.ChargingBurst = false
	d.ChargingWeapon = false
	d.Braking = false
	w.SetLinearVelocity(d.Body, mathutil.Vec2{})
}

// CreateShield builds a fresh Shield for droneIdx at the drone's current
// position, with a start duration and health: a standalone kinematic body
// plus a buffer shape riding on the drone's own body, sized to deflect
// incoming projectiles at ShieldBufferRadius.
func CreateShield(w *physics.World, cfg *config.Config, store *entity.Store, droneIdx int) entity.Ref {
	d := &store.Drones[droneIdx]
	body := w.CreateBody(physics.BodyDef{Type: physics.BodyKinematic, Position: d.Pos})
	ref := store.CreateShield(entity.Shield{
		Body:     body,
		DroneIdx: droneIdx,
		Pos:      d.Pos,
		Health:   cfg.Drone.ShieldInitialHealth,
		Duration: cfg.Drone.ShieldInitialDuration,
	})
	buffer := w.CreateCircleShape(d.Body, physics.ShapeDef{
		Filter:              entity.Filter(entity.CategoryShield, entity.MaskAll),
		EnableContactEvents: true,
		UserData:            ref,
	}, physics.CircleGeom{Radius: cfg.Drone.ShieldBufferRadius})
	store.Shield(ref).BufferShape = buffer
	d.ShieldRef = ref
	return ref
}

// DestroyShield frees a Shield's physics resources and its store slot, once
// its duration or health reaches 0.
func DestroyShield(w *physics.World, store *entity.Store, ref entity.Ref) {
	sh := store.Shield(ref)
	d := &store.Drones[sh.DroneIdx]
	w.DestroyShape(d.Body, sh.BufferShape)
	w.DestroyBody(sh.Body)
	store.DestroyShield(ref)
}
