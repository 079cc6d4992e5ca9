// Package weapons is the read-only weapon table external collaborator.
// Everything in this package is pure data plus free functions over that
// data (WeaponAmmo, WeaponCharge, WeaponFire, WeaponAdjustAim,
// WeaponExplosion, WeaponSensor); it holds no simulation state of its own.
// Layout grounded on original_source/src/types.h's weaponInformation struct.
package weapons

import "github.com/pthm-cable/dronearena/internal/mathutil"

// Kind enumerates the weapon types. original_source/src/types.h enum
// weaponType.
type Kind uint8

const (
	Standard Kind = iota
	MachineGun
	Sniper
	Shotgun
	Imploder
	NumWeapons
)

// InfiniteAmmo is the ammo sentinel for the default weapon.
const InfiniteAmmo int8 = -1

// Explosion describes a weapon's (or burst's) area-of-effect parameters,
// consumed by internal/explosion's Engine.CreateExplosion.
type Explosion struct {
	Radius          float32
	Falloff         float32
	ImpulsePerLength float32
}

// Info is one row of the weapon table.
type Info struct {
	Type                Kind
	IsPhysicsBullet     bool
	NumProjectiles      uint8
	RecoilMagnitude     float32
	CoolDown            float32
	Charge              float32 // required charge time; 0 = doesn't charge
	MaxDistance         float32 // <=0 = unlimited
	Radius              float32
	Density             float32
	InvMass             float32
	MaxBounces          uint8
	LinearDamping       float32
	CanSleep            bool
	Explosive           bool
	ProximityDetonates  bool // mines
	DestroyedOnDroneHit bool
	ExplodesOnDroneHit  bool
	SpawnWeight         float32
	EnergyRefill        float32 // energy refunded to shooter per hit on an enemy
	Explosion           Explosion
	Implosion           bool // explosion pulls targets inward instead of pushing them out
	AimJitterPerHeat    float32 // heat-scaled aim perturbation coefficient
	Accelerator         bool    // speeds up on end-contact, up to AcceleratorMaxSpeed
}

// Table is the full read-only weapon table, indexed by Kind.
var Table = [NumWeapons]Info{
	Standard: {
		Type: Standard, IsPhysicsBullet: true, NumProjectiles: 1,
		RecoilMagnitude: 2.5, CoolDown: 0.4, MaxDistance: 0,
		Radius: 2.5, Density: 1.0, InvMass: 1.0, MaxBounces: 2,
		LinearDamping: 0, CanSleep: false,
		SpawnWeight: 0, EnergyRefill: 0.05,
		AimJitterPerHeat: 0.01,
	},
	MachineGun: {
		Type: MachineGun, IsPhysicsBullet: true, NumProjectiles: 1,
		RecoilMagnitude: 1.5, CoolDown: 0.12, MaxDistance: 600,
		Radius: 2, Density: 0.8, InvMass: 1.25, MaxBounces: 1,
		SpawnWeight: 3, EnergyRefill: 0.03,
		AimJitterPerHeat: 0.05,
	},
	Sniper: {
		Type: Sniper, IsPhysicsBullet: true, NumProjectiles: 1,
		RecoilMagnitude: 6, CoolDown: 1.4, Charge: 0.6, MaxDistance: 0,
		Radius: 3, Density: 1.4, InvMass: 0.7, MaxBounces: 0,
		SpawnWeight: 2, EnergyRefill: 0.2,
		AimJitterPerHeat: 0.002,
	},
	Shotgun: {
		Type: Shotgun, IsPhysicsBullet: true, NumProjectiles: 7,
		RecoilMagnitude: 5, CoolDown: 0.9, MaxDistance: 260,
		Radius: 2, Density: 0.7, InvMass: 1.4, MaxBounces: 0,
		SpawnWeight: 2, EnergyRefill: 0.04,
		AimJitterPerHeat: 0.12,
	},
	Imploder: {
		Type: Imploder, IsPhysicsBullet: true, NumProjectiles: 1,
		RecoilMagnitude: 3, CoolDown: 1.1, MaxDistance: 0,
		Radius: 3.5, Density: 1.2, InvMass: 0.9, MaxBounces: 3,
		ProximityDetonates: true, Explosive: true,
		DestroyedOnDroneHit: true, ExplodesOnDroneHit: true,
		SpawnWeight: 1.5, EnergyRefill: 0.1,
		Explosion: Explosion{Radius: 40, Falloff: 20, ImpulsePerLength: 900},
		Implosion:        true,
		AimJitterPerHeat: 0.02,
	},
}

// AcceleratorMaxSpeed bounds the speed-up applied to accelerator weapons on
// end-contact.
const AcceleratorMaxSpeed float32 = 420

// WeaponAmmo returns the starting ammo for kind, given the map's default
// weapon (default weapon always has InfiniteAmmo).
func WeaponAmmo(defaultWeapon, kind Kind) int8 {
	if kind == defaultWeapon {
		return InfiniteAmmo
	}
	switch kind {
	case MachineGun:
		return 40
	case Sniper:
		return 6
	case Shotgun:
		return 8
	case Imploder:
		return 4
	default:
		return InfiniteAmmo
	}
}

// WeaponCharge returns the time (seconds) a weapon must be held charging
// before it fires, or 0 if it fires immediately.
func WeaponCharge(kind Kind) float32 { return Table[kind].Charge }

// WeaponFire returns the projectile speed for a freshly-fired shot of the
// given kind, with a small random jitter so repeated shots aren't identical.
func WeaponFire(rng *mathutil.RNG, kind Kind) float32 {
	base := map[Kind]float32{
		Standard: 420, MachineGun: 520, Sniper: 900, Shotgun: 380, Imploder: 300,
	}[kind]
	jitter := (rng.Float32()*2 - 1) * base * 0.04
	return base + jitter
}

// WeaponAdjustAim perturbs an aim direction based on accumulated heat,
// modeling recoil-driven spread (original_source/src/game.h
// weaponAdjustAim). Heat in [0, 1]; a higher AimJitterPerHeat widens the
// cone faster.
func WeaponAdjustAim(rng *mathutil.RNG, kind Kind, heat float32, aim mathutil.Vec2) mathutil.Vec2 {
	info := Table[kind]
	if info.AimJitterPerHeat <= 0 {
		return aim
	}
	maxJitter := info.AimJitterPerHeat * heat
	jitterAngle := (rng.Float32()*2 - 1) * maxJitter
	return aim.Rotated(jitterAngle)
}

// WeaponExplosion writes the AoE parameters for a weapon that explodes into
// out, returning false if the weapon never explodes.
func WeaponExplosion(kind Kind, out *Explosion) bool {
	info := Table[kind]
	if !info.Explosive {
		return false
	}
	*out = info.Explosion
	return true
}

// WeaponSensor reports whether a weapon's projectile needs a sensor shape in
// addition to its solid shape (proximity-detonating mines).
func WeaponSensor(kind Kind) bool { return Table[kind].ProximityDetonates }
