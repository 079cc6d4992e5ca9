// Package entity is the tagged-variant entity store: owning containers per
// entity kind, a fixed grid of Cells with non-owning occupant
// back-references, and physics-shape userdata slots carrying a (kind, index)
// Ref back into the owning container. Entities are created by a single
// factory and freed by a matching destroyer; freed slots are tombstoned and
// recycled via a per-kind free-list rather than swap-removed, so a Ref stays
// valid for the lifetime of the entity it names without requiring
// back-reference patching on every unrelated removal.
package entity

import (
	"fmt"

	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// Kind tags which owning container a Ref points into.
type Kind uint8

const (
	// KindNone is the zero Kind, so the zero Ref (NoRef) never names a live
	// entity, not even the wall in slot 0.
	KindNone Kind = iota
	KindWall
	KindPickup
	KindProjectile
	KindDrone
	KindShield
)

// Ref is a non-owning handle into one of the Store's owning containers.
type Ref struct {
	Kind  Kind
	Index int
}

// NoRef is the zero-value "no reference" sentinel.
var NoRef = Ref{}

// IsNone reports whether r is the no-reference sentinel.
func (r Ref) IsNone() bool { return r == NoRef }

// Cell is one grid square. Invariant: if Occupant is set, the referenced
// entity's CellIdx equals this cell's index, and no other cell refers to
// it.
type Cell struct {
	Pos      mathutil.Vec2
	Occupant Ref
	Occupied bool
}

// Wall is a static or floating wall entity.
type Wall struct {
	alive bool

	Body        physics.BodyID
	Shape       physics.ShapeID
	Pos         mathutil.Vec2
	Extent      mathutil.Vec2
	CellIdx     int
	Kind        mapbank.CellKind
	Floating    bool
	SuddenDeath bool
	Rot         float32
	Velocity    mathutil.Vec2
}

// WeaponPickup is a weapon pickup entity. When RespawnWait>0 the pickup is
// disabled: Body/Shape are zero and BodyDestroyed is true.
type WeaponPickup struct {
	alive bool

	Body                  physics.BodyID
	Shape                 physics.ShapeID
	Pos                   mathutil.Vec2
	CellIdx               int
	Weapon                weapons.Kind
	RespawnWait           float32
	FloatingWallsTouching uint8
	BodyDestroyed         bool
}

// Projectile is an in-flight shot.
type Projectile struct {
	alive bool

	Body      physics.BodyID
	Shape     physics.ShapeID
	Sensor    physics.ShapeID
	HasSensor bool

	DroneIdx int
	Weapon   weapons.Kind

	Pos, LastPos         mathutil.Vec2
	Velocity, LastVelocity mathutil.Vec2
	Speed, LastSpeed     float32
	Distance             float32
	Bounces              uint8
	Contacts             uint8

	NeedsToBeDestroyed bool
	ExplodeOnDestroy   bool
	SetMine            bool
	WeldJoint          physics.JointID

	// DronesBehindWalls records, for a welded mine, which drones were
	// line-of-sight-blocked at weld time; re-tested every projectile step
	// so the mine can retroactively detonate once a blocking wall is gone.
	DronesBehindWalls   []int
	NumDronesBehindWalls int
}

// Shield is a drone's temporary deflector.
type Shield struct {
	alive bool

	Body        physics.BodyID // kinematic
	BufferShape physics.ShapeID // sensor-free shape riding on the drone body
	DroneIdx    int
	Pos         mathutil.Vec2
	Health      float32
	Duration    float32
}

// DroneStepInfo is cleared every physics substep.
type DroneStepInfo struct {
	FiredShot      bool
	PickedUpWeapon bool
	PrevWeapon     weapons.Kind

	ShotHit        []uint8 // 0 = none, else weapon+1
	ExplosionHit   []uint8
	ShotTaken      []uint8
	ExplosionTaken []uint8
	OwnShotTaken   bool
}

// NewDroneStepInfo allocates a DroneStepInfo sized for numDrones.
func NewDroneStepInfo(numDrones int) DroneStepInfo {
	return DroneStepInfo{
		ShotHit:        make([]uint8, numDrones),
		ExplosionHit:   make([]uint8, numDrones),
		ShotTaken:      make([]uint8, numDrones),
		ExplosionTaken: make([]uint8, numDrones),
	}
}

// Clear resets a DroneStepInfo for the next substep in place (avoids a
// reallocation every substep).
func (d *DroneStepInfo) Clear() {
	d.FiredShot = false
	d.PickedUpWeapon = false
	d.OwnShotTaken = false
	for i := range d.ShotHit {
		d.ShotHit[i] = 0
		d.ExplosionHit[i] = 0
		d.ShotTaken[i] = 0
		d.ExplosionTaken[i] = 0
	}
}

// DroneStats accumulates per-episode statistics.
type DroneStats struct {
	ShotsFired      [weapons.NumWeapons]int
	ShotsHit        [weapons.NumWeapons]int
	ShotsTaken      [weapons.NumWeapons]int
	OwnShotsTaken   [weapons.NumWeapons]int
	WeaponsPickedUp [weapons.NumWeapons]int
	ShotDistances   [weapons.NumWeapons]float32

	DistanceTraveledSum float32
	DistanceEndpoint    float32

	BurstsTotal int
	BurstsHit   int

	BrakeTime          float32
	EnergyEmptiedCount int

	Wins   int
	Reward float32
}

// Drone is a player/bot-controlled combat unit.
type Drone struct {
	Body  physics.BodyID
	Shape physics.ShapeID

	Idx    int
	Team   uint8
	Weapon weapons.Kind
	Ammo   int8 // weapons.InfiniteAmmo when wielding the default weapon

	WeaponCooldown float32
	WeaponCharge   float32
	Heat           float32

	Pos, LastPos, InitialPos mathutil.Vec2
	Velocity, LastVelocity   mathutil.Vec2
	LastMove                 mathutil.Vec2
	LastAim                  mathutil.Vec2 // unit vector when non-zero

	EnergyLeft                  float32
	BurstCharge                 float32
	BurstCooldown               float32
	EnergyRefillWait            float32
	EnergyFullyDepleted         bool
	EnergyFullyDepletedThisStep bool

	ChargingWeapon bool
	ChargingBurst  bool
	Braking        bool
	ShotThisStep   bool

	Dead        bool
	DiedThisStep bool

	ShieldRef Ref // KindShield or NoRef

	StepInfo DroneStepInfo
	Stats    DroneStats

	// InLineOfSight[j] reports whether drone j is currently visible to this
	// drone, cleared every substep before any read and set by the step
	// orchestrator's per-substep line-of-sight ray casts.
	InLineOfSight []bool
}

// Store owns every entity container plus the fixed cell grid.
type Store struct {
	Columns, Rows int
	Cells         []Cell

	Walls    []Wall
	wallFree []int

	Pickups    []WeaponPickup
	pickupFree []int

	Projectiles    []Projectile
	projFree       []int

	Drones  []Drone // dense, fixed at numDrones for the whole episode
	Shields []Shield
	shieldFree []int
}

// NewStore allocates a Store for a columns x rows grid and numDrones drones.
func NewStore(columns, rows, numDrones int) *Store {
	return &Store{
		Columns: columns,
		Rows:    rows,
		Cells:   make([]Cell, columns*rows),
		Drones:  make([]Drone, numDrones),
		Shields: make([]Shield, 0, numDrones),
	}
}

// invariant panics with a diagnostic; programming invariants must never
// fire in release code and abort the process when they do.
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("entity store invariant violated: "+format, args...))
	}
}

// CellIndex converts (row,col) to the module-wide flat index convention
// (DESIGN.md Open Question #1: row*columns+col).
func (s *Store) CellIndex(row, col int) int { return row*s.Columns + col }

// CellRowCol converts a flat index back to (row, col).
func (s *Store) CellRowCol(idx int) (row, col int) { return idx / s.Columns, idx % s.Columns }

// SetCellOccupant assigns ref as idx's occupant, enforcing the at-most-one
// occupant invariant.
func (s *Store) SetCellOccupant(idx int, ref Ref) {
	invariant(idx >= 0 && idx < len(s.Cells), "cell index %d out of range", idx)
	s.Cells[idx].Occupant = ref
	s.Cells[idx].Occupied = true
}

// ClearCellOccupant empties a cell.
func (s *Store) ClearCellOccupant(idx int) {
	invariant(idx >= 0 && idx < len(s.Cells), "cell index %d out of range", idx)
	s.Cells[idx].Occupant = NoRef
	s.Cells[idx].Occupied = false
}

// --- Walls ---

// CreateWall allocates a Wall slot and returns its Ref.
func (s *Store) CreateWall(w Wall) Ref {
	w.alive = true
	if n := len(s.wallFree); n > 0 {
		idx := s.wallFree[n-1]
		s.wallFree = s.wallFree[:n-1]
		s.Walls[idx] = w
		return Ref{KindWall, idx}
	}
	s.Walls = append(s.Walls, w)
	return Ref{KindWall, len(s.Walls) - 1}
}

// Wall returns the Wall at ref, which must be KindWall and alive.
func (s *Store) Wall(ref Ref) *Wall {
	invariant(ref.Kind == KindWall, "Wall: ref is not a wall")
	invariant(ref.Index >= 0 && ref.Index < len(s.Walls), "Wall: index %d out of range", ref.Index)
	invariant(s.Walls[ref.Index].alive, "Wall: index %d is not alive", ref.Index)
	return &s.Walls[ref.Index]
}

// DestroyWall tombstones a wall slot, returning it to the free-list, and
// clears its cell back-pointer if it was the occupant there.
func (s *Store) DestroyWall(ref Ref) {
	w := s.Wall(ref)
	if s.Cells[w.CellIdx].Occupied && s.Cells[w.CellIdx].Occupant == ref {
		s.ClearCellOccupant(w.CellIdx)
	}
	s.Walls[ref.Index] = Wall{}
	s.wallFree = append(s.wallFree, ref.Index)
}

// --- Weapon pickups ---

// CreatePickup allocates a WeaponPickup slot.
func (s *Store) CreatePickup(p WeaponPickup) Ref {
	p.alive = true
	if n := len(s.pickupFree); n > 0 {
		idx := s.pickupFree[n-1]
		s.pickupFree = s.pickupFree[:n-1]
		s.Pickups[idx] = p
		return Ref{KindPickup, idx}
	}
	s.Pickups = append(s.Pickups, p)
	return Ref{KindPickup, len(s.Pickups) - 1}
}

// Pickup returns the WeaponPickup at ref.
func (s *Store) Pickup(ref Ref) *WeaponPickup {
	invariant(ref.Kind == KindPickup, "Pickup: ref is not a pickup")
	invariant(ref.Index >= 0 && ref.Index < len(s.Pickups), "Pickup: index %d out of range", ref.Index)
	invariant(s.Pickups[ref.Index].alive, "Pickup: index %d is not alive", ref.Index)
	return &s.Pickups[ref.Index]
}

// DestroyPickup permanently removes a pickup (used when it can't find a
// respawn position, a recoverable bad world state).
func (s *Store) DestroyPickup(ref Ref) {
	p := s.Pickup(ref)
	if !p.BodyDestroyed && s.Cells[p.CellIdx].Occupied && s.Cells[p.CellIdx].Occupant == ref {
		s.ClearCellOccupant(p.CellIdx)
	}
	s.Pickups[ref.Index] = WeaponPickup{}
	s.pickupFree = append(s.pickupFree, ref.Index)
}

// --- Projectiles ---

// CreateProjectile allocates a Projectile slot.
func (s *Store) CreateProjectile(p Projectile) Ref {
	p.alive = true
	if n := len(s.projFree); n > 0 {
		idx := s.projFree[n-1]
		s.projFree = s.projFree[:n-1]
		s.Projectiles[idx] = p
		return Ref{KindProjectile, idx}
	}
	s.Projectiles = append(s.Projectiles, p)
	return Ref{KindProjectile, len(s.Projectiles) - 1}
}

// Projectile returns the Projectile at ref.
func (s *Store) Projectile(ref Ref) *Projectile {
	invariant(ref.Kind == KindProjectile, "Projectile: ref is not a projectile")
	invariant(ref.Index >= 0 && ref.Index < len(s.Projectiles), "Projectile: index %d out of range", ref.Index)
	invariant(s.Projectiles[ref.Index].alive, "Projectile: index %d is not alive", ref.Index)
	return &s.Projectiles[ref.Index]
}

// DestroyProjectile frees a projectile slot. Must only be called outside an
// active physics query, per the deferred-destruction discipline.
func (s *Store) DestroyProjectile(ref Ref) {
	s.Projectiles[ref.Index] = Projectile{}
	s.projFree = append(s.projFree, ref.Index)
}

// LiveProjectileRefs returns Refs for every currently-alive projectile.
func (s *Store) LiveProjectileRefs() []Ref {
	refs := make([]Ref, 0, len(s.Projectiles))
	for i := range s.Projectiles {
		if s.Projectiles[i].alive {
			refs = append(refs, Ref{KindProjectile, i})
		}
	}
	return refs
}

// LiveWallRefs returns Refs for every currently-alive wall.
func (s *Store) LiveWallRefs() []Ref {
	refs := make([]Ref, 0, len(s.Walls))
	for i := range s.Walls {
		if s.Walls[i].alive {
			refs = append(refs, Ref{KindWall, i})
		}
	}
	return refs
}

// LivePickupRefs returns Refs for every currently-alive pickup.
func (s *Store) LivePickupRefs() []Ref {
	refs := make([]Ref, 0, len(s.Pickups))
	for i := range s.Pickups {
		if s.Pickups[i].alive {
			refs = append(refs, Ref{KindPickup, i})
		}
	}
	return refs
}

// --- Shields ---

// CreateShield allocates a Shield slot for droneIdx.
func (s *Store) CreateShield(sh Shield) Ref {
	sh.alive = true
	if n := len(s.shieldFree); n > 0 {
		idx := s.shieldFree[n-1]
		s.shieldFree = s.shieldFree[:n-1]
		s.Shields[idx] = sh
		return Ref{KindShield, idx}
	}
	s.Shields = append(s.Shields, sh)
	return Ref{KindShield, len(s.Shields) - 1}
}

// Shield returns the Shield at ref.
func (s *Store) Shield(ref Ref) *Shield {
	invariant(ref.Kind == KindShield, "Shield: ref is not a shield")
	invariant(ref.Index >= 0 && ref.Index < len(s.Shields), "Shield: index %d out of range", ref.Index)
	invariant(s.Shields[ref.Index].alive, "Shield: index %d is not alive", ref.Index)
	return &s.Shields[ref.Index]
}

// DestroyShield frees a shield slot and clears the owning drone's ShieldRef.
func (s *Store) DestroyShield(ref Ref) {
	sh := s.Shield(ref)
	if sh.DroneIdx >= 0 && sh.DroneIdx < len(s.Drones) && s.Drones[sh.DroneIdx].ShieldRef == ref {
		s.Drones[sh.DroneIdx].ShieldRef = NoRef
	}
	s.Shields[ref.Index] = Shield{}
	s.shieldFree = append(s.shieldFree, ref.Index)
}
