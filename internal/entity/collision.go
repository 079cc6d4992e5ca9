package entity

import "github.com/pthm-cable/dronearena/internal/physics"

// Collision category bits, shared by every package that creates bodies so
// filters stay consistent across walls, drones, projectiles, pickups, and
// shields.
const (
	CategoryWall         uint16 = 1 << 0
	CategoryFloatingWall uint16 = 1 << 1
	CategoryDrone        uint16 = 1 << 2
	CategoryProjectile   uint16 = 1 << 3
	CategoryPickup       uint16 = 1 << 4
	CategoryShield       uint16 = 1 << 5
	CategorySensor       uint16 = 1 << 6
)

// MaskAll collides with everything; used by solid walls and drones.
const MaskAll uint16 = 0xFFFF

// MaskProjectile is what a normal solid projectile shape collides with:
// everything except other projectiles and pickups (pickups are sensors
// entered separately via their own sensor shape).
const MaskProjectile = MaskAll &^ CategoryProjectile &^ CategoryPickup

// MaskSensor is what a proximity sensor (mine trigger, pickup trigger)
// overlaps: drones only.
const MaskSensor = CategoryDrone

// Filter is a convenience constructor for physics.Filter literals.
func Filter(category, mask uint16) physics.Filter {
	return physics.Filter{Category: category, Mask: mask}
}
