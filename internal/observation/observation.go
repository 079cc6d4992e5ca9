// Package observation packs the per-agent observation buffer: a
// bit-packed local map view followed by a fixed-offset scalar vector, both
// written directly into the caller-owned byte buffer.
package observation

import (
	"encoding/binary"
	"math"

	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

const (
	mapBitFloating = 1 << 4
	mapBitPickup   = 1 << 3
	mapDroneMask   = 0x07
	mapWallShift   = 5
	mapWallMask    = 0x03
)

// fieldsPerNearestWall, etc. document the fixed per-entry widths of
// the scalar vector, kept as named constants so ObsBytes and PackObservation
// can't drift out of sync with each other.
const (
	fieldsPerNearestWall   = 3  // type+1, relx, rely
	fieldsPerFloatingWall  = 6  // type+1, relx, rely, angle, vx, vy
	fieldsPerPickup        = 3  // weapon+1, relx, rely
	fieldsPerProjectile    = 4  // weapon+1, ownerIdx+1, relx, rely
	fieldsPerEnemy         = 18 // weapon+1, inLOS, relx, rely, dist, vx, vy, ax, ay, relNormX, relNormY, bearing, aimX, aimY, aimAngle, ammoFrac, cooldownFrac, chargeFrac
	fieldsSelf             = 16 // weapon+1, x, y, vx, vy, ax, ay, aimX, aimY, aimAngle, ammoFrac, cooldownFrac, chargeFrac, hitShot, tookShot, ownShotTaken
	fieldsStepsLeftFrac    = 1
)

// MapBytes returns the local map window's byte size, aligned up to a
// float32 boundary so the scalar vector that follows starts on a 4-byte
// boundary.
func MapBytes(cfg *config.Config) int {
	n := cfg.Obs.MapRows * cfg.Obs.MapColumns
	return (n + 3) &^ 3
}

// ScalarFieldCount returns the number of f32 scalars written per agent.
func ScalarFieldCount(cfg *config.Config, numDrones int) int {
	return cfg.Obs.NumNearestWalls*fieldsPerNearestWall +
		cfg.Obs.MaxFloatingWalls*fieldsPerFloatingWall +
		cfg.Obs.MaxPickups*fieldsPerPickup +
		cfg.Obs.NumProjectileObs*fieldsPerProjectile +
		(numDrones-1)*fieldsPerEnemy +
		fieldsSelf +
		fieldsStepsLeftFrac
}

// ObsBytes returns the total per-agent observation buffer size.
func ObsBytes(cfg *config.Config, numDrones int) int {
	return MapBytes(cfg) + ScalarFieldCount(cfg, numDrones)*4
}

type writer struct {
	buf []byte
	off int
}

func (w *writer) f32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
}

// Context bundles the read-only collaborators the packer needs.
type Context struct {
	Store        *entity.Store
	Map          *mapbank.MapEntry
	WallIndex    *mapbank.WallIndex
	Config       *config.Config
	NumDrones    int
	DefaultWeapon weapons.Kind
	StepsLeft    int
	EpisodeSteps int
}

// Pack writes agent agentIdx's full observation (map window + scalar
// vector) into buf[0:ObsBytes(...)].
func Pack(ctx *Context, buf []byte, agentIdx int) {
	packMap(ctx, buf, agentIdx)
	w := &writer{buf: buf, off: MapBytes(ctx.Config)}
	packScalars(ctx, w, agentIdx)
}

func packMap(ctx *Context, buf []byte, agentIdx int) {
	self := &ctx.Store.Drones[agentIdx]
	selfRow, selfCol := cellRowColAt(ctx.Map, self.Pos)

	rows, cols := ctx.Config.Obs.MapRows, ctx.Config.Obs.MapColumns
	halfRows := rows / 2
	halfCols := cols / 2

	// First pass: wall/floating/pickup bits only, straight from the cell
	// grid. Drones are placed in a second pass below since the grid's
	// single Cells.Occupant back-reference only ever names one entity per
	// cell and must not be used to decide drone visibility here.
	for wr := 0; wr < rows; wr++ {
		for wc := 0; wc < cols; wc++ {
			li := wr*cols + wc
			row := selfRow + wr - halfRows
			col := selfCol + wc - halfCols
			if row < 0 || row >= ctx.Map.Rows || col < 0 || col >= ctx.Map.Columns {
				buf[li] = 0
				continue
			}
			buf[li] = staticCellByte(ctx, ctx.Store.CellIndex(row, col))
		}
	}

	placeDrones(ctx, buf, agentIdx, selfRow, selfCol, rows, cols, halfRows, halfCols)
}

func cellRowColAt(m *mapbank.MapEntry, pos mathutil.Vec2) (row, col int) {
	col = mathutil.ClampInt(int(pos.X/m.CellSize), 0, m.Columns-1)
	row = mathutil.ClampInt(int(pos.Y/m.CellSize), 0, m.Rows-1)
	return
}

func staticCellByte(ctx *Context, idx int) byte {
	var b byte
	kind := ctx.Map.Layout[idx]
	if kind != mapbank.CellEmpty {
		b |= byte((int(kind)+1)&mapWallMask) << mapWallShift
	}

	if ctx.Store.Cells[idx].Occupied {
		occ := ctx.Store.Cells[idx].Occupant
		switch occ.Kind {
		case entity.KindWall:
			wall := ctx.Store.Wall(occ)
			if wall.Floating {
				b |= mapBitFloating
			}
		case entity.KindPickup:
			pk := ctx.Store.Pickup(occ)
			if !pk.BodyDestroyed {
				b |= mapBitPickup
			}
		}
	}
	return b
}

// neighbor8 lists the 8-neighbor offsets checked, in order, when a drone's
// home window cell is already taken by an earlier drone: subsequent drones
// are nudged to the nearest empty 8-neighbor.
var neighbor8 = [8][2]int{
	{0, -1}, {0, 1}, {-1, 0}, {1, 0},
	{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
}

// placeDrones writes each live drone's index bits into the map window,
// agentIdx always occupying local slot 0 and every other drone numbered by
// increasing Idx. A drone whose home cell already carries another drone's
// bits is nudged to the first in-window 8-neighbor, in neighbor8 order, that
// carries no drone bits yet (wall, floating-wall and pickup bits do not
// block it); if none is free it is dropped silently rather than overwriting
// another drone.
func placeDrones(ctx *Context, buf []byte, agentIdx, selfRow, selfCol, rows, cols, halfRows, halfCols int) {
	order := make([]int, 0, ctx.NumDrones)
	order = append(order, agentIdx)
	for i := 0; i < ctx.NumDrones; i++ {
		if i != agentIdx {
			order = append(order, i)
		}
	}

	for slot, droneIdx := range order {
		d := &ctx.Store.Drones[droneIdx]
		if d.Dead {
			continue
		}
		row, col := cellRowColAt(ctx.Map, d.Pos)
		wr := row - selfRow + halfRows
		wc := col - selfCol + halfCols
		if wr < 0 || wr >= rows || wc < 0 || wc >= cols {
			continue
		}
		bit := byte((slot + 1) & mapDroneMask)
		li := wr*cols + wc
		if int(buf[li])&mapDroneMask == 0 {
			buf[li] |= bit
			continue
		}
		for _, off := range neighbor8 {
			nr, nc := wr+off[0], wc+off[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			nli := nr*cols + nc
			if int(buf[nli])&mapDroneMask == 0 {
				buf[nli] |= bit
				break
			}
		}
	}
}

func packScalars(ctx *Context, w *writer, agentIdx int) {
	cfg := ctx.Config
	self := &ctx.Store.Drones[agentIdx]

	nearest := ctx.WallIndex.NearestWalls(self.Pos, cfg.Obs.NumNearestWalls)
	maxExtent := ctx.Map.CellSize * float32(ctx.Map.Rows+ctx.Map.Columns)
	for i := 0; i < cfg.Obs.NumNearestWalls; i++ {
		if i >= len(nearest) {
			w.f32(0)
			w.f32(0)
			w.f32(0)
			continue
		}
		idx := nearest[i]
		kind := ctx.Map.Layout[idx]
		rel := ctx.Map.CellCenter(idx).Sub(self.Pos)
		w.f32(float32(kind) + 1)
		w.f32(mathutil.ScaleValue(rel.X, maxExtent, false))
		w.f32(mathutil.ScaleValue(rel.Y, maxExtent, false))
	}

	floatingRefs := liveFloatingWalls(ctx.Store)
	for i := 0; i < cfg.Obs.MaxFloatingWalls; i++ {
		if i >= len(floatingRefs) {
			for k := 0; k < fieldsPerFloatingWall; k++ {
				w.f32(0)
			}
			continue
		}
		fw := ctx.Store.Wall(floatingRefs[i])
		rel := fw.Pos.Sub(self.Pos)
		w.f32(float32(fw.Kind) + 1)
		w.f32(mathutil.ScaleValue(rel.X, maxExtent, false))
		w.f32(mathutil.ScaleValue(rel.Y, maxExtent, false))
		w.f32(mathutil.ScaleValue(fw.Rot, math.Pi, false))
		w.f32(mathutil.ScaleValue(fw.Velocity.X, 400, false))
		w.f32(mathutil.ScaleValue(fw.Velocity.Y, 400, false))
	}

	pickupRefs := ctx.Store.LivePickupRefs()
	packed := 0
	for _, ref := range pickupRefs {
		if packed >= cfg.Obs.MaxPickups {
			break
		}
		pk := ctx.Store.Pickup(ref)
		if pk.BodyDestroyed {
			continue
		}
		rel := pk.Pos.Sub(self.Pos)
		w.f32(float32(pk.Weapon) + 1)
		w.f32(mathutil.ScaleValue(rel.X, maxExtent, false))
		w.f32(mathutil.ScaleValue(rel.Y, maxExtent, false))
		packed++
	}
	for ; packed < cfg.Obs.MaxPickups; packed++ {
		w.f32(0)
		w.f32(0)
		w.f32(0)
	}

	projRefs := ctx.Store.LiveProjectileRefs()
	packed = 0
	for _, ref := range projRefs {
		if packed >= cfg.Obs.NumProjectileObs {
			break
		}
		p := ctx.Store.Projectile(ref)
		rel := p.Pos.Sub(self.Pos)
		w.f32(float32(p.Weapon) + 1)
		w.f32(float32(p.DroneIdx) + 1)
		w.f32(mathutil.ScaleValue(rel.X, maxExtent, false))
		w.f32(mathutil.ScaleValue(rel.Y, maxExtent, false))
		packed++
	}
	for ; packed < cfg.Obs.NumProjectileObs; packed++ {
		for k := 0; k < fieldsPerProjectile; k++ {
			w.f32(0)
		}
	}

	for i := 0; i < ctx.NumDrones; i++ {
		if i == agentIdx {
			continue
		}
		enemy := &ctx.Store.Drones[i]
		packEnemy(w, self, enemy, maxExtent)
	}

	packSelf(w, self)

	stepsLeftFrac := float32(0)
	if ctx.EpisodeSteps > 0 {
		stepsLeftFrac = mathutil.Clamp01(float32(ctx.StepsLeft) / float32(ctx.EpisodeSteps))
	}
	w.f32(stepsLeftFrac)
}

func packEnemy(w *writer, self, enemy *entity.Drone, maxExtent float32) {
	rel := enemy.Pos.Sub(self.Pos)
	dist := rel.Length()
	accel := enemy.Velocity.Sub(enemy.LastVelocity)
	relNorm := rel.Normalized()
	bearing := mathutil.AngleBetween(self.LastAim, rel)

	inLOS := float32(0)
	if enemy.Idx < len(self.InLineOfSight) && self.InLineOfSight[enemy.Idx] {
		inLOS = 1
	}

	w.f32(float32(enemy.Weapon) + 1)
	w.f32(inLOS)
	w.f32(mathutil.ScaleValue(rel.X, maxExtent, false))
	w.f32(mathutil.ScaleValue(rel.Y, maxExtent, false))
	w.f32(mathutil.ScaleValue(dist, maxExtent, true))
	w.f32(mathutil.ScaleValue(enemy.Velocity.X, 600, false))
	w.f32(mathutil.ScaleValue(enemy.Velocity.Y, 600, false))
	w.f32(mathutil.ScaleValue(accel.X, 600, false))
	w.f32(mathutil.ScaleValue(accel.Y, 600, false))
	w.f32(relNorm.X)
	w.f32(relNorm.Y)
	w.f32(mathutil.ScaleValue(bearing, math.Pi, false))
	w.f32(enemy.LastAim.X)
	w.f32(enemy.LastAim.Y)
	w.f32(mathutil.ScaleValue(vecAngle(enemy.LastAim), math.Pi, false))
	w.f32(ammoFrac(enemy))
	w.f32(cooldownFrac(enemy))
	w.f32(chargeFrac(enemy))
}

func packSelf(w *writer, self *entity.Drone) {
	maxExtent := float32(2000)
	accel := self.Velocity.Sub(self.LastVelocity)
	aimAngle := vecAngle(self.LastAim)

	w.f32(float32(self.Weapon) + 1)
	w.f32(mathutil.ScaleValue(self.Pos.X, maxExtent, true))
	w.f32(mathutil.ScaleValue(self.Pos.Y, maxExtent, true))
	w.f32(mathutil.ScaleValue(self.Velocity.X, 600, false))
	w.f32(mathutil.ScaleValue(self.Velocity.Y, 600, false))
	w.f32(mathutil.ScaleValue(accel.X, 600, false))
	w.f32(mathutil.ScaleValue(accel.Y, 600, false))
	w.f32(self.LastAim.X)
	w.f32(self.LastAim.Y)
	w.f32(mathutil.ScaleValue(aimAngle, math.Pi, false))
	w.f32(ammoFrac(self))
	w.f32(cooldownFrac(self))
	w.f32(chargeFrac(self))

	hitShot, tookShot, ownShot := float32(0), float32(0), float32(0)
	for _, v := range self.StepInfo.ShotHit {
		if v != 0 {
			hitShot = 1
			break
		}
	}
	for _, v := range self.StepInfo.ShotTaken {
		if v != 0 {
			tookShot = 1
			break
		}
	}
	if self.StepInfo.OwnShotTaken {
		ownShot = 1
	}
	w.f32(hitShot)
	w.f32(tookShot)
	w.f32(ownShot)
}

// vecAngle returns v's angle in radians, or 0 for the zero vector.
func vecAngle(v mathutil.Vec2) float32 {
	if v.LengthSq() < 1e-8 {
		return 0
	}
	return float32(math.Atan2(float64(v.Y), float64(v.X)))
}

func ammoFrac(d *entity.Drone) float32 {
	if d.Ammo == weapons.InfiniteAmmo {
		return 1
	}
	// Largest non-default starting ammo (MachineGun's 40 in
	// weapons.WeaponAmmo), used as a common denominator across weapons for a
	// [0,1] ammo fraction.
	const maxClip = 40
	return mathutil.ScaleValue(float32(d.Ammo), maxClip, true)
}

func cooldownFrac(d *entity.Drone) float32 {
	info := weapons.Table[d.Weapon]
	if info.CoolDown <= 0 {
		return 0
	}
	return mathutil.ScaleValue(d.WeaponCooldown, info.CoolDown, true)
}

func chargeFrac(d *entity.Drone) float32 {
	required := weapons.WeaponCharge(d.Weapon)
	if required <= 0 {
		return 0
	}
	return mathutil.ScaleValue(d.WeaponCharge, required, true)
}

func liveFloatingWalls(store *entity.Store) []entity.Ref {
	var out []entity.Ref
	for _, ref := range store.LiveWallRefs() {
		if store.Wall(ref).Floating {
			out = append(out, ref)
		}
	}
	return out
}
