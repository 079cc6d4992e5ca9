// Action decoding: both the continuous and discrete encodings collapse to
// the same DecodedAction before anything downstream ever sees them.
package env

import (
	"math"

	"github.com/pthm-cable/dronearena/internal/mathutil"
)

// actionNoopMagnitude is the minimum move/aim vector length treated as
// intentional input; anything shorter is snapped to the zero vector.
// original_source/src/env.h names this ACTION_NOOP_MAGNITUDE but its value
// lives in a header outside the retained source subset.
const actionNoopMagnitude = 0.1

// ContinuousActionSize is the per-drone width of the continuous action
// buffer: moveX, moveY, aimX, aimY, shoot.
const ContinuousActionSize = 5

// DiscreteActionSize is the per-drone width of the discrete action buffer:
// move, aim, shoot.
const DiscreteActionSize = 3

// compassTable maps discrete direction indices 0-7 to unit vectors at 45
// degree increments. original_source/src/env.h's discToContActionMap table
// lives outside the retained source subset; this is a standard evenly-spaced
// 8-direction substitute, starting due east and proceeding counterclockwise.
var compassTable = buildCompassTable()

func buildCompassTable() [8]mathutil.Vec2 {
	var table [8]mathutil.Vec2
	for i := range table {
		theta := float64(i) * math.Pi / 4
		table[i] = mathutil.Vec2{X: float32(math.Cos(theta)), Y: float32(math.Sin(theta))}
	}
	return table
}

// DecodedAction is the engine-internal action shape every encoding decodes
// into before drive/shoot intents are applied.
type DecodedAction struct {
	Move  mathutil.Vec2
	Aim   mathutil.Vec2
	Shoot bool
}

// decodeContinuous decodes one drone's slice of the continuous action
// buffer: moveX, moveY, aimX, aimY are passed through tanh, shoot fires
// above 0.5.
func decodeContinuous(a []float32) DecodedAction {
	move := mathutil.Vec2{X: tanh32(a[0]), Y: tanh32(a[1])}
	aim := mathutil.Vec2{X: tanh32(a[2]), Y: tanh32(a[3])}
	return finishDecode(move, aim, a[4] > 0.5)
}

// decodeDiscrete decodes one drone's discrete action triple: move and aim
// each index compassTable, 8 meaning no-op; shoot is 0/1.
func decodeDiscrete(move, aim, shoot int32) DecodedAction {
	var moveVec, aimVec mathutil.Vec2
	if move >= 0 && move < 8 {
		moveVec = compassTable[move]
	}
	if aim >= 0 && aim < 8 {
		aimVec = compassTable[aim]
	}
	return finishDecode(moveVec, aimVec, shoot != 0)
}

// finishDecode applies the shared clamp/normalize rules
// (original_source/src/env.h's _computeActions): move is left alone below
// unit length and clamped to the unit disc above it, snapping to zero below
// the noop threshold; aim is either zero or a unit vector, never partial.
func finishDecode(move, aim mathutil.Vec2, shoot bool) DecodedAction {
	if move.LengthSq() > 1 {
		move = move.Normalized()
	} else if move.Length() < actionNoopMagnitude {
		move = mathutil.Vec2{}
	}

	if aim.Length() < actionNoopMagnitude {
		aim = mathutil.Vec2{}
	} else {
		aim = aim.Normalized()
	}

	return DecodedAction{Move: move, Aim: aim, Shoot: shoot}
}

func tanh32(v float32) float32 { return float32(math.Tanh(float64(v))) }
