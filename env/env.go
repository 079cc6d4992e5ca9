// Package env implements the external-facing facade: Init/Reset/Step/
// Terminated/Destroy plus the step orchestrator that sequences every
// subsystem once per frameskip substep. It owns the physics world, entity
// store, and every per-episode controller, and borrows the caller-owned
// obs/action/reward/terminal buffers for the duration of a call.
package env

import (
	"fmt"

	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/explosion"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/observation"
	"github.com/pthm-cable/dronearena/internal/physics"
	"github.com/pthm-cable/dronearena/internal/reward"
	"github.com/pthm-cable/dronearena/internal/spawner"
	"github.com/pthm-cable/dronearena/internal/suddendeath"
)

// Env is one arena instance. A single Env is never shared across
// goroutines; vectorized training runs many disjoint Envs instead.
type Env struct {
	Cfg *config.Config

	NumDrones  int
	NumAgents  int
	Discretize bool
	IsTraining bool
	Seed       uint64

	// Obs, ContActions/DiscActions, Rewards, Terminals, Truncations are
	// owned by the caller and borrowed for the duration of Step/Reset.
	Obs         []byte
	ContActions []float32
	DiscActions []int32
	Rewards     []float32
	Terminals   []uint8
	Truncations []uint8
	Logs        *reward.LogBuffer

	obsStride int

	rng           *mathutil.RNG
	world         *physics.World
	store         *entity.Store
	mapEntry      *mapbank.MapEntry
	wallIndex     *mapbank.WallIndex
	explosionEng  *explosion.Engine
	suddenDeath   suddendeath.Controller
	pickupWeights spawner.PickupWeights

	stepsLeft    int
	episodeSteps int
	suddenLeft   int
	episodeStep  int
	needsReset   bool

	// droneCellIdx mirrors each live drone's current Cells grid index so
	// reconcile can clear the old entry before writing the new one; drones
	// carry no CellIdx field of their own (entity.Drone, unlike Wall/
	// WeaponPickup, has no static home cell).
	droneCellIdx []int
}

// Init constructs a new Env. Buffers must already be sized per
// ObsBytes/numAgents*actionWidth/numAgents by the caller; Init does not
// allocate them.
func Init(
	numDrones, numAgents int,
	discretizeActions bool,
	obs []byte,
	contActions []float32,
	discActions []int32,
	rewards []float32,
	terminals, truncations []uint8,
	logs *reward.LogBuffer,
	seed uint64,
	isTraining bool,
) *Env {
	if numDrones < 2 || numDrones > 4 {
		panic(fmt.Sprintf("env: numDrones must be 2..4, got %d", numDrones))
	}
	if numAgents < 1 || numAgents > numDrones {
		panic(fmt.Sprintf("env: numAgents must be 1..numDrones, got %d", numAgents))
	}
	cfg := config.MustLoad()
	e := &Env{
		Cfg:          cfg,
		NumDrones:    numDrones,
		NumAgents:    numAgents,
		Discretize:   discretizeActions,
		IsTraining:   isTraining,
		Seed:         seed,
		Obs:          obs,
		ContActions:  contActions,
		DiscActions:  discActions,
		Rewards:      rewards,
		Terminals:    terminals,
		Truncations:  truncations,
		Logs:         logs,
		obsStride:    observation.ObsBytes(cfg, numDrones),
		episodeSteps: cfg.Sim.EpisodeSteps,
	}
	e.Reset()
	return e
}

// ObsBytes returns the per-agent observation buffer width this Env was
// configured with.
func (e *Env) ObsBytes() int { return e.obsStride }

// Terminated reports whether agentIdx's episode ended this step, either by
// death/round-over (Terminals) or single-agent timeout (Truncations).
func (e *Env) Terminated(agentIdx int) bool {
	if agentIdx < 0 || agentIdx >= e.NumAgents {
		return false
	}
	return e.Terminals[agentIdx] != 0 || e.Truncations[agentIdx] != 0
}

// Destroy releases the Env's world and store references. There is no
// explicit physics-engine teardown call in this façade; dropping every
// reference here is sufficient for the Go runtime to reclaim it.
func (e *Env) Destroy() {
	e.world = nil
	e.store = nil
	e.mapEntry = nil
	e.wallIndex = nil
	e.explosionEng = nil
}
