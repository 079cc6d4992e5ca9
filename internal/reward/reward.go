// Package reward implements per-substep reward shaping and the bounded
// episode log ring (LogEntry/LogBuffer), following the aggregation and
// CSV-export idiom of the teacher's telemetry package.
package reward

import (
	"log/slog"

	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

// StepContext bundles the read-only collaborators Step needs, mirroring
// observation.Context.
type StepContext struct {
	Store         *entity.Store
	Config        *config.Config
	NumDrones     int
	DefaultWeapon weapons.Kind
	RoundOver     bool
	LastAliveIdx  int // valid only when RoundOver
}

// Step computes droneIdx's shaped reward for the substep that just ran, in
// order: win, weapon pickup, shot-hit, approach, aim (+aimed shot).
func Step(ctx *StepContext, droneIdx int) float32 {
	cfg := ctx.Config
	d := &ctx.Store.Drones[droneIdx]
	var total float32

	if ctx.RoundOver && ctx.LastAliveIdx == droneIdx {
		total += cfg.Reward.Win
		d.Stats.Wins++
	}

	if d.StepInfo.PickedUpWeapon && d.StepInfo.PrevWeapon == ctx.DefaultWeapon {
		total += cfg.Reward.WeaponPickup
	}

	for _, hit := range d.StepInfo.ShotHit {
		if hit != 0 {
			total += cfg.Reward.ShotHit
		}
	}
	for _, hit := range d.StepInfo.ExplosionHit {
		if hit != 0 {
			total += cfg.Reward.ShotHit
		}
	}

	total += approachReward(ctx, droneIdx)
	total += aimReward(ctx, droneIdx)

	d.Stats.Reward += total
	return total
}

// approachReward applies the `APPROACH_REWARD_COEF · v·dir` term: always
// rewarded for shotgun-wielding drones, otherwise gated on distance beyond
// DistanceCutoff, and only while moving at more than 0.1 speed toward some
// enemy.
func approachReward(ctx *StepContext, droneIdx int) float32 {
	cfg := ctx.Config
	d := &ctx.Store.Drones[droneIdx]
	speed := d.Velocity.Length()
	if speed <= cfg.Reward.ApproachMinSpeed {
		return 0
	}
	dir := d.Velocity.Normalized()

	var best float32
	found := false
	for i := 0; i < ctx.NumDrones; i++ {
		if i == droneIdx || ctx.Store.Drones[i].Dead {
			continue
		}
		enemy := &ctx.Store.Drones[i]
		rel := enemy.Pos.Sub(d.Pos)
		dist := rel.Length()
		if d.Weapon != weapons.Shotgun && dist <= cfg.Reward.DistanceCutoff {
			continue
		}
		toward := rel.Normalized().Dot(dir)
		if !found || toward > best {
			best = toward
			found = true
		}
	}
	if !found || best <= 0 {
		return 0
	}
	return cfg.Reward.ApproachCoef * speed * best
}

// aimReward applies the `AIM_REWARD` (+ `AIMED_SHOT_REWARD`) term: at most
// once per step, when lastAim is within tolerance of the direction to a
// visible enemy.
func aimReward(ctx *StepContext, droneIdx int) float32 {
	cfg := ctx.Config
	d := &ctx.Store.Drones[droneIdx]
	if d.LastAim.LengthSq() < 1e-8 {
		return 0
	}

	for i := 0; i < ctx.NumDrones; i++ {
		if i == droneIdx || ctx.Store.Drones[i].Dead {
			continue
		}
		if i >= len(d.InLineOfSight) || !d.InLineOfSight[i] {
			continue
		}
		enemy := &ctx.Store.Drones[i]
		toEnemy := enemy.Pos.Sub(d.Pos)
		if toEnemy.LengthSq() < 1e-8 {
			continue
		}
		angle := mathutil.AngleBetween(d.LastAim, toEnemy)
		if angle <= cfg.Drone.AimLineOfSightToleranceRad {
			r := cfg.Reward.Aim
			if d.ShotThisStep {
				r += cfg.Reward.AimedShot
			}
			return r
		}
	}
	return 0
}

// LogEntry is one completed episode's aggregate record.
type LogEntry struct {
	EpisodeStep int     `csv:"episode_step"`
	MapName     string  `csv:"map"`
	NumDrones   int     `csv:"num_drones"`
	WinnerIdx   int     `csv:"winner_idx"`
	Truncated   bool    `csv:"truncated"`

	ShotsFired   int     `csv:"shots_fired"`
	ShotsHit     int     `csv:"shots_hit"`
	BurstsTotal  int     `csv:"bursts_total"`
	BurstsHit    int     `csv:"bursts_hit"`
	DistanceSum  float64 `csv:"distance_sum"`
	MeanReward   float64 `csv:"mean_reward"`
}

// LogValue implements slog.LogValuer for structured logging, matching the
// teacher's WindowStats.LogValue idiom.
func (e LogEntry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("episode_step", e.EpisodeStep),
		slog.String("map", e.MapName),
		slog.Int("num_drones", e.NumDrones),
		slog.Int("winner_idx", e.WinnerIdx),
		slog.Bool("truncated", e.Truncated),
		slog.Int("shots_fired", e.ShotsFired),
		slog.Int("shots_hit", e.ShotsHit),
		slog.Int("bursts_total", e.BurstsTotal),
		slog.Int("bursts_hit", e.BurstsHit),
		slog.Float64("distance_sum", e.DistanceSum),
		slog.Float64("mean_reward", e.MeanReward),
	)
}

// NewLogEntry builds a LogEntry from a finished episode's store: the given
// episode step, winner index and truncation flag, the shot, burst and
// distance totals summed over every drone, and the drones' mean reward.
func NewLogEntry(store *entity.Store, m *mapbank.MapEntry, episodeStep, winnerIdx int, truncated bool) LogEntry {
	e := LogEntry{
		EpisodeStep: episodeStep,
		MapName:     m.Name,
		NumDrones:   len(store.Drones),
		WinnerIdx:   winnerIdx,
		Truncated:   truncated,
	}
	var rewardSum float64
	for i := range store.Drones {
		s := &store.Drones[i].Stats
		for _, v := range s.ShotsFired {
			e.ShotsFired += v
		}
		for _, v := range s.ShotsHit {
			e.ShotsHit += v
		}
		e.BurstsTotal += s.BurstsTotal
		e.BurstsHit += s.BurstsHit
		e.DistanceSum += float64(s.DistanceTraveledSum)
		rewardSum += float64(s.Reward)
	}
	if len(store.Drones) > 0 {
		e.MeanReward = rewardSum / float64(len(store.Drones))
	}
	return e
}

// LogBuffer is a fixed-capacity ring of LogEntry, drop-on-full.
type LogBuffer struct {
	entries  []LogEntry
	capacity int
	next     int
	full     bool
}

// NewLogBuffer allocates a ring of the given capacity.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &LogBuffer{entries: make([]LogEntry, capacity), capacity: capacity}
}

// Append adds an entry, overwriting the oldest once the ring is full.
func (b *LogBuffer) Append(e LogEntry) {
	b.entries[b.next] = e
	b.next = (b.next + 1) % b.capacity
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of entries currently held.
func (b *LogBuffer) Len() int {
	if b.full {
		return b.capacity
	}
	return b.next
}

// Entries returns the currently-held entries in insertion order (oldest
// first), a copy safe for the caller to retain.
func (b *LogBuffer) Entries() []LogEntry {
	n := b.Len()
	out := make([]LogEntry, n)
	if !b.full {
		copy(out, b.entries[:n])
		return out
	}
	copy(out, b.entries[b.next:])
	copy(out[b.capacity-b.next:], b.entries[:b.next])
	return out
}

// Aggregate averages every numeric field across all currently-held entries.
func (b *LogBuffer) Aggregate() LogEntry {
	entries := b.Entries()
	n := len(entries)
	if n == 0 {
		return LogEntry{}
	}
	var agg LogEntry
	for _, e := range entries {
		agg.EpisodeStep += e.EpisodeStep
		agg.NumDrones += e.NumDrones
		agg.WinnerIdx += e.WinnerIdx
		agg.ShotsFired += e.ShotsFired
		agg.ShotsHit += e.ShotsHit
		agg.BurstsTotal += e.BurstsTotal
		agg.BurstsHit += e.BurstsHit
		agg.DistanceSum += e.DistanceSum
		agg.MeanReward += e.MeanReward
	}
	agg.EpisodeStep /= n
	agg.NumDrones /= n
	agg.WinnerIdx /= n
	agg.ShotsFired /= n
	agg.ShotsHit /= n
	agg.BurstsTotal /= n
	agg.BurstsHit /= n
	agg.DistanceSum /= float64(n)
	agg.MeanReward /= float64(n)
	return agg
}

// LogAggregate logs the ring's aggregate via slog, matching the teacher's
// WindowStats.LogStats idiom.
func (b *LogBuffer) LogAggregate() {
	agg := b.Aggregate()
	slog.Info("episode_summary",
		"episode_step", agg.EpisodeStep,
		"num_drones", agg.NumDrones,
		"shots_fired", agg.ShotsFired,
		"shots_hit", agg.ShotsHit,
		"bursts_total", agg.BurstsTotal,
		"bursts_hit", agg.BurstsHit,
		"distance_sum", agg.DistanceSum,
		"mean_reward", agg.MeanReward,
	)
}
