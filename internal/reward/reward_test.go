package reward

import (
	"testing"

	"github.com/pthm-cable/dronearena/config"
	"github.com/pthm-cable/dronearena/internal/entity"
	"github.com/pthm-cable/dronearena/internal/mapbank"
	"github.com/pthm-cable/dronearena/internal/mathutil"
	"github.com/pthm-cable/dronearena/internal/weapons"
)

func newStepStore(numDrones int) *entity.Store {
	s := entity.NewStore(4, 4, numDrones)
	for i := range s.Drones {
		s.Drones[i] = entity.Drone{Idx: i, StepInfo: entity.NewDroneStepInfo(numDrones), InLineOfSight: make([]bool, numDrones)}
	}
	return s
}

func TestStepAwardsWinOnlyToLastAlive(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(2)
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 2, RoundOver: true, LastAliveIdx: 0}

	got := Step(ctx, 0)
	if got < cfg.Reward.Win {
		t.Errorf("winner's reward should include the win bonus, got %v", got)
	}
	if store.Drones[0].Stats.Wins != 1 {
		t.Error("winner's Stats.Wins should increment")
	}

	got1 := Step(ctx, 1)
	if got1 != 0 {
		t.Errorf("the non-winner should not receive the win bonus, got %v", got1)
	}
}

func TestStepAwardsWeaponPickupOnlyFromDefault(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(1)
	store.Drones[0].StepInfo.PickedUpWeapon = true
	store.Drones[0].StepInfo.PrevWeapon = weapons.Standard
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 1, DefaultWeapon: weapons.Standard}

	got := Step(ctx, 0)
	if got != cfg.Reward.WeaponPickup {
		t.Errorf("reward = %v, want exactly the pickup bonus %v", got, cfg.Reward.WeaponPickup)
	}
}

func TestStepSkipsWeaponPickupRewardWhenNotFromDefault(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(1)
	store.Drones[0].StepInfo.PickedUpWeapon = true
	store.Drones[0].StepInfo.PrevWeapon = weapons.Sniper
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 1, DefaultWeapon: weapons.Standard}

	if got := Step(ctx, 0); got != 0 {
		t.Errorf("a pickup while already off-default should not reward, got %v", got)
	}
}

func TestStepAccumulatesShotHitReward(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(2)
	store.Drones[0].StepInfo.ShotHit[1] = uint8(weapons.MachineGun) + 1
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 2}

	if got := Step(ctx, 0); got != cfg.Reward.ShotHit {
		t.Errorf("reward = %v, want exactly the shot-hit bonus %v", got, cfg.Reward.ShotHit)
	}
}

func TestApproachRewardZeroBelowMinSpeed(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(2)
	store.Drones[0].Velocity = mathutil.Vec2{X: cfg.Reward.ApproachMinSpeed / 2}
	store.Drones[1].Pos = mathutil.Vec2{X: 100}
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 2}

	if got := approachReward(ctx, 0); got != 0 {
		t.Errorf("below min speed, approach reward should be 0, got %v", got)
	}
}

func TestApproachRewardPositiveWhenMovingTowardEnemy(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(2)
	store.Drones[0].Velocity = mathutil.Vec2{X: cfg.Reward.ApproachMinSpeed * 10}
	store.Drones[0].Weapon = weapons.Shotgun // bypasses the distance cutoff gate
	store.Drones[1].Pos = mathutil.Vec2{X: 100}
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 2}

	if got := approachReward(ctx, 0); got <= 0 {
		t.Errorf("moving directly toward an enemy should yield a positive approach reward, got %v", got)
	}
}

func TestAimRewardRequiresLineOfSight(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(2)
	store.Drones[0].LastAim = mathutil.Vec2{X: 1}
	store.Drones[1].Pos = mathutil.Vec2{X: 100}
	// InLineOfSight left false for drone 1.
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 2}

	if got := aimReward(ctx, 0); got != 0 {
		t.Errorf("aim reward should require line of sight, got %v", got)
	}
}

func TestAimRewardIncludesAimedShotBonusWhenFiring(t *testing.T) {
	cfg := config.MustLoad()
	store := newStepStore(2)
	store.Drones[0].LastAim = mathutil.Vec2{X: 1}
	store.Drones[0].ShotThisStep = true
	store.Drones[0].InLineOfSight[1] = true
	store.Drones[1].Pos = mathutil.Vec2{X: 100}
	ctx := &StepContext{Store: store, Config: cfg, NumDrones: 2}

	got := aimReward(ctx, 0)
	want := cfg.Reward.Aim + cfg.Reward.AimedShot
	if got != want {
		t.Errorf("aim reward = %v, want %v (aim + aimed-shot bonus)", got, want)
	}
}

func TestNewLogEntryAggregatesAcrossDrones(t *testing.T) {
	store := newStepStore(2)
	store.Drones[0].Stats.ShotsFired[weapons.MachineGun] = 3
	store.Drones[1].Stats.ShotsFired[weapons.Sniper] = 2
	store.Drones[0].Stats.Reward = 1.5
	store.Drones[1].Stats.Reward = 2.5
	m := &mapbank.MapEntry{Name: "test_map"}

	e := NewLogEntry(store, m, 120, 0, false)
	if e.ShotsFired != 5 {
		t.Errorf("ShotsFired = %d, want 5", e.ShotsFired)
	}
	if e.MeanReward != 2.0 {
		t.Errorf("MeanReward = %v, want 2.0", e.MeanReward)
	}
	if e.MapName != "test_map" {
		t.Errorf("MapName = %q, want test_map", e.MapName)
	}
}

func TestLogBufferDropsOldestWhenFull(t *testing.T) {
	b := NewLogBuffer(2)
	b.Append(LogEntry{EpisodeStep: 1})
	b.Append(LogEntry{EpisodeStep: 2})
	b.Append(LogEntry{EpisodeStep: 3})

	entries := b.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected capacity-bounded length 2, got %d", len(entries))
	}
	if entries[0].EpisodeStep != 2 || entries[1].EpisodeStep != 3 {
		t.Errorf("expected the oldest entry dropped, got %+v", entries)
	}
}

func TestLogBufferLenTracksInsertionsBeforeFull(t *testing.T) {
	b := NewLogBuffer(5)
	if b.Len() != 0 {
		t.Fatalf("a fresh buffer should report Len 0, got %d", b.Len())
	}
	b.Append(LogEntry{})
	b.Append(LogEntry{})
	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2", b.Len())
	}
}

func TestLogBufferAggregateAveragesNumericFields(t *testing.T) {
	b := NewLogBuffer(4)
	b.Append(LogEntry{ShotsFired: 10, MeanReward: 1})
	b.Append(LogEntry{ShotsFired: 20, MeanReward: 3})

	agg := b.Aggregate()
	if agg.ShotsFired != 15 {
		t.Errorf("aggregate ShotsFired = %d, want 15", agg.ShotsFired)
	}
	if agg.MeanReward != 2 {
		t.Errorf("aggregate MeanReward = %v, want 2", agg.MeanReward)
	}
}

func TestLogBufferAggregateEmptyIsZeroValue(t *testing.T) {
	b := NewLogBuffer(4)
	if got := b.Aggregate(); got != (LogEntry{}) {
		t.Errorf("aggregate of an empty buffer should be the zero value, got %+v", got)
	}
}
