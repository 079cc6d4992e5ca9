// Package config loads the simulation's tunable constants from an embedded
// YAML document, following the teacher's go:embed + yaml.v3 pattern.
package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable constant referenced by the simulation's
// component design and external-interface contracts.
type Config struct {
	Sim     SimConfig         `yaml:"sim"`
	Drone   DroneConfig       `yaml:"drone"`
	Weapon  WeaponConfig      `yaml:"weapon"`
	Explode ExplosionConfig   `yaml:"explosion"`
	Sudden  SuddenDeathConfig `yaml:"sudden_death"`
	Spawn   SpawnConfig       `yaml:"spawn"`
	Obs     ObsConfig         `yaml:"observation"`
	Reward  RewardConfig      `yaml:"reward"`
	Log     LogConfig         `yaml:"log"`
}

// SimConfig controls time advancement and the physics solver.
type SimConfig struct {
	DeltaTime     float32 `yaml:"delta_time"`
	FrameSkip     int     `yaml:"frame_skip"`
	Box2DSubsteps int     `yaml:"box2d_substeps"`
	EpisodeSteps  int     `yaml:"episode_steps"`
}

// DroneConfig controls drone movement, energy, and shield constants.
type DroneConfig struct {
	Radius                     float32 `yaml:"radius"`
	MoveMagnitude              float32 `yaml:"move_magnitude"`
	MoveAimCoef                float32 `yaml:"move_aim_coef"`
	LinearDamping              float32 `yaml:"linear_damping"`
	BrakeDampingCoef           float32 `yaml:"brake_damping_coef"`
	BrakeDrainRate             float32 `yaml:"brake_drain_rate"`
	EnergyMax                  float32 `yaml:"energy_max"`
	EnergyRefillWait           float32 `yaml:"energy_refill_wait"`
	EnergyRefillEmptyWait      float32 `yaml:"energy_refill_empty_wait"`
	EnergyRefillRate           float32 `yaml:"energy_refill_rate"`
	BurstChargeRate            float32 `yaml:"burst_charge_rate"`
	BurstChargeBaseCost        float32 `yaml:"burst_charge_base_cost"`
	BurstRadiusBase            float32 `yaml:"burst_radius_base"`
	BurstRadiusMin             float32 `yaml:"burst_radius_min"`
	BurstImpactBase            float32 `yaml:"burst_impact_base"`
	BurstImpactMin             float32 `yaml:"burst_impact_min"`
	BurstCooldown              float32 `yaml:"burst_cooldown"`
	WeaponDiscardCost          float32 `yaml:"weapon_discard_cost"`
	ShieldInitialDuration      float32 `yaml:"shield_initial_duration"`
	ShieldInitialHealth        float32 `yaml:"shield_initial_health"`
	ShieldBufferRadius         float32 `yaml:"shield_buffer_radius"`
	DroneDroneSpawnDistance    float32 `yaml:"drone_drone_spawn_distance"`
	MinSpawnDistance           float32 `yaml:"min_spawn_distance"`
	AimLineOfSightToleranceRad float32 `yaml:"aim_line_of_sight_tolerance_rad"`
}

// WeaponConfig controls constants shared across weapon behavior not already
// carried per-weapon in internal/weapons.Table.
type WeaponConfig struct {
	AcceleratorMaxSpeed float32 `yaml:"accelerator_max_speed"`
}

// ExplosionConfig controls the explosion side effect shared by every weapon:
// the shooter's energy refill on an enemy hit.
type ExplosionConfig struct {
	EnergyRefillCoef float32 `yaml:"energy_refill_coef"`
}

// SuddenDeathConfig controls ring placement cadence.
type SuddenDeathConfig struct {
	IntervalSteps int `yaml:"interval_steps"`
	MaxRings      int `yaml:"max_rings"`
}

// SpawnConfig controls the spawner's rejection distances.
type SpawnConfig struct {
	PickupSpawnDistance float32 `yaml:"pickup_spawn_distance"`
	MaxFindAttempts     int     `yaml:"max_find_attempts"`
}

// ObsConfig controls the observation packer's window size and entity caps.
type ObsConfig struct {
	MapRows          int `yaml:"map_rows"`
	MapColumns       int `yaml:"map_columns"`
	NumNearestWalls  int `yaml:"num_nearest_walls"`
	MaxFloatingWalls int `yaml:"max_floating_walls"`
	MaxPickups       int `yaml:"max_pickups"`
	NumProjectileObs int `yaml:"num_projectile_obs"`
}

// RewardConfig controls per-substep reward shaping coefficients.
type RewardConfig struct {
	Win              float32 `yaml:"win"`
	WeaponPickup     float32 `yaml:"weapon_pickup"`
	ShotHit          float32 `yaml:"shot_hit"`
	ApproachCoef     float32 `yaml:"approach_coef"`
	Aim              float32 `yaml:"aim"`
	AimedShot        float32 `yaml:"aimed_shot"`
	DistanceCutoff   float32 `yaml:"distance_cutoff"`
	ApproachMinSpeed float32 `yaml:"approach_min_speed"`
}

// LogConfig sizes the bounded per-episode log ring.
type LogConfig struct {
	Capacity int `yaml:"capacity"`
}

// Load parses the embedded defaults document into a Config.
func Load() (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		return nil, fmt.Errorf("config: parse defaults: %w", err)
	}
	return &c, nil
}

// MustLoad is Load, panicking on failure. The embedded document is checked
// in; a parse failure here means the module itself is broken.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}
