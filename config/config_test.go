package config

import "testing"

func TestLoadParsesEmbeddedDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned a nil Config with no error")
	}
}

func TestMustLoadDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad() panicked: %v", r)
		}
	}()
	_ = MustLoad()
}

func TestLoadPopulatesSimConfig(t *testing.T) {
	cfg := MustLoad()
	if cfg.Sim.FrameSkip <= 0 {
		t.Errorf("Sim.FrameSkip = %d, want > 0", cfg.Sim.FrameSkip)
	}
	if cfg.Sim.DeltaTime <= 0 {
		t.Errorf("Sim.DeltaTime = %v, want > 0", cfg.Sim.DeltaTime)
	}
	if cfg.Sim.Box2DSubsteps <= 0 {
		t.Errorf("Sim.Box2DSubsteps = %d, want > 0", cfg.Sim.Box2DSubsteps)
	}
	if cfg.Sim.EpisodeSteps <= 0 {
		t.Errorf("Sim.EpisodeSteps = %d, want > 0", cfg.Sim.EpisodeSteps)
	}
}

func TestLoadPopulatesDroneConfig(t *testing.T) {
	cfg := MustLoad()
	if cfg.Drone.Radius <= 0 {
		t.Errorf("Drone.Radius = %v, want > 0", cfg.Drone.Radius)
	}
	if cfg.Drone.EnergyMax <= 0 {
		t.Errorf("Drone.EnergyMax = %v, want > 0", cfg.Drone.EnergyMax)
	}
	if cfg.Drone.DroneDroneSpawnDistance <= 0 {
		t.Errorf("Drone.DroneDroneSpawnDistance = %v, want > 0", cfg.Drone.DroneDroneSpawnDistance)
	}
}

func TestLoadPopulatesObsConfig(t *testing.T) {
	cfg := MustLoad()
	if cfg.Obs.MapRows <= 0 || cfg.Obs.MapColumns <= 0 {
		t.Errorf("Obs map dimensions = (%d,%d), want both > 0", cfg.Obs.MapRows, cfg.Obs.MapColumns)
	}
}

func TestLoadPopulatesSuddenDeathConfig(t *testing.T) {
	cfg := MustLoad()
	if cfg.Sudden.MaxRings <= 0 {
		t.Errorf("Sudden.MaxRings = %d, want > 0", cfg.Sudden.MaxRings)
	}
	if cfg.Sudden.IntervalSteps <= 0 {
		t.Errorf("Sudden.IntervalSteps = %d, want > 0", cfg.Sudden.IntervalSteps)
	}
}

func TestLoadReturnsIndependentInstances(t *testing.T) {
	a := MustLoad()
	b := MustLoad()
	a.Drone.Radius = -1
	if b.Drone.Radius == a.Drone.Radius {
		t.Error("MustLoad should return a fresh Config each call, not a shared pointer")
	}
}
