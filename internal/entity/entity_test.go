package entity

import "testing"

func TestCellIndexRoundTrip(t *testing.T) {
	s := NewStore(5, 4, 2)
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			idx := s.CellIndex(row, col)
			gotRow, gotCol := s.CellRowCol(idx)
			if gotRow != row || gotCol != col {
				t.Errorf("CellIndex(%d,%d)=%d, CellRowCol back = (%d,%d)", row, col, idx, gotRow, gotCol)
			}
		}
	}
}

func TestWallCreateDestroyClearsCellOccupant(t *testing.T) {
	s := NewStore(3, 3, 2)
	ref := s.CreateWall(Wall{CellIdx: 4})
	s.SetCellOccupant(4, ref)

	if !s.Cells[4].Occupied || s.Cells[4].Occupant != ref {
		t.Fatal("expected cell 4 occupied by the new wall")
	}

	s.DestroyWall(ref)
	if s.Cells[4].Occupied {
		t.Error("DestroyWall should clear its cell occupant")
	}
}

func TestWallFreeListRecycling(t *testing.T) {
	s := NewStore(3, 3, 2)
	a := s.CreateWall(Wall{CellIdx: 0})
	s.SetCellOccupant(0, a)
	s.DestroyWall(a)

	b := s.CreateWall(Wall{CellIdx: 1})
	if b.Index != a.Index {
		t.Errorf("expected recycled slot %d, got %d", a.Index, b.Index)
	}
}

func TestDestroyWallDoesNotClearUnrelatedOccupant(t *testing.T) {
	s := NewStore(3, 3, 2)
	a := s.CreateWall(Wall{CellIdx: 0})
	s.SetCellOccupant(0, a)

	b := s.CreateWall(Wall{CellIdx: 0})
	// b never claims cell 0's occupant slot (a still holds it); destroying b
	// must not disturb a's back-reference.
	s.DestroyWall(b)

	if !s.Cells[0].Occupied || s.Cells[0].Occupant != a {
		t.Error("destroying an unrelated wall must not clear another wall's cell occupant")
	}
}

func TestPickupDestroyDisabledSkipsCellClear(t *testing.T) {
	s := NewStore(3, 3, 2)
	ref := s.CreatePickup(WeaponPickup{CellIdx: 2, BodyDestroyed: true})
	// A disabled (respawn-pending) pickup already cleared its cell when it
	// was collected; DestroyPickup must not touch a cell it no longer owns.
	s.SetCellOccupant(2, Ref{KindWall, 0})
	s.DestroyPickup(ref)

	if !s.Cells[2].Occupied {
		t.Error("DestroyPickup must not clear a cell it no longer owns when BodyDestroyed")
	}
}

func TestShieldDestroyClearsDroneShieldRef(t *testing.T) {
	s := NewStore(3, 3, 2)
	ref := s.CreateShield(Shield{DroneIdx: 1})
	s.Drones[1].ShieldRef = ref

	s.DestroyShield(ref)
	if !s.Drones[1].ShieldRef.IsNone() {
		t.Error("DestroyShield should clear the owning drone's ShieldRef")
	}
}

func TestLiveRefsSkipDestroyed(t *testing.T) {
	s := NewStore(3, 3, 2)
	a := s.CreateWall(Wall{CellIdx: 0})
	s.CreateWall(Wall{CellIdx: 1})
	s.DestroyWall(a)

	live := s.LiveWallRefs()
	if len(live) != 1 {
		t.Fatalf("expected 1 live wall, got %d", len(live))
	}
	if live[0] == a {
		t.Error("destroyed wall ref should not appear in LiveWallRefs")
	}
}

func TestDroneStepInfoClear(t *testing.T) {
	info := NewDroneStepInfo(3)
	info.FiredShot = true
	info.PickedUpWeapon = true
	info.OwnShotTaken = true
	info.ShotHit[1] = 5
	info.ExplosionTaken[2] = 3

	info.Clear()

	if info.FiredShot || info.PickedUpWeapon || info.OwnShotTaken {
		t.Error("Clear should reset all bool flags")
	}
	for i, v := range info.ShotHit {
		if v != 0 {
			t.Errorf("ShotHit[%d] should be cleared, got %d", i, v)
		}
	}
	for i, v := range info.ExplosionTaken {
		if v != 0 {
			t.Errorf("ExplosionTaken[%d] should be cleared, got %d", i, v)
		}
	}
}

func TestIsNone(t *testing.T) {
	if !NoRef.IsNone() {
		t.Error("NoRef.IsNone() should be true")
	}
	if (Ref{KindDrone, 0}).IsNone() {
		t.Error("a zero-index drone ref is still a valid reference, not none")
	}
}
