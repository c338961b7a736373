package services

import "testing"

func TestDiffMatchNoChanges(t *testing.T) {
	a := &MatchSnapshot{Mode: "competitive", MapName: "de_dust2", Phase: "live", Round: 3, TeamCTScore: 2, TeamTScore: 1}
	b := *a

	if changes := DiffMatch(a, &b); len(changes) != 0 {
		t.Errorf("Expected no changes for identical snapshots, got %v", changes)
	}
}

func TestDiffMatchFirstAppearance(t *testing.T) {
	cur := &MatchSnapshot{Mode: "competitive", MapName: "de_dust2", Phase: "warmup"}

	changes := DiffMatch(nil, cur)
	if len(changes) != 6 {
		t.Fatalf("Expected 6 changes on first appearance, got %d", len(changes))
	}
	for _, c := range changes {
		if c.Old != nil {
			t.Errorf("Expected Old to be nil on first appearance, got %v for %s", c.Old, c.Field)
		}
	}
}

func TestDiffMatchScoreChange(t *testing.T) {
	prev := &MatchSnapshot{Mode: "competitive", MapName: "de_dust2", Phase: "live", Round: 3, TeamCTScore: 2}
	cur := &MatchSnapshot{Mode: "competitive", MapName: "de_dust2", Phase: "live", Round: 3, TeamCTScore: 3}

	changes := DiffMatch(prev, cur)
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(changes))
	}
	if changes[0].Field != "team_ct_score" || changes[0].Old != 2 || changes[0].New != 3 {
		t.Errorf("Unexpected change: %+v", changes[0])
	}
}

func TestDiffPlayerHealthAndKills(t *testing.T) {
	prev := &PlayerSnapshot{SteamID: "765", Team: "CT", Health: 100, Money: 4500}
	cur := &PlayerSnapshot{SteamID: "765", Team: "CT", Health: 62, Money: 4500, RoundKills: 1}

	changes := DiffPlayer(prev, cur)
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d: %v", len(changes), changes)
	}
}

func TestDiffWeaponNilAmmo(t *testing.T) {
	// 近战武器两边都没有弹药字段，不算变化
	prev := &WeaponSnapshot{Name: "weapon_knife", State: "holstered"}
	cur := &WeaponSnapshot{Name: "weapon_knife", State: "holstered"}

	if changes := DiffWeapon(prev, cur); len(changes) != 0 {
		t.Errorf("Expected no changes for knives without ammo, got %v", changes)
	}
}

func TestDiffWeaponAmmoAppears(t *testing.T) {
	clip := 30
	prev := &WeaponSnapshot{Name: "weapon_ak47", State: "active"}
	cur := &WeaponSnapshot{Name: "weapon_ak47", State: "active", AmmoClip: &clip}

	changes := DiffWeapon(prev, cur)
	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(changes))
	}
	if changes[0].Field != "ammo_clip" || changes[0].Old != nil || changes[0].New != 30 {
		t.Errorf("Unexpected change: %+v", changes[0])
	}
}

func TestDiffWeaponStateTransition(t *testing.T) {
	clipA, clipB := 30, 24
	prev := &WeaponSnapshot{Name: "weapon_ak47", State: "active", AmmoClip: &clipA}
	cur := &WeaponSnapshot{Name: "weapon_ak47", State: "holstered", AmmoClip: &clipB}

	changes := DiffWeapon(prev, cur)
	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d: %v", len(changes), changes)
	}
}

func TestMatchStatsChanged(t *testing.T) {
	prev := &PlayerSnapshot{SteamID: "765", MatchKills: 5, MatchScore: 12}
	same := &PlayerSnapshot{SteamID: "765", MatchKills: 5, MatchScore: 12}
	bumped := &PlayerSnapshot{SteamID: "765", MatchKills: 6, MatchScore: 14}

	if MatchStatsChanged(prev, same) {
		t.Error("Expected unchanged stats to report false")
	}
	if !MatchStatsChanged(prev, bumped) {
		t.Error("Expected bumped stats to report true")
	}
	if !MatchStatsChanged(nil, same) {
		t.Error("Expected first appearance to report true")
	}
}
