package services

import (
	"errors"
	"testing"
)

func TestDecodePayloadInvalidJSON(t *testing.T) {
	_, err := DecodePayload([]byte(`{"provider": `))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload, got %v", err)
	}
}

func TestNormalizeMissingProvider(t *testing.T) {
	raw := &RawPayload{
		Map: &RawMap{Name: "de_dust2", Mode: "competitive", Phase: "live"},
	}
	_, err := Normalize(raw)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload for missing provider, got %v", err)
	}
}

func TestNormalizeMissingMap(t *testing.T) {
	raw := &RawPayload{
		Provider: &RawProvider{Timestamp: 1700000000, SteamID: "765"},
	}
	_, err := Normalize(raw)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload for missing map, got %v", err)
	}
}

func TestIsMenuPayload(t *testing.T) {
	body := []byte(`{
		"auth": {"token": "secret"},
		"provider": {"timestamp": 1700000000, "steamid": "765"},
		"player": {"steamid": "765", "activity": "menu"}
	}`)
	raw, err := DecodePayload(body)
	if err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}
	if !raw.IsMenuPayload() {
		t.Error("Expected menu payload to be detected")
	}
	if raw.AuthToken() != "secret" {
		t.Errorf("Expected token 'secret', got '%s'", raw.AuthToken())
	}
}

func TestNormalizeFullPayload(t *testing.T) {
	clip := 20
	raw := &RawPayload{
		Provider: &RawProvider{Timestamp: 1700000000, SteamID: "765"},
		Map: &RawMap{
			Mode: "competitive", Name: "de_inferno", Phase: "live", Round: 5,
			TeamCT: &RawTeamInfo{Score: 3}, TeamT: &RawTeamInfo{Score: 2},
		},
		Round: &RawRound{Phase: "live"},
		Player: &RawPlayer{
			SteamID: "765", Name: "player1",
			State: &RawPlayerState{Health: 100, Money: 4500},
			Weapons: map[string]*RawWeapon{
				"weapon_0": {Name: "weapon_knife", State: "holstered"},
				"weapon_1": {Name: "weapon_ak47", Type: "Rifle", State: "active", AmmoClip: &clip},
			},
		},
	}

	snap, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if snap.Match.Round != 5 || snap.Match.TeamCTScore != 3 || snap.Match.TeamTScore != 2 {
		t.Errorf("Unexpected match snapshot: %+v", snap.Match)
	}
	if !snap.IsOwnerPlaying() {
		t.Error("Expected owner to be playing")
	}
	if snap.Player.Team != "SPEC" {
		t.Errorf("Expected missing team to default to SPEC, got '%s'", snap.Player.Team)
	}

	knife := snap.Player.Weapons["weapon_0"]
	if knife.Category != "Other" {
		t.Errorf("Expected knife category to default to Other, got '%s'", knife.Category)
	}
	if knife.AmmoClip != nil {
		t.Error("Expected knife ammo to stay nil")
	}
	if knife.Paintkit != "default" {
		t.Errorf("Expected paintkit to default to 'default', got '%s'", knife.Paintkit)
	}

	ak := snap.Player.Weapons["weapon_1"]
	if ak.AmmoClip == nil || *ak.AmmoClip != 20 {
		t.Errorf("Expected ak ammo_clip 20, got %v", ak.AmmoClip)
	}
}

func TestNormalizeDropsSpectatorFragment(t *testing.T) {
	raw := &RawPayload{
		Provider: &RawProvider{Timestamp: 1700000000, SteamID: "765"},
		Map:      &RawMap{Mode: "competitive", Name: "de_dust2", Phase: "live"},
		Player:   &RawPlayer{Name: "ghost"}, // 缺 steamid 和 state
	}

	snap, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if snap.Player != nil {
		t.Error("Expected incomplete player block to be dropped")
	}
}

func TestNormalizeSpectatedTarget(t *testing.T) {
	raw := &RawPayload{
		Provider: &RawProvider{Timestamp: 1700000000, SteamID: "765"},
		Map:      &RawMap{Mode: "competitive", Name: "de_dust2", Phase: "live"},
		Player: &RawPlayer{
			SteamID: "999", Name: "someone_else", Team: "T",
			State: &RawPlayerState{Health: 80},
		},
	}

	snap, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if snap.Player == nil {
		t.Fatal("Expected spectated player to survive normalization")
	}
	if snap.IsOwnerPlaying() {
		t.Error("Expected IsOwnerPlaying to be false for spectated target")
	}
}
