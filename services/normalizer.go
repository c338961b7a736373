package services

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPayload 请求体无法解码或缺少必需字段
var ErrMalformedPayload = errors.New("malformed payload")

// DecodePayload 解码原始请求体。未知字段忽略，JSON 损坏视为 MalformedPayload
func DecodePayload(body []byte) (*RawPayload, error) {
	var raw RawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &raw, nil
}

// Normalize 把原始载荷转换为规范化快照。
// provider 时间戳和 map 块是必需的；其余字段缺失时取零值或 nil，
// 可选弹药字段保持 nil 以免污染后续的差分计算。无副作用。
func Normalize(raw *RawPayload) (*Snapshot, error) {
	if raw.Provider == nil || raw.Provider.Timestamp == 0 {
		return nil, fmt.Errorf("%w: missing provider timestamp", ErrMalformedPayload)
	}
	if raw.Map == nil {
		return nil, fmt.Errorf("%w: missing map block", ErrMalformedPayload)
	}

	snap := &Snapshot{
		Timestamp:    raw.Provider.Timestamp,
		OwnerSteamID: raw.Provider.SteamID,
		Match:        normalizeMatch(raw.Map),
	}

	if raw.Round != nil {
		snap.Round = &RoundSnapshot{
			Phase:   raw.Round.Phase,
			WinTeam: raw.Round.WinTeam,
			Bomb:    raw.Round.Bomb,
		}
	}

	if player := normalizePlayer(raw.Player); player != nil {
		snap.Player = player
	}

	return snap, nil
}

func normalizeMatch(m *RawMap) MatchSnapshot {
	match := MatchSnapshot{
		Mode:    m.Mode,
		MapName: m.Name,
		Phase:   m.Phase,
		Round:   m.Round,
	}
	if m.TeamCT != nil {
		match.TeamCTScore = m.TeamCT.Score
	}
	if m.TeamT != nil {
		match.TeamTScore = m.TeamT.Score
	}
	return match
}

func normalizePlayer(p *RawPlayer) *PlayerSnapshot {
	// player 块可选；缺 steamid 或 state 的观战残片直接丢弃
	if p == nil || p.SteamID == "" || p.State == nil {
		return nil
	}

	player := &PlayerSnapshot{
		SteamID:    p.SteamID,
		Name:       p.Name,
		Team:       p.Team,
		Health:     p.State.Health,
		Armor:      p.State.Armor,
		Money:      p.State.Money,
		EquipValue: p.State.EquipValue,
		RoundKills: p.State.RoundKills,
		Weapons:    make(map[string]WeaponSnapshot, len(p.Weapons)),
	}
	if player.Team == "" {
		player.Team = "SPEC"
	}

	if stats := p.MatchStats; stats != nil {
		player.MatchKills = stats.Kills
		player.MatchDeaths = stats.Deaths
		player.MatchAssists = stats.Assists
		player.MatchMVPs = stats.MVPs
		player.MatchScore = stats.Score
	}

	for slot, w := range p.Weapons {
		if w == nil || w.Name == "" {
			continue
		}
		player.Weapons[slot] = normalizeWeapon(w)
	}

	return player
}

func normalizeWeapon(w *RawWeapon) WeaponSnapshot {
	weapon := WeaponSnapshot{
		Name:        w.Name,
		Category:    w.Type,
		State:       w.State,
		AmmoClip:    w.AmmoClip,
		AmmoClipMax: w.AmmoClipMax,
		AmmoReserve: w.AmmoReserve,
		Paintkit:    w.Paintkit,
	}
	// zeus x11 等武器不带 type，归入 Other
	if weapon.Category == "" {
		weapon.Category = "Other"
	}
	if weapon.Paintkit == "" {
		weapon.Paintkit = "default"
	}
	return weapon
}
