package database

import (
	"time"
)

// Match 一场比赛
type Match struct {
	MatchID        string     `db:"match_id"`
	GameMode       string     `db:"game_mode"`
	MapName        string     `db:"map_name"`
	StartTimestamp time.Time  `db:"start_timestamp"`
	EndTimestamp   *time.Time `db:"end_timestamp"`
	RoundsPlayed   int        `db:"rounds_played"`
	TeamCTScore    int        `db:"team_ct_score"`
	TeamTScore     int        `db:"team_t_score"`
}

// Round 比赛中的一个回合
type Round struct {
	MatchID      string  `db:"match_id"`
	RoundNumber  int     `db:"round_number"`
	Phase        string  `db:"phase"`
	WinningTeam  *string `db:"winning_team"`
	WinCondition *string `db:"win_condition"`
}

// PlayerRoundState 回合结束时的玩家状态
type PlayerRoundState struct {
	MatchID     string `db:"match_id"`
	RoundNumber int    `db:"round_number"`
	SteamID     string `db:"steam_id"`
	Health      int    `db:"health"`
	Armor       int    `db:"armor"`
	Money       int    `db:"money"`
	EquipValue  int    `db:"equip_value"`
	RoundKills  int    `db:"round_kills"`
}

// PlayerWeapon 回合内玩家持有的武器
type PlayerWeapon struct {
	MatchID     string `db:"match_id"`
	RoundNumber int    `db:"round_number"`
	SteamID     string `db:"steam_id"`
	WeaponID    int    `db:"weapon_id"`
	State       string `db:"state"`
	AmmoClip    *int   `db:"ammo_clip"`
	AmmoReserve *int   `db:"ammo_reserve"`
	Paintkit    string `db:"paintkit"`
}

// PlayerMatchStat 玩家整场比赛的累计统计
type PlayerMatchStat struct {
	SteamID string `db:"steam_id"`
	MatchID string `db:"match_id"`
	Kills   int    `db:"kills"`
	Deaths  int    `db:"deaths"`
	Assists int    `db:"assists"`
	MVPs    int    `db:"mvps"`
	Score   int    `db:"score"`
}

// Weapon 武器参考条目 (只读目录)
type Weapon struct {
	WeaponID int    `db:"weapon_id"`
	Name     string `db:"name"`
	Category string `db:"category"`
	MaxClip  *int   `db:"max_clip"`
}

// SteamAccount 已注册的Steam账户，auth token 按账户下发
type SteamAccount struct {
	SteamID    string `db:"steam_id"`
	PlayerName string `db:"player_name"`
	AuthToken  string `db:"auth_token"`
}
