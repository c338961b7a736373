package services

import (
	"time"
)

// 持久化命令：会话产出的幂等 upsert 指令，经命令队列异步交给持久化worker。
// 命令总是携带完整的最新状态而非字段补丁，重放或乱序执行不会破坏存储一致性。

// CommandKind 命令类型
type CommandKind string

const (
	CommandUpsertMatch            CommandKind = "upsert_match"
	CommandUpsertRound            CommandKind = "upsert_round"
	CommandUpsertPlayerRoundState CommandKind = "upsert_player_round_state"
	CommandUpsertPlayerWeapon     CommandKind = "upsert_player_weapon"
	CommandUpsertPlayerMatchStat  CommandKind = "upsert_player_match_stat"
	CommandCompleteMatch          CommandKind = "complete_match"
)

// Command 单条持久化命令，至多携带一个负载
type Command struct {
	Kind         CommandKind         `json:"kind"`
	MatchID      string              `json:"match_id"`
	Match        *MatchCommand       `json:"match,omitempty"`
	Round        *RoundCommand       `json:"round,omitempty"`
	PlayerState  *PlayerStateCommand `json:"player_state,omitempty"`
	PlayerWeapon *PlayerWeaponCommand `json:"player_weapon,omitempty"`
	MatchStat    *MatchStatCommand   `json:"match_stat,omitempty"`
}

// MatchCommand 比赛记录 upsert (也用于 complete_match)
type MatchCommand struct {
	MatchID        string    `json:"match_id"`
	GameMode       string    `json:"game_mode"`
	MapName        string    `json:"map_name"`
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   *time.Time `json:"end_timestamp,omitempty"`
	RoundsPlayed   int       `json:"rounds_played"`
	TeamCTScore    int       `json:"team_ct_score"`
	TeamTScore     int       `json:"team_t_score"`
}

// RoundCommand 回合记录 upsert，自然键 (match_id, round_number)
type RoundCommand struct {
	MatchID      string `json:"match_id"`
	RoundNumber  int    `json:"round_number"`
	Phase        string `json:"phase"`
	WinningTeam  string `json:"winning_team,omitempty"`
	WinCondition string `json:"win_condition,omitempty"`
}

// PlayerStateCommand 回合内玩家状态 upsert，自然键 (match_id, round_number, steam_id)
type PlayerStateCommand struct {
	MatchID     string `json:"match_id"`
	RoundNumber int    `json:"round_number"`
	SteamID     string `json:"steam_id"`
	PlayerName  string `json:"player_name"`
	Health      int    `json:"health"`
	Armor       int    `json:"armor"`
	Money       int    `json:"money"`
	EquipValue  int    `json:"equip_value"`
	RoundKills  int    `json:"round_kills"`
}

// PlayerWeaponCommand 武器状态 upsert。武器按名称解析，未知名称归入 Other 目录
type PlayerWeaponCommand struct {
	MatchID     string `json:"match_id"`
	RoundNumber int    `json:"round_number"`
	SteamID     string `json:"steam_id"`
	WeaponName  string `json:"weapon_name"`
	Category    string `json:"category"`
	State       string `json:"state"`
	AmmoClip    *int   `json:"ammo_clip,omitempty"`
	AmmoClipMax *int   `json:"ammo_clip_max,omitempty"`
	AmmoReserve *int   `json:"ammo_reserve,omitempty"`
	Paintkit    string `json:"paintkit"`
}

// MatchStatCommand 玩家整场累计统计 upsert，自然键 (steam_id, match_id)
type MatchStatCommand struct {
	MatchID string `json:"match_id"`
	SteamID string `json:"steam_id"`
	Kills   int    `json:"kills"`
	Deaths  int    `json:"deaths"`
	Assists int    `json:"assists"`
	MVPs    int    `json:"mvps"`
	Score   int    `json:"score"`
}

// CommandQueue 持久化命令队列的抽象接口
type CommandQueue interface {
	// Publish 发布一条命令。队列饱和时阻塞 (对上游施加背压)，绝不丢弃已提交的命令
	Publish(cmd Command) error
	// Consume 返回命令通道，队列关闭后通道随之关闭
	Consume() <-chan Command
	// Close 关闭队列，排空后不再接受新命令
	Close() error
}
