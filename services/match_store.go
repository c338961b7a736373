package services

import (
	"database/sql"
	"fmt"
	"sync"

	"gsi-service/database"
)

// MatchStore 持久化适配器：把命令落成幂等的 Postgres upsert。
// 所有写入都以自然键 ON CONFLICT，重放同一命令不会产生重复行
type MatchStore struct {
	db      *sql.DB
	catalog *WeaponCatalog

	// 运行期按名称注册的目录外武器 (目录本身保持只读)
	mu      sync.Mutex
	learned map[string]int
}

// NewMatchStore 创建存储适配器
func NewMatchStore(db *sql.DB, catalog *WeaponCatalog) *MatchStore {
	return &MatchStore{
		db:      db,
		catalog: catalog,
		learned: make(map[string]int),
	}
}

// UpsertMatch 写比赛记录 (也处理 complete_match：带结束时间戳的完整状态)
func (s *MatchStore) UpsertMatch(cmd *MatchCommand) error {
	query := `
		INSERT INTO matches (match_id, game_mode, map_name, start_timestamp, end_timestamp, rounds_played, team_ct_score, team_t_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		ON CONFLICT (match_id)
		DO UPDATE SET
			game_mode = EXCLUDED.game_mode,
			map_name = EXCLUDED.map_name,
			end_timestamp = COALESCE(EXCLUDED.end_timestamp, matches.end_timestamp),
			rounds_played = EXCLUDED.rounds_played,
			team_ct_score = EXCLUDED.team_ct_score,
			team_t_score = EXCLUDED.team_t_score,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Exec(query, cmd.MatchID, cmd.GameMode, cmd.MapName, cmd.StartTimestamp,
		cmd.EndTimestamp, cmd.RoundsPlayed, cmd.TeamCTScore, cmd.TeamTScore)
	return err
}

// UpsertRound 写回合记录，自然键 (match_id, round_number)
func (s *MatchStore) UpsertRound(cmd *RoundCommand) error {
	query := `
		INSERT INTO rounds (match_id, round_number, phase, winning_team, win_condition)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (match_id, round_number)
		DO UPDATE SET
			phase = EXCLUDED.phase,
			winning_team = COALESCE(EXCLUDED.winning_team, rounds.winning_team),
			win_condition = COALESCE(EXCLUDED.win_condition, rounds.win_condition)
	`
	_, err := s.db.Exec(query, cmd.MatchID, cmd.RoundNumber, cmd.Phase, cmd.WinningTeam, cmd.WinCondition)
	return err
}

// UpsertPlayerRoundState 写回合内玩家状态
func (s *MatchStore) UpsertPlayerRoundState(cmd *PlayerStateCommand) error {
	query := `
		INSERT INTO player_round_states (match_id, round_number, steam_id, health, armor, money, equip_value, round_kills, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		ON CONFLICT (match_id, round_number, steam_id)
		DO UPDATE SET
			health = EXCLUDED.health,
			armor = EXCLUDED.armor,
			money = EXCLUDED.money,
			equip_value = EXCLUDED.equip_value,
			round_kills = EXCLUDED.round_kills,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Exec(query, cmd.MatchID, cmd.RoundNumber, cmd.SteamID,
		cmd.Health, cmd.Armor, cmd.Money, cmd.EquipValue, cmd.RoundKills)
	return err
}

// UpsertPlayerWeapon 写武器状态。武器按名称解析为目录ID，
// 未收录的名称现场注册并归入 Other 类别，绝不拒绝
func (s *MatchStore) UpsertPlayerWeapon(cmd *PlayerWeaponCommand) error {
	weaponID, err := s.resolveWeaponID(cmd.WeaponName, cmd.Category, cmd.AmmoClipMax)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO player_weapons (match_id, round_number, steam_id, weapon_id, state, ammo_clip, ammo_reserve, paintkit, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		ON CONFLICT (match_id, round_number, steam_id, weapon_id)
		DO UPDATE SET
			state = EXCLUDED.state,
			ammo_clip = EXCLUDED.ammo_clip,
			ammo_reserve = EXCLUDED.ammo_reserve,
			paintkit = EXCLUDED.paintkit,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err = s.db.Exec(query, cmd.MatchID, cmd.RoundNumber, cmd.SteamID, weaponID,
		cmd.State, cmd.AmmoClip, cmd.AmmoReserve, cmd.Paintkit)
	return err
}

// UpsertPlayerMatchStat 写整场累计统计，自然键 (steam_id, match_id)
func (s *MatchStore) UpsertPlayerMatchStat(cmd *MatchStatCommand) error {
	query := `
		INSERT INTO player_match_stats (steam_id, match_id, kills, deaths, assists, mvps, score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		ON CONFLICT (steam_id, match_id)
		DO UPDATE SET
			kills = EXCLUDED.kills,
			deaths = EXCLUDED.deaths,
			assists = EXCLUDED.assists,
			mvps = EXCLUDED.mvps,
			score = EXCLUDED.score,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Exec(query, cmd.SteamID, cmd.MatchID, cmd.Kills, cmd.Deaths, cmd.Assists, cmd.MVPs, cmd.Score)
	return err
}

// LookupWeapon 按名称查目录
func (s *MatchStore) LookupWeapon(name string) (database.Weapon, bool) {
	return s.catalog.Lookup(name)
}

// resolveWeaponID 名称→目录ID。目录未收录时注册一条新目录项
func (s *MatchStore) resolveWeaponID(name, category string, maxClip *int) (int, error) {
	if w, ok := s.catalog.Lookup(name); ok {
		return w.WeaponID, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.learned[name]; ok {
		return id, nil
	}

	if category == "" {
		category = "Other"
	}

	var id int
	query := `
		INSERT INTO weapons (name, category, max_clip)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET category = EXCLUDED.category
		RETURNING weapon_id
	`
	if err := s.db.QueryRow(query, name, category, maxClip).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to register weapon %s: %w", name, err)
	}

	s.learned[name] = id
	return id, nil
}

// ListMatches 最近的比赛列表
func (s *MatchStore) ListMatches(limit int) ([]database.Match, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT match_id, game_mode, map_name, start_timestamp, end_timestamp, rounds_played, team_ct_score, team_t_score
		FROM matches
		ORDER BY start_timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []database.Match
	for rows.Next() {
		var m database.Match
		if err := rows.Scan(&m.MatchID, &m.GameMode, &m.MapName, &m.StartTimestamp,
			&m.EndTimestamp, &m.RoundsPlayed, &m.TeamCTScore, &m.TeamTScore); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListRounds 一场比赛的全部回合
func (s *MatchStore) ListRounds(matchID string) ([]database.Round, error) {
	query := `
		SELECT match_id, round_number, phase, winning_team, win_condition
		FROM rounds
		WHERE match_id = $1
		ORDER BY round_number
	`
	rows, err := s.db.Query(query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []database.Round
	for rows.Next() {
		var r database.Round
		if err := rows.Scan(&r.MatchID, &r.RoundNumber, &r.Phase, &r.WinningTeam, &r.WinCondition); err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// ListMatchStats 一场比赛的玩家累计统计
func (s *MatchStore) ListMatchStats(matchID string) ([]database.PlayerMatchStat, error) {
	query := `
		SELECT steam_id, match_id, kills, deaths, assists, mvps, score
		FROM player_match_stats
		WHERE match_id = $1
		ORDER BY score DESC
	`
	rows, err := s.db.Query(query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []database.PlayerMatchStat
	for rows.Next() {
		var st database.PlayerMatchStat
		if err := rows.Scan(&st.SteamID, &st.MatchID, &st.Kills, &st.Deaths, &st.Assists, &st.MVPs, &st.Score); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
