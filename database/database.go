package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect 连接到数据库
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate 运行数据库迁移
func Migrate(db *sql.DB) error {
	migrations := []string{
		// Steam账户表 (auth token 按账户下发)
		`CREATE TABLE IF NOT EXISTS steam_accounts (
			steam_id VARCHAR(64) PRIMARY KEY,
			player_name VARCHAR(100) NOT NULL DEFAULT '',
			auth_token VARCHAR(128) UNIQUE NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steam_accounts_auth_token ON steam_accounts(auth_token)`,

		// 武器参考表 (只读目录，cmd/migrate 负责填充)
		`CREATE TABLE IF NOT EXISTS weapons (
			weapon_id SERIAL PRIMARY KEY,
			name VARCHAR(64) UNIQUE NOT NULL,
			category VARCHAR(32) NOT NULL DEFAULT 'Other',
			max_clip INTEGER
		)`,

		// 比赛表
		`CREATE TABLE IF NOT EXISTS matches (
			match_id VARCHAR(255) PRIMARY KEY,
			game_mode VARCHAR(32) NOT NULL,
			map_name VARCHAR(64) NOT NULL,
			start_timestamp TIMESTAMP NOT NULL,
			end_timestamp TIMESTAMP,
			rounds_played INTEGER DEFAULT 0,
			team_ct_score INTEGER DEFAULT 0,
			team_t_score INTEGER DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_map_name ON matches(map_name)`,

		// 回合表
		`CREATE TABLE IF NOT EXISTS rounds (
			id BIGSERIAL PRIMARY KEY,
			match_id VARCHAR(255) NOT NULL REFERENCES matches(match_id) ON DELETE CASCADE,
			round_number INTEGER NOT NULL,
			phase VARCHAR(32) NOT NULL,
			winning_team VARCHAR(32),
			win_condition VARCHAR(64),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (match_id, round_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_match_id ON rounds(match_id)`,

		// 回合内玩家状态表
		`CREATE TABLE IF NOT EXISTS player_round_states (
			id BIGSERIAL PRIMARY KEY,
			match_id VARCHAR(255) NOT NULL REFERENCES matches(match_id) ON DELETE CASCADE,
			round_number INTEGER NOT NULL,
			steam_id VARCHAR(64) NOT NULL,
			health INTEGER NOT NULL DEFAULT 0,
			armor INTEGER NOT NULL DEFAULT 0,
			money INTEGER NOT NULL DEFAULT 0,
			equip_value INTEGER NOT NULL DEFAULT 0,
			round_kills INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (match_id, round_number, steam_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_player_round_states_steam_id ON player_round_states(steam_id)`,

		// 回合内玩家武器表
		`CREATE TABLE IF NOT EXISTS player_weapons (
			id BIGSERIAL PRIMARY KEY,
			match_id VARCHAR(255) NOT NULL REFERENCES matches(match_id) ON DELETE CASCADE,
			round_number INTEGER NOT NULL,
			steam_id VARCHAR(64) NOT NULL,
			weapon_id INTEGER NOT NULL REFERENCES weapons(weapon_id),
			state VARCHAR(32) NOT NULL,
			ammo_clip INTEGER,
			ammo_reserve INTEGER,
			paintkit VARCHAR(64) NOT NULL DEFAULT 'default',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (match_id, round_number, steam_id, weapon_id)
		)`,

		// 玩家整场统计表
		`CREATE TABLE IF NOT EXISTS player_match_stats (
			id BIGSERIAL PRIMARY KEY,
			steam_id VARCHAR(64) NOT NULL,
			match_id VARCHAR(255) NOT NULL REFERENCES matches(match_id) ON DELETE CASCADE,
			kills INTEGER NOT NULL DEFAULT 0,
			deaths INTEGER NOT NULL DEFAULT 0,
			assists INTEGER NOT NULL DEFAULT 0,
			mvps INTEGER NOT NULL DEFAULT 0,
			score INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (steam_id, match_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_player_match_stats_match_id ON player_match_stats(match_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
