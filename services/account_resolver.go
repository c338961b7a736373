package services

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"gsi-service/database"
	"gsi-service/logger"
)

// ErrAuthenticationFailed 未知或缺失的auth token
var ErrAuthenticationFailed = errors.New("authentication failed")

// TokenResolver token到账户的解析抽象
type TokenResolver interface {
	ResolveToken(token string) (*database.SteamAccount, error)
}

// DBTokenResolver 基于 steam_accounts 表的解析器，带内存缓存。
// 客户端每秒都会上报，缓存避免每个快照都打一次数据库
type DBTokenResolver struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[string]*database.SteamAccount // token -> account
}

// NewDBTokenResolver 创建解析器
func NewDBTokenResolver(db *sql.DB) *DBTokenResolver {
	return &DBTokenResolver{
		db:    db,
		cache: make(map[string]*database.SteamAccount),
	}
}

// LoadCacheFromDB 启动时预热全部token缓存
func (r *DBTokenResolver) LoadCacheFromDB() error {
	rows, err := r.db.Query(`SELECT steam_id, player_name, auth_token FROM steam_accounts`)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	defer rows.Close()

	loaded := 0
	r.mu.Lock()
	defer r.mu.Unlock()
	for rows.Next() {
		var account database.SteamAccount
		if err := rows.Scan(&account.SteamID, &account.PlayerName, &account.AuthToken); err != nil {
			return fmt.Errorf("failed to scan account: %w", err)
		}
		r.cache[account.AuthToken] = &account
		loaded++
	}
	logger.Printf("[TokenResolver] Loaded %d account tokens into cache", loaded)
	return rows.Err()
}

// ResolveToken 实现 TokenResolver 接口。缓存未命中时回源查库 (新注册的账户)
func (r *DBTokenResolver) ResolveToken(token string) (*database.SteamAccount, error) {
	if token == "" {
		return nil, ErrAuthenticationFailed
	}

	r.mu.RLock()
	account, ok := r.cache[token]
	r.mu.RUnlock()
	if ok {
		return account, nil
	}

	account = &database.SteamAccount{}
	err := r.db.QueryRow(
		`SELECT steam_id, player_name, auth_token FROM steam_accounts WHERE auth_token = $1`,
		token,
	).Scan(&account.SteamID, &account.PlayerName, &account.AuthToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuthenticationFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	r.mu.Lock()
	r.cache[token] = account
	r.mu.Unlock()
	return account, nil
}

// StaticTokenResolver 单token解析器，用于本地开发 (原型模式：一个写死的token)
type StaticTokenResolver struct {
	Token   string
	Account database.SteamAccount
}

// ResolveToken 实现 TokenResolver 接口
func (r *StaticTokenResolver) ResolveToken(token string) (*database.SteamAccount, error) {
	if token == "" || token != r.Token {
		return nil, ErrAuthenticationFailed
	}
	account := r.Account
	return &account, nil
}
