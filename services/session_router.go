package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gsi-service/logger"
)

// MatchIdentity 比赛身份：拥有者账户、地图和模式。
// 同一身份在任一时刻至多对应一个在线会话
type MatchIdentity struct {
	OwnerSteamID string
	MapName      string
	Mode         string
}

// RouterConfig 路由器配置
type RouterConfig struct {
	IdleTimeout   time.Duration // 无快照到达后多久回收会话
	GameOverGrace time.Duration // gameover 后的宽限期
	SweepInterval time.Duration // 回收扫描间隔
	SessionBuffer int           // 每个会话的入站缓冲区
}

// SessionRouter 把认证后的快照路由到正确的比赛会话。
// 唯一知道"同时有多场比赛"的组件：身份到会话的映射、创建与过期规则都在这里。
type SessionRouter struct {
	mu       sync.RWMutex
	sessions map[MatchIdentity]*MatchSession

	resolver    TokenResolver
	queue       CommandQueue
	broadcaster EventBroadcaster
	stats       *IngestStats
	config      RouterConfig

	stop     chan struct{}
	stopOnce sync.Once
}

// SessionInfo 会话概况，用于状态接口
type SessionInfo struct {
	MatchID      string    `json:"match_id"`
	MapName      string    `json:"map_name"`
	GameMode     string    `json:"game_mode"`
	OwnerSteamID string    `json:"owner_steam_id"`
	CurrentRound int       `json:"current_round"`
	Completed    bool      `json:"completed"`
	LastSeen     time.Time `json:"last_seen"`
}

// NewSessionRouter 创建会话路由器
func NewSessionRouter(resolver TokenResolver, queue CommandQueue, broadcaster EventBroadcaster, stats *IngestStats, config RouterConfig) *SessionRouter {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	if config.GameOverGrace <= 0 {
		config.GameOverGrace = time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}
	return &SessionRouter{
		sessions:    make(map[MatchIdentity]*MatchSession),
		resolver:    resolver,
		queue:       queue,
		broadcaster: broadcaster,
		stats:       stats,
		config:      config,
		stop:        make(chan struct{}),
	}
}

// Route 解析token并把快照投递给对应会话。
// 未知token返回 AuthenticationFailed，快照直接丢弃、不触碰任何会话
func (r *SessionRouter) Route(token string, snap *Snapshot) error {
	account, err := r.resolver.ResolveToken(token)
	if err != nil {
		r.stats.RecordAuthFailure()
		return err
	}

	if snap.OwnerSteamID != "" && snap.OwnerSteamID != account.SteamID {
		logger.Debugf("[Router] provider steamid %s differs from account %s", snap.OwnerSteamID, account.SteamID)
	}

	identity := MatchIdentity{
		OwnerSteamID: account.SteamID,
		MapName:      snap.Match.MapName,
		Mode:         snap.Match.Mode,
	}

	session := r.getOrCreate(identity)
	if err := session.Enqueue(snap); errors.Is(err, ErrSessionClosed) {
		// 与回收扫描竞争：会话刚被停掉，换一个新会话重试一次
		r.removeIf(identity, session)
		return r.getOrCreate(identity).Enqueue(snap)
	} else if err != nil {
		return err
	}
	return nil
}

// getOrCreate 取得或创建身份对应的会话 (双重检查，避免并发重复创建)
func (r *SessionRouter) getOrCreate(identity MatchIdentity) *MatchSession {
	r.mu.RLock()
	session, ok := r.sessions[identity]
	r.mu.RUnlock()
	if ok {
		return session
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[identity]; ok {
		return session
	}

	// 首次出现的时间戳让 match_id 在重开同图同模式时仍然唯一
	now := time.Now()
	matchID := fmt.Sprintf("%s_%s_%s_%d", identity.MapName, identity.Mode, identity.OwnerSteamID, now.Unix())

	session = NewMatchSession(matchID, identity, now, r.config.SessionBuffer, r.queue, r.broadcaster, r.stats)
	session.Start()
	r.sessions[identity] = session

	r.stats.RecordSessionCreated()
	logger.Printf("[Router] Created session %s (active: %d)", matchID, len(r.sessions))

	if r.broadcaster != nil {
		r.broadcaster.BroadcastEvent(SessionEvent{
			Type:     "session_created",
			MatchID:  matchID,
			MapName:  identity.MapName,
			GameMode: identity.Mode,
		})
	}
	return session
}

// removeIf 仅当映射仍指向该实例时移除
func (r *SessionRouter) removeIf(identity MatchIdentity, session *MatchSession) {
	r.mu.Lock()
	if current, ok := r.sessions[identity]; ok && current == session {
		delete(r.sessions, identity)
	}
	r.mu.Unlock()
}

// StartReaper 启动定期回收扫描
func (r *SessionRouter) StartReaper() {
	go func() {
		ticker := time.NewTicker(r.config.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sweepExpired(time.Now())
			case <-r.stop:
				return
			}
		}
	}()
}

// sweepExpired 回收过期会话。先从映射摘除再停止排空，
// 排空过程会把进行中的回合以 incomplete 最终化
func (r *SessionRouter) sweepExpired(now time.Time) {
	r.mu.RLock()
	var expired []*MatchSession
	var identities []MatchIdentity
	for identity, session := range r.sessions {
		if session.Expired(now, r.config.IdleTimeout, r.config.GameOverGrace) {
			expired = append(expired, session)
			identities = append(identities, identity)
		}
	}
	r.mu.RUnlock()

	for i, session := range expired {
		r.removeIf(identities[i], session)
		session.Stop()
		r.stats.RecordSessionExpired()
		logger.Printf("[Router] Reaped session %s (last seen %s)", session.MatchID, session.LastSeen().Format(time.RFC3339))

		if r.broadcaster != nil {
			r.broadcaster.BroadcastEvent(SessionEvent{
				Type:     "session_expired",
				MatchID:  session.MatchID,
				MapName:  session.Identity.MapName,
				GameMode: session.Identity.Mode,
			})
		}
	}
}

// ActiveSessions 当前在线会话概况
func (r *SessionRouter) ActiveSessions() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, SessionInfo{
			MatchID:      s.MatchID,
			MapName:      s.Identity.MapName,
			GameMode:     s.Identity.Mode,
			OwnerSteamID: s.Identity.OwnerSteamID,
			CurrentRound: int(s.currentRound.Load()),
			Completed:    s.Completed(),
			LastSeen:     s.LastSeen(),
		})
	}
	return infos
}

// Count 在线会话数
func (r *SessionRouter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown 停止回收扫描并排空全部会话
func (r *SessionRouter) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})

	r.mu.Lock()
	sessions := make([]*MatchSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[MatchIdentity]*MatchSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	logger.Printf("[Router] Shut down, %d sessions drained", len(sessions))
}
