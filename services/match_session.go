package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gsi-service/logger"
)

// ErrSessionClosed 会话已停止，不再接受快照
var ErrSessionClosed = errors.New("match session closed")

// MatchSession 拥有一场在线比赛的全部可变状态。
// 每个会话一个goroutine从入站通道串行消费快照 (到达顺序即应用顺序)，
// 处理本身是纯内存计算；持久化命令写入出站队列后立即返回。
type MatchSession struct {
	MatchID  string
	Identity MatchIdentity

	queue       CommandQueue
	broadcaster EventBroadcaster
	stats       *IngestStats

	inbound   chan *Snapshot
	done      chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	closed    bool

	lastSeen     atomic.Int64 // unix nano，路由器的回收扫描读取
	completedAt  atomic.Int64 // gameover 观测时刻，0 表示未完赛
	currentRound atomic.Int64 // 状态接口读取的回合号镜像

	startTime time.Time

	// 以下状态仅由会话goroutine访问
	lastSnapshot *Snapshot
	players      map[string]*PlayerSnapshot
	tracker      *RoundTracker
	accRound     int             // 计数器当前归属的回合
	roundSeen    map[string]bool // 本回合观察到的玩家
	roundFlushed map[string]bool // 本回合已产生过状态写入的玩家
	roundKills   map[string]int  // 本回合击杀数累积 (取观测到的最大值)
}

// NewMatchSession 创建比赛会话。startTime 为该比赛身份首次出现的时刻
func NewMatchSession(matchID string, identity MatchIdentity, startTime time.Time, bufferSize int, queue CommandQueue, broadcaster EventBroadcaster, stats *IngestStats) *MatchSession {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	s := &MatchSession{
		MatchID:      matchID,
		Identity:     identity,
		queue:        queue,
		broadcaster:  broadcaster,
		stats:        stats,
		inbound:      make(chan *Snapshot, bufferSize),
		done:         make(chan struct{}),
		startTime:    startTime,
		players:      make(map[string]*PlayerSnapshot),
		tracker:      NewRoundTracker(),
		roundSeen:    make(map[string]bool),
		roundFlushed: make(map[string]bool),
		roundKills:   make(map[string]int),
	}
	s.lastSeen.Store(startTime.UnixNano())
	return s
}

// Start 启动会话goroutine
func (s *MatchSession) Start() {
	go s.run()
}

// Enqueue 投递一个快照。同一会话的快照严格按到达顺序应用；
// 缓冲区满时阻塞 (背压传导给路由器)，会话已停止时返回 ErrSessionClosed
func (s *MatchSession) Enqueue(snap *Snapshot) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.inbound <- snap
	return nil
}

// Stop 停止会话并等待排空。入站通道关闭后run循环会执行teardown，
// 未完成的回合以 incomplete 标记最终化
func (s *MatchSession) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.inbound)
		s.mu.Unlock()
	})
	<-s.done
}

// LastSeen 最近一次收到快照的时刻
func (s *MatchSession) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Completed 是否已观测到 gameover
func (s *MatchSession) Completed() bool {
	return s.completedAt.Load() != 0
}

// Expired 判断会话是否应被回收：完赛后超过宽限期，或空闲超时
func (s *MatchSession) Expired(now time.Time, idleTimeout, gameOverGrace time.Duration) bool {
	if done := s.completedAt.Load(); done != 0 && now.Sub(time.Unix(0, done)) > gameOverGrace {
		return true
	}
	return now.Sub(s.LastSeen()) > idleTimeout
}

// CurrentRound 当前累积中的回合号 (并发安全)
func (s *MatchSession) CurrentRound() int {
	return int(s.currentRound.Load())
}

func (s *MatchSession) run() {
	for snap := range s.inbound {
		s.process(snap)
	}
	s.teardown()
	close(s.done)
}

// process 应用一个快照。重复或无变化的快照产生空差分，不触发任何写入
func (s *MatchSession) process(snap *Snapshot) {
	s.lastSeen.Store(time.Now().UnixNano())
	s.stats.RecordSnapshot()

	isFirst := s.lastSnapshot == nil
	if isFirst {
		logger.Printf("[Session] %s: first snapshot (map=%s mode=%s)", s.MatchID, snap.Match.MapName, snap.Match.Mode)
		s.publishMatchUpsert(snap, nil)
	}

	// 1. 比赛级差分喂给回合状态机，可能推断出回合结束
	var prevMatch *MatchSnapshot
	if s.lastSnapshot != nil {
		prevMatch = &s.lastSnapshot.Match
	}
	matchDelta := DiffMatch(prevMatch, &snap.Match)

	for _, end := range s.tracker.Observe(s.lastSnapshot, snap) {
		s.finalizeRound(end, snap)
	}
	s.currentRound.Store(int64(s.tracker.CurrentRound()))

	if !isFirst && len(matchDelta) > 0 {
		s.publishMatchUpsert(snap, nil)
	}

	// 2&3. 玩家级与武器槽差分
	if snap.Player != nil {
		s.processPlayer(snap.Player)
	}

	// 4. 无条件更新存储的快照，后续差分始终基于最新观测
	if snap.Player != nil {
		s.players[snap.Player.SteamID] = snap.Player
	}
	s.lastSnapshot = snap

	// 完赛检测
	if snap.Match.Phase == "gameover" && s.completedAt.Load() == 0 {
		s.completeMatch(snap)
	}
}

func (s *MatchSession) processPlayer(cur *PlayerSnapshot) {
	prev := s.players[cur.SteamID]
	round := s.tracker.CurrentRound()

	// 回合作用域的写入在热身期 (round 0) 跳过
	if round > 0 {
		// 回合推进时计数器从零开始；回合结束后的迟到观测仍归属原回合
		if round != s.accRound {
			s.accRound = round
			s.roundSeen = make(map[string]bool)
			s.roundFlushed = make(map[string]bool)
			s.roundKills = make(map[string]int)
		}
		s.roundSeen[cur.SteamID] = true
		if cur.RoundKills > s.roundKills[cur.SteamID] {
			s.roundKills[cur.SteamID] = cur.RoundKills
		}

		if delta := DiffPlayer(prev, cur); len(delta) > 0 {
			// 始终写完整的最新状态，不写字段补丁
			s.publish(Command{
				Kind:    CommandUpsertPlayerRoundState,
				MatchID: s.MatchID,
				PlayerState: &PlayerStateCommand{
					MatchID:     s.MatchID,
					RoundNumber: round,
					SteamID:     cur.SteamID,
					PlayerName:  cur.Name,
					Health:      cur.Health,
					Armor:       cur.Armor,
					Money:       cur.Money,
					EquipValue:  cur.EquipValue,
					RoundKills:  cur.RoundKills,
				},
			})
			s.roundFlushed[cur.SteamID] = true
		}

		for slot, weapon := range cur.Weapons {
			var prevWeapon *WeaponSnapshot
			if prev != nil {
				if pw, ok := prev.Weapons[slot]; ok {
					prevWeapon = &pw
				}
			}
			w := weapon
			if delta := DiffWeapon(prevWeapon, &w); len(delta) > 0 {
				s.publish(Command{
					Kind:    CommandUpsertPlayerWeapon,
					MatchID: s.MatchID,
					PlayerWeapon: &PlayerWeaponCommand{
						MatchID:     s.MatchID,
						RoundNumber: round,
						SteamID:     cur.SteamID,
						WeaponName:  w.Name,
						Category:    w.Category,
						State:       w.State,
						AmmoClip:    w.AmmoClip,
						AmmoClipMax: w.AmmoClipMax,
						AmmoReserve: w.AmmoReserve,
						Paintkit:    w.Paintkit,
					},
				})
			}
		}
	}

	// 整场累计统计不受回合边界约束
	if MatchStatsChanged(prev, cur) {
		s.publish(Command{
			Kind:    CommandUpsertPlayerMatchStat,
			MatchID: s.MatchID,
			MatchStat: &MatchStatCommand{
				MatchID: s.MatchID,
				SteamID: cur.SteamID,
				Kills:   cur.MatchKills,
				Deaths:  cur.MatchDeaths,
				Assists: cur.MatchAssists,
				MVPs:    cur.MatchMVPs,
				Score:   cur.MatchScore,
			},
		})
	}
}

// finalizeRound 冻结一个回合：写回合记录，补写本回合观察到但尚未写入的玩家状态。
// snap 为触发最终化的快照，会话teardown时可能为 nil
func (s *MatchSession) finalizeRound(end RoundEnd, snap *Snapshot) {
	s.publish(Command{
		Kind:    CommandUpsertRound,
		MatchID: s.MatchID,
		Round: &RoundCommand{
			MatchID:      s.MatchID,
			RoundNumber:  end.RoundNumber,
			Phase:        end.Phase,
			WinningTeam:  end.WinningTeam,
			WinCondition: end.WinCondition,
		},
	})

	for steamID := range s.roundSeen {
		if s.roundFlushed[steamID] {
			continue
		}
		p := s.players[steamID]
		if p == nil {
			continue
		}
		kills := p.RoundKills
		if acc := s.roundKills[steamID]; acc > kills {
			kills = acc
		}
		s.publish(Command{
			Kind:    CommandUpsertPlayerRoundState,
			MatchID: s.MatchID,
			PlayerState: &PlayerStateCommand{
				MatchID:     s.MatchID,
				RoundNumber: end.RoundNumber,
				SteamID:     steamID,
				PlayerName:  p.Name,
				Health:      p.Health,
				Armor:       p.Armor,
				Money:       p.Money,
				EquipValue:  p.EquipValue,
				RoundKills:  kills,
			},
		})
	}

	s.stats.RecordRoundFinalized()
	logger.Printf("[Session] %s: round %d finalized (winner=%s condition=%s)",
		s.MatchID, end.RoundNumber, end.WinningTeam, end.WinCondition)

	if s.broadcaster != nil {
		event := SessionEvent{
			Type:         "round_finalized",
			MatchID:      s.MatchID,
			MapName:      s.Identity.MapName,
			GameMode:     s.Identity.Mode,
			RoundNumber:  end.RoundNumber,
			WinningTeam:  end.WinningTeam,
			WinCondition: end.WinCondition,
		}
		if snap != nil {
			event.TeamCTScore = snap.Match.TeamCTScore
			event.TeamTScore = snap.Match.TeamTScore
			event.Timestamp = snap.Timestamp
		}
		s.broadcaster.BroadcastEvent(event)
	}
}

func (s *MatchSession) completeMatch(snap *Snapshot) {
	s.completedAt.Store(time.Now().UnixNano())

	end := time.Unix(snap.Timestamp, 0)
	s.publish(Command{
		Kind:    CommandCompleteMatch,
		MatchID: s.MatchID,
		Match: &MatchCommand{
			MatchID:        s.MatchID,
			GameMode:       snap.Match.Mode,
			MapName:        snap.Match.MapName,
			StartTimestamp: s.startTime,
			EndTimestamp:   &end,
			RoundsPlayed:   snap.Match.TeamCTScore + snap.Match.TeamTScore,
			TeamCTScore:    snap.Match.TeamCTScore,
			TeamTScore:     snap.Match.TeamTScore,
		},
	})

	logger.Printf("[Session] %s: game over (CT %d - T %d)", s.MatchID, snap.Match.TeamCTScore, snap.Match.TeamTScore)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(SessionEvent{
			Type:        "match_completed",
			MatchID:     s.MatchID,
			MapName:     s.Identity.MapName,
			GameMode:    s.Identity.Mode,
			TeamCTScore: snap.Match.TeamCTScore,
			TeamTScore:  snap.Match.TeamTScore,
			Timestamp:   snap.Timestamp,
		})
	}
}

// teardown 会话排空后的收尾：进行中的回合以 incomplete 持久化，绝不静默丢弃
func (s *MatchSession) teardown() {
	if end := s.tracker.Teardown(); end != nil {
		logger.Printf("[Session] %s: finalizing in-progress round %d as incomplete", s.MatchID, end.RoundNumber)
		s.finalizeRound(*end, s.lastSnapshot)
	}
}

func (s *MatchSession) publishMatchUpsert(snap *Snapshot, end *time.Time) {
	s.publish(Command{
		Kind:    CommandUpsertMatch,
		MatchID: s.MatchID,
		Match: &MatchCommand{
			MatchID:        s.MatchID,
			GameMode:       snap.Match.Mode,
			MapName:        snap.Match.MapName,
			StartTimestamp: s.startTime,
			EndTimestamp:   end,
			RoundsPlayed:   snap.Match.Round,
			TeamCTScore:    snap.Match.TeamCTScore,
			TeamTScore:     snap.Match.TeamTScore,
		},
	})
}

func (s *MatchSession) publish(cmd Command) {
	if err := s.queue.Publish(cmd); err != nil {
		logger.Errorf("[Session] %s: failed to publish %s command: %v", s.MatchID, cmd.Kind, err)
		return
	}
	s.stats.RecordCommand()
}
