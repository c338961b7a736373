package services

// 回合生命周期追踪器：从只上报当前状态的比赛快照序列中推断离散的回合边界。
// 每个比赛会话持有一个实例，仅由会话goroutine访问，无需加锁。

// TrackerState 状态机状态
type TrackerState int

const (
	StateWarmup TrackerState = iota
	StateRoundLive
	StateRoundOver
)

func (s TrackerState) String() string {
	switch s {
	case StateWarmup:
		return "warmup"
	case StateRoundLive:
		return "round_live"
	case StateRoundOver:
		return "round_over"
	default:
		return "unknown"
	}
}

// 回合结束原因
const (
	WinConditionBombExploded = "bomb_exploded"
	WinConditionBombDefused  = "bomb_defused"
	WinConditionElimination  = "elimination"
	WinConditionUnknown      = "unknown"
	WinConditionIncomplete   = "incomplete"
)

// RoundEnd 一次回合最终化：冻结的回合事实，每个 (match, round) 至多产生一次
type RoundEnd struct {
	RoundNumber  int
	Phase        string
	WinningTeam  string
	WinCondition string
}

// RoundTracker 单场比赛的回合状态机
type RoundTracker struct {
	state        TrackerState
	currentRound int
	finalized    map[int]bool
}

func NewRoundTracker() *RoundTracker {
	return &RoundTracker{
		state:     StateWarmup,
		finalized: make(map[int]bool),
	}
}

// State 当前状态机状态
func (t *RoundTracker) State() TrackerState {
	return t.state
}

// CurrentRound 当前累积中的回合号，会话生命周期内单调不减
func (t *RoundTracker) CurrentRound() int {
	return t.currentRound
}

// Observe 处理一个新的比赛快照，返回由此推断出的回合最终化 (0或1个)。
// prev 为上一个快照 (首个快照时为 nil)。
func (t *RoundTracker) Observe(prev, cur *Snapshot) []RoundEnd {
	phase := effectivePhase(cur)
	newRound := cur.Match.Round

	var ends []RoundEnd

	switch t.state {
	case StateWarmup:
		if phase == "live" && newRound >= t.currentRound {
			t.state = StateRoundLive
			if newRound > t.currentRound {
				t.currentRound = newRound
			}
		}

	case StateRoundLive:
		switch {
		case newRound > t.currentRound:
			// 快速切换时 provider 会跳过 over 阶段，回合号跳变视为上一回合隐式结束
			if end := t.finalize(prev, cur, t.currentRound); end != nil {
				ends = append(ends, *end)
			}
			t.currentRound = newRound
			if phase == "over" {
				t.state = StateRoundOver
			}
		case phase == "over":
			if end := t.finalize(prev, cur, t.currentRound); end != nil {
				ends = append(ends, *end)
			}
			t.state = StateRoundOver
		}

	case StateRoundOver:
		if newRound > t.currentRound {
			t.currentRound = newRound
			if phase == "live" || phase == "freezetime" {
				t.state = StateRoundLive
			} else if phase == "over" {
				// 跳号后直接 over：新回合也已结束
				if end := t.finalize(prev, cur, t.currentRound); end != nil {
					ends = append(ends, *end)
				}
			}
		}
	}

	return ends
}

// Teardown 会话回收时调用：进行中的回合以 incomplete 标记最终化，而非静默丢弃
func (t *RoundTracker) Teardown() *RoundEnd {
	if t.state != StateRoundLive || t.currentRound <= 0 || t.finalized[t.currentRound] {
		return nil
	}
	t.finalized[t.currentRound] = true
	return &RoundEnd{
		RoundNumber:  t.currentRound,
		Phase:        "live",
		WinningTeam:  "",
		WinCondition: WinConditionIncomplete,
	}
}

// finalize 冻结一个回合。重复投递同一转换不会产生第二次最终化
func (t *RoundTracker) finalize(prev, cur *Snapshot, roundNumber int) *RoundEnd {
	if roundNumber <= 0 || t.finalized[roundNumber] {
		return nil
	}
	t.finalized[roundNumber] = true

	// 胜方优先取连续两个比赛快照之间的比分增量，其次取载荷的 win_team
	winner := ""
	if prev != nil {
		winner = winnerFromScores(&prev.Match, &cur.Match)
	}
	if winner == "" && cur.Round != nil {
		winner = normalizeTeam(cur.Round.WinTeam)
	}

	return &RoundEnd{
		RoundNumber:  roundNumber,
		Phase:        "over",
		WinningTeam:  winner,
		WinCondition: winCondition(cur.Round, winner),
	}
}

// effectivePhase 取有效回合阶段：round 块缺失时退化到 map 阶段
func effectivePhase(s *Snapshot) string {
	if s.Round != nil && s.Round.Phase != "" {
		return s.Round.Phase
	}
	switch s.Match.Phase {
	case "warmup":
		return "warmup"
	case "live":
		return "live"
	case "intermission", "gameover":
		return "over"
	default:
		return s.Match.Phase
	}
}

// winnerFromScores 哪支队伍的比分字段增加了，哪支就是胜方
func winnerFromScores(prev, cur *MatchSnapshot) string {
	if cur.TeamCTScore > prev.TeamCTScore {
		return "CT"
	}
	if cur.TeamTScore > prev.TeamTScore {
		return "T"
	}
	return ""
}

// winCondition 从回合快照的炸弹状态推断结束原因，缺失时为 unknown
func winCondition(round *RoundSnapshot, winner string) string {
	if round == nil {
		return WinConditionUnknown
	}
	switch round.Bomb {
	case "exploded":
		return WinConditionBombExploded
	case "defused":
		return WinConditionBombDefused
	}
	if round.WinTeam != "" || winner != "" {
		return WinConditionElimination
	}
	return WinConditionUnknown
}

func normalizeTeam(team string) string {
	switch team {
	case "ct", "CT":
		return "CT"
	case "t", "T":
		return "T"
	}
	return team
}
