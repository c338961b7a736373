package services

// SessionEvent 会话生命周期事件，推送给 WebSocket 客户端等订阅方
type SessionEvent struct {
	Type         string `json:"type"` // session_created | round_finalized | match_completed | session_expired
	MatchID      string `json:"match_id"`
	MapName      string `json:"map_name,omitempty"`
	GameMode     string `json:"game_mode,omitempty"`
	RoundNumber  int    `json:"round_number,omitempty"`
	WinningTeam  string `json:"winning_team,omitempty"`
	WinCondition string `json:"win_condition,omitempty"`
	TeamCTScore  int    `json:"team_ct_score,omitempty"`
	TeamTScore   int    `json:"team_t_score,omitempty"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// EventBroadcaster 事件广播的抽象接口 (web.Hub 实现)
type EventBroadcaster interface {
	BroadcastEvent(event SessionEvent)
}
