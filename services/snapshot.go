package services

// 本文件定义 GSI 快照的线格式 (RawPayload) 和规范化后的类型 (Snapshot)。
// 游戏客户端只上报当前状态，从不发送离散事件；所有下游组件只操作规范化类型。

// RawPayload GSI POST 请求体的线格式，未知字段忽略
type RawPayload struct {
	Auth     *RawAuth     `json:"auth"`
	Provider *RawProvider `json:"provider"`
	Map      *RawMap      `json:"map"`
	Round    *RawRound    `json:"round"`
	Player   *RawPlayer   `json:"player"`
}

type RawAuth struct {
	Token string `json:"token"`
}

type RawProvider struct {
	Name      string `json:"name"`
	AppID     int    `json:"appid"`
	Version   int    `json:"version"`
	SteamID   string `json:"steamid"`
	Timestamp int64  `json:"timestamp"`
}

type RawMap struct {
	Mode   string       `json:"mode"`
	Name   string       `json:"name"`
	Phase  string       `json:"phase"`
	Round  int          `json:"round"`
	TeamCT *RawTeamInfo `json:"team_ct"`
	TeamT  *RawTeamInfo `json:"team_t"`
}

type RawTeamInfo struct {
	Score int `json:"score"`
}

type RawRound struct {
	Phase   string `json:"phase"`
	WinTeam string `json:"win_team"`
	Bomb    string `json:"bomb"`
}

type RawPlayer struct {
	SteamID    string                `json:"steamid"`
	Name       string                `json:"name"`
	Team       string                `json:"team"`
	Activity   string                `json:"activity"`
	State      *RawPlayerState       `json:"state"`
	MatchStats *RawMatchStats        `json:"match_stats"`
	Weapons    map[string]*RawWeapon `json:"weapons"`
}

type RawPlayerState struct {
	Health     int `json:"health"`
	Armor      int `json:"armor"`
	Money      int `json:"money"`
	EquipValue int `json:"equip_value"`
	RoundKills int `json:"round_kills"`
}

type RawMatchStats struct {
	Kills   int `json:"kills"`
	Deaths  int `json:"deaths"`
	Assists int `json:"assists"`
	MVPs    int `json:"mvps"`
	Score   int `json:"score"`
}

type RawWeapon struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	State       string `json:"state"`
	AmmoClip    *int   `json:"ammo_clip"`
	AmmoClipMax *int   `json:"ammo_clip_max"`
	AmmoReserve *int   `json:"ammo_reserve"`
	Paintkit    string `json:"paintkit"`
}

// AuthToken 返回请求体内携带的认证token，缺失时为空串
func (p *RawPayload) AuthToken() string {
	if p.Auth == nil {
		return ""
	}
	return p.Auth.Token
}

// IsMenuPayload 判断是否为大厅/菜单载荷 (没有map块，玩家在菜单中)
func (p *RawPayload) IsMenuPayload() bool {
	if p.Map != nil {
		return false
	}
	return p.Player != nil && p.Player.Activity == "menu"
}

// Snapshot 一次完整的状态观测：比赛级字段加上零或一个玩家子快照
type Snapshot struct {
	Timestamp    int64
	OwnerSteamID string // 上报客户端所有者 (provider.steamid)
	Match        MatchSnapshot
	Round        *RoundSnapshot
	Player       *PlayerSnapshot
}

// MatchSnapshot 比赛级状态
type MatchSnapshot struct {
	Mode        string
	MapName     string
	Phase       string // warmup | live | intermission | gameover
	Round       int
	TeamCTScore int
	TeamTScore  int
}

// RoundSnapshot 回合级状态 (round 块可能缺失)
type RoundSnapshot struct {
	Phase   string // freezetime | live | over
	WinTeam string // 仅 phase=over 时有意义
	Bomb    string // planted | exploded | defused | ""
}

// PlayerSnapshot 玩家级状态
type PlayerSnapshot struct {
	SteamID     string
	Name        string
	Team        string
	Health      int
	Armor       int
	Money       int
	EquipValue  int
	RoundKills  int
	MatchKills  int
	MatchDeaths int
	MatchAssists int
	MatchMVPs   int
	MatchScore  int
	Weapons     map[string]WeaponSnapshot // slot -> weapon
}

// WeaponSnapshot 武器槽状态。弹药字段对近战武器缺失，保持为 nil 而非 0
type WeaponSnapshot struct {
	Name        string
	Category    string
	State       string // active | holstered | reloading
	AmmoClip    *int
	AmmoClipMax *int
	AmmoReserve *int
	Paintkit    string
}

// IsOwnerPlaying 判断载荷是否描述客户端所有者本人 (而非观战目标)
func (s *Snapshot) IsOwnerPlaying() bool {
	return s.Player != nil && s.Player.SteamID == s.OwnerSteamID
}
