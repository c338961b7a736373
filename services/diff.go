package services

// 差分引擎：计算同一实体两次快照之间的字段级变化集。
// 纯函数，字段顺序固定，前值缺失 (首次出现) 也算变化。

// FieldChange 单个字段的变化，Old 在首次出现时为 nil
type FieldChange struct {
	Field string
	Old   interface{}
	New   interface{}
}

// DiffMatch 比较两个比赛级快照
func DiffMatch(prev, cur *MatchSnapshot) []FieldChange {
	if cur == nil {
		return nil
	}

	var changes []FieldChange
	add := func(field string, old, new interface{}) {
		changes = append(changes, FieldChange{Field: field, Old: old, New: new})
	}

	if prev == nil {
		add("mode", nil, cur.Mode)
		add("map_name", nil, cur.MapName)
		add("phase", nil, cur.Phase)
		add("round", nil, cur.Round)
		add("team_ct_score", nil, cur.TeamCTScore)
		add("team_t_score", nil, cur.TeamTScore)
		return changes
	}

	if prev.Mode != cur.Mode {
		add("mode", prev.Mode, cur.Mode)
	}
	if prev.MapName != cur.MapName {
		add("map_name", prev.MapName, cur.MapName)
	}
	if prev.Phase != cur.Phase {
		add("phase", prev.Phase, cur.Phase)
	}
	if prev.Round != cur.Round {
		add("round", prev.Round, cur.Round)
	}
	if prev.TeamCTScore != cur.TeamCTScore {
		add("team_ct_score", prev.TeamCTScore, cur.TeamCTScore)
	}
	if prev.TeamTScore != cur.TeamTScore {
		add("team_t_score", prev.TeamTScore, cur.TeamTScore)
	}
	return changes
}

// DiffPlayer 比较两个玩家级快照的标量字段 (武器另行比较)
func DiffPlayer(prev, cur *PlayerSnapshot) []FieldChange {
	if cur == nil {
		return nil
	}

	var changes []FieldChange
	add := func(field string, old, new interface{}) {
		changes = append(changes, FieldChange{Field: field, Old: old, New: new})
	}

	if prev == nil {
		add("team", nil, cur.Team)
		add("health", nil, cur.Health)
		add("armor", nil, cur.Armor)
		add("money", nil, cur.Money)
		add("equip_value", nil, cur.EquipValue)
		add("round_kills", nil, cur.RoundKills)
		add("match_kills", nil, cur.MatchKills)
		add("match_deaths", nil, cur.MatchDeaths)
		add("match_assists", nil, cur.MatchAssists)
		add("match_mvps", nil, cur.MatchMVPs)
		add("match_score", nil, cur.MatchScore)
		return changes
	}

	if prev.Team != cur.Team {
		add("team", prev.Team, cur.Team)
	}
	if prev.Health != cur.Health {
		add("health", prev.Health, cur.Health)
	}
	if prev.Armor != cur.Armor {
		add("armor", prev.Armor, cur.Armor)
	}
	if prev.Money != cur.Money {
		add("money", prev.Money, cur.Money)
	}
	if prev.EquipValue != cur.EquipValue {
		add("equip_value", prev.EquipValue, cur.EquipValue)
	}
	if prev.RoundKills != cur.RoundKills {
		add("round_kills", prev.RoundKills, cur.RoundKills)
	}
	if prev.MatchKills != cur.MatchKills {
		add("match_kills", prev.MatchKills, cur.MatchKills)
	}
	if prev.MatchDeaths != cur.MatchDeaths {
		add("match_deaths", prev.MatchDeaths, cur.MatchDeaths)
	}
	if prev.MatchAssists != cur.MatchAssists {
		add("match_assists", prev.MatchAssists, cur.MatchAssists)
	}
	if prev.MatchMVPs != cur.MatchMVPs {
		add("match_mvps", prev.MatchMVPs, cur.MatchMVPs)
	}
	if prev.MatchScore != cur.MatchScore {
		add("match_score", prev.MatchScore, cur.MatchScore)
	}
	return changes
}

// DiffWeapon 比较同一武器槽的两次快照
func DiffWeapon(prev, cur *WeaponSnapshot) []FieldChange {
	if cur == nil {
		return nil
	}

	var changes []FieldChange
	add := func(field string, old, new interface{}) {
		changes = append(changes, FieldChange{Field: field, Old: old, New: new})
	}

	if prev == nil {
		add("name", nil, cur.Name)
		add("state", nil, cur.State)
		add("ammo_clip", nil, intPtrValue(cur.AmmoClip))
		add("ammo_reserve", nil, intPtrValue(cur.AmmoReserve))
		add("paintkit", nil, cur.Paintkit)
		return changes
	}

	if prev.Name != cur.Name {
		add("name", prev.Name, cur.Name)
	}
	if prev.State != cur.State {
		add("state", prev.State, cur.State)
	}
	if !intPtrEqual(prev.AmmoClip, cur.AmmoClip) {
		add("ammo_clip", intPtrValue(prev.AmmoClip), intPtrValue(cur.AmmoClip))
	}
	if !intPtrEqual(prev.AmmoReserve, cur.AmmoReserve) {
		add("ammo_reserve", intPtrValue(prev.AmmoReserve), intPtrValue(cur.AmmoReserve))
	}
	if prev.Paintkit != cur.Paintkit {
		add("paintkit", prev.Paintkit, cur.Paintkit)
	}
	return changes
}

// MatchStatsChanged 判断累计比赛统计是否变化
func MatchStatsChanged(prev, cur *PlayerSnapshot) bool {
	if cur == nil {
		return false
	}
	if prev == nil {
		return true
	}
	return prev.MatchKills != cur.MatchKills ||
		prev.MatchDeaths != cur.MatchDeaths ||
		prev.MatchAssists != cur.MatchAssists ||
		prev.MatchMVPs != cur.MatchMVPs ||
		prev.MatchScore != cur.MatchScore
}

// intPtrEqual 两个可空字段均缺失不算变化
func intPtrEqual(a, b *int) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func intPtrValue(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
