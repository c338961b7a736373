package services

import (
	"testing"
	"time"
)

// drainCommands 非阻塞地取出队列里已有的全部命令
func drainCommands(q *InMemoryCommandQueue) []Command {
	var cmds []Command
	for {
		select {
		case cmd, ok := <-q.Consume():
			if !ok {
				return cmds
			}
			cmds = append(cmds, cmd)
		default:
			return cmds
		}
	}
}

func commandsOfKind(cmds []Command, kind CommandKind) []Command {
	var out []Command
	for _, c := range cmds {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func testSession(q *InMemoryCommandQueue) *MatchSession {
	identity := MatchIdentity{OwnerSteamID: "765", MapName: "de_dust2", Mode: "competitive"}
	return NewMatchSession("de_dust2_competitive_765_1", identity, time.Now(), 16, q, nil, nil)
}

// playerSnap 在比赛级快照上附加一个玩家子快照
func playerSnap(base *Snapshot, kills, health int, weapons map[string]WeaponSnapshot) *Snapshot {
	base.Player = &PlayerSnapshot{
		SteamID:    "765",
		Name:       "player1",
		Team:       "CT",
		Health:     health,
		Armor:      100,
		Money:      4000,
		EquipValue: 4200,
		RoundKills: kills,
		Weapons:    weapons,
	}
	return base
}

func TestSessionFirstSnapshotPublishesMatch(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	s.process(trackerSnap(1, "live", "live", "", "", 0, 0))

	cmds := drainCommands(q)
	if len(cmds) != 1 {
		t.Fatalf("Expected exactly 1 command, got %d", len(cmds))
	}
	if cmds[0].Kind != CommandUpsertMatch || cmds[0].Match == nil {
		t.Errorf("Expected upsert_match with payload, got %+v", cmds[0])
	}
	if cmds[0].Match.MapName != "de_dust2" || cmds[0].Match.GameMode != "competitive" {
		t.Errorf("Unexpected match payload: %+v", cmds[0].Match)
	}
}

func TestSessionLiveRoundFlow(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	// 回合3进行中，玩家满血零击杀
	s.process(playerSnap(trackerSnap(3, "live", "live", "", "", 2, 0), 0, 100, nil))
	first := drainCommands(q)
	if n := len(commandsOfKind(first, CommandUpsertMatch)); n != 1 {
		t.Errorf("Expected 1 match upsert on first snapshot, got %d", n)
	}
	if n := len(commandsOfKind(first, CommandUpsertPlayerRoundState)); n != 1 {
		t.Errorf("Expected 1 player state on first appearance, got %d", n)
	}

	// 玩家打出2杀掉血，其余不变
	s.process(playerSnap(trackerSnap(3, "live", "live", "", "", 2, 0), 2, 60, nil))
	second := drainCommands(q)
	states := commandsOfKind(second, CommandUpsertPlayerRoundState)
	if len(states) != 1 {
		t.Fatalf("Expected 1 player state command, got %d (all: %d)", len(states), len(second))
	}
	ps := states[0].PlayerState
	if ps.RoundNumber != 3 || ps.RoundKills != 2 || ps.Health != 60 {
		t.Errorf("Unexpected player state payload: %+v", ps)
	}

	// 回合结束，CT比分+1
	s.process(playerSnap(trackerSnap(3, "live", "over", "ct", "", 3, 0), 2, 60, nil))
	third := drainCommands(q)
	rounds := commandsOfKind(third, CommandUpsertRound)
	if len(rounds) != 1 {
		t.Fatalf("Expected exactly 1 round upsert, got %d", len(rounds))
	}
	rc := rounds[0].Round
	if rc.RoundNumber != 3 || rc.WinningTeam != "CT" || rc.WinCondition != WinConditionElimination {
		t.Errorf("Unexpected round payload: %+v", rc)
	}
	// 状态已在变化时写过，最终化不得重复写
	if n := len(commandsOfKind(third, CommandUpsertPlayerRoundState)); n != 0 {
		t.Errorf("Expected no player state backfill for already-flushed player, got %d", n)
	}
}

func TestSessionDuplicateSnapshotProducesNothing(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	build := func() *Snapshot {
		return playerSnap(trackerSnap(3, "live", "live", "", "", 2, 1), 1, 80, nil)
	}

	s.process(build())
	drainCommands(q)

	s.process(build())
	if cmds := drainCommands(q); len(cmds) != 0 {
		t.Errorf("Expected duplicate snapshot to produce zero commands, got %d: %+v", len(cmds), cmds)
	}
}

func TestSessionWeaponTransitions(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	clip := 30
	ak := func(state string) map[string]WeaponSnapshot {
		return map[string]WeaponSnapshot{
			"weapon_1": {Name: "weapon_ak47", Category: "Rifle", State: state, AmmoClip: &clip, Paintkit: "default"},
		}
	}

	s.process(playerSnap(trackerSnap(5, "live", "live", "", "", 2, 2), 0, 100, ak("active")))
	s.process(playerSnap(trackerSnap(5, "live", "live", "", "", 2, 2), 0, 100, ak("holstered")))
	s.process(playerSnap(trackerSnap(5, "live", "live", "", "", 2, 2), 0, 100, ak("active")))

	weapons := commandsOfKind(drainCommands(q), CommandUpsertPlayerWeapon)
	if len(weapons) != 3 {
		t.Fatalf("Expected 3 weapon upserts (appearance + 2 transitions), got %d", len(weapons))
	}
	if weapons[1].PlayerWeapon.State != "holstered" || weapons[2].PlayerWeapon.State != "active" {
		t.Errorf("Unexpected weapon states: %+v, %+v", weapons[1].PlayerWeapon, weapons[2].PlayerWeapon)
	}
}

func TestSessionWarmupSkipsRoundWrites(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	s.process(playerSnap(trackerSnap(0, "warmup", "freezetime", "", "", 0, 0), 0, 100, nil))

	cmds := drainCommands(q)
	if n := len(commandsOfKind(cmds, CommandUpsertPlayerRoundState)); n != 0 {
		t.Errorf("Expected no round-scoped player writes during warmup, got %d", n)
	}
	if n := len(commandsOfKind(cmds, CommandUpsertPlayerWeapon)); n != 0 {
		t.Errorf("Expected no weapon writes during warmup, got %d", n)
	}
}

func TestSessionFinalizeBackfillsQuietPlayer(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	// 回合3里玩家有过写入；回合4里玩家毫无变化，结束时补写
	s.process(playerSnap(trackerSnap(3, "live", "live", "", "", 1, 1), 0, 100, nil))
	s.process(playerSnap(trackerSnap(4, "live", "live", "", "", 2, 1), 0, 100, nil))
	drainCommands(q)

	s.process(playerSnap(trackerSnap(4, "live", "over", "t", "", 2, 2), 0, 100, nil))
	cmds := drainCommands(q)

	states := commandsOfKind(cmds, CommandUpsertPlayerRoundState)
	if len(states) != 1 {
		t.Fatalf("Expected 1 backfilled player state, got %d", len(states))
	}
	if states[0].PlayerState.RoundNumber != 4 {
		t.Errorf("Expected backfill for round 4, got round %d", states[0].PlayerState.RoundNumber)
	}
}

func TestSessionGameOverCompletesMatch(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	s.process(trackerSnap(24, "live", "live", "", "", 12, 11))
	drainCommands(q)

	s.process(trackerSnap(24, "gameover", "over", "ct", "", 13, 11))
	cmds := drainCommands(q)

	completes := commandsOfKind(cmds, CommandCompleteMatch)
	if len(completes) != 1 {
		t.Fatalf("Expected 1 complete_match command, got %d", len(completes))
	}
	mc := completes[0].Match
	if mc.EndTimestamp == nil {
		t.Error("Expected end timestamp to be set")
	}
	if mc.TeamCTScore != 13 || mc.TeamTScore != 11 || mc.RoundsPlayed != 24 {
		t.Errorf("Unexpected completion payload: %+v", mc)
	}
	if !s.Completed() {
		t.Error("Expected session to be marked completed")
	}
}

func TestSessionStopFinalizesIncompleteRound(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)
	s.Start()

	if err := s.Enqueue(playerSnap(trackerSnap(6, "live", "live", "", "", 3, 2), 1, 70, nil)); err != nil {
		t.Fatalf("Unexpected enqueue error: %v", err)
	}
	s.Stop()

	cmds := drainCommands(q)
	rounds := commandsOfKind(cmds, CommandUpsertRound)
	if len(rounds) != 1 {
		t.Fatalf("Expected in-progress round to be finalized on stop, got %d round upserts", len(rounds))
	}
	rc := rounds[0].Round
	if rc.RoundNumber != 6 || rc.WinCondition != WinConditionIncomplete {
		t.Errorf("Unexpected teardown round payload: %+v", rc)
	}

	if err := s.Enqueue(trackerSnap(6, "live", "live", "", "", 3, 2)); err != ErrSessionClosed {
		t.Errorf("Expected ErrSessionClosed after stop, got %v", err)
	}
}

func TestSessionExpired(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	s := testSession(q)

	now := time.Now()
	if s.Expired(now, 10*time.Minute, time.Minute) {
		t.Error("Expected fresh session to not be expired")
	}
	if !s.Expired(now.Add(11*time.Minute), 10*time.Minute, time.Minute) {
		t.Error("Expected idle session to be expired")
	}

	// 完赛后走宽限期而非空闲超时
	s.process(trackerSnap(24, "gameover", "over", "ct", "", 13, 11))
	if !s.Expired(time.Now().Add(2*time.Minute), 10*time.Minute, time.Minute) {
		t.Error("Expected completed session to expire after grace period")
	}
}
