package services

import (
	"errors"
	"testing"
	"time"

	"gsi-service/database"
)

func testRouter(q *InMemoryCommandQueue) *SessionRouter {
	resolver := &StaticTokenResolver{
		Token:   "good-token",
		Account: database.SteamAccount{SteamID: "765", PlayerName: "player1", AuthToken: "good-token"},
	}
	return NewSessionRouter(resolver, q, nil, nil, RouterConfig{SessionBuffer: 16})
}

func TestRouterRejectsUnknownToken(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	r := testRouter(q)

	err := r.Route("wrong-token", trackerSnap(1, "live", "live", "", "", 0, 0))
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("Expected ErrAuthenticationFailed, got %v", err)
	}

	// 认证失败的快照不得产生任何会话或命令
	if r.Count() != 0 {
		t.Errorf("Expected no sessions after auth failure, got %d", r.Count())
	}
	if cmds := drainCommands(q); len(cmds) != 0 {
		t.Errorf("Expected no commands after auth failure, got %d", len(cmds))
	}
}

func TestRouterRejectsEmptyToken(t *testing.T) {
	q := NewInMemoryCommandQueue(64)
	r := testRouter(q)

	err := r.Route("", trackerSnap(1, "live", "live", "", "", 0, 0))
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for empty token, got %v", err)
	}
}

func TestRouterSessionPerIdentity(t *testing.T) {
	q := NewInMemoryCommandQueue(256)
	r := testRouter(q)
	defer r.Shutdown()

	if err := r.Route("good-token", trackerSnap(1, "live", "live", "", "", 0, 0)); err != nil {
		t.Fatalf("Unexpected route error: %v", err)
	}
	if err := r.Route("good-token", trackerSnap(2, "live", "live", "", "", 1, 0)); err != nil {
		t.Fatalf("Unexpected route error: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Expected same identity to reuse one session, got %d", r.Count())
	}

	// 换图是另一个比赛身份，必须隔离到独立会话
	other := trackerSnap(1, "live", "live", "", "", 0, 0)
	other.Match.MapName = "de_inferno"
	if err := r.Route("good-token", other); err != nil {
		t.Fatalf("Unexpected route error: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("Expected separate session per map, got %d", r.Count())
	}

	infos := r.ActiveSessions()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 session infos, got %d", len(infos))
	}
	if infos[0].MatchID == infos[1].MatchID {
		t.Error("Expected distinct match IDs per identity")
	}
}

func TestRouterSweepFinalizesIncomplete(t *testing.T) {
	q := NewInMemoryCommandQueue(256)
	r := testRouter(q)

	if err := r.Route("good-token", playerSnap(trackerSnap(4, "live", "live", "", "", 2, 1), 1, 55, nil)); err != nil {
		t.Fatalf("Unexpected route error: %v", err)
	}

	// 把时钟拨过空闲超时，扫描应当停止并排空该会话
	r.sweepExpired(time.Now().Add(time.Hour))

	if r.Count() != 0 {
		t.Fatalf("Expected session to be reaped, got %d active", r.Count())
	}

	cmds := drainCommands(q)
	rounds := commandsOfKind(cmds, CommandUpsertRound)
	if len(rounds) != 1 {
		t.Fatalf("Expected reaped session to finalize its round, got %d round upserts", len(rounds))
	}
	if rounds[0].Round.WinCondition != WinConditionIncomplete {
		t.Errorf("Expected incomplete win condition, got %s", rounds[0].Round.WinCondition)
	}
}

func TestRouterRecreatesStoppedSession(t *testing.T) {
	q := NewInMemoryCommandQueue(256)
	r := testRouter(q)
	defer r.Shutdown()

	snap := trackerSnap(1, "live", "live", "", "", 0, 0)
	if err := r.Route("good-token", snap); err != nil {
		t.Fatalf("Unexpected route error: %v", err)
	}

	// 模拟与回收扫描的竞争：会话已停止但仍挂在映射里
	identity := MatchIdentity{OwnerSteamID: "765", MapName: "de_dust2", Mode: "competitive"}
	r.mu.RLock()
	stopped := r.sessions[identity]
	r.mu.RUnlock()
	stopped.Stop()

	if err := r.Route("good-token", trackerSnap(2, "live", "live", "", "", 1, 0)); err != nil {
		t.Fatalf("Expected route to recreate session, got error: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Expected 1 active session after recreate, got %d", r.Count())
	}
}

func TestRouterShutdownDrainsAll(t *testing.T) {
	q := NewInMemoryCommandQueue(256)
	r := testRouter(q)

	if err := r.Route("good-token", trackerSnap(1, "live", "live", "", "", 0, 0)); err != nil {
		t.Fatalf("Unexpected route error: %v", err)
	}

	r.Shutdown()
	if r.Count() != 0 {
		t.Errorf("Expected no sessions after shutdown, got %d", r.Count())
	}
}
