package services

import (
	"sync"
	"time"

	"gsi-service/logger"
)

// IngestStats 摄取统计追踪器，定期输出一段时间内的处理概况
type IngestStats struct {
	mu              sync.Mutex
	snapshots       int
	commands        int
	roundsFinalized int
	malformed       int
	authFailures    int
	sessionsCreated int
	sessionsExpired int
	lastReported    time.Time
	firstReport     bool
}

// NewIngestStats 创建统计追踪器
func NewIngestStats() *IngestStats {
	return &IngestStats{
		lastReported: time.Now(),
		firstReport:  true,
	}
}

// nil 接收者安全：未接线统计时各记录方法直接返回

func (t *IngestStats) RecordSnapshot() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snapshots++
	t.mu.Unlock()
}

func (t *IngestStats) RecordCommand() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.commands++
	t.mu.Unlock()
}

func (t *IngestStats) RecordRoundFinalized() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.roundsFinalized++
	t.mu.Unlock()
}

func (t *IngestStats) RecordMalformed() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.malformed++
	t.mu.Unlock()
}

func (t *IngestStats) RecordAuthFailure() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.authFailures++
	t.mu.Unlock()
}

func (t *IngestStats) RecordSessionCreated() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.sessionsCreated++
	t.mu.Unlock()
}

func (t *IngestStats) RecordSessionExpired() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.sessionsExpired++
	t.mu.Unlock()
}

// Snapshot 当前计数的拷贝，用于 /api/stats
func (t *IngestStats) Snapshot() map[string]int {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return map[string]int{
		"snapshots":        t.snapshots,
		"commands":         t.commands,
		"rounds_finalized": t.roundsFinalized,
		"malformed":        t.malformed,
		"auth_failures":    t.authFailures,
		"sessions_created": t.sessionsCreated,
		"sessions_expired": t.sessionsExpired,
	}
}

// report 输出并重置周期计数
func (t *IngestStats) report() {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReported)
	if t.snapshots == 0 && t.malformed == 0 && t.authFailures == 0 {
		t.lastReported = time.Now()
		return
	}

	logger.Printf("[IngestStats] last %.0fm: snapshots=%d commands=%d rounds=%d malformed=%d auth_failures=%d sessions +%d/-%d",
		elapsed.Minutes(), t.snapshots, t.commands, t.roundsFinalized,
		t.malformed, t.authFailures, t.sessionsCreated, t.sessionsExpired)

	if !t.firstReport {
		t.snapshots = 0
		t.commands = 0
		t.roundsFinalized = 0
		t.malformed = 0
		t.authFailures = 0
		t.sessionsCreated = 0
		t.sessionsExpired = 0
	}
	t.firstReport = false
	t.lastReported = time.Now()
}

// StartPeriodicReport 启动定期报告，stop 关闭后退出
func (t *IngestStats) StartPeriodicReport(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.report()
		case <-stop:
			return
		}
	}
}
