package services

import (
	"fmt"
	"time"

	"gsi-service/logger"
)

// PersistenceWorker 消费命令队列并执行存储写入。
// 写入与摄取路径完全解耦：数据库短暂不可用时在这里重试，
// 命令留在队列里，摄取路径不会因为下游存储故障而失败
type PersistenceWorker struct {
	store  *MatchStore
	mirror *AMQPCommandPublisher // 可选，把命令镜像到AMQP
	queue  CommandQueue
	done   chan struct{}

	maxAttempts int
	baseBackoff time.Duration
}

// NewPersistenceWorker 创建持久化worker。mirror 可为 nil
func NewPersistenceWorker(store *MatchStore, queue CommandQueue, mirror *AMQPCommandPublisher) *PersistenceWorker {
	return &PersistenceWorker{
		store:       store,
		mirror:      mirror,
		queue:       queue,
		done:        make(chan struct{}),
		maxAttempts: 5,
		baseBackoff: 250 * time.Millisecond,
	}
}

// Start 启动消费循环
func (w *PersistenceWorker) Start() {
	go w.loop()
}

// Done 队列排空且关闭后此通道关闭
func (w *PersistenceWorker) Done() <-chan struct{} {
	return w.done
}

func (w *PersistenceWorker) loop() {
	for cmd := range w.queue.Consume() {
		if w.mirror != nil {
			if err := w.mirror.Publish(cmd); err != nil {
				logger.Errorf("[PersistenceWorker] AMQP mirror failed for %s: %v", cmd.Kind, err)
			}
		}
		w.applyWithRetry(cmd)
	}
	close(w.done)
	logger.Println("[PersistenceWorker] Queue drained, worker stopped")
}

// applyWithRetry 指数退避重试，容忍数据库的瞬时不可用
func (w *PersistenceWorker) applyWithRetry(cmd Command) {
	backoff := w.baseBackoff
	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if err = w.apply(cmd); err == nil {
			return
		}
		if attempt < w.maxAttempts {
			logger.Errorf("[PersistenceWorker] %s for %s failed (attempt %d/%d): %v, retrying in %s",
				cmd.Kind, cmd.MatchID, attempt, w.maxAttempts, err, backoff)
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	logger.Errorf("[PersistenceWorker] ❌ Giving up on %s for %s: %v", cmd.Kind, cmd.MatchID, err)
}

func (w *PersistenceWorker) apply(cmd Command) error {
	switch cmd.Kind {
	case CommandUpsertMatch, CommandCompleteMatch:
		if cmd.Match == nil {
			return fmt.Errorf("%s command without match payload", cmd.Kind)
		}
		return w.store.UpsertMatch(cmd.Match)
	case CommandUpsertRound:
		if cmd.Round == nil {
			return fmt.Errorf("%s command without round payload", cmd.Kind)
		}
		return w.store.UpsertRound(cmd.Round)
	case CommandUpsertPlayerRoundState:
		if cmd.PlayerState == nil {
			return fmt.Errorf("%s command without player state payload", cmd.Kind)
		}
		return w.store.UpsertPlayerRoundState(cmd.PlayerState)
	case CommandUpsertPlayerWeapon:
		if cmd.PlayerWeapon == nil {
			return fmt.Errorf("%s command without weapon payload", cmd.Kind)
		}
		return w.store.UpsertPlayerWeapon(cmd.PlayerWeapon)
	case CommandUpsertPlayerMatchStat:
		if cmd.MatchStat == nil {
			return fmt.Errorf("%s command without stat payload", cmd.Kind)
		}
		return w.store.UpsertPlayerMatchStat(cmd.MatchStat)
	default:
		logger.Printf("[PersistenceWorker] Unhandled command kind: %s", cmd.Kind)
		return nil
	}
}
