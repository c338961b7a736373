package services

import (
	"errors"
	"sync"
)

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("command queue closed")

// InMemoryCommandQueue 是 CommandQueue 接口的内存实现。
// 与丢弃式broker不同，Publish 在缓冲区满时阻塞：背压沿会话goroutine传导到
// 路由器和网关 (降低接受速度)，而不是静默丢弃已提交的命令。
type InMemoryCommandQueue struct {
	ch     chan Command
	mu     sync.RWMutex
	closed bool
}

// NewInMemoryCommandQueue 创建指定容量的内存队列
func NewInMemoryCommandQueue(capacity int) *InMemoryCommandQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &InMemoryCommandQueue{
		ch: make(chan Command, capacity),
	}
}

// Publish 实现 CommandQueue 接口
func (q *InMemoryCommandQueue) Publish(cmd Command) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.ch <- cmd
	return nil
}

// Consume 实现 CommandQueue 接口
func (q *InMemoryCommandQueue) Consume() <-chan Command {
	return q.ch
}

// Len 当前排队的命令数
func (q *InMemoryCommandQueue) Len() int {
	return len(q.ch)
}

// Close 实现 CommandQueue 接口
func (q *InMemoryCommandQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}
