package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"gsi-service/logger"
)

// ErrMirrorUnavailable AMQP 镜像连接暂时不可用
var ErrMirrorUnavailable = errors.New("amqp mirror unavailable")

// ReconnectConfig 重连配置
type ReconnectConfig struct {
	InitialDelay  time.Duration // 初始延迟
	MaxDelay      time.Duration // 最大延迟
	BackoffFactor float64       // 退避因子
}

// DefaultReconnectConfig 默认重连配置：无限重试，指数退避
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		InitialDelay:  1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
	}
}

// AMQPCommandPublisher 把持久化命令镜像到 AMQP 交换机，供下游 (分析层) 消费。
// 可选组件：镜像失败只记日志，绝不影响本地持久化路径。
// 连接断开后自动重连，断线期间的命令跳过镜像
type AMQPCommandPublisher struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewAMQPCommandPublisher 建立 AMQP 连接并声明 topic 交换机
func NewAMQPCommandPublisher(url, exchange string) (*AMQPCommandPublisher, error) {
	p := &AMQPCommandPublisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.monitorConnection(DefaultReconnectConfig())
	return p, nil
}

// connect 建立连接、打开通道并声明交换机
func (p *AMQPCommandPublisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 60 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // auto-delete
		false,      // internal
		false,      // no-wait
		nil,        // args
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = channel
	p.mu.Unlock()

	logger.Printf("[AMQPPublisher] ✅ Connected, mirroring commands to exchange %s", p.exchange)
	return nil
}

// monitorConnection 监控连接状态并自动重连
func (p *AMQPCommandPublisher) monitorConnection(config *ReconnectConfig) {
	currentDelay := config.InitialDelay

	for {
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return
		}

		closeErr := <-conn.NotifyClose(make(chan *amqp.Error))
		if closeErr == nil {
			// 正常关闭
			logger.Println("[AMQPPublisher] Connection closed normally")
			return
		}

		logger.Errorf("[AMQPPublisher] ⚠️  Connection lost: %v", closeErr)

		p.mu.Lock()
		p.conn = nil
		p.channel = nil
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return
		}

		for {
			logger.Printf("[AMQPPublisher] 🔄 Reconnecting in %v...", currentDelay)
			time.Sleep(currentDelay)

			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if closed {
				return
			}

			if err := p.connect(); err != nil {
				logger.Errorf("[AMQPPublisher] ❌ Reconnect failed: %v", err)
				currentDelay = time.Duration(float64(currentDelay) * config.BackoffFactor)
				if currentDelay > config.MaxDelay {
					currentDelay = config.MaxDelay
				}
				continue
			}

			currentDelay = config.InitialDelay
			break
		}
	}
}

// Publish 以 JSON 发布一条命令，routing key 为命令类型
func (p *AMQPCommandPublisher) Publish(cmd Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	p.mu.Lock()
	channel := p.channel
	p.mu.Unlock()
	if channel == nil {
		return ErrMirrorUnavailable
	}

	return channel.Publish(
		p.exchange,
		string(cmd.Kind), // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
}

// Close 关闭通道和连接
func (p *AMQPCommandPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
