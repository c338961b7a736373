package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// 服务器配置
	Port string

	// 数据库配置
	DatabaseURL string

	// 会话配置
	SessionIdleTimeout time.Duration // 无快照到达后多久回收会话
	GameOverGrace      time.Duration // gameover 后保留会话的宽限期
	SessionBufferSize  int           // 每个会话的入站快照缓冲区

	// 持久化命令队列配置
	CommandQueueCapacity int

	// AMQP 配置 (可选，设置后把持久化命令镜像到交换机)
	AMQPURL      string
	AMQPExchange string

	// 其他配置
	Environment string
	LogFile     string
	DebugLog    bool
}

func Load() *Config {
	return &Config{
		// 服务器配置
		Port: getEnv("PORT", "3000"),

		// 数据库配置
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/gsi?sslmode=disable"),

		// 会话配置
		SessionIdleTimeout: time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_SECONDS", 600)) * time.Second,
		GameOverGrace:      time.Duration(getEnvInt("GAMEOVER_GRACE_SECONDS", 60)) * time.Second,
		SessionBufferSize:  getEnvInt("SESSION_BUFFER_SIZE", 64),

		// 队列配置
		CommandQueueCapacity: getEnvInt("COMMAND_QUEUE_CAPACITY", 4096),

		// AMQP 配置
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gsi-commands"),

		// 其他配置
		Environment: getEnv("ENVIRONMENT", "development"),
		LogFile:     getEnv("LOG_FILE", ""),
		DebugLog:    getEnv("DEBUG_LOG", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int
	fmt.Sscanf(value, "%d", &result)
	if result == 0 {
		return defaultValue
	}
	return result
}
