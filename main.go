package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gsi-service/config"
	"gsi-service/database"
	"gsi-service/logger"
	"gsi-service/services"
	"gsi-service/web"
)

func main() {
	logger.Println("Starting CS2 GSI Service...")

	// 加载配置
	cfg := config.Load()

	if cfg.LogFile != "" {
		if err := logger.SetLogFile(cfg.LogFile); err != nil {
			logger.Errorf("Failed to open log file %s: %v", cfg.LogFile, err)
		}
	}
	logger.SetDebug(cfg.DebugLog)

	// 连接数据库
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// 运行数据库迁移
	if err := database.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	logger.Println("Database connected and migrated")

	// 加载武器参考目录 (只读，全部会话共享)
	catalog, err := services.LoadWeaponCatalog(db)
	if err != nil {
		logger.Fatalf("Failed to load weapon catalog: %v", err)
	}

	// 创建命令队列和持久化worker
	queue := services.NewInMemoryCommandQueue(cfg.CommandQueueCapacity)

	var mirror *services.AMQPCommandPublisher
	if cfg.AMQPURL != "" {
		mirror, err = services.NewAMQPCommandPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatalf("Failed to connect to AMQP: %v", err)
		}
		logger.Printf("[AMQP] Command mirror connected, exchange: %s", cfg.AMQPExchange)
	}

	store := services.NewMatchStore(db, catalog)
	worker := services.NewPersistenceWorker(store, queue, mirror)
	worker.Start()

	logger.Println("Persistence worker started")

	// 创建WebSocket Hub
	wsHub := web.NewHub()
	go wsHub.Run()

	// 创建摄取统计 (5分钟间隔报告)
	stats := services.NewIngestStats()
	statsStop := make(chan struct{})
	go stats.StartPeriodicReport(5*time.Minute, statsStop)

	// token解析器，启动时预热缓存
	resolver := services.NewDBTokenResolver(db)
	if err := resolver.LoadCacheFromDB(); err != nil {
		logger.Fatalf("Failed to load token cache: %v", err)
	}

	// 会话路由器
	router := services.NewSessionRouter(resolver, queue, wsHub, stats, services.RouterConfig{
		IdleTimeout:   cfg.SessionIdleTimeout,
		GameOverGrace: cfg.GameOverGrace,
		SessionBuffer: cfg.SessionBufferSize,
	})
	router.StartReaper()

	// 启动Web服务器
	server := web.NewServer(cfg, router, store, stats, wsHub)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Web server error: %v", err)
		}
	}()

	logger.Printf("Web server started on port %s", cfg.Port)
	logger.Println("Service is running. Press Ctrl+C to stop.")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("Shutting down service...")

	// 先停入口，再排空会话，最后关闭队列等worker写完
	server.Stop()
	router.Shutdown()
	close(statsStop)
	queue.Close()
	<-worker.Done()
	if mirror != nil {
		mirror.Close()
	}

	logger.Println("Service stopped")
}
