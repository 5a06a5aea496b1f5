package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nexus/internal/config"
	"nexus/internal/handler"
	"nexus/internal/infrastructure/cache"
	"nexus/internal/infrastructure/database"
	"nexus/internal/infrastructure/lock"
	"nexus/internal/infrastructure/mq"
	"nexus/internal/job"
	"nexus/internal/logging"
	"nexus/internal/realtime"
	"nexus/internal/repository"
	"nexus/internal/service"
	"nexus/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log)

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		log.WithError(err).Fatal("初始化 ID 生成器失败")
	}

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("初始化数据库失败")
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化 Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("连接 Redis 失败")
		}
		defer redisClient.Close()
	}

	var locker lock.Locker = lock.NewKeyedLocker()
	if cfg.Ledger.Lock == config.LockRedis {
		locker = lock.NewRedisLocker(redisClient, cfg.Ledger.LockTTL, cfg.Ledger.LockRetryInterval, cfg.Ledger.LockMaxRetries)
	}
	log.WithField("lock", cfg.Ledger.Lock).Info("余额锁已就绪")

	// 初始化 Kafka，启动 outbox 投递
	if cfg.Kafka.Enabled {
		publisher, err := mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			log.WithError(err).Fatal("初始化 Kafka 失败")
		}
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(db, publisher, cfg.Outbox, log)
		go outboxSender.Start(ctx)
	}

	ledger := service.NewLedgerService(db, locker, log, cfg.LedgerEventsTopic())
	stats := service.NewStatsService(db, cfg.Stats)

	registry := realtime.NewRegistry(realtime.RegistryOptions{
		SendQueueSize: cfg.Realtime.SendQueueSize,
		RateLimit:     cfg.Realtime.RateLimit,
		RateBurst:     cfg.Realtime.RateBurst,
	}, log)
	relay := realtime.NewRelay(repository.NewChatRepository(db), registry, log)
	gateway := realtime.NewGateway(registry, relay, ledger, realtime.GatewayOptions{
		WriteTimeout:    cfg.Realtime.WriteTimeout,
		PongTimeout:     cfg.Realtime.PongTimeout,
		PingInterval:    cfg.Realtime.PingInterval,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
	}, log)

	// 设置路由
	router := handler.SetupRouter(handler.NewHandler(ledger, stats, relay), handler.RouterOptions{
		Mode:         cfg.Server.Mode,
		RealtimePath: cfg.Realtime.Path,
		Realtime:     gateway,
	}, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"realtime": cfg.Realtime.Path,
			"driver":   cfg.Database.Driver,
		}).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("服务启动失败")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// websocket 连接已被 hijack，Shutdown 不会等待它们
	registry.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("服务关闭异常")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("服务已关闭")
}
