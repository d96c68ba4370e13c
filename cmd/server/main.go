package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"moldubot/config"
	"moldubot/internal/api"
	"moldubot/internal/repository"
	"moldubot/internal/service"
	"moldubot/pkg/db"
	"moldubot/pkg/logger"
	"moldubot/pkg/mq"
	"moldubot/pkg/otel"
	"moldubot/pkg/outbox"
	"moldubot/pkg/redis"
)

func main() {
	env := flag.String("env", "", "config env (defaults to CONFIG_ENV or local)")
	configDir := flag.String("config-dir", "", "config directory (defaults to CONFIG_DIR or ./config)")
	flag.Parse()

	cfg, err := config.Load(*env, *configDir)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName: cfg.OTel.ServiceName,
		Endpoint:    cfg.OTel.Endpoint,
		Enabled:     cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Warn("OpenTelemetry init failed, tracing disabled", zap.Error(err))
	} else {
		defer shutdownOtel()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting moldubot API server...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
		zap.Bool("intent_model", cfg.Intent.Enabled),
	)

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis 只用于拆解结果缓存，不可用时降级
	var rdb *goredis.Client
	if client, err := redis.NewRedisClient(ctx, cfg.Redis); err != nil {
		log.Warn("Redis unavailable, decomposition cache disabled", zap.Error(err))
	} else {
		rdb = client
		defer rdb.Close()
	}

	// MQ publisher 不可用时不发布 intent.decomposed 事件
	var events service.EventPublisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
	if err != nil {
		log.Warn("MQ publisher unavailable, intent events disabled", zap.Error(err))
	} else {
		events = publisher
		defer publisher.Close()
	}

	// Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	mailRepo := repository.NewMailRepository(dbConn)
	meetingRepo := repository.NewMeetingRepository(dbConn, outboxRepo)

	// Services
	parser := service.NewIntentParser(cfg.Intent, log)
	intentService := service.NewIntentService(parser, rdb, cfg.Intent.CacheTTL, events, log)
	mailService := service.NewMailService(mailRepo, log)
	meetingService := service.NewMeetingService(meetingRepo, log)
	executionService := service.NewExecutionService(mailService, meetingService, log)

	// 发送由 worker 负责，这里只用于管理接口的重放
	replayer := outbox.NewDispatcher(outboxRepo, nil, log)

	// Handlers
	router := api.NewRouter(
		api.NewIntentHandler(intentService),
		api.NewChatHandler(intentService, executionService, log),
		api.NewMeetingHandler(meetingService, log),
		api.NewAdminHandler(replayer, log),
		cfg.JWT.Secret,
		dbConn,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Handler(),
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("API server stopped")
}
