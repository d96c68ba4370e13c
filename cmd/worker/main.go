package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	mqcontract "moldubot/contracts/mq"
	"moldubot/config"
	"moldubot/internal/mqhandler"
	"moldubot/internal/repository"
	"moldubot/pkg/db"
	"moldubot/pkg/logger"
	"moldubot/pkg/mq"
	"moldubot/pkg/otel"
	"moldubot/pkg/outbox"
	"moldubot/pkg/redis"
	"moldubot/pkg/util"
)

func main() {
	env := flag.String("env", "", "config env (defaults to CONFIG_ENV or local)")
	configDir := flag.String("config-dir", "", "config directory (defaults to CONFIG_DIR or ./config)")
	replayFailed := flag.Int("replay-failed", 0, "requeue up to N failed outbox events and exit")
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

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName: cfg.OTel.ServiceName + "-worker",
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

	log.Info("Starting worker...")

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	outboxRepo := outbox.NewRepository(dbConn)

	if *replayFailed > 0 {
		n, err := outbox.NewDispatcher(outboxRepo, nil, log).ReplayFailed(ctx, *replayFailed)
		if err != nil {
			log.Fatal("Replay failed", zap.Error(err))
		}
		log.Info("Failed outbox events requeued", zap.Int("count", n))
		return
	}

	// Redis
	rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, cfg.Worker.DedupTTL, log)
	retries := util.NewRetryCounter(rdb, cfg.Worker.DedupTTL)
	guard := mqhandler.NewGuard(deduper, retries, cfg.Worker.MaxRetries, log)

	// MQ publisher for the outbox dispatcher
	publisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Handlers
	auditHandler := mqhandler.NewIntentDecomposedHandler(repository.NewDecompositionRepository(dbConn), guard, log)
	notifyHandler := mqhandler.NewMeetingBookedHandler(repository.NewNotificationRepository(dbConn), guard, log)

	consumers := []struct {
		queue      string
		routingKey string
		handle     mq.MessageHandler
	}{
		{cfg.Worker.Queue, mqcontract.RoutingKeyIntentDecomposed, auditHandler.Handle},
		{cfg.Worker.NotifyQueue, mqcontract.RoutingKeyMeetingBooked, notifyHandler.Handle},
	}

	var wg sync.WaitGroup
	for _, c := range consumers {
		log.Info("Initializing consumer",
			zap.String("queue", c.queue),
			zap.String("routing_key", c.routingKey),
		)
		consumer, err := mq.NewConsumer(mq.ConsumerConfig{
			URL:        cfg.MQ.URL,
			Exchange:   cfg.MQ.Exchange,
			Queue:      c.queue,
			RoutingKey: c.routingKey,
			Prefetch:   cfg.MQ.Prefetch,
			Name:       c.queue,
		}, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("queue", c.queue), zap.Error(err))
		}
		defer consumer.Close()
		consumer.SetHandler(c.handle)

		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Consumer stopped", zap.String("queue", queue), zap.Error(err))
				stop()
			}
		}(c.queue)
	}

	// Outbox dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithMaxRetries(int(cfg.Worker.MaxRetries)).
		WithInterval(cfg.Worker.OutboxInterval).
		WithBatchSize(cfg.Worker.OutboxBatch)

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()

	log.Info("Worker is ready to process messages")
	<-ctx.Done()

	log.Info("Shutting down worker gracefully...")
	wg.Wait()
	log.Info("Worker stopped")
}
