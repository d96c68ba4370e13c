package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"moldubot/pkg/logger"
	"moldubot/pkg/metrics"
	"moldubot/pkg/otel"
	"moldubot/pkg/trace"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// ConsumerConfig 队列与绑定
type ConsumerConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
	Prefetch   int
	// Name 用于 DLQ 头 x-failed-at 和消费者 tag
	Name string
}

type Consumer struct {
	cfg     ConsumerConfig
	conn    *amqp091.Connection
	channel *amqp091.Channel
	handler MessageHandler
	logger  *zap.Logger
}

// NewConsumer 声明 exchange、队列、死信队列并完成绑定
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	cfg.Exchange = exchangeOrDefault(cfg.Exchange)
	if cfg.Name == "" {
		cfg.Name = "worker"
	}

	conn, err := NewConnection(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := DeclareExchange(ch, cfg.Exchange); err != nil {
		return fail(fmt.Errorf("failed to declare exchange: %w", err))
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare dlq exchange: %w", err))
	}
	if _, err := DeclareDLQQueue(ch, cfg.RoutingKey); err != nil {
		return fail(err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return fail(fmt.Errorf("failed to set qos: %w", err))
		}
	}

	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fail(fmt.Errorf("failed to bind queue: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", cfg.RoutingKey),
		zap.String("queue", cfg.Queue),
		zap.String("exchange", cfg.Exchange),
	)

	return &Consumer{cfg: cfg, conn: conn, channel: ch, logger: logger}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Run 阻塞消费直到 ctx 取消或 delivery channel 关闭
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.cfg.Queue,
		c.cfg.Name,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.cfg.RoutingKey),
		zap.String("queue", c.cfg.Queue),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", c.cfg.Queue)
			}
			c.handle(ctx, msg)
		}
	}
}

// handle 保证每条消息都会被 ack 或 nack
func (c *Consumer) handle(parent context.Context, msg amqp091.Delivery) {
	ctx := otel.ExtractMQ(parent, msg.Headers)
	traceID, _ := msg.Headers[trace.HeaderName].(string)
	if traceID == "" {
		traceID = trace.GenerateTraceID()
	}
	ctx = trace.WithContext(ctx, traceID)
	ctx, span := otel.MQConsumeSpan(ctx, msg.RoutingKey, c.cfg.Queue)
	defer span.End()

	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.cfg.Queue),
		zap.String("message_id", msg.MessageId),
	)
	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(msg.RoutingKey, c.cfg.Queue, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			c.deadLetter(ctx, log, msg, fmt.Errorf("handler panic: %v", r))
		}
	}()

	err := c.handler(ctx, msg.Body)
	switch {
	case err == nil:
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
		}
	case IsPermanent(err):
		log.Error("Handler failed permanently, sending to DLQ", zap.Error(err))
		c.deadLetter(ctx, log, msg, err)
	default:
		// 可重试失败 → 重新入队
		log.Warn("Handler error, requeueing", zap.Error(err))
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, cause error) {
	if err := publishToDLQ(ctx, c.channel, msg, cause, c.cfg.Name); err != nil {
		log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack dead-lettered message", zap.Error(err))
	}
}
