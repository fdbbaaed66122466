package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/config"
	"github.com/spec-kit/query-triage/internal/events"
	"github.com/spec-kit/query-triage/internal/observability"
)

const exportBuffer = 1024

// MessageWriter is the subset of *kafka.Writer used for export.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NotificationService exports lifecycle events to a Kafka topic. Export is
// best-effort: events are queued without blocking the publisher and dropped
// when the queue is full.
type NotificationService struct {
	dispatcher events.Dispatcher
	writer     MessageWriter
	queue      chan events.Event
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewKafkaWriter returns nil when no brokers are configured.
func NewKafkaWriter(cfg config.KafkaConfig) MessageWriter {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewNotificationService creates the service. A nil writer disables export.
func NewNotificationService(dispatcher events.Dispatcher, writer MessageWriter, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		writer:     writer,
		queue:      make(chan events.Event, exportBuffer),
		logger:     logger,
		metrics:    metrics,
	}
}

// Enabled reports whether a writer is configured.
func (n *NotificationService) Enabled() bool {
	return n != nil && n.writer != nil
}

// RegisterHandlers subscribes to every event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || !n.Enabled() {
		return
	}
	events.SubscribeAll(n.dispatcher, n.enqueue)
}

func (n *NotificationService) enqueue(_ context.Context, event events.Event) error {
	select {
	case n.queue <- event:
	default:
		n.metrics.RecordDrop("export_overflow")
		n.logger.Warn("event export queue full", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	}
	return nil
}

// Run writes queued events until ctx is done, then closes the writer.
func (n *NotificationService) Run(ctx context.Context) {
	if !n.Enabled() {
		return
	}
	defer func() {
		if err := n.writer.Close(); err != nil {
			n.logger.Warn("event writer close failed", zap.Error(err))
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			n.export(ctx, event)
		}
	}
}

func (n *NotificationService) export(ctx context.Context, event events.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = n.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.Query.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.Timestamp,
	})
	if err != nil {
		n.metrics.RecordDrop("export_error")
		n.logger.Warn("event export failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
