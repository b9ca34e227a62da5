package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/staffbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/staffbook/libs/otel"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	source    Source
	writer    Writer
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

// NewKafkaWriter keys messages by aggregate id so one appointment's events stay ordered.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewPublisher(source Source, writer Writer, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}
	defer func() { _ = p.writer.Close() }()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishOnce(ctx)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox events published", "count", n)
			}
		}
	}
}

// PublishOnce drains one batch.
func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	return p.source.PublishBatch(ctx, p.batchSize, func(ctx context.Context, events []Event) error {
		msgs := make([]kafka.Message, 0, len(events))
		for _, e := range events {
			msgCtx := otelx.ContextWithTraceContext(ctx, e.Traceparent, e.Tracestate)
			headers := kafkax.EventHeaders(e.EventID, e.EventType, e.AggregateType)
			msgs = append(msgs, kafka.Message{
				Topic:   e.EventType,
				Key:     []byte(e.AggregateID),
				Value:   e.Payload,
				Headers: kafkax.InjectTraceHeaders(msgCtx, headers),
			})
		}
		return p.writer.WriteMessages(ctx, msgs...)
	})
}
