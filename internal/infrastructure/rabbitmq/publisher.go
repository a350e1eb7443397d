package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"comanda/internal/events"
	"comanda/internal/infrastructure/metrics"
)

// Publisher implements events.Publisher on the shared fanout exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPublisher(ch Channel, exchange string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, msg events.Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", msg.Pattern, err)
	}
	body, err := json.Marshal(events.Envelope{Pattern: msg.Pattern, Data: data})
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.ID,
		Timestamp:    p.now(),
		Headers:      amqp091.Table{"pattern": msg.Pattern},
		Body:         body,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, publishing)
	p.mu.Unlock()

	if err != nil {
		p.metrics.EventsPublished.WithLabelValues(msg.Pattern, "error").Inc()
		p.logger.Error("publishing event",
			zap.Error(err),
			zap.String("pattern", msg.Pattern),
			zap.String("messageId", msg.ID),
		)
		return fmt.Errorf("publishing %s: %w", msg.Pattern, err)
	}

	p.metrics.EventsPublished.WithLabelValues(msg.Pattern, "ok").Inc()
	p.logger.Debug("event published",
		zap.String("pattern", msg.Pattern),
		zap.String("messageId", msg.ID),
		zap.Int("size", len(body)),
	)
	return nil
}
