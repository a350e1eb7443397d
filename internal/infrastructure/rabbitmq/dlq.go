package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// FailureRecord is what the DLQ consumer reads back from a dead message.
type FailureRecord struct {
	MessageID        string
	Pattern          string
	Attempts         int64
	OriginalQueue    string
	OriginalExchange string
	Reason           string
	FailedAt         string
	PublishedAt      time.Time
	Body             string
}

func ReadFailure(d amqp091.Delivery) FailureRecord {
	str := func(key string) string {
		s, _ := d.Headers[key].(string)
		return s
	}
	return FailureRecord{
		MessageID:        d.MessageId,
		Pattern:          str("pattern"),
		Attempts:         toInt64(d.Headers[HeaderAttempts]),
		OriginalQueue:    str(HeaderOriginalQueue),
		OriginalExchange: str(HeaderOriginalExchange),
		Reason:           str(HeaderFailureReason),
		FailedAt:         str(HeaderFailedAt),
		PublishedAt:      d.Timestamp,
		Body:             string(d.Body),
	}
}

// DLQConsumer logs every dead message and acknowledges it. Nothing is replayed.
type DLQConsumer struct {
	ch       Channel
	topology Topology
	logger   *zap.Logger
	onRecord func(FailureRecord)
}

func NewDLQConsumer(ch Channel, t Topology, logger *zap.Logger) *DLQConsumer {
	return &DLQConsumer{
		ch:       ch,
		topology: t,
		logger:   logger.With(zap.String("queue", t.DLQ())),
		onRecord: func(FailureRecord) {},
	}
}

// OnRecord registers a callback invoked for each dead message after logging.
func (c *DLQConsumer) OnRecord(fn func(FailureRecord)) {
	c.onRecord = fn
}

func (c *DLQConsumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("setting qos: %w", err)
	}
	msgs, err := c.ch.Consume(c.topology.DLQ(), "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", c.topology.DLQ(), err)
	}

	c.logger.Info("dead letter consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.topology.DLQ())
			}
			c.Process(d)
		}
	}
}

func (c *DLQConsumer) Process(d amqp091.Delivery) {
	rec := ReadFailure(d)
	c.logger.Error("dead letter",
		zap.String("messageId", rec.MessageID),
		zap.String("pattern", rec.Pattern),
		zap.Int64("attempts", rec.Attempts),
		zap.String("originalQueue", rec.OriginalQueue),
		zap.String("originalExchange", rec.OriginalExchange),
		zap.String("reason", rec.Reason),
		zap.String("failedAt", rec.FailedAt),
		zap.Time("publishedAt", rec.PublishedAt),
		zap.String("body", rec.Body),
	)
	c.onRecord(rec)

	if err := d.Ack(false); err != nil {
		c.logger.Error("acking dead letter", zap.Error(err), zap.String("messageId", rec.MessageID))
	}
}
