package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Connect dials NATS and keeps reconnecting in the background. Broadcasts are
// display-only, so a lost connection never blocks the caller.
func Connect(url, name string, logger *zap.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	logger.Info("connected to nats", zap.String("url", url))
	return nc, nil
}

// TimerSubject is the per-tenant subject carrying kitchen timer snapshots.
func TimerSubject(tenantID string) string {
	return "kitchen." + subjectToken(tenantID) + ".timers"
}

// subjectToken keeps tenant ids from adding subject levels or wildcards.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

type Broadcaster struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewBroadcaster(conn *nats.Conn, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{conn: conn, logger: logger}
}

// Broadcast publishes one JSON message with every timer of the tenant.
func (b *Broadcaster) Broadcast(ctx context.Context, tenantID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal timer broadcast: %w", err)
	}
	if err := b.conn.Publish(TimerSubject(tenantID), data); err != nil {
		return fmt.Errorf("publish timer broadcast: %w", err)
	}
	return nil
}

// Subscribe delivers every broadcast for tenantID to ch until the returned
// func is called.
func (b *Broadcaster) Subscribe(tenantID string, ch chan *nats.Msg) (func(), error) {
	sub, err := b.conn.ChanSubscribe(TimerSubject(tenantID), ch)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", TimerSubject(tenantID), err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Debug("unsubscribe failed", zap.Error(err))
		}
	}, nil
}
