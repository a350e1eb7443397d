package rabbitmq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Topology names the exchanges and queues of one consuming service.
//
//	<exchange> (fanout) -> <svc>.events
//	<svc>.events --reject--> <svc>.dlx [<svc>.events.retry] -> <svc>.events.retry
//	<svc>.events.retry --ttl--> "" [<svc>.events] -> <svc>.events
//	terminal failures: <svc>.dlx [<svc>.events.dlq] -> <svc>.events.dlq
type Topology struct {
	Exchange   string
	Service    string
	RetryDelay time.Duration
}

func (t Topology) Queue() string      { return t.Service + ".events" }
func (t Topology) RetryQueue() string { return t.Queue() + ".retry" }
func (t Topology) DLQ() string        { return t.Queue() + ".dlq" }
func (t Topology) DLX() string        { return t.Service + ".dlx" }

// Declare is idempotent; every service runs it on start.
func Declare(ch Channel, t Topology) error {
	if err := ch.ExchangeDeclare(t.Exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", t.Exchange, err)
	}
	if err := ch.ExchangeDeclare(t.DLX(), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", t.DLX(), err)
	}

	queues := []struct {
		name string
		args amqp091.Table
	}{
		{t.Queue(), amqp091.Table{
			"x-dead-letter-exchange":    t.DLX(),
			"x-dead-letter-routing-key": t.RetryQueue(),
		}},
		{t.RetryQueue(), amqp091.Table{
			"x-message-ttl":             t.RetryDelay.Milliseconds(),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": t.Queue(),
		}},
		{t.DLQ(), nil},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declaring queue %s: %w", q.name, err)
		}
	}

	bindings := []struct {
		queue, key, exchange string
	}{
		{t.Queue(), "", t.Exchange},
		{t.RetryQueue(), t.RetryQueue(), t.DLX()},
		{t.DLQ(), t.DLQ(), t.DLX()},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("binding queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
