package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors shared by the three services.
//
// Registration happens once per process; every caller gets the same instance.
//
// Metrics:
//   - comanda_events_published_total{pattern,result}
//   - comanda_events_consumed_total{queue,outcome} - outcome is ack, retry or dlq
//   - comanda_event_handle_duration_seconds{queue}
//   - comanda_rpc_duration_seconds{service,result}
//   - comanda_checkouts_total{result} - result is created, appended or failed
//   - comanda_item_transitions_total{status}
//   - comanda_kitchen_timer_ticks_total{result}
//   - comanda_kitchen_active_tickets
//   - comanda_notifications_created_total{result} - result is created or duplicate
type Metrics struct {
	EventsPublished     *prometheus.CounterVec
	EventsConsumed      *prometheus.CounterVec
	EventHandleDuration *prometheus.HistogramVec

	RPCDuration *prometheus.HistogramVec

	Checkouts       *prometheus.CounterVec
	ItemTransitions *prometheus.CounterVec

	TimerTicks    *prometheus.CounterVec
	ActiveTickets prometheus.Gauge

	NotificationsCreated *prometheus.CounterVec
}

func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comanda_events_published_total",
					Help: "Events published to the broker",
				},
				[]string{"pattern", "result"},
			),
			EventsConsumed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comanda_events_consumed_total",
					Help: "Deliveries settled by consumers, by outcome",
				},
				[]string{"queue", "outcome"},
			),
			EventHandleDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "comanda_event_handle_duration_seconds",
					Help:    "Time spent in event handlers",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"queue"},
			),
			RPCDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "comanda_rpc_duration_seconds",
					Help:    "Duration of synchronous calls to collaborator services",
					Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"service", "result"},
			),
			Checkouts: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comanda_checkouts_total",
					Help: "Checkouts processed",
				},
				[]string{"result"},
			),
			ItemTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comanda_item_transitions_total",
					Help: "Order items moved to a status",
				},
				[]string{"status"},
			),
			TimerTicks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comanda_kitchen_timer_ticks_total",
					Help: "Kitchen timer loop iterations",
				},
				[]string{"result"},
			),
			ActiveTickets: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "comanda_kitchen_active_tickets",
					Help: "Running kitchen tickets seen on the last timer tick",
				},
			),
			NotificationsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comanda_notifications_created_total",
					Help: "Waiter notifications handled from new items events",
				},
				[]string{"result"},
			),
		}
	})
	return globalMetrics
}
