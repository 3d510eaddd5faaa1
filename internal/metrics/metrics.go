package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Number of live WebSocket connections",
		},
	)

	MessagesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_messages_published_total",
			Help: "Chat messages published to the event bus",
		},
	)

	MessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_messages_delivered_total",
			Help: "Chat messages fanned out to room subscribers",
		},
	)

	NotificationsPushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_notifications_pushed_total",
			Help: "Notifications pushed to connected recipients",
		},
	)

	BusEventsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_bus_events_handled_total",
			Help: "Bus events handled by the subscriber process",
		},
		[]string{"topic", "kind"},
	)

	DeliveryTasksProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriber_delivery_tasks_processed_total",
			Help: "Notification delivery tasks processed by the worker",
		},
	)
)

// Init registers metrics with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(
		ConnectionsActive,
		MessagesPublished,
		MessagesDelivered,
		NotificationsPushed,
		BusEventsHandled,
		DeliveryTasksProcessed,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
