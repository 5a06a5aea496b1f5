package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nexus"

// 投递结果
const (
	DeliveryDelivered    = "delivered"
	DeliveryClosed       = "closed"
	DeliveryBackpressure = "backpressure"
)

var (
	// Registry 应用自身的 Prometheus 指标
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	ledgerCredits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credits_total",
			Help:      "Balance credits by type and result.",
		},
		[]string{"type", "result"},
	)

	ledgerCreditDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credit_duration_seconds",
			Help:      "Duration of a credit including lock wait.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	realtimeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "sessions",
			Help:      "Current number of live realtime sessions.",
		},
	)

	realtimeDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Broadcast deliveries per recipient by result.",
		},
		[]string{"result"},
	)

	realtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Inbound realtime events by type and result.",
		},
		[]string{"type", "result"},
	)

	chatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages by persistence result.",
		},
		[]string{"result"},
	)

	outboxMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "messages_total",
			Help:      "Outbox messages by publish result.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		ledgerCredits,
		ledgerCreditDuration,
		realtimeSessions,
		realtimeDeliveries,
		realtimeEvents,
		chatMessages,
		outboxMessages,
	)
}

// Handler 暴露 /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordCredit(txType, result string, duration time.Duration) {
	ledgerCredits.WithLabelValues(txType, result).Inc()
	ledgerCreditDuration.Observe(duration.Seconds())
}

func SessionOpened() { realtimeSessions.Inc() }

func SessionClosed() { realtimeSessions.Dec() }

func RecordDelivery(result string) {
	realtimeDeliveries.WithLabelValues(result).Inc()
}

func RecordEvent(eventType, result string) {
	realtimeEvents.WithLabelValues(eventType, result).Inc()
}

func RecordChatMessage(result string) {
	chatMessages.WithLabelValues(result).Inc()
}

func RecordOutbox(result string) {
	outboxMessages.WithLabelValues(result).Inc()
}
