package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AgentMetrics holds the Prometheus metrics for the device-side agent.
type AgentMetrics struct {
	OutboxPending   prometheus.Gauge
	EventsDelivered prometheus.Counter
	DeliveryErrors  prometheus.Counter
	SyncPassesTotal *prometheus.CounterVec
}

// NewAgentMetrics initializes and registers the agent metrics.
func NewAgentMetrics() *AgentMetrics {
	return &AgentMetrics{
		OutboxPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "pildhora",
			Subsystem: "agent",
			Name:      "outbox_pending_events",
			Help:      "Number of events waiting in the local outbox.",
		}),
		EventsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pildhora",
			Subsystem: "agent",
			Name:      "events_delivered_total",
			Help:      "Total number of events acknowledged by the remote store.",
		}),
		DeliveryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pildhora",
			Subsystem: "agent",
			Name:      "delivery_errors_total",
			Help:      "Total number of failed delivery attempts.",
		}),
		SyncPassesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pildhora",
			Subsystem: "agent",
			Name:      "sync_passes_total",
			Help:      "Total number of sync passes by outcome.",
		}, []string{"outcome"}), // outcome: completed, skipped
	}
}

// ServerMetrics holds the Prometheus metrics for the remote store service.
type ServerMetrics struct {
	EventsTotal          *prometheus.CounterVec
	DeviceKeyCacheHits   prometheus.Counter
	DeviceKeyCacheMisses prometheus.Counter
}

// NewServerMetrics initializes and registers the server metrics.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pildhora",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of ingested events by status.",
		}, []string{"status"}), // status: accepted, rejected_validation, rejected_actor, rejected_rate, error_store
		DeviceKeyCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pildhora",
			Subsystem: "auth",
			Name:      "device_key_cache_hits_total",
			Help:      "Total number of device key cache hits.",
		}),
		DeviceKeyCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pildhora",
			Subsystem: "auth",
			Name:      "device_key_cache_misses_total",
			Help:      "Total number of device key cache misses.",
		}),
	}
}
