package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "control_plane"

// Metrics holds all Prometheus instruments for the control plane.
type Metrics struct {
	WebhookEventsTotal *prometheus.CounterVec
	JobsTotal          *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	JobsReclaimedTotal prometheus.Counter
	QueueDepth         *prometheus.GaugeVec
	ProvisioningTotal  *prometheus.CounterVec
}

// New initializes and registers the metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use their own
// registry so parallel instances do not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhookEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Billing webhook deliveries by result.",
		}, []string{"result"}), // result: processed, duplicate, ignored, invalid_signature, error
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Job executions by type and outcome.",
		}, []string{"type", "outcome"}), // outcome: completed, requeued, dead
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "job_duration_seconds",
			Help:      "Job handler execution time by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		JobsReclaimedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs_reclaimed_total",
			Help:      "Stale running jobs returned to the queue.",
		}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of jobs per status.",
		}, []string{"status"}),
		ProvisioningTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "provisioning_total",
			Help:      "Tenant provisioning attempts by outcome.",
		}, []string{"outcome"}), // outcome: active, failed
	}
}
