// Package metrics exports entity activity as Prometheus counters
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "activerow"

// Collector counts flushes, deletes, validation failures and permission
// denials per model. It satisfies entity.Observer.
type Collector struct {
	flushes     *prometheus.CounterVec
	deletes     *prometheus.CounterVec
	validations *prometheus.CounterVec
	denials     *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Entity flushes by model and outcome.",
		}, []string{"model", "outcome"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Entities deleted by model.",
		}, []string{"model"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Rejected field writes by model and field.",
		}, []string{"model", "field"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denials_total",
			Help:      "Denied create and delete operations by model.",
		}, []string{"model", "operation"}),
	}

	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.flushes, c.deletes, c.validations, c.denials} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Flushed(model, outcome string) {
	c.flushes.WithLabelValues(model, outcome).Inc()
}

func (c *Collector) Deleted(model string) {
	c.deletes.WithLabelValues(model).Inc()
}

func (c *Collector) ValidationFailed(model, field string) {
	c.validations.WithLabelValues(model, field).Inc()
}

func (c *Collector) PermissionDenied(model, operation string) {
	c.denials.WithLabelValues(model, operation).Inc()
}
