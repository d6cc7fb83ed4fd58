package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts lifecycle outcomes and resolver traffic
type Metrics struct {
	registry *prometheus.Registry

	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	logouts         prometheus.Counter
	resolverLookups *prometheus.CounterVec
}

// NewMetrics creates the metric set on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "refreshes_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		logouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		resolverLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "resolver_lookups_total",
			Help:      "Permission endpoint resolutions by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Login outcomes
func (m *Metrics) LoginSucceeded() { m.logins.WithLabelValues("success").Inc() }
func (m *Metrics) LoginFailed()    { m.logins.WithLabelValues("failure").Inc() }

// Refresh outcomes
func (m *Metrics) RefreshSucceeded() { m.refreshes.WithLabelValues("success").Inc() }
func (m *Metrics) RefreshFailed()    { m.refreshes.WithLabelValues("failure").Inc() }

// LogoutCompleted counts a completed logout
func (m *Metrics) LogoutCompleted() { m.logouts.Inc() }

// Resolver results
func (m *Metrics) ResolverHit()  { m.resolverLookups.WithLabelValues("hit").Inc() }
func (m *Metrics) ResolverMiss() { m.resolverLookups.WithLabelValues("miss").Inc() }
