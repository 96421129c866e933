package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups the Prometheus collectors updated by lockon. A nil
// *Collectors is valid and records nothing.
type Collectors struct {
	// GuardCounter tracks the number of guarded calls that ran their continuation.
	GuardCounter prometheus.Counter
	// FailureCounter tracks guarded calls rejected before the continuation ran.
	FailureCounter *prometheus.CounterVec
	// WaitHistogram observes how long callers waited for a monitor.
	WaitHistogram prometheus.Histogram
	// MonitorGauge reports the number of live monitors in a registry.
	MonitorGauge prometheus.Gauge
}

// New creates an unregistered set of lockon collectors.
func New() *Collectors {
	return &Collectors{
		GuardCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockon_guard_total",
			Help: "Total number of guarded calls executed",
		}),
		FailureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockon_guard_failures_total",
			Help: "Total number of guarded calls rejected before execution",
		}, []string{"reason"}),
		WaitHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lockon_acquire_wait_seconds",
			Help:    "Time spent waiting to acquire a monitor",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		MonitorGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lockon_monitors_live",
			Help: "Current number of live monitors",
		}),
	}
}

// Register registers all collectors on reg.
func (c *Collectors) Register(reg prometheus.Registerer) {
	reg.MustRegister(c.GuardCounter, c.FailureCounter, c.WaitHistogram, c.MonitorGauge)
}

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// NewRegistered creates collectors and registers them on reg.
func NewRegistered(reg prometheus.Registerer) *Collectors {
	c := New()
	c.Register(reg)
	return c
}

// ObserveGuard records one executed guarded call.
func (c *Collectors) ObserveGuard() {
	if c != nil {
		c.GuardCounter.Inc()
	}
}

// ObserveFailure records a call rejected for reason.
func (c *Collectors) ObserveFailure(reason string) {
	if c != nil {
		c.FailureCounter.WithLabelValues(reason).Inc()
	}
}

// ObserveWait records the time spent acquiring a monitor, in seconds.
func (c *Collectors) ObserveWait(seconds float64) {
	if c != nil {
		c.WaitHistogram.Observe(seconds)
	}
}

// MonitorAdded increments the live monitor gauge.
func (c *Collectors) MonitorAdded() {
	if c != nil {
		c.MonitorGauge.Inc()
	}
}

// MonitorRemoved decrements the live monitor gauge.
func (c *Collectors) MonitorRemoved() {
	if c != nil {
		c.MonitorGauge.Dec()
	}
}
