package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors exports service counters to prometheus. A nil *Collectors, or
// one built without a registerer, ignores every observation.
type Collectors struct {
	oracleCalls   *prometheus.CounterVec
	oracleLatency *prometheus.HistogramVec
	oracleTokens  *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	syncOps       *prometheus.CounterVec
}

// NewCollectors registers the service metrics on the provided registerer.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		return &Collectors{}
	}
	c := &Collectors{
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_oracle_calls_total",
			Help: "Model calls by agent and outcome.",
		}, []string{"agent", "outcome"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "basket_oracle_latency_seconds",
			Help:    "Latency of model calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
		oracleTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_oracle_tokens_total",
			Help: "Tokens consumed by model calls.",
		}, []string{"agent", "kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_price_cache_lookups_total",
			Help: "Price cache lookups by result.",
		}, []string{"result"}),
		syncOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "basket_sync_operations_total",
			Help: "Remote sync operations by direction and outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(c.oracleCalls, c.oracleLatency, c.oracleTokens, c.cacheLookups, c.syncOps)
	return c
}

// ObserveCall records one model call.
func (c *Collectors) ObserveCall(agent, outcome string, latency time.Duration, promptTokens, completionTokens int) {
	if c == nil || c.oracleCalls == nil {
		return
	}
	agent = normalizeLabel(agent)
	c.oracleCalls.WithLabelValues(agent, normalizeLabel(outcome)).Inc()
	c.oracleLatency.WithLabelValues(agent).Observe(latency.Seconds())
	c.oracleTokens.WithLabelValues(agent, "prompt").Add(float64(promptTokens))
	c.oracleTokens.WithLabelValues(agent, "completion").Add(float64(completionTokens))
}

func (c *Collectors) CacheHit() {
	if c == nil || c.cacheLookups == nil {
		return
	}
	c.cacheLookups.WithLabelValues("hit").Inc()
}

func (c *Collectors) CacheMiss() {
	if c == nil || c.cacheLookups == nil {
		return
	}
	c.cacheLookups.WithLabelValues("miss").Inc()
}

// SyncOp records a push or pull against the remote store.
func (c *Collectors) SyncOp(op string, err error) {
	if c == nil || c.syncOps == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.syncOps.WithLabelValues(normalizeLabel(op), outcome).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
