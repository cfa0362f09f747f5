// Package metrics exposes the Prometheus collectors for token refreshes, rate limiting and journal sync.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is used by the transport, session and sync layers.
type Recorder interface {
	RecordRateLimitWait(problem string, wait time.Duration)
	RecordProviderStatus(statusCode int)
	RecordTokenRefresh(outcome string)
	RecordSyncResult(status string, entries int, duration time.Duration)
}

type Collector struct {
	rateLimitWaits *prometheus.CounterVec
	rateLimitSleep prometheus.Counter
	providerStatus *prometheus.CounterVec
	tokenRefreshes *prometheus.CounterVec
	syncResults    *prometheus.CounterVec
	syncEntries    prometheus.Counter
	syncDuration   prometheus.Histogram
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgersync_rate_limit_waits_total",
			Help: "Number of 429 responses that were waited out, by problem class",
		}, []string{"problem"}),
		rateLimitSleep: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgersync_rate_limit_sleep_seconds_total",
			Help: "Total time spent sleeping on rate limit backoff",
		}),
		providerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgersync_provider_http_status_total",
			Help: "Provider responses by HTTP status code",
		}, []string{"status_code"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgersync_token_refresh_total",
			Help: "Token refreshes by outcome",
		}, []string{"outcome"}),
		syncResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgersync_sync_results_total",
			Help: "Journal sync attempts by status",
		}, []string{"status"}),
		syncEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledgersync_journal_entries_synced_total",
			Help: "Journal entries persisted",
		}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgersync_sync_duration_seconds",
			Help:    "Duration of a tenant sync attempt",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.rateLimitWaits,
		c.rateLimitSleep,
		c.providerStatus,
		c.tokenRefreshes,
		c.syncResults,
		c.syncEntries,
		c.syncDuration,
	)
	return c
}

func (c *Collector) RecordRateLimitWait(problem string, wait time.Duration) {
	c.rateLimitWaits.WithLabelValues(problem).Inc()
	c.rateLimitSleep.Add(wait.Seconds())
}

func (c *Collector) RecordProviderStatus(statusCode int) {
	c.providerStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordTokenRefresh(outcome string) {
	c.tokenRefreshes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSyncResult(status string, entries int, duration time.Duration) {
	c.syncResults.WithLabelValues(status).Inc()
	c.syncEntries.Add(float64(entries))
	c.syncDuration.Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type noop struct{}

// Noop discards everything.
func Noop() Recorder { return noop{} }

func (noop) RecordRateLimitWait(string, time.Duration) {}
func (noop) RecordProviderStatus(int) {}
func (noop) RecordTokenRefresh(string) {}
func (noop) RecordSyncResult(string, int, time.Duration) {}
