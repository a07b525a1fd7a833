package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg *prom.Registry

	cycles        *prom.CounterVec
	fetchDuration *prom.HistogramVec
	sinkResults   *prom.CounterVec
	ledgerFails   prom.Counter
	lastAnnounced prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg (a fresh
// registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tempobot",
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome",
		}, []string{"outcome"}),
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "tempobot",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of tempo feed requests",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		sinkResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "tempobot",
			Name:      "sink_results_total",
			Help:      "Notification attempts by sink and result",
		}, []string{"sink", "result"}),
		ledgerFails: prom.NewCounter(prom.CounterOpts{
			Namespace: "tempobot",
			Name:      "ledger_write_failures_total",
			Help:      "Failed ledger commits",
		}),
		lastAnnounced: prom.NewGauge(prom.GaugeOpts{
			Namespace: "tempobot",
			Name:      "last_announced_day_timestamp_seconds",
			Help:      "Midnight UTC of the last announced day",
		}),
	}
	reg.MustRegister(pr.cycles, pr.fetchDuration, pr.sinkResults, pr.ledgerFails, pr.lastAnnounced)
	return pr
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (p *PrometheusRecorder) IncCycle(outcome string) { p.cycles.WithLabelValues(outcome).Inc() }

func (p *PrometheusRecorder) ObserveFetch(d time.Duration, ok bool) {
	p.fetchDuration.WithLabelValues(result(ok)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSinkResult(sink string, ok bool) {
	p.sinkResults.WithLabelValues(sink, result(ok)).Inc()
}

func (p *PrometheusRecorder) IncLedgerWriteFailure() { p.ledgerFails.Inc() }

func (p *PrometheusRecorder) SetLastAnnounced(day time.Time) {
	p.lastAnnounced.Set(float64(day.Unix()))
}

// Handler serves the recorder's registry.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
