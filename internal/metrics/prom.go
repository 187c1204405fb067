//go:build prom

package metrics

import (
	"expvar"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// mirrored exposes an expvar counter as a prometheus counter without double bookkeeping
type mirrored struct {
	desc *prometheus.Desc
	src  *expvar.Int
	kind prometheus.ValueType
}

type expvarCollector struct {
	metrics []mirrored
}

func newMirror(name, help string, src *expvar.Int, kind prometheus.ValueType) mirrored {
	return mirrored{
		desc: prometheus.NewDesc(name, help, nil, nil),
		src:  src,
		kind: kind,
	}
}

func (c *expvarCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *expvarCollector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, float64(m.src.Value()))
	}
}

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(&expvarCollector{metrics: []mirrored{
		newMirror("aptos_requests_total", "Node API requests issued", RequestsTotal, prometheus.CounterValue),
		newMirror("aptos_request_errors_total", "Node API requests that failed", RequestErrors, prometheus.CounterValue),
		newMirror("aptos_request_retries_total", "Node API requests retried after a transient failure", RequestRetries, prometheus.CounterValue),
		newMirror("aptos_tx_submitted_total", "Signed transactions submitted", TxSubmitted, prometheus.CounterValue),
		newMirror("aptos_tx_confirmed_total", "Transactions confirmed with success", TxConfirmed, prometheus.CounterValue),
		newMirror("aptos_tx_failed_total", "Transactions confirmed with a failed VM status", TxFailed, prometheus.CounterValue),
		newMirror("aptos_tx_timeouts_total", "Confirmation waits that timed out", TxTimeouts, prometheus.CounterValue),
		newMirror("aptos_quotes_total", "Venue quotes requested", QuotesRequested, prometheus.CounterValue),
		newMirror("aptos_events_delivered_total", "Events published to broadcast hubs", EventsDelivered, prometheus.CounterValue),
		newMirror("aptos_events_dropped_total", "Events skipped by lagging subscribers", EventsDropped, prometheus.CounterValue),
		newMirror("aptos_batch_items_total", "Calls dispatched by the batch executor", BatchItems, prometheus.CounterValue),
		newMirror("aptos_active_subscriptions", "Live broadcast subscriptions", ActiveSubscriptions, prometheus.GaugeValue),
	}})
	registry.MustRegister(collectors.NewGoCollector())
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics
func PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
