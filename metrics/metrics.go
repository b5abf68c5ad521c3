package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the manager metrics. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	DNSPublish        *prometheus.CounterVec
	DNSReloadFailures prometheus.Counter
	DNSHostsEntries   prometheus.Gauge
	DNSLastPublish    prometheus.Gauge
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "overlaymgr_http_requests_total",
			Help: "HTTP requests handled, by route and status code",
		}, []string{"route", "code"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "overlaymgr_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		DNSPublish: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "overlaymgr_dns_publish_total",
			Help: "DNS hosts file publications, by result",
		}, []string{"result"}),
		DNSReloadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "overlaymgr_dns_reload_failures_total",
			Help: "Failed attempts to signal the DNS resolver after a publication",
		}),
		DNSHostsEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "overlaymgr_dns_hosts_entries",
			Help: "Entries written to the hosts file by the last publication",
		}),
		DNSLastPublish: factory.NewGauge(prometheus.GaugeOpts{
			Name: "overlaymgr_dns_last_publish_timestamp_seconds",
			Help: "Unix time of the last successful publication",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) ObserveRequest(route string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	r.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObservePublish records one publication. entries is ignored when err is set.
func (r *Registry) ObservePublish(entries int, reloadFailed bool, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.DNSPublish.WithLabelValues("error").Inc()
		return
	}
	r.DNSPublish.WithLabelValues("ok").Inc()
	r.DNSHostsEntries.Set(float64(entries))
	r.DNSLastPublish.SetToCurrentTime()
	if reloadFailed {
		r.DNSReloadFailures.Inc()
	}
}
