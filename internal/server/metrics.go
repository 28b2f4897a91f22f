package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	logins         *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	deletes        *prometheus.CounterVec
	orphaned       prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by status code.",
		}, []string{"code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Admin login attempts, by result.",
		}, []string{"result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_uploads_total",
			Help: "Image uploads, by result.",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asset_upload_bytes_total",
			Help: "Bytes of successfully uploaded images.",
		}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asset_deletes_total",
			Help: "Image deletions, by result.",
		}, []string{"result"}),
		orphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asset_orphaned_total",
			Help: "Stored objects left behind after a failed compensating delete.",
		}),
	}

	collectors := []prometheus.Collector{m.requests, m.requestLatency, m.logins, m.uploads, m.uploadBytes, m.deletes, m.orphaned}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) RecordRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) RecordLogin(err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordUpload(bytes int64, err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result(err)).Inc()
	if err == nil {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) RecordDelete(err error) {
	if m == nil {
		return
	}
	m.deletes.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordOrphan() {
	if m == nil {
		return
	}
	m.orphaned.Inc()
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
