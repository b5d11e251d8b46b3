package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"t2i_backend/logging"
)

const namespace = "t2i"

// Recorder owns a private Prometheus registry and the in-memory Store. It
// observes dispatches (t2i.Observer) and pool lease traffic.
type Recorder struct {
	registry *prometheus.Registry
	store    *Store

	dispatches       *prometheus.CounterVec
	dispatchErrors   *prometheus.CounterVec
	images           prometheus.Counter
	dispatchDuration prometheus.Histogram
	leaseWait        prometheus.Histogram
	activeLeases     prometheus.Gauge
}

// NewRecorder registers all series, plus Go runtime and process collectors.
func NewRecorder(store *Store) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		store:    store,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Finished dispatch calls by outcome.",
		}, []string{"outcome"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Failed dispatch calls by error kind.",
		}, []string{"kind"}),
		images: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_delivered_total",
			Help:      "Images delivered to clients.",
		}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time of dispatch calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		leaseWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lease_wait_seconds",
			Help:      "Time spent waiting for a free backend.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		activeLeases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_leases",
			Help:      "Backends currently leased.",
		}),
	}
	r.registry.MustRegister(
		r.dispatches, r.dispatchErrors, r.images,
		r.dispatchDuration, r.leaseWait, r.activeLeases,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveDispatch records a finished dispatch.
func (r *Recorder) ObserveDispatch(s logging.DispatchSummary) {
	rec := DispatchRecord{
		ID:        s.DispatchID,
		Requested: s.Requested,
		Delivered: s.Delivered,
		Status:    StatusSuccess,
		ErrorKind: s.ErrorKind,
		EndTime:   time.Now(),
		Duration:  s.Duration,
	}
	if s.ErrorKind != "" {
		rec.Status = StatusError
		r.dispatchErrors.WithLabelValues(s.ErrorKind).Inc()
	}
	r.dispatches.WithLabelValues(rec.Status).Inc()
	r.images.Add(float64(s.Delivered))
	r.dispatchDuration.Observe(s.Duration.Seconds())

	if r.store != nil {
		r.store.Record(rec)
	}
}

// ObserveLease matches backends.Pool.OnLease.
func (r *Recorder) ObserveLease(backendID int, wait time.Duration) {
	r.leaseWait.Observe(wait.Seconds())
	r.activeLeases.Inc()
}

// ObserveRelease matches backends.Pool.OnRelease.
func (r *Recorder) ObserveRelease(backendID int) {
	r.activeLeases.Dec()
}

// Store returns the in-memory history, possibly nil.
func (r *Recorder) Store() *Store {
	return r.store
}

// Registry exposes the registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
