package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"NewsletterScanner/internal/domain"
)

const namespace = "newsletter_scanner"

// Recorder owns the service's Prometheus collectors. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	links       *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	newsletters prometheus.Counter
	jobs        *prometheus.CounterVec
	jobDuration prometheus.Histogram
	resolveTime *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_classified_total",
			Help:      "Extracted links by classification.",
		}, []string{"kind"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_resolutions_total",
			Help:      "Redirect resolution attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Content validation verdicts by reason.",
		}, []string{"verdict", "reason"}),
		newsletters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "newsletters_processed_total",
			Help:      "Newsletters run through the pipeline.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Extraction jobs by terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of extraction jobs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		resolveTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_resolution_seconds",
			Help:      "Latency of a single redirect-following request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		r.links,
		r.resolutions,
		r.verdicts,
		r.newsletters,
		r.jobs,
		r.jobDuration,
		r.resolveTime,
		collectors.NewGoCollector(),
	)
	return r
}

// Handler exposes the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) LinkClassified(kind domain.LinkKind) {
	if r == nil {
		return
	}
	r.links.WithLabelValues(kind.String()).Inc()
}

func (r *Recorder) Resolution(method, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(method, outcome).Inc()
	r.resolveTime.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (r *Recorder) Verdict(v domain.Verdict) {
	if r == nil {
		return
	}
	if v.Accepted {
		r.verdicts.WithLabelValues("accepted", "").Inc()
		return
	}
	r.verdicts.WithLabelValues("rejected", string(v.Reason)).Inc()
}

func (r *Recorder) NewsletterProcessed() {
	if r == nil {
		return
	}
	r.newsletters.Inc()
}

func (r *Recorder) JobFinished(status domain.JobStatus, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(string(status)).Inc()
	r.jobDuration.Observe(elapsed.Seconds())
}
