// Package metrics exports optimizer activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lineup_optimizer"

// Recorder implements optimizer.Recorder on its own registry, so several
// recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	games    *prometheus.CounterVec
	rounds   *prometheus.CounterVec
	pruned   *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// NewRecorder registers the optimizer metrics plus the Go and process
// collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		games: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_simulated_total",
			Help:      "Simulated games by optimizer strategy",
		}, []string{"optimizer"}),
		rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed optimizer rounds by strategy",
		}, []string{"optimizer"}),
		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_pruned_total",
			Help:      "Lineups eliminated by the sequential test",
		}, []string{"optimizer"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by strategy and status",
		}, []string{"optimizer", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of finished runs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 4, 9),
		}, []string{"optimizer"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs currently in progress",
		}),
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) GamesSimulated(strategy string, n int64) {
	r.games.WithLabelValues(strategy).Add(float64(n))
}

func (r *Recorder) RoundCompleted(strategy string) {
	r.rounds.WithLabelValues(strategy).Inc()
}

func (r *Recorder) CandidatesPruned(strategy string, n int) {
	r.pruned.WithLabelValues(strategy).Add(float64(n))
}

// RunStarted marks a run as in progress. RunFinished undoes it.
func (r *Recorder) RunStarted() {
	r.active.Inc()
}

func (r *Recorder) RunFinished(strategy string, status result.Status, elapsed time.Duration) {
	r.runs.WithLabelValues(strategy, string(status)).Inc()
	r.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// RunDone decrements the active run gauge.
func (r *Recorder) RunDone() {
	r.active.Dec()
}
