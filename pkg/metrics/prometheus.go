package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"IndiCache/internal/domain/models"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	tasksTotal    *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	rowsWritten   *prometheus.CounterVec
	hitRate       *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		tasksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indicache_tasks_total",
				Help: "Symbol tasks by scheduler classification",
			},
			[]string{"cohort", "family", "action"},
		),
		failuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indicache_task_failures_total",
				Help: "Failed symbol tasks by error kind",
			},
			[]string{"cohort", "family", "kind"},
		),
		taskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indicache_task_duration_seconds",
				Help:    "Per-symbol pipeline duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cohort", "family"},
		),
		rowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indicache_rows_written_total",
				Help: "Indicator rows persisted to output artifacts",
			},
			[]string{"cohort", "family"},
		),
		hitRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indicache_cache_hit_rate",
				Help: "Cache reuse rate (skip+append)/total of the last pass",
			},
			[]string{"cohort", "family"},
		),
	}
}

func (r *Recorder) RecordTask(cohort, family string, action models.Action) {
	r.tasksTotal.WithLabelValues(cohort, family, string(action)).Inc()
}

func (r *Recorder) RecordFailure(cohort, family string, kind models.ErrKind) {
	r.failuresTotal.WithLabelValues(cohort, family, string(kind)).Inc()
}

func (r *Recorder) RecordTaskDuration(cohort, family string, seconds float64) {
	r.taskDuration.WithLabelValues(cohort, family).Observe(seconds)
}

func (r *Recorder) RecordRowsWritten(cohort, family string, n int) {
	r.rowsWritten.WithLabelValues(cohort, family).Add(float64(n))
}

func (r *Recorder) RecordHitRate(cohort, family string, rate float64) {
	r.hitRate.WithLabelValues(cohort, family).Set(rate)
}
