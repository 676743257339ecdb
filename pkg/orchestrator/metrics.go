package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricExperimentsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uplift",
		Name:      "experiments_started_total",
		Help:      "Number of experiment pipelines started.",
	})
	metricExperimentsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uplift",
		Name:      "experiments_completed_total",
		Help:      "Number of experiment pipelines that finished the control run.",
	})
	metricExperimentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uplift",
		Name:      "experiments_failed_total",
		Help:      "Number of experiment pipelines that failed.",
	})
	metricImplementations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uplift",
		Name:      "variant_implementations_total",
		Help:      "Variant implementation runs by terminal status.",
	}, []string{"status"})
	metricSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uplift",
		Name:      "pipeline_steps_total",
		Help:      "Pipeline step executions by step name and result.",
	}, []string{"step", "result"})
)

func recordStepResult(step, result string) {
	metricSteps.WithLabelValues(step, result).Inc()
}

func recordImplementation(status string) {
	metricImplementations.WithLabelValues(status).Inc()
}
