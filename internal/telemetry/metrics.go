package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes reported by the coordinator.
const (
	OutcomeCompleted  = "completed"
	OutcomeCancelled  = "cancelled"
	OutcomeNoRoot     = "no_root"
	OutcomeNoRules    = "no_rules"
	OutcomeNoTargets  = "no_targets"
	OutcomeDropped    = "dropped"
	OutcomeIsolation  = "isolation_failure"
	OutcomeAssembling = "assembly_failure"
)

var (
	ruleLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sarifer_rule_loads_total",
		Help: "Rule set compilations by result",
	}, []string{"result"})

	ruleLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sarifer_rule_load_duration_seconds",
		Help:    "Time spent discovering and compiling a rule set",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	rulesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sarifer_rules_loaded",
		Help: "Number of rules in the cached rule set",
	})

	applicableRules = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sarifer_applicable_rules",
		Help:    "Rules left after the applicability filter, per target",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	targetDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sarifer_target_analysis_duration_seconds",
		Help:    "Pipeline time per target by final state",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"state"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sarifer_runs_total",
		Help: "Analysis requests by outcome",
	}, []string{"outcome"})
)

// RecordRuleLoad records one rule set load.
func RecordRuleLoad(count int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ruleLoadsTotal.WithLabelValues(result).Inc()
	ruleLoadDuration.Observe(d.Seconds())
	rulesLoaded.Set(float64(count))
}

// RecordApplicable records how many rules survived the applicability filter for a target.
func RecordApplicable(n int) {
	applicableRules.Observe(float64(n))
}

// RecordTarget records the pipeline duration of one target.
func RecordTarget(state string, d time.Duration) {
	targetDuration.WithLabelValues(state).Observe(d.Seconds())
}

// RecordRun counts an analysis request by outcome.
func RecordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
