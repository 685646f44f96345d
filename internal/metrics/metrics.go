package metrics

import (
	"regexp"
	"strings"
	"time"

	"reportharness/internal/results"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "reportharness"

var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

// Recorder owns a private registry with the counters and histograms of one
// harness run. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	testCases   *prometheus.CounterVec
	records     *prometheus.CounterVec
	jobStates   *prometheus.CounterVec
	polls       *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec

	environmentDuration *prometheus.HistogramVec
	jobDuration         *prometheus.HistogramVec
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		testCases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "test_cases_total",
			Help:      "Number of finished test cases by result",
		}, []string{"result"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "result_records_total",
			Help:      "Number of recorded results by status",
		}, []string{"status"}),
		jobStates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "job_state_transitions_total",
			Help:      "Number of job state transitions by target state",
		}, []string{"state"}),
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "job_polls_total",
			Help:      "Number of job status requests by outcome",
		}, []string{"outcome"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Count of errors",
		}, []string{"error"}),
		environmentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "environment_create_duration_seconds",
			Help:      "Time taken to create a test environment",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}, []string{"result"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from staging to the terminal job state",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"state"}),
	}
}

// Registry returns the registry holding the run's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordJobState counts a job entering state.
func (r *Recorder) RecordJobState(state string) {
	r.jobStates.WithLabelValues(state).Inc()
}

// RecordPoll counts one status request. outcome is "waiting", "done",
// "error" for a failed request or "invalid" for an unreadable status.
func (r *Recorder) RecordPoll(outcome string) {
	r.polls.WithLabelValues(outcome).Inc()
}

// ObserveJob records the duration of a job that ended in state.
func (r *Recorder) ObserveJob(state string, d time.Duration) {
	r.jobDuration.WithLabelValues(state).Observe(d.Seconds())
}

// ObserveEnvironment records how long environment creation took.
func (r *Recorder) ObserveEnvironment(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.environmentDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordLedger counts a finished test case and its records.
func (r *Recorder) RecordLedger(l *results.Ledger) {
	for _, rec := range l.Records() {
		r.records.WithLabelValues(rec.Status().String()).Inc()
	}
	result := "passed"
	if l.Failed() {
		result = "failed"
	}
	r.testCases.WithLabelValues(result).Inc()
}

// RecordError counts an error under label, extended by a sanitized form of
// the error message.
func (r *Recorder) RecordError(label string, err error) {
	if err == nil {
		return
	}
	r.errorsTotal.WithLabelValues(label + "." + errToLabel(err)).Inc()
}

// WriteToTextfile writes the registry in the Prometheus text format, e.g.
// for the node exporter's textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.TrimSpace(errClean)
	errClean = strings.ReplaceAll(errClean, " ", "_")
	for strings.Contains(errClean, "__") {
		errClean = strings.ReplaceAll(errClean, "__", "_")
	}
	if len(errClean) > 64 {
		errClean = errClean[:64]
	}
	return errClean
}
