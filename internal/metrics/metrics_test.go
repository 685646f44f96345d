package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reportharness/internal/results"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordLedger(t *testing.T) {
	r := New()

	l := results.NewLedger("case")
	l.AddResult(results.Record{Name: "a", Expected: 2, Received: 2})
	l.AddResult(results.Record{Name: "b", Expected: 2, Received: 1})
	r.RecordLedger(l)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.records.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.records.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.testCases.WithLabelValues("failed")))
}

func TestRecorder_Counters(t *testing.T) {
	r := New()
	r.RecordPoll("waiting")
	r.RecordPoll("waiting")
	r.RecordPoll("done")
	r.RecordJobState("POLLING")
	r.RecordError("job", errors.New("upload failed: EOF"))
	r.RecordError("job", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.polls.WithLabelValues("waiting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStates.WithLabelValues("POLLING")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.errorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("job.upload_failed_EOF")))
}

func TestRecorder_WriteToTextfile(t *testing.T) {
	r := New()
	r.ObserveEnvironment(3*time.Second, nil)
	r.ObserveJob("DONE", 12*time.Second)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, r.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reportharness_environment_create_duration_seconds_count{result=\"success\"} 1")
	assert.Contains(t, string(data), "reportharness_job_duration_seconds_count{state=\"DONE\"} 1")
}
