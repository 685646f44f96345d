package job

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"reportharness/internal/config"
	"reportharness/internal/engine"
	"reportharness/internal/gateway"
	"reportharness/internal/mockgateway"
	"reportharness/internal/results"
	"reportharness/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoReportJob = `{
  "tasks": [{
    "connections": [{"app": "/apps/sales.qvf"}],
    "reports": [
      {"name": "Sales", "template": {"fileName": "sales.xlsx", "outputFormat": "xlsx"}},
      {"name": "Stock", "template": {"fileName": "stock.xlsx", "outputFormat": "csv"}}
    ]
  }],
  "general": {"timeout": 900}
}`

type fakeCounter struct {
	mu      sync.Mutex
	queries []engine.CountQuery
	count   int
	err     error
}

func (f *fakeCounter) Count(_ context.Context, q engine.CountQuery) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.count, f.err
}

func testTiming() config.TimingConfig {
	return config.TimingConfig{
		PollInterval:    5 * time.Millisecond,
		MaxPollDuration: 5 * time.Second,
		ResponseTimeout: 2 * time.Second,
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("content of "+n), 0644))
	}
}

type harness struct {
	client *Client
	server *mockgateway.Server
	ledger *results.Ledger
	output string
}

func newHarness(t *testing.T, opts mockgateway.Options, timing config.TimingConfig) *harness {
	t.Helper()
	if opts.API == "" {
		opts.API = config.GatewayAPIV1
	}
	srv := mockgateway.New(opts, logging.Discard())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	gw, err := gateway.New(opts.API, ts.URL, timing.ResponseTimeout, logging.Discard())
	require.NoError(t, err)

	dir := t.TempDir()
	writeFiles(t, dir, "sales.xlsx", "font.ttf")
	ledger := results.NewLedger("case")
	output := filepath.Join(dir, "output")

	return &harness{
		client: NewClient(Params{
			Gateway:     gw,
			Timing:      timing,
			TestCaseDir: dir,
			OutputDir:   output,
			Ledger:      ledger,
		}),
		server: srv,
		ledger: ledger,
		output: output,
	}
}

func mustParse(t *testing.T, data string) *Description {
	t.Helper()
	d, err := Parse("job.json", []byte(data))
	require.NoError(t, err)
	return d
}

func TestAnalyse(t *testing.T) {
	sample := func(status gateway.Status, count int, reports ...string) *gateway.StatusSample {
		s := &gateway.StatusSample{TaskID: "t-" + string(status), Status: status, Count: count}
		for _, r := range reports {
			s.Reports = append(s.Reports, gateway.Report{Name: r, Paths: []string{"/out/" + r + ".xlsx"}})
		}
		return s
	}

	tests := []struct {
		name     string
		samples  []*gateway.StatusSample
		waiting  bool
		reports  int
		errors   int
		warning  bool
		received int
	}{
		{"no samples", nil, true, 0, 0, false, 0},
		{"missing sample", []*gateway.StatusSample{sample(gateway.StatusSuccess, 1, "a"), nil}, true, 1, 0, false, 1},
		{"abort", []*gateway.StatusSample{sample(gateway.StatusAbort, 0)}, true, 0, 0, false, 0},
		{"abort beside success", []*gateway.StatusSample{sample(gateway.StatusSuccess, 2, "a", "b"), sample(gateway.StatusAbort, 0)}, true, 2, 0, false, 2},
		{"success", []*gateway.StatusSample{sample(gateway.StatusSuccess, 2, "a", "b")}, false, 2, 0, false, 2},
		{"warning", []*gateway.StatusSample{sample(gateway.StatusWarning, 1, "a")}, false, 1, 0, true, 1},
		{"errors do not wait", []*gateway.StatusSample{sample(gateway.StatusError, 0), sample(gateway.StatusRetryError, 0), sample(gateway.StatusSuccess, 1, "a")}, false, 1, 2, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Analyse(tt.samples)
			assert.Equal(t, tt.waiting, o.ContinueWaiting)
			assert.Len(t, o.Reports, tt.reports)
			assert.Len(t, o.Errors, tt.errors)
			assert.Equal(t, tt.warning, o.Warning)
			assert.Equal(t, tt.received, o.TotalReportCount)
		})
	}

	o := Analyse([]*gateway.StatusSample{sample(gateway.StatusRetryError, 0)})
	assert.Equal(t, []string{"RETRYERROR in Task: t-RETRYERROR"}, o.Errors)
}

func TestExpectedCount_StaticOnly(t *testing.T) {
	report := `{"name":"r","template":{"fileName":"r.xlsx","selections":[{"type":"static","name":"Year","values":["2024"]}]}}`
	task := `{"connections":[{"app":"a.qvf"}],"reports":[` + report + `,` + report + `]}`
	desc := mustParse(t, `{"tasks":[`+task+`,`+task+`,`+task+`]}`)

	counter := &fakeCounter{count: 99}
	assert.Equal(t, 6, ExpectedCount(context.Background(), desc, counter, logging.Discard()))
	assert.Empty(t, counter.queries)
	assert.Equal(t, 6, desc.ReportCount())
}

func TestExpectedCount_Dynamic(t *testing.T) {
	desc := mustParse(t, `{"tasks":[{
	  "connections":[{"app":"task.qvf"}],
	  "reports":[
	    {"name":"dyn","connections":[{"app":"report.qvf"}],"template":{"selections":[
	      {"type":"static","name":"Year","values":["2024"]},
	      {"type":"dynamic","name":"Country","values":["DE","FR","IT"]},
	      {"type":"static","name":"Month","values":["Jan","Feb"]}
	    ]}},
	    {"name":"dyn-no-values","template":{"selections":[{"type":"dynamic","name":"Country"}]}},
	    {"name":"plain","template":{}}
	  ]}]}`)

	counter := &fakeCounter{count: 3}
	assert.Equal(t, 5, ExpectedCount(context.Background(), desc, counter, logging.Discard()))

	require.Len(t, counter.queries, 1)
	q := counter.queries[0]
	assert.Equal(t, "report.qvf", q.App)
	assert.Equal(t, "Country", q.Field)
	assert.Equal(t, []string{"DE", "FR", "IT"}, q.Values)
	assert.Equal(t, []engine.FieldSelection{
		{Field: "Year", Values: []string{"2024"}},
		{Field: "Month", Values: []string{"Jan", "Feb"}},
	}, q.Static)
}

func TestExpectedCount_FallsBackToOne(t *testing.T) {
	desc := mustParse(t, `{"tasks":[{"connections":[{"app":"a.qvf"}],"reports":[
	  {"name":"d1","template":{"selections":[{"type":"dynamic","name":"F","values":["x"]}]}},
	  {"name":"d2","template":{"selections":[{"type":"dynamic","name":"F","values":["y"]}]}}
	]}]}`)

	rec := logging.NewRecorder()
	counter := &fakeCounter{err: errors.New("engine unreachable")}
	assert.Equal(t, 2, ExpectedCount(context.Background(), desc, counter, rec))
	assert.Equal(t, 2, rec.Count(logging.LevelWarn))

	// no engine at all
	assert.Equal(t, 2, ExpectedCount(context.Background(), desc, nil, logging.Discard()))
}

func TestStage(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.xlsx", "b.TTF", "c.key", "d.xlsb", "app.qvf", "job.json", "baseline.csv")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "output.xlsx"), 0755))

	bundle, err := Stage(dir)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(bundle), int64(len(bundle)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a.xlsx", "b.TTF", "c.key", "d.xlsb"}, names)
}

func TestStage_MissingDirectory(t *testing.T) {
	_, err := Stage(filepath.Join(t.TempDir(), "missing"))
	var stagingErr *StagingError
	assert.True(t, errors.As(err, &stagingErr))
}

func TestDescription_WithUploadRef(t *testing.T) {
	desc := mustParse(t, twoReportJob)
	body, err := desc.WithUploadRef("upload-7")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, []interface{}{"upload-7"}, doc["uploadGuids"])
	assert.Equal(t, map[string]interface{}{"timeout": float64(900)}, doc["general"])

	_, err = Parse("bad.json", []byte(`{"tasks":`))
	assert.Error(t, err)
}

func TestState(t *testing.T) {
	assert.Equal(t, "polling", StatePolling.String())
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSubmitted.Terminal())
}

func TestClient_Run(t *testing.T) {
	for _, api := range []string{config.GatewayAPIV1, config.GatewayAPILegacy} {
		t.Run(api, func(t *testing.T) {
			h := newHarness(t, mockgateway.Options{API: api, PollsUntilDone: 2}, testTiming())

			h.client.Run(context.Background(), mustParse(t, twoReportJob))

			assert.Equal(t, StateDone, h.client.State())
			assert.Empty(t, h.ledger.Errors())

			records := h.ledger.Records()
			require.Len(t, records, 1)
			assert.Equal(t, RecordCountResult, records[0].Name)
			assert.Equal(t, 2, records[0].Expected)
			assert.Equal(t, 2, records[0].Received)
			assert.Equal(t, results.StatusPassed, records[0].Status())

			infos := h.ledger.Infos()
			require.Len(t, infos, 2)
			assert.Contains(t, infos[0], InfoFileID+": ")
			assert.Contains(t, infos[1], InfoTaskID+": ")

			assert.FileExists(t, filepath.Join(h.output, "0_Sales.xlsx"))
			assert.FileExists(t, filepath.Join(h.output, "0_Stock.csv"))

			// the submitted job carries the upload reference
			for _, body := range h.server.Jobs() {
				var doc map[string]interface{}
				require.NoError(t, json.Unmarshal(body, &doc))
				assert.Len(t, doc["uploadGuids"], 1)
			}
			require.Len(t, h.server.Uploads(), 1)
		})
	}
}

func TestClient_Run_Warning(t *testing.T) {
	h := newHarness(t, mockgateway.Options{FinalStatus: gateway.StatusWarning}, testTiming())
	h.client.Run(context.Background(), mustParse(t, twoReportJob))

	records := h.ledger.Records()
	require.Len(t, records, 1)
	assert.Equal(t, results.StatusPassedWithWarning, records[0].Status())
}

func TestClient_Run_TaskErrors(t *testing.T) {
	h := newHarness(t, mockgateway.Options{FinalStatus: gateway.StatusError}, testTiming())
	h.client.Run(context.Background(), mustParse(t, twoReportJob))

	errs := h.ledger.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], ErrAnalyse)
	assert.Contains(t, errs[0], "ERROR in Task:")

	// the count is still recorded
	require.Len(t, h.ledger.Records(), 1)
}

func TestClient_Run_UploadFailure(t *testing.T) {
	h := newHarness(t, mockgateway.Options{}, testTiming())
	h.server.FailNext("upload", 1)

	h.client.Run(context.Background(), mustParse(t, twoReportJob))

	assert.Equal(t, StateFailed, h.client.State())
	assert.Empty(t, h.ledger.Records())
	errs := h.ledger.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], ErrRun)
	assert.Empty(t, h.server.Jobs())
}

func TestClient_Poll_RetriesTransportErrors(t *testing.T) {
	h := newHarness(t, mockgateway.Options{}, testTiming())
	ctx := context.Background()

	jobID, err := h.client.Submit(ctx, mustParse(t, twoReportJob), "upload-1")
	require.NoError(t, err)

	h.server.FailNext("status", 3)
	outcome, err := h.client.Poll(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, outcome.ContinueWaiting)
	assert.Equal(t, 2, outcome.TotalReportCount)
	// failed requests never reach the handler
	assert.Equal(t, 2, h.server.Polls(jobID))
}

func TestClient_Poll_UnknownStatus(t *testing.T) {
	script := func(jobID string, _ json.RawMessage, _ int) []*gateway.StatusSample {
		return []*gateway.StatusSample{{TaskID: jobID, Status: gateway.Status("EXPLODED")}}
	}
	h := newHarness(t, mockgateway.Options{Script: script}, testTiming())
	ctx := context.Background()

	jobID, err := h.client.Submit(ctx, mustParse(t, twoReportJob), "upload-1")
	require.NoError(t, err)

	_, err = h.client.Poll(ctx, jobID)
	var analysisErr *AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	var unknown *gateway.UnknownStatusError
	assert.True(t, errors.As(err, &unknown))
}

func TestClient_Poll_Timeout(t *testing.T) {
	script := func(jobID string, _ json.RawMessage, _ int) []*gateway.StatusSample {
		return []*gateway.StatusSample{{TaskID: jobID, Status: gateway.StatusAbort}}
	}
	timing := testTiming()
	timing.MaxPollDuration = 50 * time.Millisecond
	h := newHarness(t, mockgateway.Options{Script: script}, timing)

	h.client.Run(context.Background(), mustParse(t, twoReportJob))

	assert.Equal(t, StateFailed, h.client.State())
	errs := h.ledger.Errors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "still running after 50ms")
}

func TestClient_Poll_Cancelled(t *testing.T) {
	script := func(jobID string, _ json.RawMessage, _ int) []*gateway.StatusSample {
		return nil
	}
	timing := testTiming()
	timing.MaxPollDuration = 0
	h := newHarness(t, mockgateway.Options{Script: script}, timing)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	jobID, err := h.client.Submit(ctx, mustParse(t, twoReportJob), "upload-1")
	require.NoError(t, err)
	_, err = h.client.Poll(ctx, jobID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Poll_InvalidSample(t *testing.T) {
	script := func(jobID string, _ json.RawMessage, _ int) []*gateway.StatusSample {
		return []*gateway.StatusSample{{TaskID: jobID, Status: gateway.StatusSuccess, Reports: []gateway.Report{{Name: ""}}}}
	}
	h := newHarness(t, mockgateway.Options{Script: script}, testTiming())
	ctx := context.Background()

	jobID, err := h.client.Submit(ctx, mustParse(t, twoReportJob), "upload-1")
	require.NoError(t, err)

	_, err = h.client.Poll(ctx, jobID)
	var analysisErr *AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	var invalid *gateway.InvalidSampleError
	assert.True(t, errors.As(err, &invalid))
	// no retries on a malformed sample
	assert.Equal(t, 1, h.server.Polls(jobID))
}

// artifactGateway hands out fixed artifacts; only FetchArtifacts is used.
type artifactGateway struct {
	gateway.Client
	artifacts []gateway.Artifact
}

func (g *artifactGateway) FetchArtifacts(context.Context, string, []gateway.Report) ([]gateway.Artifact, error) {
	return g.artifacts, nil
}

func TestClient_FetchArtifacts_StaysInOutputDir(t *testing.T) {
	root := t.TempDir()
	output := filepath.Join(root, "case", "output")
	outcome := Outcome{Reports: []gateway.Report{{Name: "r", Paths: []string{"x.csv"}}}}

	for _, name := range []string{"../escape.csv", "..", "/etc/escape.csv", "sub/escape.csv"} {
		c := NewClient(Params{
			Gateway:   &artifactGateway{artifacts: []gateway.Artifact{{Name: name, Data: []byte("x")}}},
			OutputDir: output,
			Ledger:    results.NewLedger("case"),
		})
		err := c.FetchArtifacts(context.Background(), "job-1", outcome)
		assert.Error(t, err, name)
	}
	assert.NoFileExists(t, filepath.Join(root, "case", "escape.csv"))

	c := NewClient(Params{
		Gateway:   &artifactGateway{artifacts: []gateway.Artifact{{Name: gateway.ArtifactName(0, "/../../x", "a.csv"), Data: []byte("x")}}},
		OutputDir: output,
		Ledger:    results.NewLedger("case"),
	})
	require.NoError(t, c.FetchArtifacts(context.Background(), "job-1", outcome))
	assert.FileExists(t, filepath.Join(output, "0__.._.._x.csv"))
}
