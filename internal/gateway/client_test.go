package gateway_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reportharness/internal/config"
	"reportharness/internal/gateway"
	"reportharness/internal/mockgateway"
	"reportharness/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJob = `{"tasks":[{"reports":[{"name":"Sales","template":{"outputFormat":"xlsx"}},{"name":"Stock","template":{"outputFormat":"csv"}}]}]}`

func newPair(t *testing.T, api string, opts mockgateway.Options) (gateway.Client, *mockgateway.Server) {
	t.Helper()
	opts.API = api
	srv := mockgateway.New(opts, logging.Discard())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := gateway.New(api, ts.URL, 5*time.Second, logging.Discard())
	require.NoError(t, err)
	return client, srv
}

func TestNew_UnsupportedAPI(t *testing.T) {
	_, err := gateway.New("v2", "http://localhost", time.Second, logging.Discard())
	assert.Error(t, err)
}

func TestClient_RoundTrip(t *testing.T) {
	for _, api := range []string{config.GatewayAPIV1, config.GatewayAPILegacy} {
		t.Run(api, func(t *testing.T) {
			client, srv := newPair(t, api, mockgateway.Options{PollsUntilDone: 2})
			ctx := context.Background()

			ref, err := client.Upload(ctx, []byte("PK-bundle"))
			require.NoError(t, err)
			assert.Equal(t, []byte("PK-bundle"), srv.Uploads()[ref])

			jobID, err := client.Submit(ctx, json.RawMessage(testJob))
			require.NoError(t, err)
			assert.JSONEq(t, testJob, string(srv.Jobs()[jobID]))

			for i := 0; i < 2; i++ {
				samples, err := client.Status(ctx, jobID)
				require.NoError(t, err)
				require.Len(t, samples, 1)
				assert.Equal(t, gateway.StatusAbort, samples[0].Status)
			}

			samples, err := client.Status(ctx, jobID)
			require.NoError(t, err)
			require.Len(t, samples, 1)
			assert.Equal(t, gateway.StatusSuccess, samples[0].Status)
			assert.Equal(t, 2, samples[0].Count)
			require.Len(t, samples[0].Reports, 2)
			assert.Equal(t, 3, srv.Polls(jobID))

			artifacts, err := client.FetchArtifacts(ctx, jobID, samples[0].Reports)
			require.NoError(t, err)
			require.Len(t, artifacts, 2)

			names := []string{artifacts[0].Name, artifacts[1].Name}
			assert.ElementsMatch(t, []string{"0_Sales.xlsx", "0_Stock.csv"}, names)
			for _, a := range artifacts {
				assert.NotEmpty(t, a.Data)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	for _, api := range []string{config.GatewayAPIV1, config.GatewayAPILegacy} {
		t.Run(api, func(t *testing.T) {
			client, srv := newPair(t, api, mockgateway.Options{})
			ctx := context.Background()

			jobID, err := client.Submit(ctx, json.RawMessage(testJob))
			require.NoError(t, err)

			srv.FailNext("status", 1)
			_, err = client.Status(ctx, jobID)
			require.Error(t, err)

			var respErr *gateway.ResponseError
			require.True(t, errors.As(err, &respErr))
			assert.Equal(t, http.StatusServiceUnavailable, respErr.StatusCode)

			// the next poll goes through
			_, err = client.Status(ctx, jobID)
			assert.NoError(t, err)
		})
	}
}

func TestV1Client_Envelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not successful", `{"success":false}`},
		{"missing operation id", `{"success":true}`},
		{"malformed", `{"success":`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			client, err := gateway.New(config.GatewayAPIV1, ts.URL, time.Second, logging.Discard())
			require.NoError(t, err)

			_, err = client.Submit(context.Background(), json.RawMessage(`{}`))
			var respErr *gateway.ResponseError
			assert.True(t, errors.As(err, &respErr))
		})
	}
}

func TestV1Client_NullResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"results":[null]}`))
	}))
	defer ts.Close()

	rec := logging.NewRecorder()
	client, err := gateway.New(config.GatewayAPIV1, ts.URL, time.Second, rec)
	require.NoError(t, err)

	samples, err := client.Status(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Nil(t, samples[0])
	assert.Equal(t, 1, rec.Count(logging.LevelWarn))
}

func TestStatus_Unknown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"results":[{"taskId":"t","status":"EXPLODED"}]}`))
	}))
	defer ts.Close()

	client, err := gateway.New(config.GatewayAPIV1, ts.URL, time.Second, logging.Discard())
	require.NoError(t, err)

	_, err = client.Status(context.Background(), "job-1")
	require.Error(t, err)

	var unknown *gateway.UnknownStatusError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "EXPLODED", unknown.Value)
}

func TestStatusSample_Validation(t *testing.T) {
	var s gateway.StatusSample
	var invalid *gateway.InvalidSampleError
	err := json.Unmarshal([]byte(`{"taskId":"t"}`), &s)
	require.True(t, errors.As(err, &invalid), "status is required")
	assert.Equal(t, "t", invalid.TaskID)

	err = json.Unmarshal([]byte(`{"taskId":"t","status":"SUCCESS","reports":[{"name":" ","paths":[]}]}`), &s)
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Reason, "no name")

	require.NoError(t, json.Unmarshal([]byte(`{"taskId":"t","status":"WARNING","count":3,"reports":[{"name":"r","paths":["a.xlsx"]}]}`), &s))
	assert.Equal(t, gateway.StatusWarning, s.Status)
	assert.Equal(t, 3, s.Count)
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "0_Sales.xlsx", gateway.ArtifactName(0, "Sales", "/out/abc/report.xlsx"))
	assert.Equal(t, "2_Sales.pdf", gateway.ArtifactName(2, "Sales", `C:\out\report.pdf`))
	assert.Equal(t, "1_Sales", gateway.ArtifactName(1, "Sales", "/out/noext"))
	assert.Equal(t, "0__.._.._x.csv", gateway.ArtifactName(0, "/../../x", "/out/x.csv"))
	assert.Equal(t, "0_a_b", gateway.ArtifactName(0, `a\b`, "/out/noext"))
}

// zipServer serves a legacy download holding the given entries.
func zipServer(t *testing.T, files [][2]string) gateway.Client {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(ts.Close)

	client, err := gateway.New(config.GatewayAPILegacy, ts.URL, time.Second, logging.Discard())
	require.NoError(t, err)
	return client
}

func TestLegacyFetchArtifacts_SameBaseName(t *testing.T) {
	client := zipServer(t, [][2]string{{"taskA/out.csv", "A"}, {"taskB/out.csv", "B"}, {"extra/log.txt", "log"}})

	artifacts, err := client.FetchArtifacts(context.Background(), "job-1", []gateway.Report{
		{Name: "A", Paths: []string{"/var/reports/job-1/taskA/out.csv"}},
		{Name: "B", Paths: []string{`D:\reports\taskB\out.csv`}},
	})
	require.NoError(t, err)

	got := make(map[string]string)
	for _, a := range artifacts {
		got[a.Name] = string(a.Data)
	}
	assert.Equal(t, map[string]string{"0_A.csv": "A", "0_B.csv": "B", "log.txt": "log"}, got)
}

func TestLegacyFetchArtifacts_Ambiguous(t *testing.T) {
	client := zipServer(t, [][2]string{{"taskA/out.csv", "A"}, {"taskB/out.csv", "B"}})

	_, err := client.FetchArtifacts(context.Background(), "job-1", []gateway.Report{
		{Name: "A", Paths: []string{"/elsewhere/out.csv"}},
	})
	var respErr *gateway.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Contains(t, err.Error(), "matches 2 archive entries")

	_, err = client.FetchArtifacts(context.Background(), "job-1", []gateway.Report{
		{Name: "A", Paths: []string{"/taskA/missing.csv"}},
	})
	require.True(t, errors.As(err, &respErr))
	assert.Contains(t, err.Error(), "archive has no missing.csv")
}
