package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reportharness/internal/config"
	"reportharness/pkg/logging"
	"reportharness/pkg/textutil"
)

// UploadFileName is the name the input bundle is uploaded under.
const UploadFileName = "upload.zip"

// Client is one wire contract of the reporting gateway.
type Client interface {
	// Upload transmits the zipped input bundle and returns its reference.
	Upload(ctx context.Context, bundle []byte) (string, error)
	// Submit posts a job description and returns the job ID.
	Submit(ctx context.Context, job json.RawMessage) (string, error)
	// Status returns the current samples of a job. Entries may be nil while
	// the gateway has not produced a sample for a task yet.
	Status(ctx context.Context, jobID string) ([]*StatusSample, error)
	// FetchArtifacts downloads every output of reports, named with ArtifactName.
	FetchArtifacts(ctx context.Context, jobID string, reports []Report) ([]Artifact, error)
}

// ResponseError is returned when the gateway answers with a missing, empty,
// malformed or unsuccessful response.
type ResponseError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// New creates the client for the configured API variant against baseURL,
// e.g. http://localhost:8099.
func New(api, baseURL string, timeout time.Duration, log logging.Logger) (Client, error) {
	base := newHTTPBase(baseURL, timeout, log)
	switch api {
	case config.GatewayAPIV1, "":
		return &V1Client{base}, nil
	case config.GatewayAPILegacy:
		return &LegacyClient{base}, nil
	default:
		return nil, fmt.Errorf("unsupported gateway API %q", api)
	}
}

type httpBase struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

func newHTTPBase(baseURL string, timeout time.Duration, log logging.Logger) httpBase {
	return httpBase{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// do sends req and returns the full body of a 2xx response.
func (b httpBase) do(req *http.Request, endpoint string) ([]byte, error) {
	b.log.Debug("%s %s", req.Method, req.URL)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResponseError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "failed to read body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ResponseError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "unexpected status " + textutil.Snippet(string(body), textutil.DefaultSnippetLen)}
	}
	if len(body) == 0 {
		return nil, &ResponseError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "empty response"}
	}
	return body, nil
}

func (b httpBase) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	return req, nil
}
