package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// V1Client speaks the /api/v1 contract: JSON envelopes with a success flag
// and one download request per produced file.
type V1Client struct {
	httpBase
}

type v1Envelope struct {
	Success     bool            `json:"success"`
	OperationID string          `json:"operationId"`
	Results     []*StatusSample `json:"results"`
}

func (c *V1Client) envelope(req *http.Request, endpoint string) (*v1Envelope, error) {
	body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	var env v1Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ResponseError{Endpoint: endpoint, Message: "malformed body", Err: err}
	}
	if !env.Success {
		return nil, &ResponseError{Endpoint: endpoint, Message: "response was not successful"}
	}
	return &env, nil
}

// Upload posts the bundle as octet-stream and asks the gateway to unzip it.
func (c *V1Client) Upload(ctx context.Context, bundle []byte) (string, error) {
	const endpoint = "POST /api/v1/file"
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/file", bytes.NewReader(bundle))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("filename", UploadFileName)
	req.Header.Set("unzip", "true")

	env, err := c.envelope(req, endpoint)
	if err != nil {
		return "", err
	}
	if env.OperationID == "" {
		return "", &ResponseError{Endpoint: endpoint, Message: "missing operationId"}
	}
	return env.OperationID, nil
}

// Submit posts the job description.
func (c *V1Client) Submit(ctx context.Context, job json.RawMessage) (string, error) {
	const endpoint = "POST /api/v1/task"
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/task", bytes.NewReader(job))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.envelope(req, endpoint)
	if err != nil {
		return "", err
	}
	if env.OperationID == "" {
		return "", &ResponseError{Endpoint: endpoint, Message: "missing operationId"}
	}
	return env.OperationID, nil
}

// Status fetches the current samples of a job.
func (c *V1Client) Status(ctx context.Context, jobID string) ([]*StatusSample, error) {
	const endpoint = "GET /api/v1/task"
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/task/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	env, err := c.envelope(req, endpoint)
	if err != nil {
		return nil, err
	}
	if len(env.Results) > 0 && env.Results[0] == nil {
		c.log.Warn("null results received for job %s", jobID)
	}
	return env.Results, nil
}

// FetchArtifacts downloads every path of every report, one request each.
func (c *V1Client) FetchArtifacts(ctx context.Context, jobID string, reports []Report) ([]Artifact, error) {
	const endpoint = "GET /api/v1/file"
	var artifacts []Artifact
	for _, report := range reports {
		for i, p := range report.Paths {
			req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/file/"+url.PathEscape(jobID), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("filename", fileName(p))

			data, err := c.do(req, endpoint)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, Artifact{Name: ArtifactName(i, report.Name, p), Data: data})
		}
	}
	return artifacts, nil
}
