package gateway

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// LegacyClient speaks the original contract: multipart upload, JSON-string
// encoded task bodies and a single zip download holding every output.
type LegacyClient struct {
	httpBase
}

// decodeString decodes a body holding one JSON string.
func decodeString(body []byte, endpoint string) (string, error) {
	var s string
	if err := json.Unmarshal(body, &s); err != nil {
		return "", &ResponseError{Endpoint: endpoint, Message: "malformed body", Err: err}
	}
	if s == "" {
		return "", &ResponseError{Endpoint: endpoint, Message: "empty identifier"}
	}
	return s, nil
}

// Upload posts the bundle as the multipart field "file".
func (c *LegacyClient) Upload(ctx context.Context, bundle []byte) (string, error) {
	const endpoint = "POST /upload"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", UploadFileName)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(bundle); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req, endpoint)
	if err != nil {
		return "", err
	}
	return decodeString(body, endpoint)
}

// Submit posts the job description encoded as a JSON string.
func (c *LegacyClient) Submit(ctx context.Context, job json.RawMessage) (string, error) {
	const endpoint = "POST /task"

	encoded, err := json.Marshal(string(job))
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/task", bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, endpoint)
	if err != nil {
		return "", err
	}
	return decodeString(body, endpoint)
}

// Status fetches the samples, which arrive as a JSON string holding the
// sample array.
func (c *LegacyClient) Status(ctx context.Context, jobID string) ([]*StatusSample, error) {
	const endpoint = "GET /task"
	req, err := c.newRequest(ctx, http.MethodGet, "/task/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}

	var inner string
	if err := json.Unmarshal(body, &inner); err != nil {
		return nil, &ResponseError{Endpoint: endpoint, Message: "malformed body", Err: err}
	}
	var samples []*StatusSample
	if err := json.Unmarshal([]byte(inner), &samples); err != nil {
		return nil, &ResponseError{Endpoint: endpoint, Message: "malformed sample list", Err: err}
	}
	return samples, nil
}

// FetchArtifacts downloads the job's zip once, then names each entry after
// the report that produced it. Entries no report claims keep their own name.
func (c *LegacyClient) FetchArtifacts(ctx context.Context, jobID string, reports []Report) ([]Artifact, error) {
	const endpoint = "GET /download"
	req, err := c.newRequest(ctx, http.MethodGet, "/download/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, &ResponseError{Endpoint: endpoint, Message: "download is not a zip archive", Err: err}
	}

	entries := make(map[string][]byte, len(zr.File))
	var order []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			return nil, &ResponseError{Endpoint: endpoint, Message: "failed to unpack " + f.Name, Err: err}
		}
		name := cleanEntryPath(f.Name)
		if _, dup := entries[name]; !dup {
			order = append(order, name)
		}
		entries[name] = data
	}

	var artifacts []Artifact
	claimed := make(map[string]bool)
	for _, report := range reports {
		for i, p := range report.Paths {
			entry, err := matchEntry(order, p)
			if err != nil {
				return nil, &ResponseError{Endpoint: endpoint, Message: fmt.Sprintf("output of report %s: %v", report.Name, err)}
			}
			claimed[entry] = true
			artifacts = append(artifacts, Artifact{Name: ArtifactName(i, report.Name, p), Data: entries[entry]})
		}
	}
	for _, entry := range order {
		if !claimed[entry] {
			artifacts = append(artifacts, Artifact{Name: path.Base(entry), Data: entries[entry]})
		}
	}
	return artifacts, nil
}

func cleanEntryPath(p string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
}

// matchEntry picks the archive entry sharing the longest trailing run of path
// elements with the gateway side path. A tie on the best run is an error.
func matchEntry(entries []string, producedPath string) (string, error) {
	want := strings.Split(cleanEntryPath(producedPath), "/")

	best, bestScore, ties := "", 0, 0
	for _, entry := range entries {
		score := commonSuffix(strings.Split(entry, "/"), want)
		switch {
		case score > bestScore:
			best, bestScore, ties = entry, score, 1
		case score == bestScore && score > 0:
			ties++
		}
	}
	switch {
	case bestScore == 0:
		return "", fmt.Errorf("archive has no %s", fileName(producedPath))
	case ties > 1:
		return "", fmt.Errorf("%s matches %d archive entries", producedPath, ties)
	}
	return best, nil
}

func commonSuffix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
