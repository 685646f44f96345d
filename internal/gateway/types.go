package gateway

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Status is the state a gateway reports for one task of a job.
type Status string

const (
	StatusSuccess    Status = "SUCCESS"
	StatusWarning    Status = "WARNING"
	StatusError      Status = "ERROR"
	StatusRetryError Status = "RETRYERROR"
	StatusAbort      Status = "ABORT"
)

// UnknownStatusError is returned when a status sample carries a tag outside
// the known set.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown task status %q", e.Value)
}

// UnmarshalJSON accepts only the known status tags.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("task status must be a string: %w", err)
	}
	switch st := Status(raw); st {
	case StatusSuccess, StatusWarning, StatusError, StatusRetryError, StatusAbort:
		*s = st
		return nil
	default:
		return &UnknownStatusError{Value: raw}
	}
}

// InvalidSampleError is returned when a status sample is well-formed JSON
// but misses required fields.
type InvalidSampleError struct {
	TaskID string
	Reason string
}

func (e *InvalidSampleError) Error() string {
	return fmt.Sprintf("status sample for task %q %s", e.TaskID, e.Reason)
}

// Report names the output files one report produced.
type Report struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

// StatusSample is the status of one task of a job.
type StatusSample struct {
	TaskID    string   `json:"taskId"`
	StartTime string   `json:"startTime,omitempty"`
	RunTime   string   `json:"runTime,omitempty"`
	Status    Status   `json:"status"`
	Count     int      `json:"count"`
	Reports   []Report `json:"reports,omitempty"`
}

// UnmarshalJSON decodes a sample and validates its report list.
func (s *StatusSample) UnmarshalJSON(data []byte) error {
	type plain StatusSample
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Status == "" {
		return &InvalidSampleError{TaskID: p.TaskID, Reason: "has no status"}
	}
	for i, r := range p.Reports {
		if strings.TrimSpace(r.Name) == "" {
			return &InvalidSampleError{TaskID: p.TaskID, Reason: fmt.Sprintf("report %d has no name", i)}
		}
	}
	*s = StatusSample(p)
	return nil
}

// Artifact is one downloaded output file, already named for the output directory.
type Artifact struct {
	Name string
	Data []byte
}

// ArtifactName returns "{index}_{reportName}.{ext}" where ext is the
// extension of the produced file.
// Path separators in reportName are replaced so the result is always a
// plain file name.
func ArtifactName(index int, reportName, producedPath string) string {
	name := strconv.Itoa(index) + "_" + safeName(reportName)
	if ext := path.Ext(fileName(producedPath)); ext != "" {
		name += ext
	}
	return name
}

// fileName returns the last element of a gateway side path.
func fileName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

// safeName turns a gateway supplied name into a single path element.
func safeName(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(s)
}
