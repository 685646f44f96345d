package job

import (
	"fmt"

	"reportharness/internal/gateway"
)

// Outcome is the fold of one poll cycle's samples.
type Outcome struct {
	// ContinueWaiting is true when any sample is missing or ABORT.
	ContinueWaiting bool
	Reports         []gateway.Report
	Errors          []string
	Warning         bool
	// TotalReportCount sums the count of every sample.
	TotalReportCount int
}

// Analyse folds samples into a fresh Outcome.
func Analyse(samples []*gateway.StatusSample) Outcome {
	var o Outcome
	if len(samples) == 0 {
		o.ContinueWaiting = true
		return o
	}

	for _, s := range samples {
		if s == nil {
			o.ContinueWaiting = true
			continue
		}
		switch s.Status {
		case gateway.StatusAbort:
			o.ContinueWaiting = true
		case gateway.StatusError, gateway.StatusRetryError:
			o.Errors = append(o.Errors, fmt.Sprintf("%s in Task: %s", s.Status, s.TaskID))
		case gateway.StatusWarning:
			o.Warning = true
			o.Reports = append(o.Reports, s.Reports...)
		case gateway.StatusSuccess:
			o.Reports = append(o.Reports, s.Reports...)
		}
		o.TotalReportCount += s.Count
	}
	return o
}
