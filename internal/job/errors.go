package job

import (
	"fmt"
	"time"
)

// StagingError is returned when the input bundle cannot be built.
type StagingError struct {
	Dir string
	Err error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("failed to stage %s: %v", e.Dir, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// UploadError is returned when the bundle cannot be uploaded.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmitError is returned when the job description cannot be submitted.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// PollTransportError is one failed status request. The poll loop logs it
// and retries on the next interval.
type PollTransportError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *PollTransportError) Error() string {
	return fmt.Sprintf("status request %d for job %s failed: %v", e.Attempt, e.JobID, e.Err)
}

func (e *PollTransportError) Unwrap() error { return e.Err }

// AnalysisError is returned when a status payload cannot be interpreted,
// such as a sample carrying an unknown status tag. It ends the job.
type AnalysisError struct {
	JobID string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("cannot analyse status of job %s: %v", e.JobID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// TimeoutError is returned when a job is still waiting after the configured
// maximum poll duration.
type TimeoutError struct {
	JobID string
	After time.Duration
	Polls int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s still running after %s (%d polls)", e.JobID, e.After, e.Polls)
}
