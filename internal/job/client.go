package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reportharness/internal/config"
	"reportharness/internal/gateway"
	"reportharness/internal/results"
	"reportharness/pkg/logging"
)

// Ledger entry names written by Run.
const (
	InfoFileID        = "File Id"
	InfoTaskID        = "Task Id"
	RecordCountResult = "Count Result Test"
	ErrAnalyse        = "Analyse Error"
	ErrRun            = "Run Error"
)

// Metrics receives job lifecycle events. *metrics.Recorder implements it.
type Metrics interface {
	RecordJobState(state string)
	RecordPoll(outcome string)
	ObserveJob(state string, d time.Duration)
}

type noMetrics struct{}

func (noMetrics) RecordJobState(string)            {}
func (noMetrics) RecordPoll(string)                {}
func (noMetrics) ObserveJob(string, time.Duration) {}

// Params are the dependencies of a Client.
type Params struct {
	Gateway gateway.Client
	// Counter resolves dynamic selections. Nil makes every report count as 1.
	Counter SelectionCounter
	Timing  config.TimingConfig
	// TestCaseDir holds the template assets to stage.
	TestCaseDir string
	// OutputDir receives the downloaded artifacts.
	OutputDir string
	Ledger    *results.Ledger
	Metrics   Metrics
	Logger    logging.Logger
}

// Client runs one job description against one gateway, recording the
// outcome in a ledger.
type Client struct {
	p Params

	mu    sync.Mutex
	state State
}

// NewClient creates a Client in the staging state.
func NewClient(p Params) *Client {
	if p.Metrics == nil {
		p.Metrics = noMetrics{}
	}
	if p.Logger == nil {
		p.Logger = logging.Discard()
	}
	return &Client{p: p}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) transition(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	c.p.Logger.Debug("Job state %s -> %s", prev, s)
	c.p.Metrics.RecordJobState(s.String())
}

// Upload sends the staged bundle and returns the upload reference.
func (c *Client) Upload(ctx context.Context, bundle []byte) (string, error) {
	ref, err := c.p.Gateway.Upload(ctx, bundle)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	return ref, nil
}

// Submit posts desc with ref attached and returns the job ID.
func (c *Client) Submit(ctx context.Context, desc *Description, ref string) (string, error) {
	body, err := desc.WithUploadRef(ref)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	id, err := c.p.Gateway.Submit(ctx, body)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	return id, nil
}

// Poll requests the job status every PollInterval until no sample is
// waiting. Failed requests are logged and retried. An unknown status or an
// incomplete sample ends the loop with an *AnalysisError, and MaxPollDuration (when non-zero) with
// a *TimeoutError.
func (c *Client) Poll(ctx context.Context, jobID string) (Outcome, error) {
	interval := c.p.Timing.PollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if limit := c.p.Timing.MaxPollDuration; limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-deadline:
			return Outcome{}, &TimeoutError{JobID: jobID, After: c.p.Timing.MaxPollDuration, Polls: attempt - 1}
		case <-ticker.C:
		}

		samples, err := c.p.Gateway.Status(ctx, jobID)
		if err != nil {
			var unknown *gateway.UnknownStatusError
			var invalid *gateway.InvalidSampleError
			if errors.As(err, &unknown) || errors.As(err, &invalid) {
				c.p.Metrics.RecordPoll("invalid")
				return Outcome{}, &AnalysisError{JobID: jobID, Err: err}
			}
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			c.p.Metrics.RecordPoll("error")
			c.p.Logger.Warn("%v", &PollTransportError{JobID: jobID, Attempt: attempt, Err: err})
			continue
		}

		outcome := Analyse(samples)
		if outcome.ContinueWaiting {
			c.p.Metrics.RecordPoll("waiting")
			continue
		}
		c.p.Metrics.RecordPoll("done")
		c.p.Logger.Debug("Job %s finished after %d polls", jobID, attempt)
		return outcome, nil
	}
}

// FetchArtifacts downloads every report output of outcome into OutputDir.
func (c *Client) FetchArtifacts(ctx context.Context, jobID string, outcome Outcome) error {
	if len(outcome.Reports) == 0 {
		return nil
	}
	artifacts, err := c.p.Gateway.FetchArtifacts(ctx, jobID, outcome.Reports)
	if err != nil {
		return fmt.Errorf("failed to fetch artifacts: %w", err)
	}
	if err := os.MkdirAll(c.p.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, a := range artifacts {
		if !filepath.IsLocal(a.Name) || filepath.Base(a.Name) != a.Name {
			return fmt.Errorf("refusing artifact name %q outside the output directory", a.Name)
		}
		if err := os.WriteFile(filepath.Join(c.p.OutputDir, a.Name), a.Data, 0644); err != nil {
			return fmt.Errorf("failed to write artifact %s: %w", a.Name, err)
		}
	}
	c.p.Logger.Debug("Saved %d artifacts to %s", len(artifacts), c.p.OutputDir)
	return nil
}

// Run executes desc end to end and records the result. Errors are written
// to the ledger as a Run Error; Run never fails outward.
func (c *Client) Run(ctx context.Context, desc *Description) {
	start := time.Now()
	err := c.recoverRun(ctx, desc)
	if err != nil {
		c.transition(StateFailed)
		c.p.Logger.Error(err, "Job %s failed", desc.Name)
		c.p.Ledger.AddError(ErrRun, "job "+filepath.Base(desc.Name), err)
	} else {
		c.transition(StateDone)
	}
	c.p.Metrics.ObserveJob(c.State().String(), time.Since(start))
}

func (c *Client) recoverRun(ctx context.Context, desc *Description) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return c.run(ctx, desc)
}

func (c *Client) run(ctx context.Context, desc *Description) error {
	c.transition(StateStaging)
	bundle, err := Stage(c.p.TestCaseDir)
	if err != nil {
		return err
	}

	c.transition(StateUploading)
	ref, err := c.Upload(ctx, bundle)
	if err != nil {
		return err
	}
	c.p.Ledger.AddInfo(InfoFileID, ref)

	// the gateway unpacks the bundle asynchronously
	if err := sleep(ctx, c.p.Timing.UploadSettleDelay); err != nil {
		return err
	}

	expected := ExpectedCount(ctx, desc, c.p.Counter, c.p.Logger)

	jobID, err := c.Submit(ctx, desc, ref)
	if err != nil {
		return err
	}
	c.transition(StateSubmitted)
	c.p.Ledger.AddInfo(InfoTaskID, jobID)

	c.transition(StatePolling)
	outcome, err := c.Poll(ctx, jobID)
	if err != nil {
		return err
	}
	if len(outcome.Errors) > 0 {
		c.p.Ledger.AddError(ErrAnalyse, "job "+jobID, errors.New(strings.Join(outcome.Errors, "\n")))
	}

	if err := c.FetchArtifacts(ctx, jobID, outcome); err != nil {
		return err
	}

	c.p.Ledger.AddResult(results.Record{
		Name:     RecordCountResult,
		Expected: expected,
		Received: outcome.TotalReportCount,
		Warning:  outcome.Warning,
	})
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
