package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reportharness/internal/config"
	"reportharness/internal/containerizer"
	"reportharness/internal/metrics"
	"reportharness/internal/results"
	"reportharness/internal/scheduler"
	"reportharness/pkg/logging"

	"github.com/acarl005/stripansi"
	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// runOptions holds the flags of the run command. Zero values leave the
// configured setting untouched.
type runOptions struct {
	parallel        bool
	serial          bool
	basePort        int
	tests           []string
	keepEnvironment bool
	localGateway    bool
	concurrentJobs  bool
	reportPath      string
	metricsPath     string
	noProgress      bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run test cases in fresh environments",
		Long: `Run discovers the test case directories under the configured test path,
provisions a gateway and engine environment per test case, runs every job
description of the case and compares the produced artifacts with the
expected files.

Examples:
  reportharness run
  reportharness run --parallel --tests sales,stock
  reportharness run --keep-environment --report results.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "Run test cases concurrently")
	cmd.Flags().BoolVar(&opts.serial, "serial", false, "Run test cases one after another")
	cmd.Flags().IntVar(&opts.basePort, "base-port", 0, "First gateway host port")
	cmd.Flags().StringSliceVar(&opts.tests, "tests", nil, "Only run these test cases (comma separated)")
	cmd.Flags().BoolVar(&opts.keepEnvironment, "keep-environment", false, "Leave containers, network and volume in place after each test case")
	cmd.Flags().BoolVar(&opts.localGateway, "local-gateway", false, "Build the gateway image from the configured build context")
	cmd.Flags().BoolVar(&opts.concurrentJobs, "concurrent-jobs", false, "Run the jobs of one test case concurrently")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write the plain text report to this file")
	cmd.Flags().StringVar(&opts.metricsPath, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress spinner")
	cmd.MarkFlagsMutuallyExclusive("parallel", "serial")

	return cmd
}

// apply overlays the flags that were set onto cfg.
func (o *runOptions) apply(cfg *config.Config) {
	if o.parallel {
		cfg.RunParallel = true
	}
	if o.serial {
		cfg.RunParallel = false
	}
	if o.basePort != 0 {
		cfg.BasePort = o.basePort
	}
	if len(o.tests) > 0 {
		cfg.Tests = o.tests
	}
	if o.keepEnvironment {
		cfg.RemoveEnvironment = false
	}
	if o.localGateway {
		cfg.Gateway.UseLocalBuild = true
	}
	if o.concurrentJobs {
		cfg.ConcurrentJobs = true
	}
}

func runTests(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts.apply(&cfg)
	if err := validateConfig(cfg); err != nil {
		return err
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := containerizer.NewContainerRuntime(cfg.ContainerRuntime)
	if err != nil {
		return fmt.Errorf("container runtime unavailable: %w", err)
	}

	recorder := metrics.New()
	progress := newProgressSpinner(!opts.noProgress)

	sched := scheduler.New(cfg, scheduler.Deps{
		Runtime:  runtime,
		Metrics:  recorder,
		Progress: progress.update,
		Logger:   logging.For("Scheduler"),
	})

	progress.start()
	start := time.Now()
	ledgers, err := sched.RunAll(ctx)
	progress.stop()
	if err != nil {
		return err
	}

	report := renderReport(ledgers, time.Since(start))
	fmt.Fprint(cmd.OutOrStdout(), report)

	if opts.reportPath != "" {
		if err := os.WriteFile(opts.reportPath, []byte(stripansi.Strip(report)), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if opts.metricsPath != "" {
		if err := recorder.WriteToTextfile(opts.metricsPath); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("run interrupted after %d test cases", len(ledgers))
	}

	failed := 0
	for _, l := range ledgers {
		if l.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return &TestsFailedError{Failed: failed, Total: len(ledgers)}
	}
	return nil
}

// renderReport renders every ledger followed by the run summary.
func renderReport(ledgers []*results.Ledger, elapsed time.Duration) string {
	var b strings.Builder
	for _, l := range ledgers {
		b.WriteString(l.Render())
		b.WriteString("\n")
	}
	results.RenderSummary(&b, ledgers)
	fmt.Fprintf(&b, "Finished in %s\n", elapsed.Round(time.Second))
	return b.String()
}

type progressSpinner struct {
	s *spinner.Spinner
}

func newProgressSpinner(enabled bool) *progressSpinner {
	if !enabled {
		return &progressSpinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " Running test cases..."
	return &progressSpinner{s: s}
}

func (p *progressSpinner) start() {
	if p.s != nil {
		p.s.Start()
	}
}

func (p *progressSpinner) stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

func (p *progressSpinner) update(done, total int, l *results.Ledger) {
	if p.s == nil {
		return
	}
	status := text.FgGreen.Sprint("passed")
	if l.Failed() {
		status = text.FgRed.Sprint("failed")
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" %d/%d test cases finished (%s %s)", done, total, l.Name(), status)
	p.s.Unlock()
}
