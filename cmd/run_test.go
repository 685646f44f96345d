package cmd

import (
	"io"
	"strings"
	"testing"
	"time"

	"reportharness/internal/config"
	"reportharness/internal/results"

	"github.com/spf13/cobra"
)

func TestRunOptions_Apply(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.RunParallel = true
	defaults := cfg

	(&runOptions{}).apply(&cfg)
	if cfg.RunParallel != defaults.RunParallel || cfg.BasePort != defaults.BasePort {
		t.Errorf("Expected unset flags to leave the configuration untouched")
	}

	opts := &runOptions{
		serial:          true,
		basePort:        9000,
		tests:           []string{"sales"},
		keepEnvironment: true,
		localGateway:    true,
		concurrentJobs:  true,
	}
	opts.apply(&cfg)

	if cfg.RunParallel {
		t.Error("Expected --serial to disable parallel runs")
	}
	if cfg.BasePort != 9000 {
		t.Errorf("Expected base port 9000, got %d", cfg.BasePort)
	}
	if len(cfg.Tests) != 1 || cfg.Tests[0] != "sales" {
		t.Errorf("Expected tests [sales], got %v", cfg.Tests)
	}
	if cfg.RemoveEnvironment {
		t.Error("Expected --keep-environment to disable removal")
	}
	if !cfg.Gateway.UseLocalBuild {
		t.Error("Expected --local-gateway to enable the local build")
	}
	if !cfg.ConcurrentJobs {
		t.Error("Expected --concurrent-jobs to be applied")
	}
}

func TestRunCommand_Flags(t *testing.T) {
	cmd := newRunCmd()
	for _, name := range []string{"parallel", "serial", "base-port", "tests", "keep-environment", "local-gateway", "concurrent-jobs", "report", "metrics-file", "no-progress"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected flag --%s", name)
		}
	}

	cmd.SetArgs([]string{"--parallel", "--serial"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	if err := cmd.Execute(); err == nil {
		t.Error("Expected --parallel and --serial to be mutually exclusive")
	}
}

func TestRenderReport(t *testing.T) {
	passed := results.NewLedger("alpha")
	passed.AddResult(results.Record{Name: "Count Result Test", Expected: 2, Received: 2})
	failed := results.NewLedger("beta")
	failed.AddResult(results.Record{Name: "Count Result Test", Expected: 2, Received: 1})

	report := renderReport([]*results.Ledger{passed, failed}, 90*time.Second)

	for _, want := range []string{"alpha", "beta", "Finished in 1m30s"} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to contain %q. Got: %q", want, report)
		}
	}
	if strings.Index(report, "alpha") > strings.Index(report, "beta") {
		t.Error("Expected ledgers in run order")
	}
}

func TestProgressSpinner_Disabled(t *testing.T) {
	p := newProgressSpinner(false)
	p.start()
	p.update(1, 2, results.NewLedger("alpha"))
	p.stop()
}
