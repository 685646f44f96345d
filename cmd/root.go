package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"reportharness/internal/config"
	"reportharness/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid configuration, no container runtime).
	ExitCodeError = 1
	// ExitCodeTestsFailed indicates the run completed but at least one test case failed.
	ExitCodeTestsFailed = 2
)

// TestsFailedError is returned by run when at least one test case failed.
type TestsFailedError struct {
	Failed int
	Total  int
}

func (e *TestsFailedError) Error() string {
	return fmt.Sprintf("%d of %d test cases failed", e.Failed, e.Total)
}

// Global flags shared by every subcommand.
var (
	configPath string
	logLevel   string
	logFile    string
)

// rootCmd represents the base command for the reportharness application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reportharness",
	Short: "End-to-end test harness for report generation services",
	Long: `reportharness runs report generation test cases against freshly provisioned
container environments. Each test case gets its own gateway and engine
containers, submits its job descriptions, and compares the produced artifacts
with the expected files checked in next to the job.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "reportharness version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var failed *TestsFailedError
	if errors.As(err, &failed) {
		return ExitCodeTestsFailed
	}
	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file, YAML, JSON or TOML (default ./"+config.DefaultConfigFileName+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (overrides config)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newMockGatewayCmd())
	rootCmd.AddCommand(newMCPServerCmd())
}

// loadConfig reads the configuration file and applies the global flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	return cfg, nil
}

// validateConfig wraps validation failures with the full error report.
func validateConfig(cfg config.Config) error {
	err := cfg.Validate()
	if err == nil {
		return nil
	}
	var collection config.ConfigurationErrorCollection
	if errors.As(err, &collection) {
		return fmt.Errorf("invalid configuration\n%s", collection.Report())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// setupLogging routes logs to stderr and, when configured, to the log file.
// The returned function closes the log file.
func setupLogging(cfg config.Config) (func(), error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if cfg.LogFile == "" {
		logging.InitForCLI(level, os.Stderr)
		return func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
	}
	logging.InitForCLI(level, io.MultiWriter(os.Stderr, f))
	return func() { _ = f.Close() }, nil
}
