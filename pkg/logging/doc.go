// Package logging provides leveled, subsystem-tagged logging for reportharness
// built on Go's standard slog package.
//
// # Log Levels
//   - Debug: detailed information about container commands, HTTP calls and polling
//   - Info: progress of test cases and jobs
//   - Warn: retried or degraded operations (poll failures, skipped cleanup)
//   - Error: failures recorded against a test case
//
// # Initialization
//
// The CLI configures the process-wide handler once and decides where output
// goes; writing to console and a log file at the same time is done by the
// caller with io.MultiWriter:
//
//	out := io.MultiWriter(os.Stderr, logFile)
//	logging.InitForCLI(logging.LevelInfo, out)
//
// # Injected Loggers
//
// Components do not call the package-level functions directly. They accept a
// Logger, normally created with For:
//
//	log := logging.For("Scheduler")
//	log.Info("running test %s on port %d", name, port)
//	log.Error(err, "environment creation failed")
//
// Tests pass Discard() or a Recorder to assert on emitted messages.
package logging
