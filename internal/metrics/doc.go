// Package metrics exposes Prometheus counters and histograms about a harness
// run: finished test cases, result records, job state transitions, status
// polls and environment and job durations.
//
// Metrics live in a private registry per Recorder so concurrent runs (for
// example through the MCP server) never share counters. The CLI writes the
// registry to a file with --metrics-file.
package metrics
