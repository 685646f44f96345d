// Package mcpserver exposes the harness to AI assistants as MCP tools.
//
// Two tools are registered:
//   - list_test_cases returns the discovered test case names as JSON
//   - run_test_cases runs the selected test cases and returns a summary per
//     case together with its rendered report, ANSI colors removed
//
// Runs are serialized: a second run_test_cases call while one is active is
// rejected with a tool error.
package mcpserver
