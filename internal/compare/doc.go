// Package compare diffs the artifacts a job wrote to a test case's output
// directory against the baseline files stored in the test case itself.
package compare
