// Package results holds the per test case Ledger of result records,
// informational notes and errors, and renders ledgers for humans.
//
// A Record passes when its expected and received counts are equal and both
// non-zero; a passing record with the warning flag set is classified as
// passed-with-warning, everything else as failed.
package results
