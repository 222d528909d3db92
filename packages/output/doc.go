// Package output provides formatters for displaying run results.
//
// Supported output formats:
//   - Console: the checkers' colored reports plus a per-file summary
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Every formatter has FormatResult, FormatError and FormatHeader. The
// JSON, JUnit and TAP formatters accumulate results and write them on Flush.
package output
