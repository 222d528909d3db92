// Package cmd implements the verif CLI commands using Cobra.
//
// Available commands:
//   - run: Execute suite files and report every target
//   - check: Check a single endpoint from flags
//   - validate: Check suite file syntax without executing
//   - list: Display the targets and checks of suite files
//   - history: Show runs recorded in the SQLite history
//   - init: Create a config file and an example suite
//   - version: Show verif version information
//
// Exit codes distinguish failed checks (1), unparsable suites (2),
// configuration errors (3), unreachable targets (4) and usage errors (64).
package cmd
