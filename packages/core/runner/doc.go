// Package runner executes verif suite files.
//
// Each target of a suite gets its own checker. Checks run sequentially in
// file order, equivalences between targets run last, and every request is
// paced by an optional rate limit and timed into a latency histogram.
package runner
