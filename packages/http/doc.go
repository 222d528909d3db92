// Package http provides the HTTP client used by verif checkers.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts
//   - Redirect handling
//   - Default headers and proxy support
//   - Status line reconstruction for response code checks
//
// Error statuses (4xx, 5xx) are returned as responses so they can be asserted on.
package http
