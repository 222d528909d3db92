// Package env handles variable resolution for verif suite files.
//
// It provides functionality for:
//   - Loading .env files
//   - Variable interpolation using {{variable}} syntax
//   - Process environment lookups using {{$NAME}}
//   - Built-in function evaluation (uuid, timestamp, date, ...)
//   - Environment-specific variable loading from the config file
package env
