// Package builtin provides built-in functions for use in verif suite files.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - timestamp(): Current Unix timestamp
//   - now(): Current time in RFC 3339 format
//   - date(layout): Current UTC date, Go layout, defaults to 2006-01-02
//   - random(min, max): Random integer in range
//   - base64(value): Base64 encode a string
//   - urlEncode(value): Query-escape a string
//
// Functions are invoked using the {{functionName(args)}} syntax in suite files.
package builtin
