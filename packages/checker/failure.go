package checker

import (
	"strings"
	"unicode/utf8"
)

// maxEcho bounds how much received content is copied into a failure message.
const maxEcho = 500

// Kind classifies a recorded failure.
type Kind int

const (
	KindManual Kind = iota
	KindResponseCode
	KindInvalidJSON
	KindNotNumeric
	KindMissingKey
	KindContentMismatch
	KindMissingSubstring
	KindSchemaMismatch
)

func (k Kind) String() string {
	switch k {
	case KindResponseCode:
		return "ResponseCodeMismatch"
	case KindInvalidJSON:
		return "InvalidJSON"
	case KindNotNumeric:
		return "NotNumeric"
	case KindMissingKey:
		return "MissingKey"
	case KindContentMismatch:
		return "ContentMismatch"
	case KindMissingSubstring:
		return "MissingSubstring"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	default:
		return "Error"
	}
}

// Failure is one recorded assertion failure. Message is the rendered block
// shown in reports.
type Failure struct {
	Kind     Kind
	URI      string
	Expected string
	Received string
	Message  string
}

func (f Failure) String() string {
	return f.Message
}

type detail struct {
	label string
	value string
}

// renderFailure builds the multi-line block:
//
//	URL: http://localhost/api/
//	HTTP return code error:
//	 * Expected: 200
//	 * Received: 404
func renderFailure(uri, title string, details ...detail) string {
	var b strings.Builder
	b.WriteString("URL: ")
	b.WriteString(uri)
	b.WriteString("\n")
	b.WriteString(title)
	if len(details) == 0 {
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(":\n")
	for _, d := range details {
		b.WriteString(" * ")
		b.WriteString(d.label)
		b.WriteString(": ")
		b.WriteString(d.value)
		b.WriteString("\n")
	}
	return b.String()
}

// truncate cuts s to at most maxEcho bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxEcho {
		return s
	}
	cut := maxEcho
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
