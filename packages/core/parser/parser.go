package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a suite file
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// ErrNoTargets is returned by Validate for a suite without targets
var ErrNoTargets = errors.New("suite defines no targets")

// FormatFromPath picks the format from the file extension
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ParseFile reads, parses and validates a suite file
func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	suite, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, &ParseError{File: path, Message: err.Error()}
	}
	suite.Path = path

	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suite, nil
}

// Parse decodes a suite. Unknown keys are rejected so typos in
// assertion names do not silently disable a check.
func Parse(data []byte, format Format) (*Suite, error) {
	suite := &Suite{}

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(suite); err != nil {
			return nil, err
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(suite); err != nil {
			if errors.Is(err, io.EOF) {
				return suite, nil
			}
			return nil, err
		}
	}

	return suite, nil
}

// Validate checks the suite for structural errors. All problems are
// reported together.
func (s *Suite) Validate() error {
	if len(s.Targets) == 0 {
		return ErrNoTargets
	}

	var errs []error
	fail := func(line int, format string, args ...any) {
		errs = append(errs, &ParseError{Line: line, Message: fmt.Sprintf(format, args...)})
	}

	seen := make(map[string]bool, len(s.Targets))
	for i, t := range s.Targets {
		if t == nil {
			fail(0, "target %d is empty", i+1)
			continue
		}
		if t.Name == "" {
			fail(t.Line, "target %d has no name", i+1)
		} else if seen[t.Name] {
			fail(t.Line, "duplicate target name %q", t.Name)
		}
		seen[t.Name] = true

		for _, c := range t.Checks {
			if c == nil {
				continue
			}
			if c.Status != 0 && (c.Status < 100 || c.Status > 599) {
				fail(c.Line, "target %q: status %d is not a valid HTTP status code", t.Name, c.Status)
			}
			for _, k := range c.Keys {
				if k == "" {
					fail(c.Line, "target %q: empty key in keys", t.Name)
				}
			}
		}
	}

	for _, e := range s.Equivalences {
		if e == nil {
			continue
		}
		for _, ep := range []Endpoint{e.Left, e.Right} {
			if ep.Target == "" {
				fail(e.Line, "equivalence endpoint has no target")
			} else if !seen[ep.Target] {
				fail(e.Line, "equivalence references unknown target %q", ep.Target)
			}
		}
	}

	return errors.Join(errs...)
}
