package parser

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Suite is a parsed verif suite file
type Suite struct {
	Path         string            `json:"-" yaml:"-"`
	Variables    map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Targets      []*Target         `json:"targets" yaml:"targets"`
	Equivalences []*Equivalence    `json:"equivalences,omitempty" yaml:"equivalences,omitempty"`
}

// Target is one API root probed by a single checker
type Target struct {
	Name       string   `json:"name" yaml:"name"`
	Title      string   `json:"title,omitempty" yaml:"title,omitempty"`
	Protocol   string   `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Host       string   `json:"host,omitempty" yaml:"host,omitempty"`
	PathPrefix string   `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty"`
	Checks     []*Check `json:"checks,omitempty" yaml:"checks,omitempty"`
	Line       int      `json:"-" yaml:"-"`
}

// Check lists the assertions run against one path of a target.
// Zero values mean the assertion is not run.
type Check struct {
	Path     string   `json:"path" yaml:"path"`
	Status   int      `json:"status,omitempty" yaml:"status,omitempty"`
	JSON     bool     `json:"json,omitempty" yaml:"json,omitempty"`
	Numeric  bool     `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Keys     []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	Contains []string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Equals   *string  `json:"equals,omitempty" yaml:"equals,omitempty"`
	Schema   string   `json:"schema,omitempty" yaml:"schema,omitempty"`
	Line     int      `json:"-" yaml:"-"`
}

// Equivalence asserts that two endpoints serve identical content
type Equivalence struct {
	Left  Endpoint `json:"left" yaml:"left"`
	Right Endpoint `json:"right" yaml:"right"`
	Line  int      `json:"-" yaml:"-"`
}

// Endpoint is a path on a named target
type Endpoint struct {
	Target string `json:"target" yaml:"target"`
	Path   string `json:"path" yaml:"path"`
}

// Target returns the target with the given name, or nil
func (s *Suite) Target(name string) *Target {
	for _, t := range s.Targets {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// CheckCount returns the number of checks across all targets
func (s *Suite) CheckCount() int {
	n := 0
	for _, t := range s.Targets {
		n += len(t.Checks)
	}
	return n
}

// DisplayTitle returns the report title, falling back to the name
func (t *Target) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Name
}

// Empty reports whether the check runs no assertion besides fetching
func (c *Check) Empty() bool {
	return c.Status == 0 && !c.JSON && !c.Numeric && len(c.Keys) == 0 &&
		len(c.Contains) == 0 && c.Equals == nil && c.Schema == ""
}

func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	type plain Target
	if err := checkKeys(node, "name", "title", "protocol", "host", "pathPrefix", "checks"); err != nil {
		return err
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Target(p)
	t.Line = node.Line
	return nil
}

func (c *Check) UnmarshalYAML(node *yaml.Node) error {
	type plain Check
	if err := checkKeys(node, "path", "status", "json", "numeric", "keys", "contains", "equals", "schema"); err != nil {
		return err
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Check(p)
	c.Line = node.Line
	return nil
}

func (e *Equivalence) UnmarshalYAML(node *yaml.Node) error {
	type plain Equivalence
	if err := checkKeys(node, "left", "right"); err != nil {
		return err
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = Equivalence(p)
	e.Line = node.Line
	return nil
}

// checkKeys rejects mapping keys outside allowed. Decoding through a
// node drops the decoder's KnownFields setting.
func checkKeys(node *yaml.Node, allowed ...string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return &ParseError{Line: key.Line, Message: fmt.Sprintf("unknown field %q", key.Value)}
		}
	}
	return nil
}

// ParseError is a suite error tied to a location in the file
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	case e.File != "":
		return e.File + ": " + e.Message
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}
