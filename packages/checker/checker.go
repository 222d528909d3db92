package checker

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/abdul-hamid-achik/verif/packages/http"
	"github.com/fatih/color"
)

const (
	DefaultProtocol = "http"
	DefaultHost     = "localhost"
)

// ErrMalformedStatusLine is returned when a status line carries no 3-digit code at offset 9.
var ErrMalformedStatusLine = errors.New("malformed status line")

// Fetcher retrieves remote content for a checker. Fetch must treat error
// statuses as regular content; ok is false only on transport failure.
type Fetcher interface {
	Fetch(uri string) (body string, ok bool)
	StatusLine(uri string) (string, error)
}

// Checker accumulates assertion results against a single target.
// It is not safe for concurrent use.
type Checker struct {
	protocol   string
	host       string
	pathPrefix string
	path       string
	uri        string

	content string
	fetched bool

	failures  []Failure
	testCount int

	reportTitle  string
	reportOutput string

	fetcher   Fetcher
	out       io.Writer
	noColor   bool
	schemaDir string
}

// Option configures a Checker.
type Option func(*Checker)

// WithFetcher replaces the default HTTP client.
func WithFetcher(f Fetcher) Option {
	return func(c *Checker) {
		c.fetcher = f
	}
}

// WithOutput sets where Report writes. Defaults to color.Output.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.out = w
	}
}

// WithNoColor overrides color.NoColor for the summary line of reports.
func WithNoColor(nc bool) Option {
	return func(c *Checker) {
		c.noColor = nc
	}
}

// WithSchemaDir sets the directory relative schema paths are resolved against.
func WithSchemaDir(dir string) Option {
	return func(c *Checker) {
		c.schemaDir = dir
	}
}

// New creates a checker for http://localhost/ reporting under title.
// Colors follow color.NoColor unless WithNoColor is given.
func New(title string, opts ...Option) *Checker {
	c := &Checker{
		protocol:    DefaultProtocol,
		host:        DefaultHost,
		reportTitle: title,
		out:         color.Output,
		noColor:     color.NoColor,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = http.NewClient()
	}
	c.buildURI()
	return c
}

// SetProtocol sets the URI scheme, stored verbatim.
func (c *Checker) SetProtocol(protocol string) *Checker {
	c.protocol = protocol
	c.buildURI()
	return c
}

func (c *Checker) SetHost(host string) *Checker {
	c.host = host
	c.buildURI()
	return c
}

func (c *Checker) SetPathPrefix(prefix string) *Checker {
	c.pathPrefix = prefix
	c.buildURI()
	return c
}

func (c *Checker) SetPath(path string) *Checker {
	c.path = path
	c.buildURI()
	return c
}

func (c *Checker) buildURI() {
	c.uri = c.protocol + "://" + c.host + "/" + c.pathPrefix + c.path
}

func (c *Checker) URI() string        { return c.uri }
func (c *Checker) Protocol() string   { return c.protocol }
func (c *Checker) Host() string       { return c.host }
func (c *Checker) PathPrefix() string { return c.pathPrefix }
func (c *Checker) Path() string       { return c.path }
func (c *Checker) Title() string      { return c.reportTitle }

// FetchContent retrieves the current URI and replaces the cached content.
// A transport failure leaves the cache empty.
func (c *Checker) FetchContent() *Checker {
	body, ok := c.fetcher.Fetch(c.uri)
	if !ok {
		c.content = ""
		c.fetched = false
		return c
	}
	c.content = body
	c.fetched = true
	return c
}

// SetContent injects content without touching the network.
func (c *Checker) SetContent(content string) *Checker {
	c.content = content
	c.fetched = true
	return c
}

// Content returns the cached body.
func (c *Checker) Content() string { return c.content }

// CachedContent is an alias of Content; neither triggers a fetch.
func (c *Checker) CachedContent() string { return c.content }

// Fetched reports whether the cache holds a successfully retrieved body.
func (c *Checker) Fetched() bool { return c.fetched }

// HTTPResponseCode issues a new request for the current URI and returns its status code.
func (c *Checker) HTTPResponseCode() (int, error) {
	line, err := c.fetcher.StatusLine(c.uri)
	if err != nil {
		return 0, err
	}
	return ParseStatusCode(line)
}

// ParseStatusCode reads the 3-digit code that follows the protocol token of a
// status line such as "HTTP/1.1 200 OK".
func ParseStatusCode(line string) (int, error) {
	if len(line) < 12 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedStatusLine, line)
	}
	digits := line[9:12]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformedStatusLine, line)
		}
	}
	return strconv.Atoi(digits)
}

// ensureContent fetches when nothing is cached yet.
func (c *Checker) ensureContent() {
	if c.content == "" {
		c.FetchContent()
	}
}

// SetError records a free-form failure. It does not count as a test.
func (c *Checker) SetError(message string) *Checker {
	c.failures = append(c.failures, Failure{
		Kind:    KindManual,
		URI:     c.uri,
		Message: message,
	})
	return c
}

// Errors returns the rendered failure messages in the order they were recorded.
func (c *Checker) Errors() []string {
	errs := make([]string, len(c.failures))
	for i, f := range c.failures {
		errs[i] = f.Message
	}
	return errs
}

// Failures returns a copy of the recorded failures.
func (c *Checker) Failures() []Failure {
	out := make([]Failure, len(c.failures))
	copy(out, c.failures)
	return out
}

// TestCount is the number of assertions evaluated so far.
func (c *Checker) TestCount() int { return c.testCount }
