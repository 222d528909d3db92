package checker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned bodies and status lines keyed by URI.
type fakeFetcher struct {
	bodies      map[string]string
	statusLines map[string]string
	down        bool
	fetches     int
	statusCalls int
}

func (f *fakeFetcher) Fetch(uri string) (string, bool) {
	f.fetches++
	if f.down {
		return "", false
	}
	return f.bodies[uri], true
}

func (f *fakeFetcher) StatusLine(uri string) (string, error) {
	f.statusCalls++
	if f.down {
		return "", errors.New("connection refused")
	}
	line, ok := f.statusLines[uri]
	if !ok {
		return "HTTP/1.1 404 Not Found", nil
	}
	return line, nil
}

func newTestChecker(f Fetcher) *Checker {
	if f == nil {
		f = &fakeFetcher{}
	}
	return New("title", WithFetcher(f), WithOutput(&discard{}), WithNoColor(true))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func readTestFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestNew_Defaults(t *testing.T) {
	c := newTestChecker(nil)

	assert.Equal(t, "http", c.Protocol())
	assert.Equal(t, "localhost", c.Host())
	assert.Equal(t, "", c.PathPrefix())
	assert.Equal(t, "", c.Path())
	assert.Equal(t, "http://localhost/", c.URI())
	assert.Equal(t, "title", c.Title())
	assert.Empty(t, c.Errors())
	assert.Equal(t, 0, c.TestCount())
	assert.False(t, c.Fetched())
}

func TestSetURI(t *testing.T) {
	c := newTestChecker(nil)
	c.SetProtocol("http").
		SetHost("test.org").
		SetPathPrefix("api/").
		SetPath("foo/bar/baz")

	assert.Equal(t, "http://test.org/api/foo/bar/baz", c.URI())
}

func TestSetURI_OrderIndependent(t *testing.T) {
	setters := map[string]func(*Checker) *Checker{
		"protocol": func(c *Checker) *Checker { return c.SetProtocol("https") },
		"host":     func(c *Checker) *Checker { return c.SetHost("example.org") },
		"prefix":   func(c *Checker) *Checker { return c.SetPathPrefix("v1/") },
		"path":     func(c *Checker) *Checker { return c.SetPath("items?x=1") },
	}
	orders := [][]string{
		{"protocol", "host", "prefix", "path"},
		{"path", "prefix", "host", "protocol"},
		{"host", "path", "protocol", "prefix"},
		{"prefix", "protocol", "path", "host"},
	}

	for _, order := range orders {
		c := newTestChecker(nil)
		for _, name := range order {
			setters[name](c)
			assert.Equal(t, c.Protocol()+"://"+c.Host()+"/"+c.PathPrefix()+c.Path(), c.URI())
		}
		assert.Equal(t, "https://example.org/v1/items?x=1", c.URI(), "order %v", order)
	}
}

func TestSetURI_AcceptsAnything(t *testing.T) {
	c := newTestChecker(nil).SetProtocol("").SetHost("not a host").SetPath("%%")

	assert.Equal(t, "://not a host/%%", c.URI())
}

func TestFetchContent(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{
		"http://localhost/a": "first",
		"http://localhost/b": "second",
	}}
	c := newTestChecker(f)

	c.SetPath("a").FetchContent()
	assert.Equal(t, "first", c.Content())
	assert.True(t, c.Fetched())

	c.SetPath("b")
	assert.Equal(t, "first", c.CachedContent(), "changing the path must not refetch")

	c.FetchContent()
	assert.Equal(t, "second", c.CachedContent())
	assert.Equal(t, 2, f.fetches)
}

func TestFetchContent_TransportFailure(t *testing.T) {
	f := &fakeFetcher{down: true}
	c := newTestChecker(f).SetContent("stale")

	c.FetchContent()

	assert.Equal(t, "", c.Content())
	assert.False(t, c.Fetched())
	assert.Empty(t, c.Errors(), "a failed fetch is not an assertion failure")
}

func TestParseStatusCode(t *testing.T) {
	tests := []struct {
		line    string
		want    int
		wantErr bool
	}{
		{"HTTP/1.1 200 OK", 200, false},
		{"HTTP/1.0 404 Not Found", 404, false},
		{"HTTP/2.0 503 Service Unavailable", 503, false},
		{"HTTP/1.1 301", 301, false},
		{"HTTP/1.1 2x0 OK", 0, true},
		{"HTTP/1.1", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseStatusCode(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedStatusLine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPResponseCode_RequestsEveryTime(t *testing.T) {
	f := &fakeFetcher{statusLines: map[string]string{"http://localhost/": "HTTP/1.1 202 Accepted"}}
	c := newTestChecker(f)

	code, err := c.HTTPResponseCode()
	require.NoError(t, err)
	assert.Equal(t, 202, code)

	_, _ = c.HTTPResponseCode()
	assert.Equal(t, 2, f.statusCalls)
	assert.Equal(t, 0, f.fetches)
}

func TestSetError(t *testing.T) {
	c := newTestChecker(nil).SetError("Difference in results")

	assert.Equal(t, []string{"Difference in results"}, c.Errors())
	assert.Equal(t, 0, c.TestCount())
	assert.Equal(t, KindManual, c.Failures()[0].Kind)
	assert.Equal(t, StatusFailed, c.ReturnStatus())
}

func TestFailures_ReturnsCopy(t *testing.T) {
	c := newTestChecker(nil).SetContent("a").IsEqualTo("b")

	failures := c.Failures()
	failures[0].Message = "changed"

	assert.NotEqual(t, "changed", c.Errors()[0])
}
