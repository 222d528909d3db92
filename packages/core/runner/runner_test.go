package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/verif/packages/checker"
	"github.com/abdul-hamid-achik/verif/packages/core/parser"
)

func newL10nServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path + "?" + r.URL.RawQuery {
		case "/api/?done", "/api/v2/done/?":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"fr": 12, "de": 40}`))
		case "/api/v2/drift/?":
			_, _ = w.Write([]byte(`{"fr": 13, "de": 40}`))
		case "/api/?count":
			_, _ = w.Write([]byte("42"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func hostOf(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

const l10nSuite = `
targets:
  - name: old
    title: Old API
    host: "{{host}}"
    pathPrefix: api/
    checks:
      - path: "?done"
        status: 200
        json: true
        keys: [fr, de]
      - path: "?count"
        numeric: true
        equals: "42"
  - name: new
    title: New API
    host: "{{host}}"
    pathPrefix: api/v2/
    checks:
      - path: done/
        status: 200
        json: true
equivalences:
  - left: {target: old, path: "?done"}
    right: {target: new, path: "{{newPath}}"}
`

func TestNewRunner(t *testing.T) {
	r := NewRunner(nil)
	assert.NotNil(t, r.fetcher)
	assert.NotNil(t, r.logger)
	assert.True(t, r.config.FollowRedirect)
}

func TestRunner_RunFile_AllPass(t *testing.T) {
	server := newL10nServer(t)
	r := NewRunner(&Config{
		Environment:  "test",
		Environments: map[string]map[string]any{"test": {"host": hostOf(server), "newPath": "done/"}},
		NoColor:      true,
	})

	result, err := r.RunFile(context.Background(), writeSuite(t, l10nSuite))
	require.NoError(t, err)

	assert.Equal(t, checker.StatusPassed, result.Status())
	require.Len(t, result.Targets, 2)

	old := result.Targets[0]
	assert.Equal(t, "Old API", old.Title)
	assert.Equal(t, server.URL+"/api/", old.BaseURI)
	assert.Equal(t, 7, old.Tests)
	assert.Empty(t, old.Failures)
	assert.Contains(t, old.Report, "Report for: Old API")
	assert.Contains(t, old.Report, "7 tests processed. All tests processed without errors")

	assert.Equal(t, 2, result.Targets[1].Tests)
	assert.Equal(t, 9, result.Tests())
	assert.Equal(t, 0, result.FailureCount())

	// fetch and status for ?done, fetch for ?count, fetch and status for
	// done/, then both equivalence sides
	assert.Equal(t, 7, result.Requests)
	assert.Equal(t, int64(7), result.Latency.Count)
	assert.LessOrEqual(t, result.Latency.P50, result.Latency.Max)
	assert.False(t, result.Unreachable())
}

func TestRunner_RunFile_ReportsFollowGlobalNoColor(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })
	color.NoColor = true

	server := newL10nServer(t)
	r := NewRunner(&Config{
		Environment:  "test",
		Environments: map[string]map[string]any{"test": {"host": hostOf(server), "newPath": "done/"}},
	})

	result, err := r.RunFile(context.Background(), writeSuite(t, l10nSuite))
	require.NoError(t, err)
	for _, target := range result.Targets {
		assert.NotContains(t, target.Report, "\033[", target.Name)
	}
}

func TestRunner_RunFile_EquivalenceDifference(t *testing.T) {
	server := newL10nServer(t)
	r := NewRunner(&Config{
		Environment:  "test",
		Environments: map[string]map[string]any{"test": {"host": hostOf(server), "newPath": "drift/"}},
		NoColor:      true,
	})

	result, err := r.RunFile(context.Background(), writeSuite(t, l10nSuite))
	require.NoError(t, err)

	assert.Equal(t, checker.StatusFailed, result.Status())
	assert.Equal(t, checker.StatusPassed, result.Targets[0].Status)

	newer := result.Targets[1]
	require.Len(t, newer.Failures, 1)
	assert.Equal(t, checker.KindManual, newer.Failures[0].Kind)
	assert.Equal(t,
		"Difference in results between:\n"+server.URL+"/api/?done\n"+server.URL+"/api/v2/drift/\n",
		newer.Failures[0].Message)
	assert.Equal(t, 2, newer.Tests, "a manual error is not a test")
	assert.Contains(t, newer.Report, "There is one error")

	passed, failed, skipped := result.Counts()
	assert.Equal(t, []int{1, 1, 0}, []int{passed, failed, skipped})
}

func TestRunner_RunFile_Failures(t *testing.T) {
	server := newL10nServer(t)
	suite := `
targets:
  - name: api
    host: ` + hostOf(server) + `
    checks:
      - path: api/missing
        status: 200
        json: true
      - path: "api/?count"
        contains: ["43"]
`
	r := NewRunner(&Config{NoColor: true})
	result, err := r.RunFile(context.Background(), writeSuite(t, suite))
	require.NoError(t, err)

	target := result.Targets[0]
	assert.Equal(t, checker.StatusFailed, target.Status)
	assert.Equal(t, 3, target.Tests)
	require.Len(t, target.Failures, 3)
	assert.Equal(t, checker.KindResponseCode, target.Failures[0].Kind)
	assert.Equal(t, "404", target.Failures[0].Received)
	assert.Equal(t, checker.KindInvalidJSON, target.Failures[1].Kind)
	assert.Equal(t, checker.KindMissingSubstring, target.Failures[2].Kind)
	assert.Contains(t, target.Report, "3 tests processed. There are 3 errors")
}

func TestRunner_Bail(t *testing.T) {
	server := newL10nServer(t)
	suite := `
targets:
  - name: first
    host: ` + hostOf(server) + `
    checks:
      - path: nowhere
        status: 200
  - name: second
    host: ` + hostOf(server) + `
    checks:
      - path: "api/?count"
        numeric: true
`
	r := NewRunner(&Config{Bail: true, NoColor: true})
	result, err := r.RunFile(context.Background(), writeSuite(t, suite))
	require.NoError(t, err)

	assert.True(t, result.Bailed)
	require.Len(t, result.Targets, 2)
	assert.False(t, result.Targets[0].Skipped)
	assert.True(t, result.Targets[1].Skipped)
	assert.Empty(t, result.Targets[1].Report)

	passed, failed, skipped := result.Counts()
	assert.Equal(t, []int{0, 1, 1}, []int{passed, failed, skipped})
}

func TestRunner_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	host := hostOf(server)
	server.Close()

	suite := `
targets:
  - name: gone
    host: ` + host + `
    checks:
      - path: x
        status: 200
        json: true
`
	r := NewRunner(&Config{NoColor: true, Timeout: time.Second})
	result, err := r.RunFile(context.Background(), writeSuite(t, suite))
	require.NoError(t, err)

	assert.True(t, result.Unreachable())
	assert.Equal(t, checker.StatusFailed, result.Status())
	// IsJSON fetches again since nothing was cached
	assert.Equal(t, 3, result.TransportErrors)
}

func TestRunner_RunFile_ParseError(t *testing.T) {
	r := NewRunner(nil)

	_, err := r.RunFile(context.Background(), writeSuite(t, "targets: []\n"))
	assert.ErrorIs(t, err, parser.ErrNoTargets)

	_, err = r.RunFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunner_DotEnvNextToSuite(t *testing.T) {
	server := newL10nServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HOST="+hostOf(server)+"\n"), 0644))

	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
targets:
  - name: api
    host: "{{HOST}}"
    checks:
      - path: "api/?count"
        equals: "42"
`), 0644))

	result, err := NewRunner(&Config{NoColor: true}).RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, checker.StatusPassed, result.Status())
}

func TestRunner_ContextCanceled(t *testing.T) {
	server := newL10nServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite := "targets:\n  - name: a\n    host: " + hostOf(server) + "\n    checks:\n      - path: x\n        status: 200\n"
	result, err := NewRunner(nil).RunFile(ctx, writeSuite(t, suite))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Requests)
}

func TestRunner_RatePacing(t *testing.T) {
	server := newL10nServer(t)
	suite := "targets:\n  - name: a\n    host: " + hostOf(server) + "\n    checks:\n" +
		"      - path: \"api/?count\"\n        status: 200\n" +
		"      - path: \"api/?count\"\n        status: 200\n"

	start := time.Now()
	result, err := NewRunner(&Config{Rate: 20}).RunFile(context.Background(), writeSuite(t, suite))
	require.NoError(t, err)

	// 4 requests at 20/s with a burst of 1 need at least 150ms
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 4, result.Requests)
}
