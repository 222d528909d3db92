package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/verif/packages/core/config"
	"github.com/abdul-hamid-achik/verif/packages/core/parser"
	"github.com/abdul-hamid-achik/verif/packages/output"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func newCountServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/count":
			_, _ = w.Write([]byte("42"))
		case "/api/done":
			_, _ = w.Write([]byte(`{"fr": 1, "de": 2}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCodeFor(nil))
	assert.Equal(t, ExitNetworkError, exitCodeFor(exitWith(ExitNetworkError, nil)))
	assert.Equal(t, ExitConfigError, exitCodeFor(fmt.Errorf("wrapped: %w", exitWith(ExitConfigError, errors.New("bad")))))
	assert.Equal(t, ExitParseError, exitCodeFor(fmt.Errorf("suite: %w", parser.ErrNoTargets)))
	assert.Equal(t, ExitParseError, exitCodeFor(&parser.ParseError{Message: "bad"}))
	assert.Equal(t, ExitTestFailure, exitCodeFor(errors.New("other")))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "exit status 4", exitWith(4, nil).Error())
	assert.Equal(t, "boom", exitWith(1, errors.New("boom")).Error())
}

func TestWorse(t *testing.T) {
	assert.Equal(t, ExitTestFailure, worse(ExitSuccess, ExitTestFailure))
	assert.Equal(t, ExitNetworkError, worse(ExitNetworkError, ExitTestFailure))
	assert.Equal(t, ExitParseError, worse(ExitNetworkError, ExitParseError))
	assert.Equal(t, ExitParseError, worse(ExitParseError, ExitSuccess))
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.verif.yaml", "b.verif.json", ".verif.yaml", "schema.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c.verif.yml"), nil, 0644))

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.verif.yaml"),
		filepath.Join(dir, "b.verif.json"),
		filepath.Join(dir, "nested", "c.verif.yml"),
	}, files)

	explicit, err := collectFiles([]string{filepath.Join(dir, "schema.json"), filepath.Join(dir, "notes.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "schema.json")}, explicit)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	server := newCountServer(t)

	out, err := execute(t, "check", server.URL+"/api/count", "--numeric", "--equals", "42", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "Report for: "+server.URL+"/api/count")
	assert.Contains(t, out, "2 tests processed. All tests processed without errors")

	out, err = execute(t, "check", server.URL+"/api/count", "--numeric", "--equals", "43", "--no-color")
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCodeFor(err))
	assert.Contains(t, out, "There is one error")
}

func TestCheckCommand_InvalidURL(t *testing.T) {
	_, err := execute(t, "check", "not a url")
	assert.Equal(t, ExitUsageError, exitCodeFor(err))
}

func TestRunCommand_JSON(t *testing.T) {
	server := newCountServer(t)
	host := strings.TrimPrefix(server.URL, "http://")
	path := filepath.Join(t.TempDir(), "api.verif.yaml")
	suite := `
targets:
  - name: api
    title: API
    host: ` + host + `
    pathPrefix: api/
    checks:
      - path: count
        status: 200
        numeric: true
      - path: done
        json: true
`
	require.NoError(t, os.WriteFile(path, []byte(suite), 0644))

	out, err := execute(t, "run", path, "-o", "json", "--no-color")
	require.NoError(t, err)

	var result output.JSONOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Summary.Passed)
	assert.Equal(t, 3, result.Summary.Tests)
	assert.Equal(t, 3, result.Runs[0].Latency.Requests)
}

func TestRunCommand_MetricsFile(t *testing.T) {
	server := newCountServer(t)
	host := strings.TrimPrefix(server.URL, "http://")
	dir := t.TempDir()
	path := filepath.Join(dir, "count.verif.yaml")
	suite := `
targets:
  - name: count
    host: ` + host + `
    checks:
      - path: api/count
        numeric: true
`
	require.NoError(t, os.WriteFile(path, []byte(suite), 0644))
	metricsPath := filepath.Join(dir, "verif.prom")
	t.Cleanup(func() { _ = runCmd.Flags().Set("metrics-file", "") })

	_, err := execute(t, "run", path, "-o", "json", "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `verif_target_passed{file="`+path+`",target="count"} 1`)
}

func TestRunCommand_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.verif.yaml")
	require.NoError(t, os.WriteFile(path, []byte("targets: []\n"), 0644))

	_, err := execute(t, "run", path, "-o", "json")
	assert.Equal(t, ExitParseError, exitCodeFor(err))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.verif.yaml")
	require.NoError(t, os.WriteFile(good, []byte("targets:\n  - name: a\n"), 0644))

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+good)

	bad := filepath.Join(dir, "bad.verif.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("targets:\n  - name: a\n  - name: a\n"), 0644))
	out, err = execute(t, "validate", dir)
	assert.Equal(t, ExitParseError, exitCodeFor(err))
	assert.Contains(t, out, "duplicate target name")
}

func TestDescribeCheck(t *testing.T) {
	eq := "42"
	assert.Equal(t, "(fetch only)", describeCheck(&parser.Check{Path: "x"}))
	assert.Equal(t, `[status 200, json, keys a,b, equals "42"]`,
		describeCheck(&parser.Check{Status: 200, JSON: true, Keys: []string{"a", "b"}, Equals: &eq}))
}

func TestDebouncer_CollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	d := &debouncer{delay: 20 * time.Millisecond}
	for i := 0; i < 5; i++ {
		d.trigger(func() { calls.Add(1) })
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	d.stop()
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_StopDropsPendingCall(t *testing.T) {
	var calls atomic.Int32
	d := &debouncer{delay: time.Hour}
	d.trigger(func() { calls.Add(1) })

	d.stop()
	d.trigger(func() { calls.Add(1) })
	assert.Equal(t, int32(0), calls.Load())
}

func TestDebouncer_StopWaitsForRunningCall(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	d := &debouncer{delay: time.Millisecond}
	d.trigger(func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	d.stop()
	assert.True(t, finished.Load())
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []string{"console", "json", "junit", "tap", "html", "HTML", ""} {
		f, err := newFormatter(format, &bytes.Buffer{}, false, true)
		require.NoError(t, err, format)
		assert.NotNil(t, f, format)
	}

	f, err := newFormatter("html", &bytes.Buffer{}, false, true)
	require.NoError(t, err)
	_, ok := f.(Flushable)
	assert.True(t, ok, "html output is written on flush")

	_, err = newFormatter("pdf", &bytes.Buffer{}, false, true)
	assert.Error(t, err)
}

func TestNewNotifyManager(t *testing.T) {
	tests := map[string]struct {
		notify *config.NotifyConfig
		want   bool
	}{
		"none":       {nil, false},
		"empty":      {&config.NotifyConfig{On: "always"}, false},
		"slack":      {&config.NotifyConfig{SlackWebhook: "https://hooks.slack.com/x"}, true},
		"teams":      {&config.NotifyConfig{TeamsWebhook: "https://example.webhook.office.com/x"}, true},
		"slack+team": {&config.NotifyConfig{SlackWebhook: "https://a", TeamsWebhook: "https://b"}, true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := newNotifyManager(&config.Config{Notify: tt.notify})
			require.NoError(t, err)
			assert.Equal(t, tt.want, m != nil)
		})
	}

	_, err := newNotifyManager(&config.Config{Notify: &config.NotifyConfig{On: "sometimes", TeamsWebhook: "https://b"}})
	assert.Error(t, err)
}
