package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/verif/packages/checker"
	"github.com/abdul-hamid-achik/verif/packages/core/env"
	"github.com/abdul-hamid-achik/verif/packages/core/parser"
	"github.com/abdul-hamid-achik/verif/packages/http"
	"github.com/abdul-hamid-achik/verif/packages/logging"
)

type Runner struct {
	fetcher checker.Fetcher
	logger  logging.Logger
	config  *Config
}

type Config struct {
	Environment    string
	Environments   map[string]map[string]any // per-environment variables from the config file
	EnvFile        string                    // .env file; defaults to one next to the suite when present
	Timeout        time.Duration
	FollowRedirect bool
	MaxRedirects   int
	Proxy          string
	Headers        map[string]string
	Rate           float64 // requests per second, 0 = unlimited
	Bail           bool
	NoColor        bool
}

type Option func(*Runner)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithFetcher replaces the HTTP client built from the config.
func WithFetcher(f checker.Fetcher) Option {
	return func(r *Runner) {
		r.fetcher = f
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{FollowRedirect: true}
	}

	r := &Runner{config: cfg}
	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = logging.Noop()
	}
	if r.fetcher == nil {
		clientOpts := []http.ClientOption{http.WithFollowRedirects(cfg.FollowRedirect)}
		if cfg.Timeout > 0 {
			clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
		}
		if cfg.MaxRedirects > 0 {
			clientOpts = append(clientOpts, http.WithMaxRedirects(cfg.MaxRedirects))
		}
		if cfg.Proxy != "" {
			clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
		}
		if len(cfg.Headers) > 0 {
			clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.Headers))
		}
		r.fetcher = http.NewClient(clientOpts...)
	}

	return r
}

// RunFile parses the suite at path and runs it. Assertion failures are
// part of the result; the error is reserved for suites that cannot run.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}

	if err := r.resolveSuite(suite); err != nil {
		return nil, err
	}

	return r.RunSuite(ctx, suite)
}

func (r *Runner) resolveSuite(suite *parser.Suite) error {
	dotEnv := r.config.EnvFile
	if dotEnv == "" {
		candidate := filepath.Join(filepath.Dir(suite.Path), ".env")
		if _, err := os.Stat(candidate); err == nil {
			dotEnv = candidate
		}
	}

	environment, err := env.LoadEnvironment(r.config.Environment, r.config.Environments, suite.Variables, dotEnv)
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}
	r.logger.Debugf("environment %q: %d variables", environment.Name, len(environment.Variables))

	resolver := env.NewResolver()
	resolver.SetVariables(environment.Variables)
	resolver.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warningf(format, args...)
	})

	resolveSuite(suite, resolver.Resolve)
	return nil
}

func resolveSuite(suite *parser.Suite, resolve func(string) string) {
	for _, t := range suite.Targets {
		t.Title = resolve(t.Title)
		t.Protocol = resolve(t.Protocol)
		t.Host = resolve(t.Host)
		t.PathPrefix = resolve(t.PathPrefix)
		for _, c := range t.Checks {
			c.Path = resolve(c.Path)
			c.Schema = resolve(c.Schema)
			if c.Equals != nil {
				v := resolve(*c.Equals)
				c.Equals = &v
			}
			for i := range c.Keys {
				c.Keys[i] = resolve(c.Keys[i])
			}
			for i := range c.Contains {
				c.Contains[i] = resolve(c.Contains[i])
			}
		}
	}
	for _, e := range suite.Equivalences {
		e.Left.Path = resolve(e.Left.Path)
		e.Right.Path = resolve(e.Right.Path)
	}
}

// RunSuite runs an already parsed and resolved suite. Targets run in file
// order, each through its own checker; equivalences run last.
func (r *Runner) RunSuite(ctx context.Context, suite *parser.Suite) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{File: suite.Path}
	fetcher := newPacedFetcher(ctx, r.fetcher, r.config.Rate, r.logger)

	schemaDir := ""
	if suite.Path != "" {
		schemaDir = filepath.Dir(suite.Path)
	}

	checkers := make(map[string]*checker.Checker, len(suite.Targets))
	durations := make(map[string]time.Duration, len(suite.Targets))
	var runErr error

	for _, target := range suite.Targets {
		if result.Bailed || runErr != nil {
			break
		}

		c := checker.New(target.DisplayTitle(),
			checker.WithFetcher(fetcher),
			checker.WithOutput(io.Discard),
			checker.WithNoColor(r.config.NoColor || color.NoColor),
			checker.WithSchemaDir(schemaDir),
		)
		if target.Protocol != "" {
			c.SetProtocol(target.Protocol)
		}
		if target.Host != "" {
			c.SetHost(target.Host)
		}
		c.SetPathPrefix(target.PathPrefix)
		checkers[target.Name] = c

		targetStart := time.Now()
		runErr = r.runChecks(ctx, c, target)
		durations[target.Name] = time.Since(targetStart)

		if r.config.Bail && c.ReturnStatus() == checker.StatusFailed {
			r.logger.Infof("target %q failed, skipping the rest of the suite", target.Name)
			result.Bailed = true
		}
	}

	if !result.Bailed && runErr == nil {
		runErr = r.runEquivalences(ctx, suite, checkers)
	}

	for _, target := range suite.Targets {
		c, ok := checkers[target.Name]
		if !ok {
			result.Targets = append(result.Targets, &TargetResult{
				Name:    target.Name,
				Title:   target.DisplayTitle(),
				Skipped: true,
			})
			continue
		}
		c.SetPath("")
		status := c.Report()
		result.Targets = append(result.Targets, &TargetResult{
			Name:     target.Name,
			Title:    c.Title(),
			BaseURI:  c.URI(),
			Tests:    c.TestCount(),
			Failures: c.Failures(),
			Status:   status,
			Report:   c.ReportOutput(),
			Duration: durations[target.Name],
		})
	}

	result.Duration = time.Since(start)
	result.Latency = fetcher.latency()
	result.Requests = fetcher.requests
	result.TransportErrors = fetcher.transportErrors

	return result, runErr
}

func (r *Runner) runChecks(ctx context.Context, c *checker.Checker, target *parser.Target) error {
	log := r.logger.WithField("target", target.Name)

	for _, check := range target.Checks {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.SetPath(check.Path).FetchContent()
		log.Debugf("checking %s", c.URI())

		if check.Status != 0 {
			c.HasResponseCode(check.Status)
		}
		if check.JSON {
			c.IsJSON()
		}
		if check.Numeric {
			c.IsNumeric()
		}
		if len(check.Keys) > 0 {
			c.HasKeys(check.Keys)
		}
		for _, s := range check.Contains {
			c.Contains(s)
		}
		if check.Equals != nil {
			c.IsEqualTo(*check.Equals)
		}
		if check.Schema != "" {
			c.MatchesSchema(check.Schema)
		}
		if check.Empty() {
			log.Infof("%s has no assertions, fetched only", c.URI())
		}
	}
	return nil
}

// runEquivalences compares the content both sides of each equivalence
// serve and records a manual error on the right-hand target on mismatch.
func (r *Runner) runEquivalences(ctx context.Context, suite *parser.Suite, checkers map[string]*checker.Checker) error {
	for _, e := range suite.Equivalences {
		if err := ctx.Err(); err != nil {
			return err
		}

		left, right := checkers[e.Left.Target], checkers[e.Right.Target]
		if left == nil || right == nil {
			return errors.New("equivalence references a target that did not run")
		}

		left.SetPath(e.Left.Path).FetchContent()
		right.SetPath(e.Right.Path).FetchContent()

		same := left.Fetched() && right.Fetched() && left.Content() == right.Content()
		r.logger.Debugf("equivalence %s = %s: %t", left.URI(), right.URI(), same)
		if !same {
			right.SetError(fmt.Sprintf("Difference in results between:\n%s\n%s\n", left.URI(), right.URI()))
		}
	}
	return nil
}
