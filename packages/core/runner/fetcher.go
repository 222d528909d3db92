package runner

import (
	"context"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/verif/packages/checker"
	"github.com/abdul-hamid-achik/verif/packages/logging"
)

// Latency summarizes the request durations of a run
type Latency struct {
	Count int64         `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// pacedFetcher spaces requests out with a rate limiter and records how long
// each one took. Checkers share one instance and run sequentially.
type pacedFetcher struct {
	next    checker.Fetcher
	limiter *rate.Limiter
	logger  logging.Logger
	ctx     context.Context

	// Histogram: 1us to 60s range, 3 significant digits
	histogram       *hdrhistogram.Histogram
	requests        int
	transportErrors int
}

func newPacedFetcher(ctx context.Context, next checker.Fetcher, rps float64, logger logging.Logger) *pacedFetcher {
	f := &pacedFetcher{
		next:      next,
		logger:    logger,
		ctx:       ctx,
		histogram: hdrhistogram.New(1, 60_000_000, 3),
	}
	if rps > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return f
}

func (f *pacedFetcher) wait() error {
	if f.limiter == nil {
		return f.ctx.Err()
	}
	return f.limiter.Wait(f.ctx)
}

func (f *pacedFetcher) Fetch(uri string) (string, bool) {
	if err := f.wait(); err != nil {
		f.logger.Debugf("fetch %s abandoned: %v", uri, err)
		return "", false
	}

	start := time.Now()
	body, ok := f.next.Fetch(uri)
	f.record(time.Since(start), !ok)

	if !ok {
		f.logger.Warningf("fetch %s: no response", uri)
	} else {
		f.logger.Tracef("fetch %s: %d bytes", uri, len(body))
	}
	return body, ok
}

func (f *pacedFetcher) StatusLine(uri string) (string, error) {
	if err := f.wait(); err != nil {
		return "", err
	}

	start := time.Now()
	line, err := f.next.StatusLine(uri)
	f.record(time.Since(start), err != nil)

	if err != nil {
		f.logger.Warningf("status of %s: %v", uri, err)
	} else {
		f.logger.Tracef("status of %s: %s", uri, line)
	}
	return line, err
}

func (f *pacedFetcher) record(d time.Duration, failed bool) {
	f.requests++
	if failed {
		f.transportErrors++
	}

	// Record latency in microseconds
	latencyUs := d.Microseconds()
	if latencyUs < 1 {
		latencyUs = 1
	}
	if latencyUs > 60_000_000 {
		latencyUs = 60_000_000
	}
	_ = f.histogram.RecordValue(latencyUs)
}

func (f *pacedFetcher) latency() Latency {
	if f.histogram.TotalCount() == 0 {
		return Latency{}
	}
	return Latency{
		Count: f.histogram.TotalCount(),
		P50:   time.Duration(f.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(f.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(f.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(f.histogram.Max()) * time.Microsecond,
	}
}
