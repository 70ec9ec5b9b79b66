// Package fetcher performs single authenticated API calls and classifies them.
//
// A Fetcher never retries; callers wrap it with a retry.Policy. It does apply
// the shared request budget, the proactive rate limiter and the per-call timeout.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"adoinventory/internal/metrics"
	"adoinventory/internal/outcome"
)

const DefaultTimeout = 30 * time.Second

// maxBody bounds how much of a response body is decoded.
const maxBody = 256 << 20

type Fetcher struct {
	client  *http.Client
	budget  *Budget
	limiter *rate.Limiter
	timeout time.Duration
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*Fetcher)

// WithTimeout sets the per-call timeout. Values <= 0 keep the default.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRate limits calls to rps per second with a burst of one. rps <= 0 disables it.
func WithRate(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			f.limiter = nil
		}
	}
}

func WithBudget(b *Budget) Option {
	return func(f *Fetcher) {
		if b != nil {
			f.budget = b
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.metrics = r
		}
	}
}

func New(client *http.Client, opts ...Option) (*Fetcher, error) {
	if client == nil {
		return nil, errors.New("fetcher: http client is nil")
	}
	f := &Fetcher{
		client:  client,
		budget:  NewBudget(),
		timeout: DefaultTimeout,
		metrics: metrics.Nop{},
		now:     time.Now,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(f)
		}
	}
	return f, nil
}

func (f *Fetcher) Budget() *Budget {
	return f.budget
}

func (f *Fetcher) Metrics() metrics.Recorder {
	return f.metrics
}

// GetJSON issues one GET and decodes a successful JSON body into dst (which may
// be nil). The response headers are returned for pagination tokens.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, dst any) (http.Header, outcome.Outcome) {
	return f.call(ctx, http.MethodGet, rawURL, nil, dst)
}

// PostJSON sends body as JSON and decodes a successful reply into dst. It is
// used for read-only query endpoints such as WIQL.
func (f *Fetcher) PostJSON(ctx context.Context, rawURL string, body, dst any) (http.Header, outcome.Outcome) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, outcome.Missing(0, fmt.Errorf("encode request: %w", err))
	}
	return f.call(ctx, http.MethodPost, rawURL, b, dst)
}

func (f *Fetcher) call(ctx context.Context, method, rawURL string, body []byte, dst any) (http.Header, outcome.Outcome) {
	if ctx == nil {
		return nil, outcome.Transient(0, errors.New("fetcher: nil context"))
	}
	if err := ctx.Err(); err != nil {
		return nil, outcome.Transient(0, err)
	}
	host := hostOf(rawURL)

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, outcome.Transient(0, err)
		}
	}
	if err := f.budget.Acquire(ctx); err != nil {
		return nil, outcome.Transient(0, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, rawURL, reqBody)
	if err != nil {
		return nil, outcome.Missing(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := f.now()
	resp, err := f.client.Do(req)
	o := outcome.FromResponse(resp, err, f.now())
	var header http.Header
	if resp != nil {
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
		}()
		header = resp.Header
		f.budget.Observe(resp)
	}

	if o.OK() && dst != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			o = outcome.Transient(resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
	}

	f.metrics.RecordCall(host, o, f.now().Sub(start))
	return header, o
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
