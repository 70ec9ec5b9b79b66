// Package github reads GitHub organization repositories through go-github and
// the GraphQL API. Calls share the run's budget, limiter and retry policy.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"

	"adoinventory/internal/fetcher"
	"adoinventory/internal/metrics"
	"adoinventory/internal/outcome"
	"adoinventory/internal/retry"
)

type Client struct {
	rest    *gh.Client
	http    *http.Client
	policy  retry.Policy
	log     *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type options struct {
	baseURL string
	log     *slog.Logger
	verbose bool
	policy  *retry.Policy
	budget  *fetcher.Budget
	rps     float64
	metrics metrics.Recorder
	timeout time.Duration
}

type Option func(*options)

// WithBaseURL points the client at a GitHub Enterprise Server REST base such as
// https://ghe.example.com/api/v3. Empty keeps github.com.
func WithBaseURL(raw string) Option {
	return func(o *options) { o.baseURL = strings.TrimSpace(raw) }
}

// WithLogger sets the logger. With verbose set every request is traced at debug level.
func WithLogger(l *slog.Logger, verbose bool) Option {
	return func(o *options) {
		o.log = l
		o.verbose = verbose
	}
}

func WithPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = &p }
}

func WithBudget(b *fetcher.Budget) Option {
	return func(o *options) { o.budget = b }
}

// WithRate limits requests to rps per second. rps <= 0 disables the limiter.
func WithRate(rps float64) Option {
	return func(o *options) { o.rps = rps }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithTimeout bounds a single request, body included.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewClient builds an authenticated client. tokens is consulted once per request.
func NewClient(tokens oauth2.TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, ErrNoToken
	}
	o := &options{timeout: fetcher.DefaultTimeout}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop{}
	}
	if o.budget == nil {
		o.budget = fetcher.NewBudget()
	}

	var transport http.RoundTripper = http.DefaultTransport
	if o.verbose {
		transport = &fetcher.LoggingTransport{Base: transport, Logger: o.log}
	}
	transport = fetcher.NewMeteredTransport(transport, o.budget, o.rps, o.metrics)
	transport = &oauth2.Transport{Source: tokens, Base: transport}
	hc := &http.Client{Transport: transport, Timeout: o.timeout}

	rest := gh.NewClient(hc)
	if o.baseURL != "" {
		var err error
		rest, err = rest.WithEnterpriseURLs(o.baseURL, o.baseURL)
		if err != nil {
			return nil, fmt.Errorf("github api url %q: %w", o.baseURL, err)
		}
	}

	policy := retry.Default()
	if o.policy != nil {
		policy = *o.policy
	}
	return &Client{
		rest:    rest,
		http:    hc,
		policy:  policy,
		log:     o.log,
		metrics: o.metrics,
		now:     time.Now,
	}, nil
}

// BaseURL is the REST base the client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.rest.BaseURL
	return &u
}

// APIHost returns the host gh should resolve a token for.
func APIHost(apiURL string) string {
	if strings.TrimSpace(apiURL) == "" {
		return "github.com"
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Hostname() == "" {
		return "github.com"
	}
	return u.Hostname()
}

// do runs one go-github call under the retry policy.
func (c *Client) do(ctx context.Context, what string, call func(ctx context.Context) (*gh.Response, error)) outcome.Outcome {
	p := c.policy
	p.OnRetry = func(attempt int, o outcome.Outcome, wait time.Duration) {
		c.metrics.RecordRetry(c.rest.BaseURL.Host, o.Kind)
		c.log.Debug("retrying call",
			slog.String("call", what),
			slog.Int("attempt", attempt),
			slog.String("outcome", o.Kind.String()),
			slog.Duration("wait", wait),
		)
	}
	o := p.Do(ctx, func(ctx context.Context) outcome.Outcome {
		resp, err := call(ctx)
		return classify(resp, err, c.now())
	})
	return wrapf(o, "%s", what)
}

// classify maps a go-github result onto an Outcome. go-github reports its own
// client-side rate limit state as typed errors without a real response.
func classify(resp *gh.Response, err error, now time.Time) outcome.Outcome {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		hint := rle.Rate.Reset.Time.Sub(now)
		if hint < 0 {
			hint = 0
		}
		return outcome.Limited(status, hint, err)
	}
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return outcome.Limited(status, abuse.GetRetryAfter(), err)
	}

	if status == 0 {
		return outcome.FromResponse(nil, err, now)
	}
	o := outcome.FromResponse(resp.Response, nil, now)
	switch {
	case o.OK() && err != nil:
		return outcome.Transient(status, err)
	case !o.OK():
		o.Cause = err
	}
	return o
}

func wrapf(o outcome.Outcome, format string, args ...any) outcome.Outcome {
	if o.OK() {
		return o
	}
	what := fmt.Sprintf(format, args...)
	if o.Cause != nil {
		o.Cause = fmt.Errorf("%s: %w", what, o.Cause)
	} else {
		o.Cause = errors.New(what)
	}
	return o
}
