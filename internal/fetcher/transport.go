package fetcher

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"adoinventory/internal/metrics"
	"adoinventory/internal/outcome"
)

// BasicAuthTransport sends a personal access token as HTTP Basic with an empty user,
// which is what Azure DevOps expects for PATs.
type BasicAuthTransport struct {
	Token string
	Base  http.RoundTripper
}

func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(":"+t.Token)))
	return base.RoundTrip(r)
}

// LoggingTransport emits one debug line per request and one per response,
// including latency. Headers are never logged.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := t.Logger
	if log == nil {
		return base.RoundTrip(req)
	}

	start := time.Now()
	log.Debug("api request", slog.String("method", req.Method), slog.String("url", req.URL.Redacted()))
	resp, err := base.RoundTrip(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		log.Debug("api error", slog.String("url", req.URL.Redacted()), slog.Duration("latency", dur), slog.Any("error", err))
		return resp, err
	}
	log.Debug("api response",
		slog.String("url", req.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", dur),
	)
	return resp, err
}

// NewADOHTTPClient returns an http.Client that authenticates with token and,
// when verbose is set, traces every call through log. Redirects are not
// followed: Azure DevOps redirects unauthenticated calls to a sign-in page.
func NewADOHTTPClient(token string, verbose bool, log *slog.Logger) *http.Client {
	var transport http.RoundTripper = http.DefaultTransport
	if verbose && log != nil {
		transport = &LoggingTransport{Base: transport, Logger: log}
	}
	transport = &BasicAuthTransport{Token: token, Base: transport}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// MeteredTransport applies the run's limiter and request budget to clients that
// do their own decoding, such as go-github. Every exchange is observed by the
// budget and recorded by host and outcome.
type MeteredTransport struct {
	Base    http.RoundTripper
	Budget  *Budget
	Limiter *rate.Limiter
	Metrics metrics.Recorder
}

// NewMeteredTransport limits to rps requests per second; rps <= 0 disables the limiter.
func NewMeteredTransport(base http.RoundTripper, b *Budget, rps float64, rec metrics.Recorder) *MeteredTransport {
	t := &MeteredTransport{Base: base, Budget: b, Metrics: rec}
	if rps > 0 {
		t.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return t
}

func (t *MeteredTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx := req.Context()
	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if t.Budget != nil {
		if err := t.Budget.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	if resp != nil && t.Budget != nil {
		t.Budget.Observe(resp)
	}
	if t.Metrics != nil {
		t.Metrics.RecordCall(req.URL.Host, outcome.FromResponse(resp, err, time.Now()), time.Since(start))
	}
	return resp, err
}
