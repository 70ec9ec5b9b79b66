// Package ado adapts the Azure DevOps REST APIs to canonical payloads.
//
// Every exported method makes its calls through the retry policy and returns
// a classified outcome. Wire types never leave the package.
package ado

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adoinventory/internal/fetcher"
	"adoinventory/internal/identity"
	"adoinventory/internal/metrics"
	"adoinventory/internal/outcome"
	"adoinventory/internal/retry"
)

const (
	apiVersion        = "7.1"
	apiVersionPreview = "7.1-preview.1"
	apiVersionVSAEX   = "7.1-preview.3"

	entitlementsPage = 100
	teamPageSize     = 100
)

// Caller performs one classified call. *fetcher.Fetcher implements it.
type Caller interface {
	GetJSON(ctx context.Context, rawURL string, dst any) (http.Header, outcome.Outcome)
	PostJSON(ctx context.Context, rawURL string, body, dst any) (http.Header, outcome.Outcome)
}

// Hosts are the service roots. Azure DevOps splits APIs across several hosts.
type Hosts struct {
	Core         string
	Entitlements string
	Graph        string
	Feeds        string
}

func DefaultHosts() Hosts {
	return Hosts{
		Core:         "https://dev.azure.com",
		Entitlements: "https://vsaex.dev.azure.com",
		Graph:        "https://vssps.dev.azure.com",
		Feeds:        "https://feeds.dev.azure.com",
	}
}

// SingleHost routes every API to base. Used against test servers.
func SingleHost(base string) Hosts {
	base = strings.TrimRight(base, "/")
	return Hosts{Core: base, Entitlements: base, Graph: base, Feeds: base}
}

type Client struct {
	api     Caller
	hosts   Hosts
	policy  retry.Policy
	log     *slog.Logger
	metrics metrics.Recorder
	users   *fetcher.Memo[identity.Entry]
}

type Option func(*Client)

func WithHosts(h Hosts) Option {
	return func(c *Client) { c.hosts = h }
}

func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

func NewClient(api Caller, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("ado: caller is nil")
	}
	users, err := fetcher.NewMemo[identity.Entry](fetcher.DefaultMemoSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		api:     api,
		hosts:   DefaultHosts(),
		policy:  retry.Default(),
		log:     slog.New(slog.DiscardHandler),
		metrics: metrics.Nop{},
		users:   users,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(c)
		}
	}
	return c, nil
}

// getJSON decodes into a fresh T on every attempt.
func getJSON[T any](ctx context.Context, c *Client, rawURL string) (T, http.Header, outcome.Outcome) {
	return callJSON[T](ctx, c, rawURL, func(ctx context.Context, dst any) (http.Header, outcome.Outcome) {
		return c.api.GetJSON(ctx, rawURL, dst)
	})
}

// postJSON is getJSON for query endpoints that take a JSON body.
func postJSON[T any](ctx context.Context, c *Client, rawURL string, body any) (T, http.Header, outcome.Outcome) {
	return callJSON[T](ctx, c, rawURL, func(ctx context.Context, dst any) (http.Header, outcome.Outcome) {
		return c.api.PostJSON(ctx, rawURL, body, dst)
	})
}

func callJSON[T any](ctx context.Context, c *Client, rawURL string, call func(ctx context.Context, dst any) (http.Header, outcome.Outcome)) (T, http.Header, outcome.Outcome) {
	var (
		out    T
		header http.Header
	)
	host := hostOf(rawURL)
	p := c.policy
	p.OnRetry = func(attempt int, o outcome.Outcome, wait time.Duration) {
		c.metrics.RecordRetry(host, o.Kind)
		c.log.Debug("retrying call",
			slog.String("url", redact(rawURL)),
			slog.Int("attempt", attempt),
			slog.String("outcome", o.Kind.String()),
			slog.Duration("wait", wait),
		)
	}
	o := p.Do(ctx, func(ctx context.Context) outcome.Outcome {
		var v T
		h, o := call(ctx, &v)
		if o.OK() {
			out, header = v, h
		}
		return o
	})
	return out, header, o
}

func (c *Client) coreURL(org, project, path string, q url.Values) string {
	return buildURL(c.hosts.Core, org, project, path, q, apiVersion)
}

func buildURL(host, org, project, path string, q url.Values, version string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(host, "/"))
	b.WriteByte('/')
	b.WriteString(url.PathEscape(org))
	if project != "" {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(project))
	}
	b.WriteString("/_apis/")
	b.WriteString(strings.TrimLeft(path, "/"))

	if q == nil {
		q = url.Values{}
	}
	q.Set("api-version", version)
	b.WriteByte('?')
	// Encode escapes "$top" as "%24top", which the service accepts.
	b.WriteString(q.Encode())
	return b.String()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	return u.Host
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
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
