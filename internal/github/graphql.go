package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adoinventory/internal/outcome"
)

type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type GraphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

func graphqlEndpoint(base *url.URL) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("graphql: base url is nil")
	}

	u := *base
	u.RawQuery = ""
	u.Fragment = ""

	// github.com REST https://api.github.com/ serves GraphQL at /graphql.
	// GHES REST https://<host>/api/v3/ serves it at /api/graphql.
	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/api/v3") {
		u.Path = strings.TrimSuffix(path, "/v3") + "/graphql"
		return &u, nil
	}
	u.Path = "/graphql"
	return &u, nil
}

// DoGraphQL executes a GraphQL POST through the same transport as the REST
// client, under the retry policy. A response carrying errors is classified by
// the type of its first error.
func DoGraphQL[T any](ctx context.Context, c *Client, req GraphQLRequest) (GraphQLResponse[T], outcome.Outcome) {
	var zero GraphQLResponse[T]
	if c == nil || c.rest == nil || c.http == nil {
		return zero, outcome.Transient(0, errors.New("graphql: client is nil"))
	}
	endpoint, err := graphqlEndpoint(c.rest.BaseURL)
	if err != nil {
		return zero, outcome.Missing(0, err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return zero, outcome.Missing(0, fmt.Errorf("graphql: marshal request: %w", err))
	}

	var out GraphQLResponse[T]
	p := c.policy
	p.OnRetry = func(attempt int, o outcome.Outcome, wait time.Duration) {
		c.metrics.RecordRetry(endpoint.Host, o.Kind)
		c.log.Debug("retrying graphql call", "attempt", attempt, "outcome", o.Kind.String(), "wait", wait)
	}
	o := p.Do(ctx, func(ctx context.Context) outcome.Outcome {
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
		if err != nil {
			return outcome.Missing(0, fmt.Errorf("graphql: build request: %w", err))
		}
		hreq.Header.Set("Content-Type", "application/json")
		hreq.Header.Set("Accept", "application/json")

		hresp, err := c.http.Do(hreq)
		o := outcome.FromResponse(hresp, err, c.now())
		if hresp == nil {
			return o
		}
		defer hresp.Body.Close()
		if !o.OK() {
			return o
		}

		var r GraphQLResponse[T]
		if err := json.NewDecoder(hresp.Body).Decode(&r); err != nil {
			return outcome.Transient(hresp.StatusCode, fmt.Errorf("graphql: decode response: %w", err))
		}
		if len(r.Errors) > 0 {
			return graphqlOutcome(hresp.StatusCode, r.Errors[0])
		}
		out = r
		return o
	})
	if !o.OK() {
		return zero, o
	}
	return out, o
}

func graphqlOutcome(status int, e GraphQLError) outcome.Outcome {
	err := fmt.Errorf("graphql: %s", e.Message)
	switch strings.ToUpper(e.Type) {
	case "RATE_LIMITED":
		return outcome.Limited(status, 0, err)
	case "FORBIDDEN", "INSUFFICIENT_SCOPES":
		return outcome.Denied(status, err)
	default:
		return outcome.Missing(status, err)
	}
}

const deepScanQuery = `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    branches: refs(refPrefix: "refs/heads/", first: 1) { totalCount }
    pullRequests(states: [OPEN, CLOSED, MERGED], first: 1) { totalCount }
    issues(first: 1) { totalCount }
    environments(first: 1) { totalCount }
    packages(first: 1) { totalCount }
    head: object(expression: "HEAD") {
      ... on Commit {
        committedDate
        history { totalCount }
      }
    }
  }
}`

type totalCount struct {
	TotalCount int `json:"totalCount"`
}

type deepScanData struct {
	Repository *struct {
		Branches     totalCount `json:"branches"`
		PullRequests totalCount `json:"pullRequests"`
		Issues       totalCount `json:"issues"`
		Environments totalCount `json:"environments"`
		Packages     totalCount `json:"packages"`
		Head         *struct {
			CommittedDate time.Time   `json:"committedDate"`
			History       *totalCount `json:"history"`
		} `json:"head"`
	} `json:"repository"`
}

// DeepStats are the per-repository counts of a deep scan. Commits and
// LastCommit stay nil for a repository without a HEAD commit.
type DeepStats struct {
	Branches     int
	PullRequests int
	Issues       int
	Environments int
	Packages     int
	Commits      *int
	LastCommit   *time.Time
}

// DeepStats runs the deep scan query for one repository.
func (c *Client) DeepStats(ctx context.Context, owner, repo string) (DeepStats, outcome.Outcome) {
	resp, o := DoGraphQL[deepScanData](ctx, c, GraphQLRequest{
		Query:     deepScanQuery,
		Variables: map[string]any{"owner": owner, "name": repo},
	})
	if !o.OK() {
		return DeepStats{}, wrapf(o, "deep scan of %s/%s", owner, repo)
	}
	r := resp.Data.Repository
	if r == nil {
		return DeepStats{}, outcome.Missing(o.Status, fmt.Errorf("deep scan of %s/%s: repository not found", owner, repo))
	}
	st := DeepStats{
		Branches:     r.Branches.TotalCount,
		PullRequests: r.PullRequests.TotalCount,
		Issues:       r.Issues.TotalCount,
		Environments: r.Environments.TotalCount,
		Packages:     r.Packages.TotalCount,
	}
	if r.Head != nil && r.Head.History != nil {
		n := r.Head.History.TotalCount
		st.Commits = &n
		if !r.Head.CommittedDate.IsZero() {
			when := r.Head.CommittedDate
			st.LastCommit = &when
		}
	}
	return st, o
}
