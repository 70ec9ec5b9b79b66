package github

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"adoinventory/internal/outcome"
	"adoinventory/internal/retry"
)

func newTestClient(t *testing.T, mux *http.ServeMux, tokens []string, opts ...Option) (*Client, string) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	src, err := NewRotatingSource(tokens)
	if err != nil {
		t.Fatalf("NewRotatingSource: %v", err)
	}
	p := retry.Default()
	p.MaxAttempts = 1
	opts = append([]Option{WithBaseURL(server.URL + "/api/v3"), WithPolicy(p)}, opts...)
	c, err := NewClient(src, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, server.URL
}

func TestNewClient_RequiresTokenSource(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	src, _ := NewRotatingSource([]string{"t"})
	if _, err := NewClient(src, WithBaseURL("://bad")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOrgRepos_PaginatesAndRotatesTokens(t *testing.T) {
	var (
		mu    sync.Mutex
		auths []string
	)
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/api/v3/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"name":"two","full_name":"acme/two","owner":{"login":"acme"},"fork":true,"size":2048}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v3/orgs/acme/repos?page=2&per_page=100>; rel="next", <%s/api/v3/orgs/acme/repos?page=2&per_page=100>; rel="last"`, base, base))
		fmt.Fprint(w, `[{"name":"one","full_name":"acme/one","owner":{"login":"acme"},"private":true,"visibility":"internal","archived":true,
			"language":"Go","forks_count":3,"has_issues":true,"has_wiki":true,"size":10,
			"updated_at":"2024-01-02T03:04:05Z","pushed_at":"2024-01-01T00:00:00Z","topics":["go"]}]`)
	})
	c, serverURL := newTestClient(t, mux, []string{"tok-a", "tok-b"})
	base = serverURL

	repos, o := c.OrgRepos(context.Background(), "acme")
	if !o.OK() {
		t.Fatalf("OrgRepos: %v", o)
	}
	if len(repos) != 2 {
		t.Fatalf("want 2 repos, got %d", len(repos))
	}
	one := repos[0]
	if one.FullName != "acme/one" || one.VisibilityName() != "internal" || !one.Archived || one.Language != "Go" || one.ForksCount != 3 {
		t.Errorf("unexpected first repo: %+v", one)
	}
	if one.SizeKB != 10 || one.UpdatedAt == nil || !one.UpdatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("unexpected size or update time: %+v", one)
	}
	if !repos[1].Fork || repos[1].VisibilityName() != "public" {
		t.Errorf("unexpected second repo: %+v", repos[1])
	}
	if len(auths) != 2 || auths[0] != "Bearer tok-a" || auths[1] != "Bearer tok-b" {
		t.Errorf("want rotated bearer tokens, got %v", auths)
	}
}

func TestOrgRepos_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		want    outcome.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: outcome.AuthFailure},
		{name: "forbidden", status: http.StatusForbidden, want: outcome.PermissionDenied},
		{name: "not_found", status: http.StatusNotFound, want: outcome.NotFound},
		{name: "rate_limited", status: http.StatusForbidden, headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Limit":     "5000",
			"X-RateLimit-Reset":     fmt.Sprint(time.Now().Add(time.Minute).Unix()),
		}, want: outcome.RateLimited},
		{name: "server_error", status: http.StatusBadGateway, want: outcome.TransientFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/v3/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			})
			c, _ := newTestClient(t, mux, []string{"t"})

			_, o := c.OrgRepos(context.Background(), "acme")
			if o.Kind != tt.want {
				t.Fatalf("want %s, got %s", tt.want, o)
			}
			if !strings.Contains(o.Err().Error(), "list repositories of acme") {
				t.Errorf("error lacks context: %v", o.Err())
			}
		})
	}
}

func TestWebhooks_CountsFromLastPage(t *testing.T) {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/api/v3/repos/acme/many/hooks", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "1" {
			t.Errorf("want per_page=1, got %q", got)
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v3/repos/acme/many/hooks?page=2&per_page=1>; rel="next", <%s/api/v3/repos/acme/many/hooks?page=7&per_page=1>; rel="last"`, base, base))
		fmt.Fprint(w, `[{"id":1}]`)
	})
	mux.HandleFunc("/api/v3/repos/acme/one/hooks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1}]`)
	})
	mux.HandleFunc("/api/v3/repos/acme/none/hooks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	c, serverURL := newTestClient(t, mux, []string{"t"})
	base = serverURL

	for repo, want := range map[string]int{"many": 7, "one": 1, "none": 0} {
		n, o := c.Webhooks(context.Background(), "acme", repo)
		if !o.OK() {
			t.Fatalf("Webhooks(%s): %v", repo, o)
		}
		if n != want {
			t.Errorf("Webhooks(%s): want %d, got %d", repo, want, n)
		}
	}
}

func TestDeepStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/graphql", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("want POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case bytes.Contains(body, []byte(`"name":"app"`)):
			fmt.Fprint(w, `{"data":{"repository":{
				"branches":{"totalCount":4},"pullRequests":{"totalCount":12},"issues":{"totalCount":3},
				"environments":{"totalCount":2},"packages":{"totalCount":1},
				"head":{"committedDate":"2024-05-06T07:08:09Z","history":{"totalCount":321}}}}}`)
		case bytes.Contains(body, []byte(`"name":"empty"`)):
			fmt.Fprint(w, `{"data":{"repository":{
				"branches":{"totalCount":0},"pullRequests":{"totalCount":0},"issues":{"totalCount":0},
				"environments":{"totalCount":0},"packages":{"totalCount":0},"head":null}}}`)
		default:
			fmt.Fprint(w, `{"data":{"repository":null},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a Repository"}]}`)
		}
	})
	c, _ := newTestClient(t, mux, []string{"t"})

	st, o := c.DeepStats(context.Background(), "acme", "app")
	if !o.OK() {
		t.Fatalf("DeepStats: %v", o)
	}
	if st.Branches != 4 || st.PullRequests != 12 || st.Issues != 3 || st.Environments != 2 || st.Packages != 1 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if st.Commits == nil || *st.Commits != 321 {
		t.Errorf("want 321 commits, got %v", st.Commits)
	}
	if st.LastCommit == nil || !st.LastCommit.Equal(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)) {
		t.Errorf("unexpected last commit: %v", st.LastCommit)
	}

	st, o = c.DeepStats(context.Background(), "acme", "empty")
	if !o.OK() {
		t.Fatalf("DeepStats(empty): %v", o)
	}
	if st.Commits != nil || st.LastCommit != nil {
		t.Errorf("empty repository should have no commit data: %+v", st)
	}

	_, o = c.DeepStats(context.Background(), "acme", "gone")
	if o.Kind != outcome.NotFound {
		t.Fatalf("want not_found, got %s", o)
	}
}

func TestGraphqlEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "https://api.github.com/", want: "https://api.github.com/graphql"},
		{base: "https://ghe.example.com/api/v3/", want: "https://ghe.example.com/api/graphql"},
		{base: "https://ghe.example.com/api/v3?x=1", want: "https://ghe.example.com/api/graphql"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.base)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		got, err := graphqlEndpoint(u)
		if err != nil {
			t.Fatalf("graphqlEndpoint(%s): %v", tt.base, err)
		}
		if got.String() != tt.want {
			t.Errorf("graphqlEndpoint(%s): want %s, got %s", tt.base, tt.want, got)
		}
	}
	if _, err := graphqlEndpoint(nil); err == nil {
		t.Errorf("expected error for nil base")
	}
}

func TestAPIHost(t *testing.T) {
	for in, want := range map[string]string{
		"":                                "github.com",
		"https://ghe.example.com/api/v3": "ghe.example.com",
		"%zz":                             "github.com",
	} {
		if got := APIHost(in); got != want {
			t.Errorf("APIHost(%q): want %q, got %q", in, want, got)
		}
	}
}

func TestVerboseLogging_DoesNotLogToken(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/app/hooks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	c, _ := newTestClient(t, mux, []string{"very-secret"}, WithLogger(log, true))

	if _, o := c.Webhooks(context.Background(), "acme", "app"); !o.OK() {
		t.Fatalf("Webhooks: %v", o)
	}
	if !strings.Contains(buf.String(), "api request") {
		t.Fatalf("expected verbose log, got: %q", buf.String())
	}
	if strings.Contains(buf.String(), "very-secret") {
		t.Fatalf("token leaked into log: %q", buf.String())
	}
}
