package github

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

type AuthTokenSource string

const (
	AuthTokenSourcePAT      AuthTokenSource = "env:GH_SOURCE_PAT"
	AuthTokenSourceEnv      AuthTokenSource = "env:GITHUB_TOKEN"
	AuthTokenSourceGitHubCL AuthTokenSource = "gh"
)

// ErrNoToken is returned when no GitHub token could be resolved.
var ErrNoToken = errors.New("no GitHub token: set GH_SOURCE_PAT or GITHUB_TOKEN, or log in with gh")

// ResolveAuthTokens resolves the GitHub access tokens of a run.
//
// Precedence:
//  1. GH_SOURCE_PAT, a comma-separated list rotated round-robin
//  2. GITHUB_TOKEN env var
//  3. GitHub CLI: `gh auth token -h <host>`
//
// It never prints a token.
func ResolveAuthTokens(ctx context.Context, host string) (tokens []string, source AuthTokenSource, err error) {
	if toks := splitTokens(os.Getenv("GH_SOURCE_PAT")); len(toks) > 0 {
		return toks, AuthTokenSourcePAT, nil
	}

	if env := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); env != "" {
		return []string{env}, AuthTokenSourceEnv, nil
	}

	if host == "" {
		host = "github.com"
	}
	tok, ok, err := tokenFromGitHubCLI(ctx, host)
	if err != nil {
		return nil, "", err
	}
	if ok {
		return []string{tok}, AuthTokenSourceGitHubCL, nil
	}
	return nil, "", ErrNoToken
}

func splitTokens(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tokenFromGitHubCLI(ctx context.Context, host string) (token string, ok bool, err error) {
	if _, lookErr := exec.LookPath("gh"); lookErr != nil {
		return "", false, nil
	}

	// Bounded so a broken gh credential helper cannot hang the run.
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", host)
	env := os.Environ()
	filtered := env[:0]
	for _, entry := range env {
		if strings.HasPrefix(entry, "GH_PAGER=") {
			continue
		}
		filtered = append(filtered, entry)
	}
	cmd.Env = append(filtered, "GH_PAGER=cat")
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// gh present but not logged in. Its output is not surfaced.
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("invalid token returned by gh: contains whitespace")
	}
	return tok, true, nil
}

// RotatingSource hands out its tokens round-robin, one per request.
// It is safe for concurrent use.
type RotatingSource struct {
	tokens []string
	next   atomic.Uint64
}

func NewRotatingSource(tokens []string) (*RotatingSource, error) {
	if len(tokens) == 0 {
		return nil, ErrNoToken
	}
	return &RotatingSource{tokens: append([]string(nil), tokens...)}, nil
}

func (s *RotatingSource) Token() (*oauth2.Token, error) {
	i := s.next.Add(1) - 1
	return &oauth2.Token{AccessToken: s.tokens[i%uint64(len(s.tokens))], TokenType: "Bearer"}, nil
}

func (s *RotatingSource) Len() int {
	return len(s.tokens)
}
