package github

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
)

func writeGHStub(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test uses a shell script gh stub")
	}
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, "gh"), []byte(script), 0o755); err != nil {
		t.Fatalf("WriteFile gh stub failed: %v", err)
	}
	t.Setenv("PATH", tmp)
}

func TestResolveAuthTokens(t *testing.T) {
	t.Run("source pats win and are split", func(t *testing.T) {
		t.Setenv("GH_SOURCE_PAT", " a, b ,,c ")
		t.Setenv("GITHUB_TOKEN", "env-token")
		t.Setenv("PATH", t.TempDir())

		toks, src, err := ResolveAuthTokens(context.Background(), "")
		if err != nil {
			t.Fatalf("ResolveAuthTokens error: %v", err)
		}
		if !slices.Equal(toks, []string{"a", "b", "c"}) {
			t.Fatalf("want [a b c], got %v", toks)
		}
		if src != AuthTokenSourcePAT {
			t.Fatalf("want %q, got %q", AuthTokenSourcePAT, src)
		}
	})

	t.Run("env token used", func(t *testing.T) {
		t.Setenv("GH_SOURCE_PAT", "")
		t.Setenv("GITHUB_TOKEN", "env-token")
		t.Setenv("PATH", t.TempDir())

		toks, src, err := ResolveAuthTokens(context.Background(), "")
		if err != nil {
			t.Fatalf("ResolveAuthTokens error: %v", err)
		}
		if !slices.Equal(toks, []string{"env-token"}) {
			t.Fatalf("want env-token, got %v", toks)
		}
		if src != AuthTokenSourceEnv {
			t.Fatalf("want %q, got %q", AuthTokenSourceEnv, src)
		}
	})

	t.Run("gh token used when env empty", func(t *testing.T) {
		t.Setenv("GH_SOURCE_PAT", "")
		t.Setenv("GITHUB_TOKEN", "")
		writeGHStub(t, "#!/bin/sh\necho \"gh-token-$4\"\n")

		toks, src, err := ResolveAuthTokens(context.Background(), "ghe.example.com")
		if err != nil {
			t.Fatalf("ResolveAuthTokens error: %v", err)
		}
		if !slices.Equal(toks, []string{"gh-token-ghe.example.com"}) {
			t.Fatalf("want host specific gh token, got %v", toks)
		}
		if src != AuthTokenSourceGitHubCL {
			t.Fatalf("want %q, got %q", AuthTokenSourceGitHubCL, src)
		}
	})

	t.Run("no token is an error", func(t *testing.T) {
		t.Setenv("GH_SOURCE_PAT", "")
		t.Setenv("GITHUB_TOKEN", "")
		t.Setenv("PATH", t.TempDir())

		_, _, err := ResolveAuthTokens(context.Background(), "")
		if !errors.Is(err, ErrNoToken) {
			t.Fatalf("want ErrNoToken, got %v", err)
		}
	})

	t.Run("gh invalid token output returns error", func(t *testing.T) {
		t.Setenv("GH_SOURCE_PAT", "")
		t.Setenv("GITHUB_TOKEN", "")
		writeGHStub(t, "#!/bin/sh\nprintf 'line1\\nline2\\n'\n")

		_, _, err := ResolveAuthTokens(context.Background(), "")
		if err == nil || errors.Is(err, ErrNoToken) {
			t.Fatalf("expected invalid token error, got %v", err)
		}
	})

	t.Run("context canceled propagates error when using gh", func(t *testing.T) {
		t.Setenv("GH_SOURCE_PAT", "")
		t.Setenv("GITHUB_TOKEN", "")
		writeGHStub(t, "#!/bin/sh\necho gh-token\n")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := ResolveAuthTokens(ctx, "")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestRotatingSource(t *testing.T) {
	if _, err := NewRotatingSource(nil); !errors.Is(err, ErrNoToken) {
		t.Fatalf("want ErrNoToken for empty source, got %v", err)
	}

	src, err := NewRotatingSource([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("NewRotatingSource: %v", err)
	}
	var got []string
	for range 4 {
		tok, err := src.Token()
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		got = append(got, tok.AccessToken)
	}
	if !slices.Equal(got, []string{"a", "b", "c", "a"}) {
		t.Fatalf("want round robin order, got %v", got)
	}

	// Concurrent callers spread evenly.
	src, _ = NewRotatingSource([]string{"x", "y"})
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, _ := src.Token()
			mu.Lock()
			counts[tok.AccessToken]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if counts["x"] != 50 || counts["y"] != 50 {
		t.Fatalf("want 50/50, got %v", counts)
	}
}
