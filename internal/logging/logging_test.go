package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSetup_FanOutLevels(t *testing.T) {
	var file, console bytes.Buffer
	l := Setup(Options{File: &file, Console: &console})

	l.Debug("retrying call", "org", "alpha")
	l.Info("org finished", "org", "alpha")

	if !strings.Contains(file.String(), "retrying call") {
		t.Fatalf("file log missing debug line: %s", file.String())
	}
	if strings.Contains(console.String(), "retrying call") {
		t.Fatalf("console must not show debug without verbose: %s", console.String())
	}
	if !strings.Contains(console.String(), "org finished") || !strings.Contains(console.String(), "org=alpha") {
		t.Fatalf("console missing info line: %s", console.String())
	}
}

func TestSetup_VerboseConsole(t *testing.T) {
	var console bytes.Buffer
	l := Setup(Options{Console: &console, Verbose: true})
	l.Debug("http request", "method", "GET")
	if !strings.Contains(console.String(), "http request") {
		t.Fatalf("verbose console missing debug line: %s", console.String())
	}
}

func TestSetup_WithAttrsReachesEveryHandler(t *testing.T) {
	var file, console bytes.Buffer
	l := Setup(Options{File: &file, Console: &console}).With("run_id", "r-1")
	l.Info("run started")
	for name, buf := range map[string]*bytes.Buffer{"file": &file, "console": &console} {
		if !strings.Contains(buf.String(), "run_id=r-1") {
			t.Fatalf("%s log missing run_id: %s", name, buf.String())
		}
	}
}

func TestSetup_Discard(t *testing.T) {
	l := Setup(Options{})
	l.Info("nothing")
}

func TestOpenFile_ConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile returned error: %v", err)
	}
	l := Setup(Options{File: f})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Info("job finished", "n", i)
		}()
	}
	wg.Wait()
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 16 {
		t.Fatalf("want 16 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.Contains(line, "msg=\"job finished\"") {
			t.Fatalf("corrupted line: %q", line)
		}
	}
}
