package script

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/randomizedcoder/go-procrun/internal/engine"
)

func newTestEngine(t *testing.T) (*engine.Engine, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("sh not available: %v", err)
	}

	tempDir := filepath.Join(t.TempDir(), "scripts")
	e := engine.New(engine.Config{
		Exec: engine.ExecConfig{
			ToolDir: filepath.Dir(sh),
			ExeName: filepath.Base(sh),
			TempDir: tempDir,
			Timeout: 10 * time.Second,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = e.Close() })
	return e, tempDir
}

func captureLines(e *engine.Engine) func() []string {
	var mu sync.Mutex
	var got []string
	e.OutputReceived().Subscribe(func(line string) {
		mu.Lock()
		got = append(got, line)
		mu.Unlock()
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), got...)
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunner_Run(t *testing.T) {
	e, tempDir := newTestEngine(t)
	lines := captureLines(e)
	r := NewRunner(e, WithExt(".sh"))

	err := r.Run(context.Background(), `echo "$0"; echo "arg=$1"`, []string{"value"}, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := lines()
	if len(got) != 2 {
		t.Fatalf("lines = %q, want 2", got)
	}

	name := filepath.Base(got[0])
	if filepath.Dir(got[0]) != tempDir {
		t.Errorf("script dir = %s, want %s", filepath.Dir(got[0]), tempDir)
	}
	if !strings.HasPrefix(name, DefaultPrefix+"-") || !strings.HasSuffix(name, ".sh") {
		t.Errorf("script name = %s, want %s-<uuid>.sh", name, DefaultPrefix)
	}
	if got[1] != "arg=value" {
		t.Errorf("second line = %q, want arg=value", got[1])
	}

	if left := dirEntries(t, tempDir); len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}

func TestRunner_RunFailureRemovesFile(t *testing.T) {
	e, tempDir := newTestEngine(t)
	r := NewRunner(e, WithPrefix("job"))

	err := r.Run(context.Background(), "echo broken >&2; exit 9", nil, nil, nil)
	if code, ok := engine.Code(err); !ok || code != 9 {
		t.Fatalf("Run() error = %v, want exit code 9", err)
	}

	if left := dirEntries(t, tempDir); len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}

func TestRunner_RunAsync(t *testing.T) {
	e, tempDir := newTestEngine(t)
	lines := captureLines(e)
	r := NewRunner(e)

	f, err := r.RunAsync(context.Background(), "echo async", nil)
	if err != nil {
		t.Fatalf("RunAsync() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	// The file is gone by the time the future settles.
	if left := dirEntries(t, tempDir); len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
	if got := lines(); len(got) != 1 || got[0] != "async" {
		t.Errorf("lines = %q, want [async]", got)
	}
}

func TestRunner_RunAsyncLaunchFailure(t *testing.T) {
	tempDir := t.TempDir()
	e := engine.New(engine.Config{
		Exec: engine.ExecConfig{
			ToolDir: tempDir,
			ExeName: "missing",
			TempDir: tempDir,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	r := NewRunner(e)

	f, err := r.RunAsync(context.Background(), "whatever", nil)
	if f != nil || !errors.Is(err, engine.ErrExecutableNotFound) {
		t.Fatalf("RunAsync() = %v, %v; want ErrExecutableNotFound", f, err)
	}

	if left := dirEntries(t, tempDir); len(left) != 0 {
		t.Errorf("temp files left behind: %v", left)
	}
}

func TestRunner_TempDirNotCreatable(t *testing.T) {
	e, _ := newTestEngine(t)

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := e.ExecConfig()
	cfg.TempDir = filepath.Join(blocker, "sub")
	e.SetExecConfig(cfg)

	r := NewRunner(e)
	if err := r.Run(context.Background(), "exit 0", nil, nil, nil); err == nil {
		t.Error("Run() error = nil, want temp dir failure")
	}
}
