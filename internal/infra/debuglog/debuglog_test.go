package debuglog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnableWritesTraceLines(t *testing.T) {
	root := t.TempDir()
	if err := Enable(root); err != nil {
		t.Fatalf("Enable error: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	SetPhase("clone")
	trace := NewTrace("git")
	LogCommand(trace, FormatCommand("git", []string{"clone", "https://example.com/core"}))
	LogStderrLines(trace, "Cloning into 'core'...\n\n")
	LogExit(trace, 0)
	if err := Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	path := filepath.Join(root, "logs", "debug-"+time.Now().Format("20060102")+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), data)
	}
	for _, want := range []string{"trace=" + trace, "phase=clone", "msg=cmd"} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("first line %q missing %q", lines[0], want)
		}
	}
	if !strings.Contains(lines[2], "code=0") {
		t.Fatalf("exit line %q missing code", lines[2])
	}
}

func TestDisabledIsNoop(t *testing.T) {
	if Enabled() {
		t.Fatalf("expected debug log to start disabled")
	}
	LogCommand("git:1", "git status")
	if err := Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestEnableRequiresRoot(t *testing.T) {
	if err := Enable(" "); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
