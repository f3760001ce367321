package output

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

type captureLogger struct {
	steps      []string
	logs       []string
	logOutputs []string
}

func (c *captureLogger) Step(text string) {
	c.steps = append(c.steps, text)
}

func (c *captureLogger) Log(text string) {
	c.logs = append(c.logs, text)
}

func (c *captureLogger) LogOutput(text string) {
	c.logOutputs = append(c.logOutputs, text)
}

func TestLogOutputPrefix(t *testing.T) {
	want := Indent + Indent + strings.Repeat(" ", utf8.RuneCountInString(LogConnector)+1)
	if got := LogOutputPrefix(); got != want {
		t.Fatalf("LogOutputPrefix() = %q, want %q", got, want)
	}
}

func TestLogLinesUsesLogOutput(t *testing.T) {
	logger := &captureLogger{}
	SetStepLogger(logger)
	defer SetStepLogger(nil)

	Stepf("clone %s", "core")
	LogLines("alpha\n\nbravo\n")

	if len(logger.steps) != 1 || logger.steps[0] != "clone core" {
		t.Fatalf("steps = %v", logger.steps)
	}
	if len(logger.logOutputs) != 2 {
		t.Fatalf("logOutputs = %d, want 2", len(logger.logOutputs))
	}
	if len(logger.logs) != 0 {
		t.Fatalf("logs = %d, want 0", len(logger.logs))
	}
}

func TestPlainFallback(t *testing.T) {
	var buf bytes.Buffer
	prev := fallback
	fallback = &buf
	defer func() { fallback = prev }()

	Step("write CMakeLists.txt")
	Logf("backup %s", "CMakeLists.000")

	want := "  • write CMakeLists.txt\n    └─ backup CMakeLists.000\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestStepID(t *testing.T) {
	cases := map[string]string{
		"Clone core (master)": "clone-core-master",
		"  ":                  "step",
		"!!!":                 "step",
	}
	for in, want := range cases {
		if got := stepID(in); got != want {
			t.Fatalf("stepID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIndentWriterPrefixesLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewIndentWriter(&buf, "> ")
	if _, err := w.Write([]byte("one\n\ntw")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if _, err := w.Write([]byte("o\nthree")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if got, want := buf.String(), "> one\n\n> two\n> three\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}
