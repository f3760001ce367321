// Package debuglog traces external commands to a daily log file under
// <root>/logs when --debug is set.
package debuglog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type loggerState struct {
	mu      sync.Mutex
	enabled atomic.Bool
	file    *os.File
	logger  *log.Logger
}

var state loggerState
var traceSeq uint64
var ctxState debugContext

type debugContext struct {
	mu     sync.Mutex
	phase  string
	step   string
	stepID string
}

// Enable opens logs/debug-YYYYMMDD.log below rootDir for appending.
func Enable(rootDir string) error {
	if strings.TrimSpace(rootDir) == "" {
		return fmt.Errorf("root directory is required")
	}
	logDir := filepath.Join(rootDir, "logs")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("create debug log dir: %w", err)
	}
	path := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", time.Now().Format("20060102")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open debug log file: %w", err)
	}
	logger := log.NewWithOptions(file, log.Options{
		Formatter:       log.LogfmtFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Level:           log.DebugLevel,
	}).With("pid", os.Getpid())

	state.mu.Lock()
	if state.file != nil {
		_ = state.file.Close()
	}
	state.file = file
	state.logger = logger
	state.enabled.Store(true)
	state.mu.Unlock()
	return nil
}

func Close() error {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.enabled.Store(false)
	state.logger = nil
	if state.file == nil {
		return nil
	}
	err := state.file.Close()
	state.file = nil
	return err
}

func Enabled() bool {
	return state.enabled.Load()
}

func NewTrace(prefix string) string {
	value := atomic.AddUint64(&traceSeq, 1)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cmd"
	}
	return fmt.Sprintf("%s:%x", prefix, value)
}

func FormatCommand(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func LogCommand(trace, cmd string) {
	logLine(trace, "cmd", "cmd", cmd)
}

func LogStdoutLines(trace, text string) {
	logOutputLines(trace, "stdout", text)
}

func LogStderrLines(trace, text string) {
	logOutputLines(trace, "stderr", text)
}

func LogExit(trace string, code int) {
	logLine(trace, "exit", "code", code)
}

// LogEvent records a non-command event, such as a download.
func LogEvent(trace, kind string, keyvals ...any) {
	logLine(trace, kind, keyvals...)
}

// SetPhase tags subsequent lines with the current run phase (plan, safety,
// clone, binaries, cmake).
func SetPhase(phase string) {
	ctxState.mu.Lock()
	ctxState.phase = strings.TrimSpace(phase)
	ctxState.step = ""
	ctxState.stepID = ""
	ctxState.mu.Unlock()
}

func SetStep(index int, stepID string) {
	ctxState.mu.Lock()
	ctxState.step = fmt.Sprintf("%d", index)
	ctxState.stepID = strings.TrimSpace(stepID)
	ctxState.mu.Unlock()
}

func logOutputLines(trace, kind, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		logLine(trace, kind, "line", line)
	}
}

func logLine(trace, kind string, keyvals ...any) {
	if !Enabled() {
		return
	}
	trace = strings.TrimSpace(trace)
	if trace == "" {
		trace = "unknown"
	}
	ctxState.mu.Lock()
	phase, step, stepID := ctxState.phase, ctxState.step, ctxState.stepID
	ctxState.mu.Unlock()
	if phase == "" {
		phase = "none"
	}

	fields := []any{"trace", trace, "phase", phase}
	if step != "" {
		fields = append(fields, "step", step)
	}
	if stepID != "" {
		fields = append(fields, "step_id", stepID)
	}
	fields = append(fields, keyvals...)

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.logger == nil {
		return
	}
	state.logger.Debug(kind, fields...)
}
