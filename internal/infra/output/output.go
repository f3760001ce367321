// Package output prints run progress as numbered steps with nested log
// lines. The CLI installs a StepLogger that styles them; without one, plain
// text goes to stdout.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/ManiVaultStudio/DevBundle/internal/infra/debuglog"
)

const (
	Indent       = "  "
	StepPrefix   = "•"
	LogConnector = "└─"
)

type StepLogger interface {
	Step(text string)
	Log(text string)
	LogOutput(text string)
}

var (
	mu         sync.Mutex
	stepLogger StepLogger
	stepIndex  int
	fallback   io.Writer = os.Stdout
)

func SetStepLogger(logger StepLogger) {
	mu.Lock()
	stepLogger = logger
	stepIndex = 0
	mu.Unlock()
}

func current() StepLogger {
	mu.Lock()
	defer mu.Unlock()
	return stepLogger
}

func Step(text string) {
	mu.Lock()
	stepIndex++
	index := stepIndex
	mu.Unlock()
	debuglog.SetStep(index, stepID(text))
	if logger := current(); logger != nil {
		logger.Step(text)
		return
	}
	fmt.Fprintf(fallback, "%s%s %s\n", Indent, StepPrefix, text)
}

func Stepf(format string, args ...any) {
	Step(fmt.Sprintf(format, args...))
}

func Log(text string) {
	if logger := current(); logger != nil {
		logger.Log(text)
		return
	}
	fmt.Fprintf(fallback, "%s%s %s\n", Indent+Indent, LogConnector, text)
}

func Logf(format string, args ...any) {
	Log(fmt.Sprintf(format, args...))
}

func LogOutput(text string) {
	if logger := current(); logger != nil {
		logger.LogOutput(text)
		return
	}
	fmt.Fprintf(fallback, "%s%s\n", LogOutputPrefix(), text)
}

// LogLines writes every non-blank line of text as command output.
func LogLines(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		LogOutput(line)
	}
}

func LogOutputPrefix() string {
	spaces := utf8.RuneCountInString(LogConnector) + 1
	return Indent + Indent + strings.Repeat(" ", spaces)
}

func stepID(text string) string {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	lastDash := false
	for _, r := range trimmed {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "step"
	}
	if len(out) > 32 {
		return out[:32]
	}
	return out
}
