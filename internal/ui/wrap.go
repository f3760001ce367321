package ui

import (
	"sync/atomic"

	"github.com/charmbracelet/x/term"
)

var wrapWidth atomic.Int64

// SetWrapWidth sets the column at which renderers created afterwards wrap
// lines. Zero disables wrapping.
func SetWrapWidth(width int) {
	if width < 0 {
		width = 0
	}
	wrapWidth.Store(int64(width))
}

// DetectWrapWidth wraps at the terminal width of fd, if it is a terminal.
func DetectWrapWidth(fd uintptr) {
	if !term.IsTerminal(fd) {
		return
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return
	}
	SetWrapWidth(width)
}

func currentWrapWidth() int {
	return int(wrapWidth.Load())
}
