package output

import (
	"bytes"
	"io"
)

// IndentWriter prefixes every line written through it. A trailing partial
// line is held until the next newline or Flush.
type IndentWriter struct {
	prefix []byte
	w      io.Writer
	buf    bytes.Buffer
}

func NewIndentWriter(w io.Writer, prefix string) *IndentWriter {
	return &IndentWriter{prefix: []byte(prefix), w: w}
}

func (w *IndentWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			rest := append([]byte(nil), line...)
			w.buf.Reset()
			w.buf.Write(rest)
			return len(p), nil
		}
		if err := w.emit(line); err != nil {
			return len(p), err
		}
	}
}

// Flush writes any held partial line followed by a newline.
func (w *IndentWriter) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	line := append(w.buf.Bytes(), '\n')
	w.buf.Reset()
	return w.emit(line)
}

func (w *IndentWriter) emit(line []byte) error {
	if len(bytes.TrimSpace(line)) > 0 {
		if _, err := w.w.Write(w.prefix); err != nil {
			return err
		}
	}
	_, err := w.w.Write(line)
	return err
}
