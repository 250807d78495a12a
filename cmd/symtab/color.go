package main

import (
	"bytes"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiBold  = "\x1b[1m"
	ansiReset = "\x1b[0m"
)

// highlight returns w, or a writer that puts dump headers in bold when w
// is a terminal.
func highlight(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok || !useColor(f) {
		return w
	}
	return &headerWriter{w: w}
}

func useColor(f *os.File) bool {
	// NO_COLOR convention: https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// headerWriter bolds lines that start with "***". Each Write must hold
// whole lines.
type headerWriter struct {
	w io.Writer
}

func (h *headerWriter) Write(p []byte) (int, error) {
	var buf bytes.Buffer
	for _, line := range bytes.SplitAfter(p, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("***")) {
			body := bytes.TrimSuffix(line, []byte("\n"))
			buf.WriteString(ansiBold)
			buf.Write(body)
			buf.WriteString(ansiReset)
			buf.Write(line[len(body):])
			continue
		}
		buf.Write(line)
	}
	if _, err := h.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}
