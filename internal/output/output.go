// Package output formats the CLI's human-readable terminal output: status
// lines, result listings, and in-place progress for long index builds.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer writes formatted CLI output. Write errors are ignored throughout;
// there is nothing useful to do when stdout is gone.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints one line, prefixed with icon when given and aligned with
// the icon column otherwise.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
}

// Statusf is Status with Printf formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a checkmarked line.
func (w *Writer) Success(msg string) {
	w.Status("✓", msg)
}

// Successf is Success with Printf formatting.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status("!", msg)
}

// Warningf is Warning with Printf formatting.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status("✗", msg)
}

// Errorf is Error with Printf formatting.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress redraws an in-place progress bar. The line is terminated once
// current reaches total.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(w.out, "\r[%s] %3.0f%% %s", bar(current, total, 30), pct, msg)

	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func bar(current, total, width int) string {
	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
