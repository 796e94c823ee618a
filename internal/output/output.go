// Package output provides consistent CLI output formatting for rifflux's
// index, search, and status commands.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{
		out:      out,
		useColor: false, // Default to no color for simplicity
	}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.Status(icon, msg)
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// ScoreLine prints a result's score breakdown, a nil field meaning that
// mode didn't contribute a score to this result. Used by `rifflux search`'s
// text-format output to show why a result ranked where it did.
func (w *Writer) ScoreLine(bm25, cosine, rrf *float64) {
	var parts []string
	if bm25 != nil {
		parts = append(parts, fmt.Sprintf("bm25=%.3f", *bm25))
	}
	if cosine != nil {
		parts = append(parts, fmt.Sprintf("cosine=%.3f", *cosine))
	}
	if rrf != nil {
		parts = append(parts, fmt.Sprintf("rrf=%.4f", *rrf))
	}
	if len(parts) == 0 {
		return
	}
	w.Status("", "   ("+strings.Join(parts, ", ")+")")
}
