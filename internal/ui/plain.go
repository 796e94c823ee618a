package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer outputs plain text progress, one line per update, in the
// style a scrolling CI log or a redirected-to-file run expects. It colors
// the stage icon and error/warning prefixes with DefaultStyles when writing
// to an interactive terminal, and falls back to NoColorStyles otherwise.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	stage  Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:    cfg.Output,
		styles: GetStyles(!useColor(cfg)),
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// Format: [STAGE] current/total - message or file
	var msg string
	if event.Message != "" {
		msg = event.Message
	} else if event.CurrentFile != "" {
		msg = event.CurrentFile
	}

	icon := r.styles.Stage.Render(event.Stage.Icon())
	if event.Total > 0 {
		count := r.styles.Progress.Render(fmt.Sprintf("%d/%d", event.Current, event.Total))
		_, _ = fmt.Fprintf(r.out, "[%s] %s - %s\n", icon, count, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", icon, msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := r.styles.Error.Render("ERROR")
	if event.IsWarn {
		prefix = r.styles.Warning.Render("WARN")
	}

	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := fmt.Sprintf("Complete: %d files, %d chunks indexed in %s",
		stats.Files, stats.Chunks, stats.Duration.Round(100*millisecond))
	_, _ = fmt.Fprint(r.out, r.styles.Success.Render(summary))

	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}

	_, _ = fmt.Fprintln(r.out)

	// Show detailed stage breakdown if available
	if stats.Stages.Scan > 0 || stats.Stages.Embed > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, r.styles.Header.Render("Stage Breakdown:"))
		_, _ = fmt.Fprintf(r.out, "  Scan:    %s %s\n", stats.Stages.Scan.Round(100*millisecond),
			r.styles.Dim.Render("(files discovered)"))
		_, _ = fmt.Fprintf(r.out, "  Chunk:   %s %s\n", stats.Stages.Chunk.Round(100*millisecond),
			r.styles.Dim.Render("(documents split)"))
		if stats.Stages.Embed > 0 && stats.Chunks > 0 {
			chunksPerSec := float64(stats.Chunks) / stats.Stages.Embed.Seconds()
			_, _ = fmt.Fprintf(r.out, "  Embed:   %s %s\n", stats.Stages.Embed.Round(100*millisecond),
				r.styles.Dim.Render(fmt.Sprintf("(%d chunks @ %.1f/sec)", stats.Chunks, chunksPerSec)))
		}
		_, _ = fmt.Fprintf(r.out, "  %s %s %s\n", r.styles.Active.Render("Persist:"),
			stats.Stages.Persist.Round(100*millisecond), r.styles.Dim.Render("(FTS5 + vector)"))
	}

	// Show embedder backend info if available
	if stats.Embedder.Backend != "" {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintf(r.out, "Backend: %s (%s, %d dims)\n",
			stats.Embedder.Backend, stats.Embedder.Model, stats.Embedder.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

const millisecond = 1000000 // nanoseconds
