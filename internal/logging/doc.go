// Package logging provides opt-in file-based logging with rotation for
// rifflux. The root command's --debug flag is the only caller of Setup:
// when set, it writes rotating JSON logs to ~/.rifflux/logs/server.log via
// DebugConfig, capturing the warnings and errors the packages emit through
// slog (watcher errors and restarts, dropped watch batches, failed reindex
// submissions, embedder fallback, unreadable scan entries) that the plain
// CLI/MCP output never prints.
//
// By default (without --debug), logging is minimal and goes to stderr only.
package logging
