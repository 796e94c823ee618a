// Package cmd provides the CLI commands for rifflux.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/riffluxdb/rifflux/internal/logging"
	"github.com/riffluxdb/rifflux/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the rifflux CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rifflux",
		Short: "Local-first hybrid search over Markdown corpora",
		Long: `rifflux indexes a directory of Markdown files and serves hybrid
lexical + semantic search over it, either as an MCP server over stdio for
AI coding assistants, or directly from the command line.

It runs entirely locally: no network calls, no external services.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("rifflux version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.rifflux/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug file logging when --debug is set. Left
// disabled (file logging off, default slog handler in place), this is a
// no-op: regular CLI commands just print through internal/output.
func startLogging(cmd *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
