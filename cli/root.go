// Package cli implements the ghostmcp command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "ghostmcp",
		Short: "Ghost CMS tools for MCP clients",
		Long:  "ghostmcp exposes the Ghost Admin and Content APIs as Model Context Protocol tools.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage:      true,
		PersistentPreRunE: setupOutput,
	}

	root.PersistentFlags().String("config", "", "Path to ghostmcp.yaml (default: ./ghostmcp.yaml, then ~/.ghostmcp/config.yaml)")
	root.PersistentFlags().Bool("verbose", false, "Enable verbose/debug logging")
	root.PersistentFlags().Bool("quiet", false, "Suppress all logging except errors")
	root.PersistentFlags().String("log-format", "text", "Log format: text | json")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("ghostmcp version %s\n", version))

	root.AddCommand(NewServeCmd(version))
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewAuditCmd())
	root.AddCommand(NewConfigCmd())
	return root
}

// setupOutput installs the default logger on stderr and applies --no-color.
// stdout is reserved for the MCP stdio transport and command output.
func setupOutput(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		color.NoColor = true
	}
	return nil
}

func newLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	format, _ := cmd.Flags().GetString("log-format")

	level := slog.LevelInfo
	switch {
	case verbose && quiet:
		return nil, exitError(exitUsage, "--verbose and --quiet are mutually exclusive")
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, exitError(exitUsage, "invalid --log-format %q (want text or json)", format)
	}
}
