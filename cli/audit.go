package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/petal-labs/ghostmcp/audit"
	"github.com/petal-labs/ghostmcp/config"
)

// NewAuditCmd creates the "audit" command group.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the invocation audit log",
	}
	cmd.PersistentFlags().String("db", "", "Path to the audit database (default: config audit.db, then ~/.ghostmcp/audit.db)")
	cmd.AddCommand(newAuditListCmd())
	cmd.AddCommand(newAuditPruneCmd())
	return cmd
}

// openAuditStore resolves the database from --db, the config file and
// environment, then the default path.
func openAuditStore(cmd *cobra.Command) (*audit.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	path = strings.TrimSpace(path)
	if path == "" {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(config.LoadOptions{Path: configPath})
		if err != nil {
			return nil, exitError(exitConfig, "%v", err)
		}
		path = cfg.Audit.DB
	}
	if path == "" {
		defaultPath, err := audit.DefaultPath()
		if err != nil {
			return nil, exitError(exitRuntime, "%v", err)
		}
		path = defaultPath
	}

	store, err := audit.Open(path)
	if err != nil {
		return nil, exitError(exitRuntime, "%v", err)
	}
	return store, nil
}

func newAuditListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent invocations, newest first",
		Args:  cobra.NoArgs,
		RunE:  runAuditList,
	}
	cmd.Flags().String("tool", "", "Only show this tool")
	cmd.Flags().Bool("errors", false, "Only show failed invocations")
	cmd.Flags().Int("limit", audit.DefaultRecentLimit, "Maximum number of records")
	cmd.Flags().Bool("json", false, "Print records as JSON")
	return cmd
}

func runAuditList(cmd *cobra.Command, _ []string) error {
	toolName, _ := cmd.Flags().GetString("tool")
	errorsOnly, _ := cmd.Flags().GetBool("errors")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	if limit < 1 {
		return exitError(exitUsage, "--limit must be positive")
	}

	store, err := openAuditStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(cmd.Context(), audit.Filter{Tool: toolName, ErrorsOnly: errorsOnly, Limit: limit})
	if err != nil {
		return exitError(exitRuntime, "listing audit records: %v", err)
	}

	if asJSON {
		if records == nil {
			records = []audit.Record{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding records: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	ok := color.New(color.FgGreen)
	failed := color.New(color.FgRed)
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "STARTED\tTOOL\tRESULT\tDURATION\tSUMMARY")
	for _, rec := range records {
		result := ok.Sprint("ok")
		if rec.IsError {
			result = failed.Sprint(rec.ErrorKind)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%dms\t%s\n",
			rec.StartedAt.Format(time.RFC3339),
			rec.Tool,
			result,
			rec.DurationMS,
			rec.Summary,
		)
	}
	return writer.Flush()
}

func newAuditPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old audit records",
		Args:  cobra.NoArgs,
		RunE:  runAuditPrune,
	}
	cmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete records that started longer ago than this")
	return cmd
}

func runAuditPrune(cmd *cobra.Command, _ []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan <= 0 {
		return exitError(exitUsage, "--older-than must be positive")
	}

	store, err := openAuditStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
	if err != nil {
		return exitError(exitRuntime, "pruning audit records: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d audit record(s)\n", n)
	return nil
}
