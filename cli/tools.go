package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/petal-labs/ghostmcp/tool"
)

var (
	nameColor  = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed, color.Bold)
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and invoke Ghost tools",
	}
	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsDescribeCmd())
	cmd.AddCommand(newToolsCallCmd())
	return cmd
}

// catalog builds a registry without a backend. Its tools can be listed but
// not called.
func catalog() (*tool.Registry, error) {
	registry, err := tool.NewRegistry(tool.Config{Modules: tool.Modules(nil)})
	if err != nil {
		return nil, exitError(exitRuntime, "building tool registry: %v", err)
	}
	return registry, nil
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [substring]",
		Short: "List every advertised tool",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runToolsList,
	}
}

func runToolsList(cmd *cobra.Command, args []string) error {
	registry, err := catalog()
	if err != nil {
		return err
	}
	match := ""
	if len(args) == 1 {
		match = strings.ToLower(strings.TrimSpace(args[0]))
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tREQUIRED\tDESCRIPTION")
	for _, name := range registry.Names() {
		if match != "" && !strings.Contains(name, match) {
			continue
		}
		def, _ := registry.Definition(name)
		required := strings.Join(def.RequiredArguments(), ",")
		if required == "" {
			required = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", nameColor.Sprint(def.Name), required, firstSentence(def.Description))
	}
	return writer.Flush()
}

func newToolsDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <name>",
		Short: "Print a tool's description and input schema",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsDescribe,
	}
}

func runToolsDescribe(cmd *cobra.Command, args []string) error {
	registry, err := catalog()
	if err != nil {
		return err
	}
	def, ok := registry.Definition(strings.TrimSpace(args[0]))
	if !ok {
		return exitError(exitUsage, "unknown tool %q", args[0])
	}

	out := map[string]any{
		"name":        def.Name,
		"description": def.Description,
		"inputSchema": def.InputSchema(),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding tool: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func newToolsCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <name>",
		Short: "Invoke one tool against the configured Ghost site",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsCall,
	}
	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	return cmd
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	rawArgs, _ := cmd.Flags().GetString("args")
	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
		return exitError(exitUsage, "--args must be a JSON object: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Health.Schedule = "off"

	a, err := newApp(cmd.Context(), cfg, slog.Default(), appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.close(cmd.Context()) }()

	result := a.registry.Call(cmd.Context(), strings.TrimSpace(args[0]), toolArgs)
	if result.IsError {
		errorColor.Fprintln(cmd.ErrOrStderr(), result.Text)
		return exitError(exitRuntime, "tool call failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	return nil
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}
