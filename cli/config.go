package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/petal-labs/ghostmcp/config"
)

// NewConfigCmd creates the "config" command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect resolved configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigCheckCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration with API keys masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(config.LoadOptions{Path: path})
			if err != nil {
				return exitError(exitConfig, "%v", err)
			}
			return printConfig(cmd, cfg)
		},
	}
}

func newConfigCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and optionally reach the Ghost site",
		Args:  cobra.NoArgs,
		RunE:  runConfigCheck,
	}
	cmd.Flags().Bool("ping", false, "Also call the site endpoint with the configured credentials")
	return cmd
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	source := cfg.Path
	if source == "" {
		source = "environment"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s)\n", source)

	ping, _ := cmd.Flags().GetBool("ping")
	if !ping {
		return nil
	}
	cfg.Health.Schedule = "off"
	a, err := newApp(cmd.Context(), cfg, nil, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.close(cmd.Context()) }()

	site, err := a.client.Site(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "reaching %s: %v", cfg.Ghost.URL, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reached %q (Ghost %s)\n", site.Title, site.Version)
	return nil
}

func printConfig(cmd *cobra.Command, cfg config.Config) error {
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return exitError(exitRuntime, "encoding config: %v", err)
	}
	if cfg.Path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.Path)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
