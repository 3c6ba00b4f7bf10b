package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/config"
	"github.com/angelstreet/navtree/internal/ctxlog"
	"github.com/angelstreet/navtree/internal/output"
	"github.com/angelstreet/navtree/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "navtree",
	Short: "Edit navigation trees and drive devices through them",
	Long: `navtree edits navigation trees: screens and menus of a device UI linked by
edges that carry the actions moving between them. Connections are checked
against a rule set that also maintains the tree hierarchy. Devices can be
driven to a node and verified there, or made to execute an edge.`,
	SilenceUsage: true,
}

// appConfig is the configuration resolved by the root command before any
// subcommand runs.
var appConfig = config.Default()

// Execute runs the root command. An interrupt cancels the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	pf := rootCmd.PersistentFlags()
	pf.String("format", "yaml", "Output format: yaml, json, text")
	pf.Bool("pretty", false, "Indent JSON output")
	pf.String("config", config.DefaultPath, "Config file (only required when set explicitly)")
	pf.String("db", "", "SQLite database path (overrides db_path)")
	pf.String("team", "", "Team ID (overrides team_id)")
	pf.String("tree", "main", "Tree ID")
	pf.String("policy", "", "Connection rule set: menu or orphan (overrides rule_policy)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text, json")
	rootCmd.PersistentPreRunE = setup
}

// setup resolves configuration, output format and logger.
func setup(cmd *cobra.Command, args []string) error {
	pf := rootCmd.PersistentFlags()

	path, _ := pf.GetString("config")
	cfg, err := config.Load(path, pf.Changed("config"))
	if err != nil {
		return err
	}
	for flag, field := range map[string]*string{
		"db":         &cfg.DBPath,
		"team":       &cfg.TeamID,
		"policy":     &cfg.RulePolicy,
		"log-level":  &cfg.Log.Level,
		"log-format": &cfg.Log.Format,
	} {
		if v, _ := pf.GetString(flag); v != "" {
			*field = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	format, _ := pf.GetString("format")
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	output.OutputFormat = f
	output.PrettyOutput, _ = pf.GetBool("pretty")

	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(ctxlog.WithLogger(ctx, logger))

	appConfig = cfg
	return nil
}

// treeID returns the --tree flag value.
func treeID() string {
	id, _ := rootCmd.PersistentFlags().GetString("tree")
	return id
}

// printResult writes v to the command's output in the selected format.
func printResult(cmd *cobra.Command, v interface{}) error {
	return output.Fprint(cmd.OutOrStdout(), v)
}
