package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/model"
)

var connectCmd = &cobra.Command{
	Use:   "connect <source> <target>",
	Short: "Draw an edge between two nodes",
	Long: `Ask the active rule set whether source may be linked to target and, when
it may, create the edge and apply the hierarchy change it implies.

The outcome is printed either way. A rejected connection exits with code 1
and changes nothing.

Handles name the side of each node the edge attaches to: left, right, top
or bottom. Top/bottom links express parent and child, left/right siblings.`,
	Example: `  navtree connect home "main menu" --from bottom --to top
  navtree connect live guide --policy orphan`,
	Args: cobra.ExactArgs(2),
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	connectCmd.Flags().String("from", "right", "Source handle: left, right, top, bottom")
	connectCmd.Flags().String("to", "left", "Target handle: left, right, top, bottom")
}

func runConnect(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	handles, err := parseHandles(from, to)
	if err != nil {
		return err
	}

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.editor.Connect(cmd.Context(), treeID(), args[0], args[1], handles)
	if err != nil {
		return err
	}
	if !out.Decision.Allowed {
		_ = printResult(cmd, out)
		return fmt.Errorf("connection rejected: %s", out.Decision.Reason)
	}
	return printResult(cmd, out)
}

func parseHandles(source, target string) (model.HandleInfo, error) {
	sh, err := model.ParseHandle(source)
	if err != nil {
		return model.HandleInfo{}, fmt.Errorf("--from: %w", err)
	}
	th, err := model.ParseHandle(target)
	if err != nil {
		return model.HandleInfo{}, fmt.Errorf("--to: %w", err)
	}
	return model.HandleInfo{Source: sh, Target: th}, nil
}
