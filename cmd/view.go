package cmd

import (
	"github.com/spf13/cobra"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the part of a tree visible under a focus node",
	Long: `Show the nodes and edges an editor would display.

Without --focus, every node at most --depth levels deep is shown. With it,
the focus node, its descendants down to --depth levels below it, and its
siblings are shown. An edge is shown only when both of its ends are.`,
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().String("focus", "", "Focus node ID or label")
	viewCmd.Flags().Int("depth", 0, "Max display depth (0 = max_display_depth)")
}

func runView(cmd *cobra.Command, args []string) error {
	focus, _ := cmd.Flags().GetString("focus")
	depth, _ := cmd.Flags().GetInt("depth")

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := a.editor.View(cmd.Context(), treeID(), focus, depth)
	if err != nil {
		return err
	}
	return printResult(cmd, v)
}
