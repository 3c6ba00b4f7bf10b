package cmd

import (
	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent execution records, newest first",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("node", "", "Filter by node ID")
	historyCmd.Flags().String("edge", "", "Filter by edge ID")
	historyCmd.Flags().String("run", "", "Filter by run ID")
	historyCmd.Flags().String("category", "", "Filter by category: navigation, verification, action, retry_action")
	historyCmd.Flags().Bool("all-trees", false, "Do not filter by --tree")
	historyCmd.Flags().Int("limit", store.DefaultLimit, "Max records")
}

func runHistory(cmd *cobra.Command, args []string) error {
	node, _ := cmd.Flags().GetString("node")
	edge, _ := cmd.Flags().GetString("edge")
	run, _ := cmd.Flags().GetString("run")
	category, _ := cmd.Flags().GetString("category")
	allTrees, _ := cmd.Flags().GetBool("all-trees")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	q := store.Query{
		NodeID:   node,
		EdgeID:   edge,
		RunID:    run,
		Category: model.RecordCategory(category),
		Limit:    limit,
	}
	if !allTrees {
		q.TreeID = treeID()
	}
	records, err := a.audit.Recent(cmd.Context(), q)
	if err != nil {
		return err
	}
	return printResult(cmd, records)
}
