package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/editor"
	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "List and remove edges, manage their actions",
}

var edgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List edges, optionally only those touching a node",
	RunE:  runEdgeList,
}

var edgeDeleteCmd = &cobra.Command{
	Use:   "delete <edge>",
	Short: "Delete an edge",
	Long: `Delete an edge. Its target becomes an orphan when no other incoming edge
is left; otherwise the target keeps its hierarchy.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdgeDelete,
}

var edgeActionCmd = &cobra.Command{
	Use:   "action",
	Short: "Manage edge actions",
}

var edgeActionAddCmd = &cobra.Command{
	Use:   "add <edge> <command>",
	Short: "Append an action to an edge",
	Example: `  navtree edge action add e1 press_key --param key=OK --wait 500
  navtree edge action add e1 press_key --param key=HOME --retry`,
	Args: cobra.ExactArgs(2),
	RunE: runEdgeActionAdd,
}

func init() {
	rootCmd.AddCommand(edgeCmd)
	edgeCmd.AddCommand(edgeListCmd, edgeDeleteCmd, edgeActionCmd)
	edgeActionCmd.AddCommand(edgeActionAddCmd)

	edgeListCmd.Flags().String("node", "", "Only edges touching this node (ID or label)")

	edgeActionAddCmd.Flags().StringArray("param", nil, "Command parameter as key=value (repeatable)")
	edgeActionAddCmd.Flags().String("input", "", "Input value")
	edgeActionAddCmd.Flags().Int("wait", 0, "Pause after the action in milliseconds")
	edgeActionAddCmd.Flags().Bool("retry", false, "Append to the retry actions")
}

// EdgeListResult is the output of edge list.
type EdgeListResult struct {
	TreeID string       `yaml:"tree_id" json:"tree_id"`
	Edges  []model.Edge `yaml:"edges"   json:"edges"`
}

func runEdgeList(cmd *cobra.Command, args []string) error {
	nodeRef, _ := cmd.Flags().GetString("node")

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	id := treeID()
	tree, err := a.editor.Tree(cmd.Context(), id)
	if err != nil {
		return err
	}
	result := EdgeListResult{TreeID: id, Edges: tree.Edges}
	if nodeRef != "" {
		g, err := graph.FromTree(tree)
		if err != nil {
			return err
		}
		n, err := editor.ResolveNode(g, nodeRef)
		if err != nil {
			return err
		}
		result.Edges = nil
		for _, e := range tree.Edges {
			if e.Touches(n.ID) {
				result.Edges = append(result.Edges, e)
			}
		}
	}
	return printResult(cmd, result)
}

func runEdgeDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.editor.DeleteEdge(cmd.Context(), treeID(), args[0])
	if err != nil {
		return err
	}
	return printResult(cmd, rep)
}

func runEdgeActionAdd(cmd *cobra.Command, args []string) error {
	pairs, _ := cmd.Flags().GetStringArray("param")
	input, _ := cmd.Flags().GetString("input")
	waitMs, _ := cmd.Flags().GetInt("wait")
	retry, _ := cmd.Flags().GetBool("retry")
	if waitMs < 0 {
		return fmt.Errorf("--wait must be >= 0")
	}
	params, err := parseParams(pairs)
	if err != nil {
		return err
	}

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := a.editor.AddAction(cmd.Context(), treeID(), args[0], model.Action{
		Command:    args[1],
		Params:     params,
		InputValue: input,
		WaitMs:     waitMs,
	}, retry)
	if err != nil {
		return err
	}
	return printResult(cmd, e)
}
