package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
	"github.com/angelstreet/navtree/internal/treefile"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Create, list, check, import and export trees",
}

var treeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty tree (id from --tree)",
	RunE:  runTreeCreate,
}

var treeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the trees of the team",
	RunE:  runTreeList,
}

var treeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a whole tree",
	RunE:  runTreeShow,
}

var treeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify a stored tree satisfies the hierarchy invariants",
	RunE:  runTreeCheck,
}

var treeDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a tree",
	RunE:  runTreeDelete,
}

var treeExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write a tree as a YAML tree file (stdout when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTreeExport,
}

var treeImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a YAML tree file, replacing the stored tree with the same id",
	Long: `Load a YAML tree file. The file is validated before anything is stored:
unknown fields, dangling edges, a second entry node or a node that is its own
ancestor are rejected. Cached depths are recomputed from parent chains.`,
	Args: cobra.ExactArgs(1),
	RunE: runTreeImport,
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.AddCommand(treeCreateCmd, treeListCmd, treeShowCmd, treeCheckCmd, treeDeleteCmd, treeExportCmd, treeImportCmd)
	treeCreateCmd.Flags().String("name", "", "Display name")
}

// TreeCheckResult is the output of tree check.
type TreeCheckResult struct {
	OK     bool   `yaml:"ok"              json:"ok"`
	Action string `yaml:"action"          json:"action"`
	TreeID string `yaml:"tree_id"         json:"tree_id"`
	Nodes  int    `yaml:"nodes"           json:"nodes"`
	Edges  int    `yaml:"edges"           json:"edges"`
	Error  string `yaml:"error,omitempty" json:"error,omitempty"`
}

func runTreeCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	name, _ := cmd.Flags().GetString("name")
	tree, err := a.editor.CreateTree(cmd.Context(), treeID(), name)
	if err != nil {
		return err
	}
	return printResult(cmd, tree)
}

func runTreeList(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	trees, err := a.trees.List(cmd.Context())
	if err != nil {
		return err
	}
	return printResult(cmd, trees)
}

func runTreeShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	tree, err := a.editor.Tree(cmd.Context(), treeID())
	if err != nil {
		return err
	}
	return printResult(cmd, tree)
}

func runTreeCheck(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	id := treeID()
	result := TreeCheckResult{Action: "check", TreeID: id}
	raw, err := a.trees.LoadTree(cmd.Context(), id)
	if err != nil {
		return err
	}
	result.Nodes, result.Edges = len(raw.Nodes), len(raw.Edges)
	if _, err := graph.FromTree(raw); err != nil {
		result.Error = err.Error()
		_ = printResult(cmd, result)
		return fmt.Errorf("tree check failed: %w", err)
	}
	result.OK = true
	return printResult(cmd, result)
}

func runTreeDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	id := treeID()
	if err := a.trees.DeleteTree(cmd.Context(), id); err != nil {
		return err
	}
	return printResult(cmd, TreeCheckResult{OK: true, Action: "delete", TreeID: id})
}

func runTreeExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	tree, err := a.editor.Tree(cmd.Context(), treeID())
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return treefile.Encode(cmd.OutOrStdout(), tree)
	}
	if err := treefile.WriteFile(args[0], tree); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d nodes, %d edges)\n", args[0], len(tree.Nodes), len(tree.Edges))
	return nil
}

func runTreeImport(cmd *cobra.Command, args []string) error {
	var (
		tree model.Tree
		err  error
	)
	if args[0] == "-" {
		tree, err = treefile.Decode(cmd.InOrStdin())
	} else {
		tree, err = treefile.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	saved, err := a.editor.Import(cmd.Context(), tree)
	if err != nil {
		return err
	}
	return printResult(cmd, TreeCheckResult{OK: true, Action: "import", TreeID: saved.ID, Nodes: len(saved.Nodes), Edges: len(saved.Edges)})
}
