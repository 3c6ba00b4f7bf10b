package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/orchestrator"
)

var gotoCmd = &cobra.Command{
	Use:   "goto <node>",
	Short: "Navigate the device to a node and run its verifications",
	Long: `Navigate the device to a node, then capture a screenshot and evaluate
each of the node's verifications against it, one at a time.

Every step is recorded in the execution history, and each verification's
last results are saved back to the tree. The command exits with code 1 when
navigation or any verification fails.

Use --format text for a line-by-line log.`,
	Example: `  navtree goto live --host pi4 --device device1 --format text`,
	Args:    cobra.ExactArgs(1),
	RunE:    runGoto,
}

var runEdgeCmd = &cobra.Command{
	Use:   "run-edge <edge>",
	Short: "Execute the actions of an edge on the device",
	Long: `Execute an edge's actions in order, stopping at the first failure. When a
primary action fails and the edge has retry actions, those run next and
decide the outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunEdge,
}

func init() {
	rootCmd.AddCommand(gotoCmd, runEdgeCmd)
	addDeviceFlags(gotoCmd)
	addDeviceFlags(runEdgeCmd)
}

func runGoto(cmd *cobra.Command, args []string) error {
	a, err := openApp(deviceConfig(cmd), true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.editor.Goto(cmd.Context(), treeID(), args[0], a.session())
	return reportRun(cmd, res, err)
}

func runRunEdge(cmd *cobra.Command, args []string) error {
	a, err := openApp(deviceConfig(cmd), true)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.editor.RunEdge(cmd.Context(), treeID(), args[0], a.session())
	return reportRun(cmd, res, err)
}

// reportRun prints a run and turns a failed run into a non-zero exit.
func reportRun(cmd *cobra.Command, res *orchestrator.RunResult, err error) error {
	if err != nil {
		return err
	}
	if perr := printResult(cmd, res); perr != nil {
		return perr
	}
	if !res.Success {
		return fmt.Errorf("%s run failed", res.Kind)
	}
	return nil
}
