package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/graph"
	"github.com/angelstreet/navtree/internal/model"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Add, change, inspect and remove nodes",
	Long: `Nodes are addressed by ID or label. New nodes are orphans until an edge
gives them a place in the hierarchy.`,
}

var nodeAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Add an orphan node",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeAdd,
}

var nodeUpdateCmd = &cobra.Command{
	Use:   "update <node>",
	Short: "Change the label or description of a node",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeUpdate,
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <node>",
	Short: "Delete a node and every edge touching it",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeDelete,
}

var nodeResetCmd = &cobra.Command{
	Use:   "reset <node>",
	Short: "Remove all edges of a node and make it an orphan",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeReset,
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <node>",
	Short: "Show a node with its edges and verification confidence",
	Args:  cobra.ExactArgs(1),
	RunE:  runNodeShow,
}

var verificationCmd = &cobra.Command{
	Use:   "verification",
	Short: "Manage node verifications",
}

var verificationAddCmd = &cobra.Command{
	Use:   "add <node> <command>",
	Short: "Append a verification to a node",
	Example: `  navtree verification add live waitForTextToAppear --controller text --param text=LIVE
  navtree verification add live waitForImageToAppear --controller image \
      --param reference=live_logo.png --param area=10,10,200,80 --param threshold=0.85`,
	Args: cobra.ExactArgs(2),
	RunE: runVerificationAdd,
}

func init() {
	rootCmd.AddCommand(nodeCmd, verificationCmd)
	nodeCmd.AddCommand(nodeAddCmd, nodeUpdateCmd, nodeDeleteCmd, nodeResetCmd, nodeShowCmd)
	verificationCmd.AddCommand(verificationAddCmd)

	nodeAddCmd.Flags().String("id", "", "Node ID (generated when empty)")
	nodeAddCmd.Flags().String("kind", "screen", "screen, dialog, popup, overlay, menu, or entry")
	nodeAddCmd.Flags().String("description", "", "Free-text description")

	nodeUpdateCmd.Flags().String("label", "", "New label")
	nodeUpdateCmd.Flags().String("description", "", "New description")

	verificationAddCmd.Flags().String("controller", "text", "Controller class: text, image, adb")
	verificationAddCmd.Flags().StringArray("param", nil, "Command parameter as key=value (repeatable)")
	verificationAddCmd.Flags().String("input", "", "Input value")
}

func runNodeAdd(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	kindStr, _ := cmd.Flags().GetString("kind")
	description, _ := cmd.Flags().GetString("description")
	kind, err := model.ParseKind(kindStr)
	if err != nil {
		return err
	}

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.editor.AddNode(cmd.Context(), treeID(), graph.NewNode{ID: id, Label: args[0], Description: description, Kind: kind})
	if err != nil {
		return err
	}
	return printResult(cmd, n)
}

func runNodeUpdate(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	description, _ := cmd.Flags().GetString("description")
	if label == "" && description == "" {
		return fmt.Errorf("specify --label or --description")
	}

	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.editor.UpdateNode(cmd.Context(), treeID(), args[0], label, description)
	if err != nil {
		return err
	}
	return printResult(cmd, n)
}

func runNodeDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.editor.DeleteNode(cmd.Context(), treeID(), args[0])
	if err != nil {
		return err
	}
	return printResult(cmd, rep)
}

func runNodeReset(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.editor.ResetNode(cmd.Context(), treeID(), args[0])
	if err != nil {
		return err
	}
	return printResult(cmd, rep)
}

func runNodeShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(appConfig, false)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.editor.Node(cmd.Context(), treeID(), args[0])
	if err != nil {
		return err
	}
	return printResult(cmd, d)
}

func runVerificationAdd(cmd *cobra.Command, args []string) error {
	controllerStr, _ := cmd.Flags().GetString("controller")
	pairs, _ := cmd.Flags().GetStringArray("param")
	input, _ := cmd.Flags().GetString("input")

	controller, err := model.ParseControllerClass(controllerStr)
	if err != nil {
		return err
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

	n, err := a.editor.AddVerification(cmd.Context(), treeID(), args[0], model.Verification{
		Command:    args[1],
		Controller: controller,
		Params:     params,
		InputValue: input,
	})
	if err != nil {
		return err
	}
	return printResult(cmd, n)
}
