package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/ringlink/internal/action"
)

// mappingsCmd represents the mappings command
var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Show the gesture-to-action mapping",
	Long: `Prints the resolved gesture mapping: every gesture kind, the action it
triggers, and the executor behind that action. Kinds the config does not
mention resolve to the built-in noop action.`,
	RunE: runMappings,
}

func runMappings(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	mapping, err := cfg.Mapping()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("GESTURE\tACTION\tEXECUTOR"))

	for _, entry := range mapping.Entries() {
		executorID := "-"
		if entry.Action == action.NoopAction {
			executorID = "noop"
		} else if def, ok := cfg.Actions[entry.Action]; ok {
			executorID = def.Executor
		}

		actionName := entry.Action
		if actionName == action.NoopAction {
			actionName = color.New(color.Faint).Sprint(actionName)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Kind, actionName, executorID)
	}

	return w.Flush()
}
