package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/statekit/internal/cli"
	"github.com/aretw0/statekit/internal/config"
	"github.com/aretw0/statekit/pkg/diff"
	"github.com/aretw0/statekit/pkg/domain"
)

var diffCmd = &cobra.Command{
	Use:   "diff <before> <after>",
	Short: "Show what changed between two YAML or JSON documents",
	Long: `Diffs two documents the way a store diffs its state after an action.
Without --scope the whole documents are compared; each --scope restricts the diff
to one dot path (for example --scope agents.planner.history).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scopes, _ := cmd.Flags().GetStringSlice("scope")
		asJSON, _ := cmd.Flags().GetBool("json")
		exitCode, _ := cmd.Flags().GetBool("exit-code")

		before, err := config.LoadDocument(args[0])
		if err != nil {
			return err
		}
		after, err := config.LoadDocument(args[1])
		if err != nil {
			return err
		}

		scope := domain.FullDiff
		if len(scopes) > 0 {
			scope = domain.ScopeOf(scopes...)
		}
		delta, err := diff.Diff(before, after, scope)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			if delta == nil {
				delta = domain.Delta{}
			}
			if err := cli.WriteJSON(out, delta); err != nil {
				return err
			}
		} else {
			cli.NewRenderer(out, cli.ColorEnabled(out)).Delta(delta)
		}

		if exitCode && !delta.IsEmpty() {
			return errDifferent
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringSlice("scope", nil, "Dot path to restrict the diff to (repeatable)")
	diffCmd.Flags().Bool("json", false, "Print the delta as JSON")
	diffCmd.Flags().Bool("exit-code", false, "Exit with status 1 when the documents differ")
}
