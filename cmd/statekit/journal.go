package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/statekit/internal/cli"
	"github.com/aretw0/statekit/pkg/domain"
	"github.com/aretw0/statekit/pkg/ports"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the configured delta journal",
}

var journalLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List journal records",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetUint64("after")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		return withJournal(cmd, func(j ports.Journal) error {
			records, err := j.Records(cmd.Context(), after, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if records == nil {
					records = []domain.Record{}
				}
				return cli.WriteJSON(out, records)
			}
			cli.NewRenderer(out, cli.ColorEnabled(out)).Records(records)
			return nil
		})
	},
}

var journalSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the latest state snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withJournal(cmd, func(j ports.Journal) error {
			snap, err := j.LoadSnapshot(cmd.Context())
			if errors.Is(err, domain.ErrSnapshotNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "no snapshot")
				return nil
			}
			if err != nil {
				return err
			}
			return cli.WriteJSON(cmd.OutOrStdout(), snap)
		})
	},
}

func withJournal(cmd *cobra.Command, fn func(ports.Journal) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	j, closeJournal, err := cli.OpenJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer closeJournal()
	if j == nil {
		return errors.New("no journal backend configured")
	}
	return fn(j)
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalLsCmd, journalSnapshotCmd)

	journalLsCmd.Flags().Uint64("after", 0, "Only list records with a greater sequence number")
	journalLsCmd.Flags().Int("limit", 0, "Maximum number of records (0 lists all)")
	journalLsCmd.Flags().Bool("json", false, "Print records as JSON")
}
