package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/statekit"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of statekit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "statekit version %s\n", strings.TrimSpace(statekit.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
