package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. engine and database are resolved lazily
// by the subcommands that need them.
func NewRootCmd(version string, engine EngineFunc, database DBFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "linkctl",
		Short:         "Operate the semantic internal linking engine",
		Long:          `Run reconciliations, inspect the link map and publish links into article HTML.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	rootCmd.AddCommand(
		NewMigrateCmd(database),
		NewReconcileCmd(engine),
		NewNeighborsCmd(engine),
		NewLinksCmd(engine),
		NewApplyCmd(engine),
		NewRenderCmd(engine),
		NewPurgeCmd(engine),
	)
	return rootCmd
}

func wantJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
