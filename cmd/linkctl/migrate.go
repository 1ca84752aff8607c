package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"semantic-linker/internal/infra/db"
)

func NewMigrateCmd(database DBFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Create the embeddings, failures and link map tables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				conn, err := database(cmd.Context())
				if err != nil {
					return err
				}
				if err := db.MigrateUp(cmd.Context(), conn); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Drop the tables owned by the engine",
			Long:  `Drop the embeddings, failures and link map tables. The articles table is kept.`,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				conn, err := database(cmd.Context())
				if err != nil {
					return err
				}
				if err := db.MigrateDown(cmd.Context(), conn); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			},
		},
	)
	return cmd
}
