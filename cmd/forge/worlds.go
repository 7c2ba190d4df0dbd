package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"envforge.ai/internal/persistence/indexdb"
)

func (a *app) worldsCmd() *cobra.Command {
	var (
		dbPath    string
		env       string
		validOnly bool
		issues    bool
	)
	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "List worlds recorded in the SQLite index",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := indexdb.OpenSQLite(dbPath)
			if err != nil {
				return err
			}
			defer idx.Close()
			enc := json.NewEncoder(cmd.OutOrStdout())
			if issues {
				counts, err := idx.IssueCounts(cmd.Context())
				if err != nil {
					return err
				}
				return enc.Encode(counts)
			}
			rows, err := idx.Worlds(cmd.Context(), env, validOnly)
			if err != nil {
				return err
			}
			for _, r := range rows {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "data/index.db", "SQLite index path")
	cmd.Flags().StringVar(&env, "env", "", "only this environment")
	cmd.Flags().BoolVar(&validOnly, "valid", false, "only accepted worlds")
	cmd.Flags().BoolVar(&issues, "issues", false, "print issue counts by category instead")
	return cmd
}
