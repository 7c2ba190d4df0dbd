package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"envforge.ai/internal/sim/envs"
	"envforge.ai/internal/sim/validate"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate one level file and print its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.loadTuning()
			if err != nil {
				return err
			}
			lookup, err := envs.Validators(t)
			if err != nil {
				return err
			}
			rep := validate.ValidateLevelFile(args[0], lookup)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if !rep.Valid {
				return fmt.Errorf("%w: %s is invalid", errFailed, args[0])
			}
			return nil
		},
	}
}

func (a *app) batchValidateCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch-validate <dir>",
		Short: "Validate every level file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.loadTuning()
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = t.Runtime.Workers
			}
			lookup, err := envs.Validators(t)
			if err != nil {
				return err
			}
			reports, err := validate.BatchValidate(cmd.Context(), args[0], lookup, workers)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(reports))
			invalid := 0
			for id, r := range reports {
				ids = append(ids, id)
				if !r.Valid {
					invalid++
				}
			}
			sort.Strings(ids)
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, id := range ids {
				if err := enc.Encode(struct {
					WorldID string `json:"world_id"`
					validate.Report
				}{id, reports[id]}); err != nil {
					return err
				}
			}
			a.logger.Printf("validated %d files, %d invalid", len(reports), invalid)
			if invalid > 0 {
				return fmt.Errorf("%w: %d invalid", errFailed, invalid)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel validators (default runtime.workers)")
	return cmd
}
