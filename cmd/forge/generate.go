package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"envforge.ai/internal/forge"
	"envforge.ai/internal/persistence/indexdb"
	"envforge.ai/internal/persistence/levelfile"
	plog "envforge.ai/internal/persistence/log"
)

func (a *app) generateCmd() *cobra.Command {
	var (
		env     string
		seed    int64
		count   int
		workers int
		outDir  string
		format  string
		dbPath  string
		logDir  string
		verify  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate worlds, keep the ones that validate, and save them",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.loadTuning()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = t.Runtime.DataDir
			}
			if workers <= 0 {
				workers = t.Runtime.Workers
			}
			cfg := forge.Config{
				Tuning:      t,
				Store:       levelfile.Dir{Root: outDir, Ext: format},
				Logger:      a.logger,
				VerifySolve: verify,
			}
			if dbPath != "" {
				idx, err := indexdb.OpenSQLite(dbPath)
				if err != nil {
					return fmt.Errorf("open index: %w", err)
				}
				defer idx.Close()
				if _, err := idx.UpsertTuning(t); err != nil {
					return fmt.Errorf("index tuning: %w", err)
				}
				cfg.Index = idx
			}
			if logDir != "" {
				rl := plog.NewReportLogger(logDir)
				defer rl.Close()
				cfg.Reports = rl
			}

			res, err := forge.New(cfg).GenerateBatch(cmd.Context(), env, forge.Seeds(seed, count), workers)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, s := range res.Seeds() {
				if err := enc.Encode(res.Accepted[s]); err != nil {
					return err
				}
			}
			for s, ferr := range res.Failed {
				a.logger.Printf("seed %d: %v", s, ferr)
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%w: %d of %d seeds produced no valid world", errFailed, len(res.Failed), count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment name")
	cmd.Flags().Int64Var(&seed, "seed", 1, "first seed")
	cmd.Flags().IntVar(&count, "count", 1, "number of consecutive seeds")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel generators (default runtime.workers)")
	cmd.Flags().StringVar(&outDir, "out", "", "level directory (default runtime.data_dir; env "+envData+")")
	cmd.Flags().StringVar(&format, "format", levelfile.ExtZst, "level file extension: .json.zst, .json, .yaml")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite index path (optional)")
	cmd.Flags().StringVar(&logDir, "logs", "", "directory for validation report logs (optional)")
	cmd.Flags().BoolVar(&verify, "verify", true, "replay the reference solution before accepting")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}
