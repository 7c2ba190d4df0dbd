package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"envforge.ai/internal/persistence/levelfile"
	plog "envforge.ai/internal/persistence/log"
	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/envs"
)

type replayLine struct {
	Step    int            `json:"step"`
	Action  engine.Action  `json:"action"`
	Outcome engine.Outcome `json:"outcome"`
	Reward  float64        `json:"reward"`
	Events  []string       `json:"events"`
	Done    bool           `json:"done"`
	Reason  engine.Reason  `json:"reason,omitempty"`
	Digest  string         `json:"digest"`
}

func (a *app) replayCmd() *cobra.Command {
	var (
		env     string
		worldID string
		dir     string
		actions string
		logDir  string
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a JSONL action file against a saved world",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.loadTuning()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = t.Runtime.DataDir
			}
			f, err := os.Open(actions)
			if err != nil {
				return err
			}
			defer f.Close()
			traj, err := engine.ReadTrajectory(f)
			if err != nil {
				return fmt.Errorf("read actions: %w", err)
			}

			e, err := envs.New(env, t)
			if err != nil {
				return err
			}
			ecfg := engine.Config{Tuning: t, Loader: levelfile.Dir{Root: dir}, Logger: a.logger}
			if logDir != "" {
				tl := plog.NewTrajectoryLogger(logDir)
				defer tl.Close()
				ecfg.Sink = tl
			}
			eng, err := engine.New(e, ecfg)
			if err != nil {
				return err
			}
			results, err := eng.Replay(cmd.Context(), engine.ModeLoad, engine.Ref{WorldID: worldID}, traj)
			enc := json.NewEncoder(cmd.OutOrStdout())
			total := 0.0
			for i, r := range results {
				total += r.Reward
				if encErr := enc.Encode(replayLine{
					Step: i + 1, Action: traj[i], Outcome: r.Info.LastActionResult, Reward: r.Reward,
					Events: r.Info.Events, Done: r.Done, Reason: r.Info.Reason, Digest: r.State.Digest(),
				}); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return err
			}
			a.logger.Printf("replayed %d of %d actions, total reward %.4f", len(results), len(traj), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment name")
	cmd.Flags().StringVar(&worldID, "world", "", "world id")
	cmd.Flags().StringVar(&dir, "dir", "", "level directory (default runtime.data_dir)")
	cmd.Flags().StringVar(&actions, "actions", "", "JSONL file of {\"action\":...,\"params\":{...}}")
	cmd.Flags().StringVar(&logDir, "logs", "", "write a trajectory log under this directory (optional)")
	_ = cmd.MarkFlagRequired("env")
	_ = cmd.MarkFlagRequired("world")
	_ = cmd.MarkFlagRequired("actions")
	return cmd
}
