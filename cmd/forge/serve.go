package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"envforge.ai/internal/persistence/indexdb"
	"envforge.ai/internal/persistence/levelfile"
	plog "envforge.ai/internal/persistence/log"
	"envforge.ai/internal/transport/ws"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr   string
		dir    string
		dbPath string
		logDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reset/step to agents over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.loadTuning()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = t.Runtime.Addr
			}
			if dir == "" {
				dir = t.Runtime.DataDir
			}

			wcfg := ws.Config{Tuning: t, Loader: levelfile.Dir{Root: dir}, Logger: a.logger}
			var sinks plog.MultiSink
			if dbPath != "" {
				idx, err := indexdb.OpenSQLite(dbPath)
				if err != nil {
					return err
				}
				defer idx.Close()
				if wcfg.TuningDigest, err = idx.UpsertTuning(t); err != nil {
					return err
				}
				sinks = append(sinks, idx)
			}
			if logDir != "" {
				tl := plog.NewTrajectoryLogger(logDir)
				defer tl.Close()
				sinks = append(sinks, tl)
			}
			if len(sinks) > 0 {
				wcfg.Sink = sinks
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(http.StatusOK)
				_, _ = rw.Write([]byte("ok\n"))
			})
			mux.HandleFunc("/v1/ws", ws.NewServer(wcfg).Handler())

			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel2()
				_ = srv.Shutdown(ctx2)
			}()

			a.logger.Printf("listening on %s (levels %s)", addr, dir)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default runtime.addr; env "+envAddr+")")
	cmd.Flags().StringVar(&dir, "dir", "", "level directory for load resets (default runtime.data_dir)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite index for step records (optional)")
	cmd.Flags().StringVar(&logDir, "logs", "", "trajectory log directory (optional)")
	return cmd
}
