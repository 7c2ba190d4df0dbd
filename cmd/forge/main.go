package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"envforge.ai/internal/sim/tuning"
)

const (
	envTuning = "ENVFORGE_TUNING"
	envData   = "ENVFORGE_DATA"
	envAddr   = "ENVFORGE_ADDR"
)

// errFailed signals a non-zero exit after the command already printed its result.
var errFailed = errors.New("failed")

type app struct {
	tuningPath string
	logger     *log.Logger
	out        io.Writer
}

func main() {
	for _, envFile := range []string{".env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	ctx, cancel := signalContext()
	defer cancel()

	root := newRootCmd(os.Stdout, log.New(os.Stderr, "[forge] ", log.LstdFlags|log.Lmicroseconds))
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer, logger *log.Logger) *cobra.Command {
	a := &app{logger: logger, out: out}
	root := &cobra.Command{
		Use:           "forge",
		Short:         "Generate, validate and simulate procedurally generated puzzle environments.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.tuningPath, "tuning", os.Getenv(envTuning), "tuning YAML (default: built-in defaults; env "+envTuning+")")

	root.AddCommand(
		a.generateCmd(),
		a.validateCmd(),
		a.batchValidateCmd(),
		a.replayCmd(),
		a.serveCmd(),
		a.worldsCmd(),
	)
	return root
}

// loadTuning resolves the effective tuning: defaults, then the YAML file,
// then ENVFORGE_DATA and ENVFORGE_ADDR.
func (a *app) loadTuning() (tuning.Tuning, error) {
	t := tuning.Defaults()
	if a.tuningPath != "" {
		var err error
		if t, err = tuning.Load(a.tuningPath); err != nil {
			return tuning.Tuning{}, err
		}
	}
	if v := os.Getenv(envData); v != "" {
		t.Runtime.DataDir = v
	}
	if v := os.Getenv(envAddr); v != "" {
		t.Runtime.Addr = v
	}
	return t, t.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
