package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/curriculum-orchestrator/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init app: %v\n", err)
		os.Exit(1)
	}

	a.Log.Info("Starting curriculum orchestrator", "addr", cfg.HTTP.Addr)
	runErr := a.Run(ctx)
	if runErr != nil {
		a.Log.Error("Server stopped with error", "error", runErr)
	} else {
		a.Log.Info("Server stopped")
	}
	a.Close()
	if runErr != nil {
		os.Exit(1)
	}
}
