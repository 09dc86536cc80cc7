package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"IssueTriage/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("issuetriage stopped", "error", err)
		stop()
		os.Exit(1)
	}
}
