package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dl-alexandre/gdsync/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = cli.Execute(ctx)
}
