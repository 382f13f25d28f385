package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"taskweave/internal/cli"
)

func main() {
	// Interrupts cancel the run; tasks not yet started stay PENDING.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
