package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand(&ctl{connect: connect}).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
