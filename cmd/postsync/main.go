package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"postsync/internal/cli"
	"postsync/internal/core/domain"
)

// Exit codes.
const (
	exitFailure = 1
	exitPending = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx, os.Args[1:])
	stop()

	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, domain.ErrJobTimedOut) {
		os.Exit(exitPending)
	}
	os.Exit(exitFailure)
}
