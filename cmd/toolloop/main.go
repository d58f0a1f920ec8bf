package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HexSleeves/toolloop/internal/errors"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitTimeout = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newApp().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status. An exhausted
// iteration budget is distinguished from every other failure.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.IsTimeout(err):
		return exitTimeout
	default:
		return exitFailure
	}
}
