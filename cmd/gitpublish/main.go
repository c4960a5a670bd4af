// Command gitpublish commits a directory onto a branch of a git repository
// without touching the working tree, and optionally pushes it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pubErrors "github.com/input-output-hk/catalyst-forge-libs/gitpublish/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gitpublish:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error onto the process exit status.
func exitCode(err error) int {
	switch pubErrors.CodeOf(err) {
	case pubErrors.CodeInvalidInput, pubErrors.CodeInvalidConfig:
		return 2
	case pubErrors.CodeConflict, pubErrors.CodePublishFailed:
		return 3
	case pubErrors.CodeUnauthorized:
		return 4
	default:
		return 1
	}
}
