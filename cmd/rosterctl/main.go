package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/peninsula-health/rosterctl/internal/apperr"
)

// Exit codes for different failure modes
const (
	ExitSuccess   = 0 // Command completed
	ExitJobFailed = 1 // Job failed or was cancelled, an edit conflicted, or delivery was partial
	ExitError     = 2 // Usage, configuration or runtime error
)

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch apperr.KindOf(err) {
	case apperr.KindJobFailed, apperr.KindJobCancelled, apperr.KindConflict, apperr.KindPartialFailure:
		return ExitJobFailed
	}
	return ExitError
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}
