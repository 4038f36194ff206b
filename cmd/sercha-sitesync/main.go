// Command sercha-sitesync keeps a local copy of a website in sync with the
// pages a remote crawl service discovers and fetches.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

var version = "dev"

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitInvalid    = 2
	exitInProgress = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitOK)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return exitInvalid
	case errors.Is(err, domain.ErrSyncInProgress), errors.Is(err, domain.ErrLockLost):
		return exitInProgress
	default:
		return exitError
	}
}
