// Package main is the entry point for the strata CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thoreinstein/strata/cmd/strata/commands"
	"github.com/thoreinstein/strata/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()

	if exitErr := errors.Classify(err); exitErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", exitErr)
		if exitErr.Suggestion != "" {
			fmt.Fprintln(os.Stderr, "Suggestion:", exitErr.Suggestion)
		}
		os.Exit(exitErr.Code)
	}
}
