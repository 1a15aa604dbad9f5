// Command racereg imports race signups, prints start lists and rosters.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/racereg/internal/core"
)

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, core.MapError(err))
		slog.Debug("command failed", "error", err)
		if errors.Is(err, core.ErrStoreNotCreated) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
