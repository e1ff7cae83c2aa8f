// cmd/psibatch/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/psibatch/internal/cli"
)

func main() {
	// Setup signal handling for graceful shutdown. The current URL is marked
	// interrupted and reports are still written for everything finished.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.ExecuteContext(ctx)
	stop()
	os.Exit(code)
}
