package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Initialize styled help after all commands are registered
	initHelp(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		outputError(os.Stderr, err)
		os.Exit(1)
	}
}
