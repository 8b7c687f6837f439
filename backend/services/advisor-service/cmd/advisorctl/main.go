package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smartcharge/backend/services/advisor-service/internal/advisory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(invokerFromConfig).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, advisory.Describe(err))
		os.Exit(1)
	}
}
