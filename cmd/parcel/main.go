package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"parcel/internal/cli"
	"parcel/internal/cli/ui/styles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
		os.Exit(1)
	}
}
