package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/hostcat/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	code := cli.GetExitCode(err)
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// Flag and argument errors from cobra; commands report their own.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = cli.ExitCommandError
	}
	os.Exit(code)
}
