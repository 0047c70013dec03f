package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/baldanca/awsbulk/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], cli.Options{})
	stop()
	os.Exit(code)
}
