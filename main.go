// sftpdeck - an SFTP client with cancellable, observable transfers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sftpdeck/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sftpdeck: %v\n", err)
		os.Exit(1)
	}
}
