// Package main implements the restruct CLI.
// It recovers structured control flow from CFG descriptions and Go functions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/l3aro/restruct/cmd/restruct/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`restruct version {{.Version}}
`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
