// Command strike runs the match plugin against a console host and inspects
// its stored data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configDir string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "strike",
		Short:         "Team bomb-defusal matches for a block game server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml")

	root.AddCommand(
		newServeCmd(),
		newMapsCmd(),
		newHistoryCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
