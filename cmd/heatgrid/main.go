package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/heatgrid/heatgrid/internal/cli"
	heaterrors "github.com/heatgrid/heatgrid/pkg/errors"
)

// Exit codes distinguish configuration mistakes from data-quality
// problems, so batch drivers can react without parsing messages.
const (
	exitFailure       = 1
	exitConfiguration = 2
	exitDataQuality   = 3
	exitInterrupted   = 130 // standard shell convention for SIGINT
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(exitInterrupted)
		}
		fmt.Fprintln(os.Stderr, err)
		switch {
		case heaterrors.IsConfiguration(err):
			os.Exit(exitConfiguration)
		case heaterrors.IsDataQuality(err):
			os.Exit(exitDataQuality)
		}
		os.Exit(exitFailure)
	}
}

func run(ctx context.Context) error {
	var verbose bool

	c := cli.New(os.Stderr, cli.LogInfo)
	root := c.RootCommand()

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Raise the log level before any command runs once flags are parsed.
	originalPreRun := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := cli.LogInfo
		if verbose {
			level = cli.LogDebug
		}
		c.SetLogLevel(level)

		if originalPreRun != nil {
			return originalPreRun(cmd, args)
		}
		return nil
	}

	return root.ExecuteContext(ctx)
}
