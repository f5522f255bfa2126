package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/app"
	"NewsletterScanner/internal/domain"
)

var (
	runWindow  string
	runMax     int
	runSenders []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one extraction job and print its result as JSON",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().StringVar(&runWindow, "window", "", "look-back window such as 24h or 7d (config default when empty)")
	runCmd.Flags().IntVar(&runMax, "max", 0, "maximum newsletters to process (config default when zero)")
	runCmd.Flags().StringSliceVar(&runSenders, "sender", nil, "only process senders containing this value; repeatable")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	window, err := domain.ParseWindow(runWindow)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	snap, err := application.RunOnce(ctx, domain.JobParams{
		TimeWindow:     window,
		MaxNewsletters: runMax,
		SenderFilter:   runSenders,
	})
	if printErr := printJSON(cmd.OutOrStdout(), snap); printErr != nil {
		return printErr
	}
	return err
}
