package main

import (
	"os"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/app"
)

var checkCmd = &cobra.Command{
	Use:   "check URL...",
	Short: "Classify and validate URLs offline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), app.Check(cfg, args))
	},
}
