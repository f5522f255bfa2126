package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"NewsletterScanner/internal/config"
	"NewsletterScanner/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "newsletterscanner",
	Short:         "Extract article links from email newsletters",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults to $NEWSLETTER_SCANNER_CONFIG)")
	rootCmd.AddCommand(serveCmd, runCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds a logger writing to logOut.
func loadConfig(logOut io.Writer) (config.Config, *slog.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
		if err != nil {
			return config.Config{}, nil, err
		}
	} else {
		cfg = config.Load()
	}
	return cfg, logging.NewTo(logOut, cfg.Logging.Level), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
