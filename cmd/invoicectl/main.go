package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

var (
	jsonOutput bool
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "invoicectl",
		Short: "Process invoice documents from the command line",
		Long: `invoicectl runs invoice documents through ingestion, OCR, field
extraction, review, validation and persistence, and inspects what was stored.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $INVOICE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline events to stderr")

	rootCmd.AddCommand(
		newProcessCmd(),
		newResumeCmd(),
		newRunsCmd(),
		newInvoicesCmd(),
		newOCRCmd(),
		newDoctorCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfigFrom(configPath)
	}
	return common.LoadConfig()
}

// cliLogger stays quiet unless --verbose so command output is not interleaved with events.
func cliLogger(cfg *common.Config) *slog.Logger {
	lc := cfg.Log
	if !verbose {
		lc.Level = "error"
	}
	return common.NewLogger(lc, os.Stderr)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode output: %v\n", err)
	}
}
