package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-pipeline/internal/app"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
)

func newInvoicesCmd() *cobra.Command {
	invoicesCmd := &cobra.Command{
		Use:   "invoices",
		Short: "Inspect stored invoices",
	}

	invoicesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sink, err := app.OpenSink(cmd.Context(), cfg.Store, cliLogger(cfg))
			if err != nil {
				return err
			}
			defer sink.Close()

			recs, err := sink.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(recs)
				return nil
			}
			for _, r := range recs {
				amount := ""
				if r.TotalAmount != nil {
					amount = r.TotalAmount.String()
				}
				fmt.Printf("%4d  %-30s %12s  %-10s %s\n",
					r.ID, entity.Deref(r.BillerName), amount, entity.Deref(r.DueDate), r.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	})

	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored invoices to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := cliLogger(cfg)
			sink, err := app.OpenSink(cmd.Context(), cfg.Store, logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			b, err := export.NewService(sink, logger).InvoicesXLSX(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			if jsonOutput {
				printJSON(map[string]any{"ok": true, "path": out, "bytes": len(b)})
			} else {
				fmt.Printf("Wrote %s (%d bytes)\n", out, len(b))
			}
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&out, "output", "o", "invoices.xlsx", "Output file")
	invoicesCmd.AddCommand(exportCmd)

	return invoicesCmd
}
