package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-pipeline/internal/app"
)

func newOCRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <file>",
		Short: "Extract text from a local PDF or image without running the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, err := app.NewOCR(cfg.OCR, cliLogger(cfg)).Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(map[string]any{
					"text":        res.Text,
					"pages":       res.Pages,
					"source_type": res.SourceType,
					"method":      res.Method,
					"language":    res.Language,
					"duration_ms": res.Duration.Milliseconds(),
					"warnings":    res.Warnings,
				})
				return nil
			}
			fmt.Println(res.Text)
			fmt.Printf("\n-- %s, %d page(s), lang %s, %s\n", res.Method, res.Pages, res.Language, res.Duration.Round(time.Millisecond))
			for _, w := range res.Warnings {
				fmt.Printf("-- warning: %s\n", w)
			}
			return nil
		},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check OCR binaries, the store and extraction credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rep := app.Diagnose(cmd.Context(), cfg, cliLogger(cfg))
			if jsonOutput {
				printJSON(rep)
			} else {
				for _, c := range rep.Checks {
					fmt.Printf("[%-4s] %-24s %s\n", c.Status, c.Name, c.Detail)
				}
			}
			if !rep.OK {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
}
