package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/app"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// buildApp loads config for pipeline commands. Paused runs must survive the
// process, so the in-memory run store is swapped for the file store.
func buildApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Runs.Backend == "memory" {
		cfg.Runs.Backend = "file"
	}
	return app.New(cmd.Context(), cfg, cliLogger(cfg))
}

func newProcessCmd() *cobra.Command {
	var approve bool
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Ingest and extract a document, pausing for review",
		Long: `Ingest a PDF or image (local path or gs://bucket/object), extract its
text and invoice fields, then pause for review. Use --approve to accept the
extracted fields as-is and finish the run in one go.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var run *entity.Run
			if approve {
				run, err = a.Pipeline.Process(cmd.Context(), args[0])
			} else {
				run, err = a.Pipeline.Start(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			printRun(run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve extracted fields without review")
	return cmd
}

func newResumeCmd() *cobra.Command {
	var edit struct {
		billerName, billerAddress, totalAmount, dueDate string
	}
	cmd := &cobra.Command{
		Use:   "resume <run-id>",
		Short: "Apply review edits to a paused run and finish it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var e entity.Edit
			flags := cmd.Flags()
			if flags.Changed("biller-name") {
				e.BillerName = &edit.billerName
			}
			if flags.Changed("biller-address") {
				e.BillerAddress = &edit.billerAddress
			}
			if flags.Changed("total-amount") {
				e.TotalAmount = &edit.totalAmount
			}
			if flags.Changed("due-date") {
				e.DueDate = &edit.dueDate
			}

			run, err := a.Pipeline.Resume(cmd.Context(), args[0], e)
			if err != nil {
				return err
			}
			printRun(run)
			return nil
		},
	}
	cmd.Flags().StringVar(&edit.billerName, "biller-name", "", "Corrected biller name")
	cmd.Flags().StringVar(&edit.billerAddress, "biller-address", "", "Corrected biller address")
	cmd.Flags().StringVar(&edit.totalAmount, "total-amount", "", "Corrected total amount")
	cmd.Flags().StringVar(&edit.dueDate, "due-date", "", "Corrected due date")
	return cmd
}

func newRunsCmd() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect pipeline runs",
	}

	runsCmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenRunStore(fileRuns(cfg.Runs), cliLogger(cfg))
			if err != nil {
				return err
			}
			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(run)
			return nil
		},
	})

	runsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved runs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenRunStore(fileRuns(cfg.Runs), cliLogger(cfg))
			if err != nil {
				return err
			}
			runs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(runs)
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %-22s %-16s %s\n", r.ID, r.State, r.OverallStatus, r.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	})
	return runsCmd
}

func fileRuns(cfg common.RunsConfig) common.RunsConfig {
	if cfg.Backend == "memory" {
		cfg.Backend = "file"
	}
	return cfg
}

func printRun(run *entity.Run) {
	if jsonOutput {
		printJSON(run)
		return
	}
	fmt.Printf("Run:     %s\n", run.ID)
	fmt.Printf("State:   %s\n", run.State)
	fmt.Printf("Status:  %s\n", run.OverallStatus)
	if run.Error != "" {
		fmt.Printf("Error:   %s\n", run.Error)
	}
	for _, name := range constants.StepOrder {
		st := run.Step(name)
		if st == nil {
			continue
		}
		line := fmt.Sprintf("  %-20s %-10s", name, st.Status)
		switch {
		case st.Error != "":
			line += " " + st.Error
		case st.Reason != "":
			line += " " + st.Reason
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
	if run.State == constants.StateAwaitingHumanReview {
		if st := run.Step(constants.StepExtraction); st != nil {
			fmt.Printf("\nExtracted fields:\n%s\n", st.Output)
		}
		fmt.Fprintf(os.Stderr, "\nReview, then: invoicectl resume %s [--biller-name ...]\n", run.ID)
	}
}
