package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-tables/pkg/extractor"
)

// newExtractCmd creates the extract subcommand.
func newExtractCmd() *cobra.Command {
	var (
		outputDir string
		policy    string
	)

	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Extract the tables of a PDF into CSV files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = cfg.Storage.OutputDir
			}
			if policy == "" {
				policy = cfg.Extraction.EmptyPagePolicy
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ui := NewUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputJSON, noColor)
			return runExtract(ctx, ui, args[0], extractor.Config{
				OutputDir:        outputDir,
				EmptyPagePolicy:  policy,
				StrictValidation: cfg.Extraction.StrictValidation,
				IDStrategy:       cfg.Extraction.IDStrategy,
				Logger:           logger,
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: storage.output_dir)")
	cmd.Flags().StringVar(&policy, "empty-pages", "", "empty page policy: skip or abort")

	return cmd
}

func runExtract(ctx context.Context, ui *UI, pdfPath string, clientCfg extractor.Config) error {
	client, err := extractor.NewClient(clientCfg)
	if err != nil {
		return err
	}

	ui.Step("Processing PDF: %s", pdfPath)
	start := time.Now()

	events := make(chan extractor.StreamEvent, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			switch event.Type {
			case extractor.EventPageProcessing:
				ui.Info("Processing page %d", event.PageNumber)
			case extractor.EventTableWritten:
				ui.Success("Wrote %v", event.Payload)
			case extractor.EventError:
				ui.Error("%v", event.Payload)
			}
		}
	}()

	res, err := client.Extract(ctx, pdfPath, events)
	close(events)
	<-done
	if err != nil {
		return err
	}

	if outputJSON {
		ui.JSON(res)
	} else {
		reportResult(ui, res)
		ui.Info("Completed in %s", time.Since(start).Round(time.Millisecond))
	}

	if res.Status == "failure" {
		return fmt.Errorf("extraction failed with code %d", res.Code)
	}
	return nil
}

func reportResult(ui *UI, res *extractor.Result) {
	switch res.Status {
	case "success":
		ui.Success("Job %s: %d table(s) extracted", res.JobID, len(res.Artifacts))
	case "no_tables":
		ui.Warning("Job %s: %s", res.JobID, res.Message)
	case "pending":
		ui.Info("Job %s: %s", res.JobID, res.Message)
	default:
		ui.Error("Job %s failed (%d): %s", res.JobID, res.Code, res.Message)
	}
	for _, path := range res.Artifacts {
		ui.Step("%s", filepath.ToSlash(path))
	}
}
