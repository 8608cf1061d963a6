package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-tables/pkg/extractor"
)

// newStatusCmd creates the status subcommand.
func newStatusCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "status <uid>",
		Short: "Show the recorded status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = cfg.Storage.OutputDir
			}

			client, err := extractor.NewClient(extractor.Config{
				OutputDir:  outputDir,
				IDStrategy: cfg.Extraction.IDStrategy,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			res, err := client.Status(args[0])
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}

			ui := NewUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputJSON, noColor)
			if outputJSON {
				ui.JSON(res)
				return nil
			}
			reportResult(ui, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: storage.output_dir)")

	return cmd
}
