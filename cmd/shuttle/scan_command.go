package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shuttle/internal/config"
	"shuttle/internal/logging"
	"shuttle/internal/queue"
	"shuttle/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Discover new source files and enqueue them",
		Long: `Scan walks the media directory (or the given directory), classifies each
untracked source file with ffprobe, and enqueues a transcode job for it.
Files already tracked by the queue and generated outputs are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				dir := cfg.Paths.MediaDir
				if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
					expanded, err := config.ExpandPath(args[0])
					if err != nil {
						return err
					}
					dir = expanded
				}

				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}

				s := scanner.New(cfg, store, nil, logger)
				result, err := s.Scan(cmd.Context(), dir)
				if err != nil {
					return err
				}

				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned %d candidate files in %s\n", result.Scanned, dir)
				fmt.Fprintf(out, "  added      %d\n", result.Added)
				fmt.Fprintf(out, "  duplicates %d\n", result.Duplicates)
				fmt.Fprintf(out, "  skipped    %d\n", result.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the scan summary as JSON")
	return cmd
}
