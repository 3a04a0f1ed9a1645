package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/skylens/internal/logging"
	"github.com/five82/skylens/internal/logtail"
)

func newLogsCommand(e *env) *cobra.Command {
	var (
		lines int
		level string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log records.",
		Long: `Print the tail of the skylens log file.

Prefetch and cache warming failures are only logged, never returned, so this
is where they can be reviewed after the fact.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			minLevel, err := logging.ParseLevel(level)
			if err != nil {
				return err
			}
			records, err := logtail.Read(e.cfg.LogFile, lines)
			if err != nil {
				return fmt.Errorf("read log: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, line := range logtail.ColorizeLines(logtail.Filter(records, minLevel)) {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to read (0 for all)")
	cmd.Flags().StringVar(&level, "level", "debug", "Minimum level to show")
	return cmd
}
