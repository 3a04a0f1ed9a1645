package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/five82/skylens/internal/apierr"
	"github.com/five82/skylens/internal/app"
	"github.com/five82/skylens/internal/batch"
	"github.com/five82/skylens/internal/render"
)

func newBatchCommand(e *env) *cobra.Command {
	var (
		retries       int
		transientOnly bool
		stats         bool
	)
	cmd := &cobra.Command{
		Use:   "batch <file|->",
		Short: "Run many requests concurrently.",
		Long: `Run a list of GET requests concurrently and report each outcome.

The input is a JSON array of items:

  [
    {"id": "today", "endpoint": "/apod"},
    {"id": "feed", "endpoint": "/neo/feed", "params": {"start_date": ["2025-01-01"]}}
  ]

A failing item never affects the others. With --retries each item is retried
on its own; --transient-only stops retrying on authentication and other
permanent failures.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(cmd, args[0])
			if err != nil {
				return err
			}
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				d := a.Batch
				if cmd.Flags().Changed("retries") || transientOnly {
					policy := a.Config.RetryPolicy()
					if cmd.Flags().Changed("retries") {
						policy.MaxRetries = retries
					}
					if transientOnly {
						policy.RetryIf = apierr.Transient
					}
					d = batch.New(a.Client,
						batch.WithConcurrency(a.Config.BatchConcurrency),
						batch.WithRetry(policy),
						batch.WithMetrics(a.Metrics),
						batch.WithLogger(a.Logger),
					)
				}
				results, err := d.Dispatch(ctx, items)
				if err != nil {
					return err
				}
				return r.Batch(results, stats)
			})
		},
	}
	cmd.Flags().IntVar(&retries, "retries", 0, "Retries per item (default from max_retries when --transient-only is set)")
	cmd.Flags().BoolVar(&transientOnly, "transient-only", false, "Retry only rate limits, server and network errors")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print a success/failure summary")
	return cmd
}

func readItems(cmd *cobra.Command, path string) ([]batch.Item, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	var items []batch.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	return items, nil
}
