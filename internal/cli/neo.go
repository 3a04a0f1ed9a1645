package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/five82/skylens/internal/app"
	"github.com/five82/skylens/internal/nasa"
	"github.com/five82/skylens/internal/render"
)

func newNEOCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neo",
		Short: "Query near-earth objects.",
	}
	cmd.AddCommand(newNEOFeedCommand(e), newNEOGetCommand(e), newNEOBrowseCommand(e))
	return cmd
}

func newNEOFeedCommand(e *env) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List close approaches between two dates.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				feed, err := a.Client.NEOFeed(ctx, start, end)
				if err != nil {
					return err
				}
				return r.NEOFeed(feed)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "Start date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&end, "end", "", "End date as YYYY-MM-DD (default start plus seven days)")
	return cmd
}

func newNEOGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one near-earth object.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				neo, err := a.Client.NEO(ctx, args[0])
				if err != nil {
					return err
				}
				return r.NEO(neo)
			})
		},
	}
}

func newNEOBrowseCommand(e *env) *cobra.Command {
	var page, size, pages int
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Page through the near-earth object catalogue.",
		Long: `Page through the near-earth object catalogue.

With --pages greater than one, each following page is prefetched in the
background while the current one prints.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				if pages < 1 {
					pages = 1
				}
				for p := page; p < page+pages; p++ {
					result, err := a.Client.BrowseNEO(ctx, p, size)
					if err != nil {
						return err
					}
					last := p+1 >= page+pages || p+1 >= result.Page.TotalPages
					if !last {
						a.Prefetch.Prefetch(nasa.BrowseEndpoint, nasa.BrowseParams(p+1, size))
					}
					if err := r.NEOPage(result); err != nil {
						return err
					}
					if last {
						break
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "First page to show (zero-based)")
	cmd.Flags().IntVar(&size, "size", 20, "Objects per page")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of consecutive pages to show")
	return cmd
}
