package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/five82/skylens/internal/app"
	"github.com/five82/skylens/internal/nasa"
	"github.com/five82/skylens/internal/render"
)

func newResourcesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resources",
		Aliases: []string{"res"},
		Short:   "Browse the image and video library.",
	}
	cmd.AddCommand(
		newResourcesFeaturedCommand(e),
		newResourcesSearchCommand(e),
		newResourcesGetCommand(e),
		newResourcesAssetCommand(e),
	)
	return cmd
}

func newResourcesFeaturedCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "featured",
		Short: "List the featured collection.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				c, err := a.Client.FeaturedResources(ctx)
				if err != nil {
					return err
				}
				return r.Collection(c)
			})
		},
	}
}

func newResourcesSearchCommand(e *env) *cobra.Command {
	var q nasa.SearchQuery
	cmd := &cobra.Command{
		Use:   "search <terms>",
		Short: "Search the library.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Q = args[0]
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				c, err := a.Client.SearchResources(ctx, q)
				if err != nil {
					return err
				}
				return r.Collection(c)
			})
		},
	}
	cmd.Flags().StringVar(&q.MediaType, "media-type", "", "Restrict to image or video or audio")
	cmd.Flags().IntVar(&q.Limit, "limit", 20, "Maximum number of results")
	return cmd
}

func newResourcesGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <nasa-id>",
		Short: "Show metadata for one library item.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				c, err := a.Client.Resource(ctx, args[0])
				if err != nil {
					return err
				}
				return r.Collection(c)
			})
		},
	}
}

func newResourcesAssetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "asset <nasa-id>",
		Short: "List the files behind one library item.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				m, err := a.Client.Asset(ctx, args[0])
				if err != nil {
					return err
				}
				return r.Asset(m)
			})
		},
	}
}
