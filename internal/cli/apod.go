package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/five82/skylens/internal/app"
	"github.com/five82/skylens/internal/render"
)

func newAPODCommand(e *env) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "apod",
		Short: "Show the astronomy picture of the day.",
		Long: `Fetch the astronomy picture of the day.

Without --date the proxy returns today's picture. Responses are cached for
five minutes, so repeated calls inside one process are free.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.run(cmd, func(ctx context.Context, a *app.App, r *render.Renderer) error {
				apod, err := a.Client.APOD(ctx, day)
				if err != nil {
					return err
				}
				return r.APOD(apod)
			})
		},
	}
	cmd.Flags().StringVar(&day, "date", "", "Picture date as YYYY-MM-DD (default today)")
	return cmd
}
