package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/five82/skylens/internal/app"
	"github.com/five82/skylens/internal/prefs"
	"github.com/five82/skylens/internal/render"
)

const defaultMetricsAddr = "127.0.0.1:9464"

func newServeCommand(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep common responses warm and expose metrics.",
		Long: `Run in the foreground, re-fetching the picture of the day, the featured
collection and the first catalogue page before their cache entries expire.

Prometheus metrics are served on /metrics and the cache contents on /cache.
POST /cache/sweep drops expired cache entries.
Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = e.cfg.MetricsAddr
			}
			if addr == "" {
				addr = defaultMetricsAddr
			}
			e.registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			return e.run(cmd, func(ctx context.Context, a *app.App, _ *render.Renderer) error {
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("listen on %s: %w", addr, err)
				}
				a.Logger.Info("serving metrics", "addr", ln.Addr().String())
				cmd.Printf("Serving metrics on http://%s/metrics\n", ln.Addr())

				a.StartWarmer(ctx, app.DefaultTargets(), a.Config.WarmInterval)
				return serve(ctx, ln, newServeMux(e, a))
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default metrics_addr or "+defaultMetricsAddr+")")
	return cmd
}

func newServeMux(e *env, a *app.App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /cache", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		r := render.New(w, prefs.Prefs{Theme: e.prefs.Theme, Format: prefs.FormatJSON})
		if err := r.CacheStats(a.Client.CacheStats()); err != nil {
			a.Logger.Warn("render cache stats", "error", err)
		}
	})
	mux.HandleFunc("POST /cache/sweep", func(w http.ResponseWriter, _ *http.Request) {
		removed := a.Client.SweepCache()
		a.Logger.Info("cache swept", "removed", removed)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(struct {
			Removed   int `json:"removed"`
			Remaining int `json:"remaining"`
		}{removed, a.Client.CacheStats().Count}); err != nil {
			a.Logger.Warn("write sweep result", "error", err)
		}
	})
	return mux
}

// serve runs an HTTP server on ln until ctx is done, then shuts it down.
func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
