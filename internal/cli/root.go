package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/five82/skylens/internal/app"
	"github.com/five82/skylens/internal/config"
	"github.com/five82/skylens/internal/logging"
	"github.com/five82/skylens/internal/prefs"
	"github.com/five82/skylens/internal/render"
)

// All linker flags will be set by the release build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// env holds the resolved settings shared by every subcommand of one root.
type env struct {
	v        *viper.Viper
	cfg      config.Config
	prefs    prefs.Prefs
	registry *prometheus.Registry
}

// NewRootCommand builds the skylens command tree.
func NewRootCommand() *cobra.Command {
	e := &env{v: viper.New(), registry: prometheus.NewRegistry()}

	root := &cobra.Command{
		Use:   "skylens",
		Short: "Query the NASA open data API through a caching client.",
		Long: `Skylens reads the astronomy picture of the day, near-earth objects and the
image library through a local API proxy, caching responses for five minutes.`,
		Version:            version,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE:  e.load,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to config.toml (default ~/.config/skylens/config.toml)")
	flags.String("prefs", "", "Path to prefs.toml (default ~/.config/skylens/prefs.toml)")
	flags.String("api-url", "", "Base URL of the API proxy")
	flags.String("api-key", "", "API key appended to every request")
	flags.String("log-level", "", "Log level: debug or info or warn or error")
	flags.StringP("format", "o", "", "Output format: table or json")
	flags.String("theme", "", "Color theme: "+strings.Join(render.ThemeNames(), " or "))

	for _, name := range []string{"config", "prefs", "api-url", "api-key", "log-level", "format", "theme"} {
		_ = e.v.BindPFlag(name, flags.Lookup(name))
	}
	e.v.SetEnvPrefix("SKYLENS")
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	root.AddCommand(
		newAPODCommand(e),
		newNEOCommand(e),
		newResourcesCommand(e),
		newBatchCommand(e),
		newServeCommand(e),
		newLogsCommand(e),
		newPrefsCommand(e),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// load resolves config and prefs, then applies env and flag overrides.
func (e *env) load(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(e.v.GetString("config"))
	if err != nil {
		return err
	}
	if e.v.IsSet("api-url") {
		cfg.APIURL = strings.TrimSpace(e.v.GetString("api-url"))
	}
	if e.v.IsSet("api-key") {
		cfg.APIKey = strings.TrimSpace(e.v.GetString("api-key"))
	}
	if e.v.IsSet("log-level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(e.v.GetString("log-level")))
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	p, err := prefs.Load(e.v.GetString("prefs"))
	if err != nil {
		return err
	}
	if e.v.IsSet("format") {
		format := strings.ToLower(strings.TrimSpace(e.v.GetString("format")))
		if !prefs.ValidFormat(format) {
			return fmt.Errorf("unknown output format %q", format)
		}
		p.Format = format
	}
	if e.v.IsSet("theme") {
		p.Theme = render.GetTheme(e.v.GetString("theme")).Name
	}

	e.cfg = cfg
	e.prefs = p
	return nil
}

// run opens the logger and the application, calls fn, and tears both down.
func (e *env) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, r *render.Renderer) error) error {
	level, err := logging.ParseLevel(e.cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Open(e.cfg.LogFile, level)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	a, err := app.New(e.cfg, logger, e.registry)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a, render.New(cmd.OutOrStdout(), e.prefs))
}
