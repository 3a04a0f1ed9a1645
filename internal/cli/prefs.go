package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/skylens/internal/prefs"
	"github.com/five82/skylens/internal/render"
)

func newPrefsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change output preferences.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("theme:  %s\n", e.prefs.Theme)
			cmd.Printf("format: %s\n", e.prefs.Format)
		},
	}
	cmd.AddCommand(newPrefsSetCommand(e))
	return cmd
}

func newPrefsSetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <theme|format> <value>",
		Short: "Persist one preference.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := e.prefs
			value := strings.TrimSpace(args[1])
			switch strings.ToLower(args[0]) {
			case "theme":
				theme := render.GetTheme(value)
				if !strings.EqualFold(theme.Name, value) {
					return fmt.Errorf("unknown theme %q (choose %s)", value, strings.Join(render.ThemeNames(), ", "))
				}
				p.Theme = theme.Name
			case "format":
				value = strings.ToLower(value)
				if !prefs.ValidFormat(value) {
					return fmt.Errorf("unknown output format %q", value)
				}
				p.Format = value
			default:
				return fmt.Errorf("unknown preference %q", args[0])
			}
			if err := prefs.Save(e.v.GetString("prefs"), p); err != nil {
				return err
			}
			e.prefs = p
			cmd.Printf("%s set to %s\n", strings.ToLower(args[0]), value)
			return nil
		},
	}
}
