// Package cli defines the skylens command-line interface.
//
// Every command shares one resolution order for settings: built-in defaults,
// then config.toml and prefs.toml, then SKYLENS_* environment variables, then
// flags. For example SKYLENS_API_KEY overrides api_key from the config file
// and --api-key overrides both.
//
// Commands that talk to the API build a single app.App for the duration of
// the command and print through a render.Renderer, so --format json works
// everywhere.
package cli
