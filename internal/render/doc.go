// Package render formats command results for the terminal.
//
// Output is either a themed table or indented JSON, chosen by the user's
// prefs.Format. Colors come from one of the built-in Lipgloss themes
// (Nightfox, Kanagawa, Slate); NEO hazard labels use fixed ANSI colors so
// they read the same under every theme. Both are dropped automatically
// when stdout is not a terminal.
package render
