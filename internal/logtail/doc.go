// Package logtail provides utilities for reading and colorizing the skylens log file.
//
// # Overview
//
// This package implements tail-like reading of the log file written by the
// logging package and highlights slog text records for display by the
// `skylens logs` command. It is how background failures (prefetches, cache
// warming) become visible after the fact.
//
// # Core Functionality
//
//  1. Read: Extract the last N lines from a log file
//  2. ParseLine/Filter: Understand slog text records and filter by level
//  3. ColorizeLine/ColorizeLines: Apply ANSI colors for terminal display
//
// # Reading Log Files
//
// Read uses a ring buffer of size maxLines, so memory is O(maxLines) rather
// than O(file size), and lines come back in chronological order:
//
//	lines, err := logtail.Read(cfg.LogFile, 200)
//	if err != nil {
//		return err
//	}
//	for _, line := range logtail.ColorizeLines(logtail.Filter(lines, slog.LevelWarn)) {
//		fmt.Println(line)
//	}
//
// A missing log file is not an error; it simply has no lines. Lines longer
// than 1MB fail the read.
//
// # Record Format
//
// ParseLine understands the output of slog.TextHandler:
//
//	time=2025-10-08T21:01:05.123Z level=WARN msg="prefetch failed" endpoint=/apod error="..."
//
// Anything else (panics, wrapped output) is left untouched by Filter and
// ColorizeLine.
//
// # Colors
//
// Colors come from fatih/color and are disabled automatically when stdout is
// not a terminal or NO_COLOR is set.
package logtail
