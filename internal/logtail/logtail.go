package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Read returns at most maxLines from the end of the file at path.
// A non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := range count {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Line is one parsed slog text record.
type Line struct {
	Time  string
	Level slog.Level
	Msg   string
	Attrs string // remaining key=value pairs, verbatim
	Raw   string
	ok    bool
}

// Parsed reports whether the line looked like a slog text record.
func (l Line) Parsed() bool {
	return l.ok
}

// ParseLine splits a `time=... level=... msg=... k=v` record. Lines in any
// other shape come back with only Raw set.
func ParseLine(raw string) Line {
	line := Line{Raw: raw}
	rest := strings.TrimSpace(raw)

	t, rest, ok := cutField(rest, "time=")
	if !ok {
		return line
	}
	lvl, rest, ok := cutField(rest, "level=")
	if !ok {
		return line
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return line
	}
	msg, rest, ok := cutField(rest, "msg=")
	if !ok {
		return line
	}

	line.Time = t
	line.Level = level
	line.Msg = msg
	line.Attrs = rest
	line.ok = true
	return line
}

// cutField reads a key=value pair at the start of s. Quoted values may
// contain spaces and escaped quotes.
func cutField(s, prefix string) (value, rest string, ok bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", s, false
	}
	s = s[len(prefix):]
	if strings.HasPrefix(s, `"`) {
		for i := 1; i < len(s); i++ {
			switch s[i] {
			case '\\':
				i++
			case '"':
				return strings.ReplaceAll(s[1:i], `\"`, `"`), strings.TrimSpace(s[i+1:]), true
			}
		}
		return "", s, false
	}
	value, rest, _ = strings.Cut(s, " ")
	return value, strings.TrimSpace(rest), true
}

// Filter keeps records at or above minLevel. Unparsed lines are kept so that
// wrapped output and stray writes stay visible.
func Filter(lines []string, minLevel slog.Level) []string {
	out := make([]string, 0, len(lines))
	for _, raw := range lines {
		l := ParseLine(raw)
		if l.Parsed() && l.Level < minLevel {
			continue
		}
		out = append(out, raw)
	}
	return out
}

var (
	timeColor  = color.New(color.FgHiBlack)
	attrColor  = color.New(color.FgCyan)
	debugColor = color.New(color.FgBlue, color.Bold)
	infoColor  = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
)

func levelColor(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return errorColor
	case l >= slog.LevelWarn:
		return warnColor
	case l >= slog.LevelInfo:
		return infoColor
	default:
		return debugColor
	}
}

// ColorizeLine renders a record as `time LEVEL msg attrs` with ANSI colors.
// Unparsed lines are returned unchanged.
func ColorizeLine(raw string) string {
	l := ParseLine(raw)
	if !l.Parsed() {
		return raw
	}
	parts := []string{
		timeColor.Sprint(l.Time),
		levelColor(l.Level).Sprintf("%-5s", l.Level.String()),
		l.Msg,
	}
	if l.Attrs != "" {
		parts = append(parts, attrColor.Sprint(l.Attrs))
	}
	return strings.Join(parts, " ")
}

// ColorizeLines applies ColorizeLine to each line.
func ColorizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = ColorizeLine(line)
	}
	return out
}
