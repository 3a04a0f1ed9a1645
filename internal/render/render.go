package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/five82/skylens/internal/batch"
	"github.com/five82/skylens/internal/cache"
	"github.com/five82/skylens/internal/nasa"
	"github.com/five82/skylens/internal/prefs"
)

const maxTitleWidth = 48

var (
	hazardColor = color.New(color.FgRed, color.Bold)
	sentryColor = color.New(color.FgMagenta, color.Bold)
	safeColor   = color.New(color.FgHiBlack)
)

// Renderer writes command results as themed tables or indented JSON.
type Renderer struct {
	out    io.Writer
	format string
	styles Styles
	now    func() time.Time
}

// New returns a Renderer writing to w with the given preferences.
func New(w io.Writer, p prefs.Prefs) *Renderer {
	format := strings.ToLower(strings.TrimSpace(p.Format))
	if !prefs.ValidFormat(format) {
		format = prefs.FormatTable
	}
	return &Renderer{
		out:    w,
		format: format,
		styles: GetTheme(p.Theme).Styles(),
		now:    time.Now,
	}
}

// JSON reports whether output is JSON.
func (r *Renderer) JSON() bool {
	return r.format == prefs.FormatJSON
}

// APOD prints a picture of the day as a short card.
func (r *Renderer) APOD(a *nasa.APOD) error {
	if r.JSON() {
		return r.writeJSON(a)
	}
	kind := "image"
	if a.IsVideo() {
		kind = "video"
	}
	lines := []string{
		r.styles.Title.Render(a.Title),
		r.styles.MutedText.Render(fmt.Sprintf("%s · %s", a.Date, kind)),
		"",
		r.styles.Body.Render(a.Explanation),
		"",
		r.styles.InfoText.Render(firstNonEmpty(a.HDURL, a.URL)),
	}
	if c := strings.TrimSpace(a.Copyright); c != "" {
		lines = append(lines, r.styles.MutedText.Render("© "+c))
	}
	_, err := fmt.Fprintln(r.out, strings.Join(lines, "\n"))
	return err
}

// NEOFeed prints every object in a feed grouped by date.
func (r *Renderer) NEOFeed(f *nasa.NEOFeed) error {
	if r.JSON() {
		return r.writeJSON(f)
	}
	var rows [][]string
	for _, date := range f.Dates() {
		for _, neo := range f.NearEarthObjects[date] {
			rows = append(rows, neoRow(date, neo, r.now()))
		}
	}
	if err := r.table([]string{"Date", "ID", "Name", "Diameter (m)", "Miss (km)", "Hazard"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.out, "%d objects, %d potentially hazardous\n", f.ElementCount, len(f.Hazardous()))
	return err
}

// NEO prints one object and its approaches.
func (r *Renderer) NEO(n *nasa.NearEarthObject) error {
	if r.JSON() {
		return r.writeJSON(n)
	}
	if _, err := fmt.Fprintf(r.out, "%s %s\n", r.styles.Title.Render(n.Name), hazardLabel(*n)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(r.out, r.styles.MutedText.Render(n.JPLURL)); err != nil {
		return err
	}
	rows := make([][]string, 0, len(n.CloseApproaches))
	for _, ca := range n.CloseApproaches {
		rows = append(rows, []string{ca.Date, ca.OrbitingBody, formatKm(ca.MissDistance.KilometersValue()), ca.RelativeVelocity.KilometersPerSecond})
	}
	if err := r.table([]string{"Approach", "Body", "Miss (km)", "Velocity (km/s)"}, rows); err != nil {
		return err
	}
	if next, ok := n.NextApproach(r.now()); ok {
		_, err := fmt.Fprintf(r.out, "Next approach: %s\n", next.Date)
		return err
	}
	return nil
}

// NEOPage prints one browse page.
func (r *Renderer) NEOPage(p *nasa.NEOPage) error {
	if r.JSON() {
		return r.writeJSON(p)
	}
	rows := make([][]string, 0, len(p.NearEarthObjects))
	for _, neo := range p.NearEarthObjects {
		rows = append(rows, neoRow("", neo, r.now())[1:])
	}
	if err := r.table([]string{"ID", "Name", "Diameter (m)", "Next miss (km)", "Hazard"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.out, "Page %d of %d (%d objects)\n", p.Page.Number+1, p.Page.TotalPages, p.Page.TotalElements)
	return err
}

// Collection prints media library items.
func (r *Renderer) Collection(c *nasa.Collection) error {
	if r.JSON() {
		return r.writeJSON(c)
	}
	rows := make([][]string, 0, len(c.Items()))
	for _, item := range c.Items() {
		d := item.Primary()
		created := ""
		if t := d.ParsedDateCreated(); !t.IsZero() {
			created = t.Format("2006-01-02")
		}
		rows = append(rows, []string{d.NASAID, truncate(d.Title, maxTitleWidth), d.MediaType, created})
	}
	if err := r.table([]string{"NASA ID", "Title", "Media", "Created"}, rows); err != nil {
		return err
	}
	if hits := c.Collection.Metadata.TotalHits; hits > 0 {
		_, err := fmt.Fprintf(r.out, "Showing %d of %d results\n", len(rows), hits)
		return err
	}
	return nil
}

// Asset prints the file URLs of a media entry.
func (r *Renderer) Asset(m *nasa.AssetManifest) error {
	if r.JSON() {
		return r.writeJSON(m)
	}
	for _, href := range m.Hrefs() {
		if _, err := fmt.Fprintln(r.out, href); err != nil {
			return err
		}
	}
	return nil
}

type batchJSON struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

// Batch prints per-item outcomes, followed by a summary when stats is set.
func (r *Renderer) Batch(results []batch.Result, stats bool) error {
	summary := batch.Summarize(results)
	if r.JSON() {
		out := make([]batchJSON, len(results))
		for i, res := range results {
			out[i] = batchJSON{ID: res.ID, Success: res.Success}
			if res.Success {
				out[i].Data = rawOrString(res.Data)
			} else {
				msg := res.Err.Error()
				out[i].Error = &msg
			}
		}
		if !stats {
			return r.writeJSON(out)
		}
		return r.writeJSON(struct {
			Results []batchJSON   `json:"results"`
			Summary batch.Summary `json:"summary"`
		}{out, summary})
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		status := r.styles.SuccessText.Render("ok")
		detail := fmt.Sprintf("%d bytes", len(res.Data))
		if !res.Success {
			status = r.styles.DangerText.Render("failed")
			detail = res.Err.Error()
		}
		rows = append(rows, []string{res.ID, status, detail})
	}
	if err := r.table([]string{"ID", "Status", "Detail"}, rows); err != nil {
		return err
	}
	if stats {
		_, err := fmt.Fprintf(r.out, "%d items: %d succeeded, %d failed\n", summary.Total, summary.Succeeded, summary.Failed)
		return err
	}
	return nil
}

// CacheStats prints the response cache contents.
func (r *Renderer) CacheStats(s cache.Stats) error {
	if r.JSON() {
		type entry struct {
			Key        string  `json:"key"`
			AgeSeconds float64 `json:"age_seconds"`
			Valid      bool    `json:"valid"`
		}
		out := struct {
			Count   int     `json:"count"`
			Entries []entry `json:"entries"`
		}{Count: s.Count, Entries: make([]entry, 0, len(s.Entries))}
		for _, e := range s.Entries {
			out.Entries = append(out.Entries, entry{Key: e.Key, AgeSeconds: e.Age.Seconds(), Valid: e.Valid})
		}
		return r.writeJSON(out)
	}
	rows := make([][]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		state := r.styles.SuccessText.Render("valid")
		if !e.Valid {
			state = r.styles.WarningText.Render("expired")
		}
		rows = append(rows, []string{e.Key, e.Age.Truncate(time.Second).String(), state})
	}
	if err := r.table([]string{"Key", "Age", "State"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.out, "%d cached entries\n", s.Count)
	return err
}

func (r *Renderer) table(headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(r.out)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func (r *Renderer) writeJSON(v any) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func neoRow(date string, neo nasa.NearEarthObject, now time.Time) []string {
	d := neo.EstimatedDiameter.Meters
	miss := ""
	if next, ok := neo.NextApproach(now); ok {
		miss = formatKm(next.MissDistance.KilometersValue())
	} else if len(neo.CloseApproaches) > 0 {
		miss = formatKm(neo.CloseApproaches[0].MissDistance.KilometersValue())
	}
	return []string{
		date,
		neo.ID,
		truncate(neo.Name, maxTitleWidth),
		fmt.Sprintf("%.0f–%.0f", d.Min, d.Max),
		miss,
		hazardLabel(neo),
	}
}

func hazardLabel(neo nasa.NearEarthObject) string {
	switch {
	case neo.SentryObject:
		return sentryColor.Sprint("Sentry")
	case neo.PotentiallyHazardous:
		return hazardColor.Sprint("Hazardous")
	default:
		return safeColor.Sprint("-")
	}
}

func formatKm(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 0, 64)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func rawOrString(data []byte) json.RawMessage {
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
