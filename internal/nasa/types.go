package nasa

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// APOD mirrors the /apod payload.
type APOD struct {
	Date           string `json:"date"`
	Title          string `json:"title"`
	Explanation    string `json:"explanation"`
	URL            string `json:"url"`
	HDURL          string `json:"hdurl"`
	ThumbnailURL   string `json:"thumbnail_url"`
	MediaType      string `json:"media_type"`
	Copyright      string `json:"copyright"`
	ServiceVersion string `json:"service_version"`
}

// ParsedDate returns the picture date, or the zero time when malformed.
func (a APOD) ParsedDate() time.Time {
	return parseDate(a.Date)
}

// IsVideo reports whether the entry is a video rather than an image.
func (a APOD) IsVideo() bool {
	return strings.EqualFold(a.MediaType, "video")
}

// Links holds pagination links returned by the NEO endpoints.
type Links struct {
	Next string `json:"next"`
	Prev string `json:"prev"`
	Self string `json:"self"`
}

// NEOFeed mirrors /neo/feed: objects grouped by close-approach date.
type NEOFeed struct {
	Links            Links                        `json:"links"`
	ElementCount     int                          `json:"element_count"`
	NearEarthObjects map[string][]NearEarthObject `json:"near_earth_objects"`
}

// Dates returns the feed's dates in ascending order.
func (f NEOFeed) Dates() []string {
	dates := make([]string, 0, len(f.NearEarthObjects))
	for d := range f.NearEarthObjects {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}

// Hazardous returns every potentially hazardous object in the feed.
func (f NEOFeed) Hazardous() []NearEarthObject {
	var out []NearEarthObject
	for _, d := range f.Dates() {
		for _, neo := range f.NearEarthObjects[d] {
			if neo.PotentiallyHazardous {
				out = append(out, neo)
			}
		}
	}
	return out
}

// NEOPage mirrors /neo/browse.
type NEOPage struct {
	Links            Links             `json:"links"`
	Page             PageInfo          `json:"page"`
	NearEarthObjects []NearEarthObject `json:"near_earth_objects"`
}

// PageInfo describes a browse page.
type PageInfo struct {
	Size          int `json:"size"`
	TotalElements int `json:"total_elements"`
	TotalPages    int `json:"total_pages"`
	Number        int `json:"number"`
}

// NearEarthObject mirrors a single NEO record.
type NearEarthObject struct {
	ID                   string            `json:"id"`
	ReferenceID          string            `json:"neo_reference_id"`
	Name                 string            `json:"name"`
	JPLURL               string            `json:"nasa_jpl_url"`
	AbsoluteMagnitude    float64           `json:"absolute_magnitude_h"`
	EstimatedDiameter    EstimatedDiameter `json:"estimated_diameter"`
	PotentiallyHazardous bool              `json:"is_potentially_hazardous_asteroid"`
	SentryObject         bool              `json:"is_sentry_object"`
	CloseApproaches      []CloseApproach   `json:"close_approach_data"`
	OrbitalData          map[string]any    `json:"orbital_data,omitempty"`
}

// EstimatedDiameter holds diameter ranges per unit.
type EstimatedDiameter struct {
	Kilometers DiameterRange `json:"kilometers"`
	Meters     DiameterRange `json:"meters"`
}

// DiameterRange is a min/max estimate.
type DiameterRange struct {
	Min float64 `json:"estimated_diameter_min"`
	Max float64 `json:"estimated_diameter_max"`
}

// CloseApproach is one approach event. The upstream encodes numbers as strings.
type CloseApproach struct {
	Date             string           `json:"close_approach_date"`
	EpochMillis      int64            `json:"epoch_date_close_approach"`
	RelativeVelocity RelativeVelocity `json:"relative_velocity"`
	MissDistance     MissDistance     `json:"miss_distance"`
	OrbitingBody     string           `json:"orbiting_body"`
}

// RelativeVelocity of an approach.
type RelativeVelocity struct {
	KilometersPerSecond string `json:"kilometers_per_second"`
	KilometersPerHour   string `json:"kilometers_per_hour"`
}

// MissDistance of an approach.
type MissDistance struct {
	Astronomical string `json:"astronomical"`
	Lunar        string `json:"lunar"`
	Kilometers   string `json:"kilometers"`
}

// KilometersValue parses the kilometer miss distance; zero when malformed.
func (m MissDistance) KilometersValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(m.Kilometers), 64)
	if err != nil {
		return 0
	}
	return v
}

// NextApproach returns the earliest approach on or after now.
func (n NearEarthObject) NextApproach(now time.Time) (CloseApproach, bool) {
	today := now.Truncate(24 * time.Hour)
	var best CloseApproach
	found := false
	for _, ca := range n.CloseApproaches {
		d := parseDate(ca.Date)
		if d.IsZero() || d.Before(today) {
			continue
		}
		if !found || d.Before(parseDate(best.Date)) {
			best, found = ca, true
		}
	}
	return best, found
}

// Collection mirrors the media-library envelope used by the resources endpoints.
type Collection struct {
	Collection struct {
		Version  string             `json:"version"`
		Href     string             `json:"href"`
		Items    []ResourceItem     `json:"items"`
		Metadata CollectionMetadata `json:"metadata"`
		Links    []ResourceLink     `json:"links"`
	} `json:"collection"`
}

// Items is a shortcut to the collection's items.
func (c Collection) Items() []ResourceItem {
	return c.Collection.Items
}

// CollectionMetadata carries search totals.
type CollectionMetadata struct {
	TotalHits int `json:"total_hits"`
}

// ResourceItem is one media entry.
type ResourceItem struct {
	Href  string         `json:"href"`
	Data  []ResourceData `json:"data"`
	Links []ResourceLink `json:"links"`
}

// Primary returns the first data block, which carries the item's metadata.
func (r ResourceItem) Primary() ResourceData {
	if len(r.Data) == 0 {
		return ResourceData{}
	}
	return r.Data[0]
}

// ResourceData describes a media entry.
type ResourceData struct {
	NASAID      string   `json:"nasa_id"`
	Title       string   `json:"title"`
	MediaType   string   `json:"media_type"`
	DateCreated string   `json:"date_created"`
	Description string   `json:"description"`
	Center      string   `json:"center"`
	Keywords    []string `json:"keywords"`
}

// ParsedDateCreated returns DateCreated as time.Time when possible.
func (d ResourceData) ParsedDateCreated() time.Time {
	if t, err := time.Parse(time.RFC3339, d.DateCreated); err == nil {
		return t
	}
	return parseDate(d.DateCreated)
}

// ResourceLink is a rendition or pagination link.
type ResourceLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Render string `json:"render"`
	Prompt string `json:"prompt"`
}

// AssetManifest mirrors /resources/asset/{id}: every file for one media entry.
type AssetManifest struct {
	Collection struct {
		Version string `json:"version"`
		Href    string `json:"href"`
		Items   []struct {
			Href string `json:"href"`
		} `json:"items"`
	} `json:"collection"`
}

// Hrefs lists every asset URL in the manifest.
func (m AssetManifest) Hrefs() []string {
	out := make([]string, 0, len(m.Collection.Items))
	for _, item := range m.Collection.Items {
		out = append(out, item.Href)
	}
	return out
}

func parseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
