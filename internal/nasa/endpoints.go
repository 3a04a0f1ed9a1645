package nasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/five82/skylens/internal/apierr"
)

const (
	defaultBrowseSize  = 20
	defaultSearchLimit = 20
)

// APOD fetches the astronomy picture of the day. An empty date means today.
func (c *Client) APOD(ctx context.Context, date string) (*APOD, error) {
	params := url.Values{}
	if d := strings.TrimSpace(date); d != "" {
		params.Set("date", d)
	}
	var payload APOD
	if err := c.getJSON(ctx, "/apod", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// APODForDate fetches the picture for a specific date.
func (c *Client) APODForDate(ctx context.Context, date string) (*APOD, error) {
	if strings.TrimSpace(date) == "" {
		return nil, apierr.FromRequest(errors.New("date is required"))
	}
	return c.APOD(ctx, date)
}

// NEOFeed lists near-earth objects approaching between start and end.
// Empty bounds are left to the upstream defaults.
func (c *Client) NEOFeed(ctx context.Context, start, end string) (*NEOFeed, error) {
	params := url.Values{}
	if s := strings.TrimSpace(start); s != "" {
		params.Set("start_date", s)
	}
	if e := strings.TrimSpace(end); e != "" {
		params.Set("end_date", e)
	}
	var payload NEOFeed
	if err := c.getJSON(ctx, "/neo/feed", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// NEO fetches one near-earth object by id.
func (c *Client) NEO(ctx context.Context, id string) (*NearEarthObject, error) {
	endpoint, err := idPath("/neo", id)
	if err != nil {
		return nil, err
	}
	var payload NearEarthObject
	if err := c.getJSON(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// BrowseNEO pages through the NEO catalogue. A non-positive size means 20.
func (c *Client) BrowseNEO(ctx context.Context, page, size int) (*NEOPage, error) {
	var payload NEOPage
	if err := c.getJSON(ctx, BrowseEndpoint, BrowseParams(page, size), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// BrowseEndpoint is the route BrowseNEO reads.
const BrowseEndpoint = "/neo/browse"

// BrowseParams returns the query BrowseNEO sends for page and size, so callers
// can prefetch a page under the same cache key.
func BrowseParams(page, size int) url.Values {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultBrowseSize
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))
	return params
}

// FeaturedResources fetches the curated media collection.
func (c *Client) FeaturedResources(ctx context.Context) (*Collection, error) {
	var payload Collection
	if err := c.getJSON(ctx, "/resources/featured", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchQuery configures /resources/search requests.
type SearchQuery struct {
	Q         string
	MediaType string
	Limit     int
}

func (q SearchQuery) values() (url.Values, error) {
	term := strings.TrimSpace(q.Q)
	if term == "" {
		return nil, apierr.FromRequest(errors.New("search query is required"))
	}
	values := url.Values{}
	values.Set("q", term)
	if mt := strings.TrimSpace(q.MediaType); mt != "" {
		values.Set("media_type", mt)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	values.Set("limit", strconv.Itoa(limit))
	return values, nil
}

// SearchResources searches the media library.
func (c *Client) SearchResources(ctx context.Context, query SearchQuery) (*Collection, error) {
	params, err := query.values()
	if err != nil {
		return nil, err
	}
	var payload Collection
	if err := c.getJSON(ctx, "/resources/search", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Resource fetches one media entry by its library id.
func (c *Client) Resource(ctx context.Context, id string) (*Collection, error) {
	endpoint, err := idPath("/resources", id)
	if err != nil {
		return nil, err
	}
	var payload Collection
	if err := c.getJSON(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Asset fetches the file manifest for a media entry.
func (c *Client) Asset(ctx context.Context, id string) (*AssetManifest, error) {
	endpoint, err := idPath("/resources/asset", id)
	if err != nil {
		return nil, err
	}
	var payload AssetManifest
	if err := c.getJSON(ctx, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// getJSON fetches endpoint, under the client's retry policy when one is set,
// and decodes the payload into dest.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dest any) error {
	var (
		data []byte
		err  error
	)
	if c.retry != nil {
		data, err = c.GetWithRetry(ctx, endpoint, params, *c.retry)
	} else {
		data, err = c.Get(ctx, endpoint, params)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func idPath(prefix, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apierr.FromRequest(errors.New("id is required"))
	}
	return prefix + "/" + url.PathEscape(id), nil
}
