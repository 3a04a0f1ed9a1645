package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/five82/skylens/internal/metrics"
	"github.com/five82/skylens/internal/nasa"
	"github.com/five82/skylens/internal/retry"
)

var (
	// ErrEmptyID is returned when an item has an empty ID. IDs are compared
	// exactly as given.
	ErrEmptyID = errors.New("batch item id is empty")
	// ErrDuplicateID is returned when two items share an ID.
	ErrDuplicateID = errors.New("batch item id is duplicated")
)

// Item is one request in a batch. ID is chosen by the caller and echoed in
// the matching Result.
type Item struct {
	ID       string     `json:"id"`
	Endpoint string     `json:"endpoint"`
	Params   url.Values `json:"params,omitempty"`
}

// Result is the outcome of one Item. Exactly one of Data and Err is set.
type Result struct {
	ID      string
	Success bool
	Data    []byte
	Err     error
}

// Dispatcher runs batches through a nasa.Fetcher.
type Dispatcher struct {
	fetcher     nasa.Fetcher
	concurrency int
	policy      *retry.Policy
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency caps the number of items in flight. Zero or less means no cap.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

// WithRetry wraps every item in its own retry loop.
func WithRetry(p retry.Policy) Option {
	return func(d *Dispatcher) {
		d.policy = &p
	}
}

// WithMetrics counts item outcomes on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Dispatcher that fetches through f.
func New(f nasa.Fetcher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		fetcher: f,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch fetches every item concurrently and waits for all of them.
// Results are in input order, whatever order the items complete in.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item) ([]Result, error) {
	if d == nil || d.fetcher == nil {
		return nil, fmt.Errorf("dispatcher has no fetcher")
	}
	if err := validate(items); err != nil {
		return nil, err
	}

	results := make([]Result, len(items))
	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for i, item := range items {
		// Each goroutine writes only results[i]; item errors are never returned to the group.
		g.Go(func() error {
			results[i] = d.run(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	d.logger.Debug("batch complete", "items", summary.Total, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return results, nil
}

func (d *Dispatcher) run(ctx context.Context, item Item) Result {
	fetch := func(ctx context.Context) ([]byte, error) {
		return d.fetcher.Get(ctx, item.Endpoint, item.Params)
	}
	var (
		data []byte
		err  error
	)
	if d.policy != nil {
		policy := *d.policy
		hook := policy.OnRetry
		policy.OnRetry = func(next int, err error) {
			d.logger.Info("retrying batch item", "id", item.ID, "endpoint", item.Endpoint, "attempt", next, "error", err)
			if hook != nil {
				hook(next, err)
			}
		}
		data, err = retry.Do(ctx, policy, fetch)
	} else {
		data, err = fetch(ctx)
	}

	d.metrics.RecordBatchItem(err == nil)
	if err != nil {
		d.logger.Debug("batch item failed", "id", item.ID, "endpoint", item.Endpoint, "error", err)
		return Result{ID: item.ID, Err: err}
	}
	return Result{ID: item.ID, Success: true, Data: data}
}

func validate(items []Item) error {
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("item %d: %w", i, ErrEmptyID)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("item %d (%q): %w", i, item.ID, ErrDuplicateID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// Summary counts batch outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
