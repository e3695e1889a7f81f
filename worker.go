package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pavelpuchok/electrorss/feed"
	"github.com/pavelpuchok/electrorss/metrics"
	"github.com/pavelpuchok/electrorss/storage"
	"github.com/pavelpuchok/electrorss/thumbs"
	"github.com/pavelpuchok/electrorss/ui"
	"golang.org/x/sync/errgroup"
)

// ErrRefreshInProgress lets the UI answer a concurrent refresh with 409.
var ErrRefreshInProgress = ui.ErrBusy

type Storage interface {
	LoadItems() ([]feed.Item, error)
	SaveItems(items []feed.Item) error
	LoadState() (storage.State, error)
	SaveState(state storage.State) error
	LoadPreferences() (storage.Preferences, error)
}

type Fetcher interface {
	Category() string
	URL() string
	Fetch(ctx context.Context, meta feed.Meta, cutoff time.Time) (*feed.Result, error)
}

type Thumbs interface {
	Cleanup(keep map[string]struct{}) (int, error)
}

// Job asks the worker for a refresh. Zero Days means the stored preference.
type Job struct {
	Days int
}

type Worker struct {
	Queue       <-chan Job
	Storage     Storage
	Fetchers    []Fetcher
	Thumbs      Thumbs
	Concurrency int
	DefaultDays int

	mu  sync.Mutex
	now func() time.Time
}

func (w *Worker) Process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.Queue:
			days, err := w.jobDays(job)
			if err != nil {
				slog.Error("Failed to resolve refresh window", slog.String("error", err.Error()))
				continue
			}

			items, err := w.Refresh(ctx, days)
			if err != nil {
				if errors.Is(err, ErrRefreshInProgress) {
					slog.Debug("Skipping scheduled refresh, another one is running")
					continue
				}
				slog.Error("Failed scheduled refresh", slog.String("error", err.Error()))
				continue
			}
			slog.Info("Scheduled refresh done", slog.Int("items", len(items)), slog.Int("days", days))
		}
	}
}

func (w *Worker) jobDays(job Job) (int, error) {
	if job.Days > 0 {
		return job.Days, nil
	}

	p, err := w.Storage.LoadPreferences()
	if err != nil {
		return 0, err
	}
	if p.Days > 0 {
		return p.Days, nil
	}
	return w.DefaultDays, nil
}

// Refresh fetches every category feed, keeps the entries of the last days
// and stores the merged list newest first. A category that fails or is not
// modified keeps its previously stored entries within the window.
func (w *Worker) Refresh(ctx context.Context, days int) ([]feed.Item, error) {
	if days <= 0 {
		return nil, fmt.Errorf("refresh window should be positive, got %d days", days)
	}

	if !w.mu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer w.mu.Unlock()

	start := time.Now()
	defer func() { metrics.RefreshDuration.Observe(time.Since(start).Seconds()) }()

	cutoff := w.clock().Add(-time.Duration(days) * 24 * time.Hour)

	state, err := w.Storage.LoadState()
	if err != nil {
		return nil, fmt.Errorf("fail to read state. %w", err)
	}

	prev, err := w.Storage.LoadItems()
	if err != nil {
		return nil, fmt.Errorf("fail to read cached items. %w", err)
	}

	var (
		mu      sync.Mutex
		results []feed.Item
	)

	g, gctx := errgroup.WithContext(ctx)
	if w.Concurrency > 0 {
		g.SetLimit(w.Concurrency)
	}

	// state is only read while fetches run; new validators are merged after.
	metas := make([]feed.Meta, len(w.Fetchers))
	for i, f := range w.Fetchers {
		meta := state[f.URL()]
		g.Go(func() error {
			items, newMeta := w.fetchOne(gctx, f, meta, prev, cutoff)
			metas[i] = newMeta

			mu.Lock()
			defer mu.Unlock()
			results = append(results, items...)
			metrics.FeedItems.WithLabelValues(f.Category()).Set(float64(len(items)))
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range w.Fetchers {
		state[f.URL()] = metas[i]
	}

	if err := w.Storage.SaveState(state); err != nil {
		return nil, fmt.Errorf("fail to update state. %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PubDate.After(results[j].PubDate)
	})

	if err := w.Storage.SaveItems(results); err != nil {
		return nil, fmt.Errorf("fail to store items. %w", err)
	}

	if w.Thumbs != nil {
		removed, err := w.Thumbs.Cleanup(thumbs.LiveHashes(results))
		if err != nil {
			slog.Warn("Thumbnail cleanup failed", slog.String("error", err.Error()))
		} else if removed > 0 {
			slog.Debug("Thumbnails evicted", slog.Int("count", removed))
		}
	}

	return results, nil
}

func (w *Worker) fetchOne(ctx context.Context, f Fetcher, meta feed.Meta, prev []feed.Item, cutoff time.Time) ([]feed.Item, feed.Meta) {
	log := slog.With(slog.String("category", f.Category()), slog.String("url", f.URL()))

	res, err := f.Fetch(ctx, meta, cutoff)
	if err != nil {
		metrics.FeedFetchTotal.WithLabelValues(f.Category(), "error").Inc()
		log.Error("Failed to fetch feed, using cached entries", slog.String("error", err.Error()))
		return cached(prev, f.Category(), cutoff), meta
	}

	if res.NotModified {
		metrics.FeedFetchTotal.WithLabelValues(f.Category(), "not_modified").Inc()
		log.Debug("Feed not modified")
		return cached(prev, f.Category(), cutoff), res.Meta
	}

	metrics.FeedFetchTotal.WithLabelValues(f.Category(), "ok").Inc()
	log.Info("Feed fetched", slog.Int("items", len(res.Items)))
	return res.Items, res.Meta
}

func cached(prev []feed.Item, category string, cutoff time.Time) []feed.Item {
	var out []feed.Item
	for _, it := range prev {
		if it.Category == category && !it.PubDate.Before(cutoff) {
			out = append(out, it)
		}
	}
	return out
}

func (w *Worker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
