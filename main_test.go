package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pavelpuchok/electrorss/config"
	"github.com/pavelpuchok/electrorss/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load("", config.EnvVarProvider{LookupEnv: func(k string) (string, bool) {
		if k == "ERSS_CACHE_DIR" {
			return dir, true
		}
		return "", false
	}})
	require.NoError(t, err)
	return cfg
}

func TestFetchers_SortedByCategory(t *testing.T) {
	cfg := testConfig(t)
	fs := fetchers(cfg, feed.NewClient(feed.ClientConfig{}))

	require.Len(t, fs, len(config.DefaultCategories))
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Category())
	}
	assert.Equal(t, []string{"Seriale", "x264/1080p", "x265/1080p", "x265/2160p"}, names)
}

func TestApp_List(t *testing.T) {
	a, err := newApp(testConfig(t))
	require.NoError(t, err)

	require.NoError(t, a.store.SaveItems([]feed.Item{
		{Category: "Seriale", Title: "Andor", Year: "2025", PubDate: time.Now(), Link: "https://example.com/1"},
		{Category: "x264/1080p", Title: "Diuna", Year: "2024", PubDate: time.Now(), Link: "https://example.com/2"},
	}))

	var buf bytes.Buffer
	require.NoError(t, a.list(context.Background(), &buf, false, 0, "andor", false))
	assert.Contains(t, buf.String(), "Andor (2025)")
	assert.NotContains(t, buf.String(), "Diuna")
}

func TestApp_ListRefreshUsesWorker(t *testing.T) {
	a, err := newApp(testConfig(t))
	require.NoError(t, err)

	f := &fakeFetcher{category: "Seriale", url: "https://example.com/7", result: &feed.Result{
		Items: []feed.Item{{Category: "Seriale", Title: "Andor", Year: "2025", PubDate: time.Now(), Link: "https://example.com/1"}},
	}}
	a.worker.Fetchers = []Fetcher{f}

	var buf bytes.Buffer
	require.NoError(t, a.list(context.Background(), &buf, true, 0, "", false))
	assert.Contains(t, buf.String(), "Andor (2025)")

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), f.gotSince, time.Minute)
}

func TestApp_EnqueueDropsWhenPending(t *testing.T) {
	a, err := newApp(testConfig(t))
	require.NoError(t, err)

	a.enqueue(context.Background())
	a.enqueue(context.Background())

	assert.Len(t, a.queue, 1)
}
