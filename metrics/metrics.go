// Package metrics provides Prometheus metrics for electrorss.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedFetchTotal counts feed fetches by category and result
	// (ok, not_modified, error).
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "electrorss",
			Name:      "feed_fetch_total",
			Help:      "Total number of feed fetches",
		},
		[]string{"category", "result"},
	)

	// FeedItems holds the number of listed items per category after the last refresh.
	FeedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "electrorss",
			Name:      "feed_items",
			Help:      "Items listed per category after the last refresh",
		},
		[]string{"category"},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "electrorss",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of full refreshes in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	ThumbDownloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "electrorss",
			Name:      "thumb_download_total",
			Help:      "Total number of thumbnail downloads",
		},
		[]string{"result"},
	)

	ThumbEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "electrorss",
			Name:      "thumb_evicted_total",
			Help:      "Thumbnails removed by cache cleanup",
		},
	)
)
