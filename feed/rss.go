package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

type Fetcher interface {
	FetchFeed(ctx context.Context, url string, meta Meta) (*Response, error)
}

// RSS is one category feed of the indexing site.
type RSS struct {
	category string
	url      string
	years    []string
	client   Fetcher
	parser   *gofeed.Parser
}

func NewRSS(category, url string, years []string, client Fetcher) *RSS {
	return &RSS{
		category: category,
		url:      url,
		years:    years,
		client:   client,
		parser:   gofeed.NewParser(),
	}
}

func (rss *RSS) Category() string { return rss.category }
func (rss *RSS) URL() string      { return rss.url }

// Result is a fetched category. Items is nil when NotModified is set.
type Result struct {
	Items       []Item
	Meta        Meta
	NotModified bool
}

// Fetch downloads the feed with the validators in meta and returns the
// entries published after cutoff.
func (rss *RSS) Fetch(ctx context.Context, meta Meta, cutoff time.Time) (*Result, error) {
	res, err := rss.client.FetchFeed(ctx, rss.url, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RSS feed from %s. %w", rss.url, err)
	}

	if res.NotModified {
		return &Result{Meta: res.Meta, NotModified: true}, nil
	}

	feed, err := rss.parser.Parse(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed from %s. %w", rss.url, err)
	}

	return &Result{
		Items: ParseEntries(rss.category, feed, cutoff, rss.years),
		Meta:  res.Meta,
	}, nil
}

// ParseEntries converts feed entries into items. Entries without a
// parseable publication time, older than cutoff, without a "(yyyy)" year
// or with a year outside years are skipped.
func ParseEntries(category string, feed *gofeed.Feed, cutoff time.Time, years []string) []Item {
	if feed == nil {
		return nil
	}

	result := make([]Item, 0, len(feed.Items))

	for _, it := range feed.Items {
		pub, ok := getTime(it)
		if !ok {
			slog.Debug("Skipping entry without publication time", slog.String("title", it.Title))
			continue
		}
		if pub.Before(cutoff) {
			continue
		}

		r, ok := ParseTitle(category, it.Title)
		if !ok || !slices.Contains(years, r.Year) {
			continue
		}

		result = append(result, Item{
			Category: category,
			Title:    r.Title,
			Year:     r.Year,
			Quality:  r.Quality,
			Lektor:   r.Lektor,
			Napisy:   r.Napisy,
			Dubbing:  r.Dubbing,
			Thumb:    ThumbnailURL(it),
			Link:     it.Link,
			PubDate:  pub,
			Season:   r.Season,
			Episode:  r.Episode,
		})
	}

	return result
}

func getTime(it *gofeed.Item) (time.Time, bool) {
	if it.PublishedParsed != nil {
		return *it.PublishedParsed, true
	}

	if p := strings.TrimSpace(it.Published); p != "" {
		if t, err := mail.ParseDate(p); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
