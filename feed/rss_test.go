package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
<title>Electro</title>
<item>
  <title>Nowy film (2025) [1080p] [Lektor PL]</title>
  <link>https://example.com/t/1</link>
  <pubDate>%s</pubDate>
  <media:thumbnail url="https://example.com/1.jpg"/>
</item>
<item>
  <title>Stary film (2019) [1080p]</title>
  <link>https://example.com/t/2</link>
  <pubDate>%s</pubDate>
</item>
<item>
  <title>Dawny film (2025) [720p]</title>
  <link>https://example.com/t/3</link>
  <pubDate>%s</pubDate>
</item>
<item>
  <title>Bez daty (2025) [720p]</title>
  <link>https://example.com/t/4</link>
</item>
</channel>
</rss>`

func TestRSS_Fetch(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	body := fmt.Sprintf(testFeed,
		now.Add(-time.Hour).Format(time.RFC1123Z),
		now.Add(-time.Hour).Format(time.RFC1123Z),
		now.Add(-10*24*time.Hour).Format(time.RFC1123Z),
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc"`)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	rss := NewRSS("x264/1080p", srv.URL, []string{"2025", "2024"}, testClient(nil))
	res, err := rss.Fetch(context.Background(), Meta{}, now.Add(-7*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, Meta{ETag: `"abc"`}, res.Meta)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Equal(t, "x264/1080p", it.Category)
	assert.Equal(t, "Nowy film", it.Title)
	assert.Equal(t, "2025", it.Year)
	assert.Equal(t, "1080p", it.Quality)
	assert.Equal(t, "Lektor PL", it.Lektor)
	assert.Equal(t, "https://example.com/1.jpg", it.Thumb)
	assert.Equal(t, "https://example.com/t/1", it.Link)
	assert.True(t, it.PubDate.Equal(now.Add(-time.Hour)))
}

func TestRSS_Fetch_NotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	rss := NewRSS("Seriale", srv.URL, []string{"2025"}, testClient(nil))
	res, err := rss.Fetch(context.Background(), Meta{ETag: `"x"`}, time.Now())
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Nil(t, res.Items)
}

func TestRSS_Fetch_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	rss := NewRSS("Seriale", srv.URL, []string{"2025"}, testClient(nil))
	_, err := rss.Fetch(context.Background(), Meta{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse RSS feed")
}

func TestParseEntries_PublishedFallback(t *testing.T) {
	f := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "Show (2025) S01E02", Link: "https://example.com/s", Published: "Mon, 02 Jun 2025 10:00:00 +0200"},
		{Title: "Show (2025) S01E03", Link: "https://example.com/s3", Published: "garbage"},
	}}

	items := ParseEntries("Seriale", f, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), []string{"2025"})
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].Season)
	assert.Equal(t, "2", items[0].Episode)
	assert.True(t, items[0].PubDate.Equal(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)))
}

func TestParseEntries_NilFeed(t *testing.T) {
	assert.Nil(t, ParseEntries("Seriale", nil, time.Now(), nil))
}
