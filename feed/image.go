package feed

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// ThumbnailURL picks the poster image of an entry.
// Priority: media:thumbnail > media:content > item image > image enclosure > first <img> in the description.
// Only http/https URLs are accepted.
func ThumbnailURL(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"thumbnail", "content"} {
			for _, e := range media[name] {
				if u := e.Attrs["url"]; isHTTPURL(u) {
					return u
				}
			}
		}
	}

	if item.Image != nil && isHTTPURL(item.Image.URL) {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && isHTTPURL(enc.URL) {
			return enc.URL
		}
	}

	return descriptionImage(item.Description)
}

func descriptionImage(html string) string {
	if !strings.Contains(html, "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, _ := s.Attr("src"); isHTTPURL(src) {
			found = src
			return false
		}
		return true
	})
	return found
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
