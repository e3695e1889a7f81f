package ui

import (
	"fmt"
	"strings"

	"github.com/pavelpuchok/electrorss/feed"
)

// Filter keeps the items whose title contains q, ignoring case and
// surrounding spaces. An empty q keeps everything.
func Filter(items []feed.Item, q string) []feed.Item {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}

	out := make([]feed.Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) {
			out = append(out, it)
		}
	}
	return out
}

// Page is a window over a list of total entries.
type Page struct {
	Number int
	Count  int
	Start  int
	End    int
}

// Paginate clamps the 1-based page number into range. An empty list has a
// single empty page.
func Paginate(total, page, size int) Page {
	if size <= 0 {
		size = total
	}

	count := 1
	if size > 0 && total > 0 {
		count = (total + size - 1) / size
	}

	page = max(1, min(page, count))

	start := (page - 1) * size
	end := min(start+size, total)
	if start > total {
		start = total
	}

	return Page{Number: page, Count: count, Start: start, End: end}
}

func (p Page) Label() string {
	return fmt.Sprintf("%d/%d", p.Number, p.Count)
}

// HumanBytes formats n with one decimal and a binary unit, e.g. "1.5 MB".
func HumanBytes(n int64) string {
	v := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f TB", v)
}

func CacheLabel(files int, size int64) string {
	return fmt.Sprintf("Cache: %d plików, %s", files, HumanBytes(size))
}

func categoryColor(category string) string {
	if category == feed.SeriesCategory {
		return "purple"
	}
	return "blue"
}

const dateLayout = "2006-01-02 15:04"
