package feed

import "time"

// Item is a single release listed in a category feed.
type Item struct {
	Category string    `json:"category"`
	Title    string    `json:"title"`
	Year     string    `json:"year"`
	Quality  string    `json:"quality"`
	Lektor   string    `json:"lektor"`
	Napisy   string    `json:"napisy"`
	Dubbing  string    `json:"dubbing"`
	Thumb    string    `json:"thumb"`
	Link     string    `json:"link"`
	PubDate  time.Time `json:"pubDate"`
	Season   string    `json:"season"`
	Episode  string    `json:"episode"`
}

// Meta holds the HTTP validators of the last successful fetch of a feed URL.
type Meta struct {
	ETag     string `json:"etag,omitempty"`
	Modified string `json:"modified,omitempty"`
}

func (m Meta) IsZero() bool {
	return m.ETag == "" && m.Modified == ""
}
