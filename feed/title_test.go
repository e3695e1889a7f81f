package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTitle_Movie(t *testing.T) {
	r, ok := ParseTitle("x264/1080p", "Diuna: Część druga (2024) [1080p] [x264] [Lektor PL] [Napisy PL]")
	require.True(t, ok)

	assert.Equal(t, Release{
		Title:   "Diuna: Część druga",
		Year:    "2024",
		Quality: "1080p",
		Lektor:  "Lektor PL",
		Napisy:  "Napisy PL",
		Dubbing: "Nie",
	}, r)
}

func TestParseTitle_AITag(t *testing.T) {
	r, ok := ParseTitle("x265/2160p", "Film (2025) 2160P Lektor PL AI Dubbing PL")
	require.True(t, ok)

	assert.Equal(t, "2160P", r.Quality)
	assert.Equal(t, "Lektor PL AI", r.Lektor)
	assert.Equal(t, "Dubbing PL", r.Dubbing)
	assert.Equal(t, "Nie", r.Napisy)
}

func TestParseTitle_PolishFilm(t *testing.T) {
	r, ok := ParseTitle("x264/1080p", "Kogel Mogel (2024) Film Polski 720p")
	require.True(t, ok)

	assert.Equal(t, "Kogel Mogel", r.Title)
	assert.Equal(t, "720p", r.Quality)
	assert.Equal(t, "Film Polski", r.Lektor)
}

func TestParseTitle_NoYear(t *testing.T) {
	_, ok := ParseTitle("x264/1080p", "Something without a year [1080p]")
	assert.False(t, ok)
}

func TestParseTitle_NoQuality(t *testing.T) {
	r, ok := ParseTitle("x264/1080p", "Film (2024) DVDRip")
	require.True(t, ok)
	assert.Equal(t, "", r.Quality)
}

func TestParseTitle_Series(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		season  string
		episode string
	}{
		{"season and episode", "The Bear (2024) S03E05 [1080p]", "3", "5"},
		{"spaced season and episode", "Show (2024) S02 E03", "2", "3"},
		{"sezon with episode range", "Serial (2025) Sezon 2 E01-08 [1080p]", "2", "1-8"},
		{"en dash range", "Serial (2025) Sezon 4 E1–3", "4", "1-3"},
		{"season only", "Show (2024) S1 [1080p]", "1", ""},
		{"nothing", "Show (2024) [1080p]", "", ""},
		{"polish title", "Ślepnąc od świateł (2024) S01E03", "1", "3"},
		{"polish letter before s", "Kąs 2 (2025) [1080p]", "", ""},
		{"polish letter after episode", "Show (2025) S01E02ł", "", ""},
		{"non-breaking space", "Show (2025) Sezon\u00a03 E\u00a04", "3", "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := ParseTitle("Seriale", tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.season, r.Season)
			assert.Equal(t, tt.episode, r.Episode)
		})
	}
}

func TestParseTitle_SeriesCategoryCaseInsensitive(t *testing.T) {
	r, ok := ParseTitle("seriale", "Show (2024) S01E02")
	require.True(t, ok)
	assert.Equal(t, "1", r.Season)
	assert.Equal(t, "2", r.Episode)
}

func TestParseTitle_MovieIgnoresEpisodes(t *testing.T) {
	r, ok := ParseTitle("x264/1080p", "Show (2024) S01E02")
	require.True(t, ok)
	assert.Empty(t, r.Season)
	assert.Empty(t, r.Episode)
}
