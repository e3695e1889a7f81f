package feed

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	SeriesCategory = "Seriale"
	absent         = "Nie"
	polishFilm     = "Film Polski"
)

// Word edges and spaces for the patterns below. RE2 \b and \s are ASCII
// only, so a Polish letter such as ą or ł would otherwise end a word.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
	space     = `[\s\p{Z}]*`
	tagValue  = `[^\]/&\s\p{Z}]+`
)

var (
	titleRe   = regexp.MustCompile(`^(.+?)` + space + `\((\d{4})\)`)
	qualityRe = regexp.MustCompile(`(?i)` + wordStart + `(2160p|1080p|720p)` + wordEnd)
	lektorRe  = regexp.MustCompile(`(?i)(Lektor` + space + tagValue + `(?:` + space + `AI|` + space + `\(AI\))?)`)
	napisyRe  = regexp.MustCompile(`(?i)(Napisy` + space + tagValue + `(?:` + space + `AI|` + space + `\(AI\))?)`)
	dubbingRe = regexp.MustCompile(`(?i)(Dubbing` + space + tagValue + `)`)

	seasonEpisodeRe = regexp.MustCompile(wordStart + `s` + space + `(\d{1,2})` + space + `e` + space + `(\d{1,3})` + wordEnd)
	sezonRe         = regexp.MustCompile(wordStart + `sezon` + space + `(\d{1,2})` + wordEnd)
	seasonRe        = regexp.MustCompile(wordStart + `s` + space + `(\d{1,2})` + wordEnd)
	episodeRangeRe  = regexp.MustCompile(wordStart + `e` + space + `(\d{1,3})` + space + `[-–]` + space + `(\d{1,3})` + wordEnd)
	episodeRe       = regexp.MustCompile(wordStart + `e` + space + `(\d{1,3})` + wordEnd)
)

// Release is the metadata encoded in a release title such as
// "Movie (2024) [1080p] [Lektor PL]".
type Release struct {
	Title   string
	Year    string
	Quality string
	Lektor  string
	Napisy  string
	Dubbing string
	Season  string
	Episode string
}

// ParseTitle extracts release metadata from a raw feed entry title. ok is
// false when the title carries no "(yyyy)" production year.
func ParseTitle(category, raw string) (Release, bool) {
	m := titleRe.FindStringSubmatch(raw)
	if m == nil {
		return Release{}, false
	}

	low := strings.ToLower(raw)

	r := Release{
		Title:   strings.TrimSpace(m[1]),
		Year:    m[2],
		Quality: firstGroup(qualityRe, raw),
		Lektor:  trimBrackets(firstGroup(lektorRe, raw)),
		Napisy:  trimBrackets(firstGroup(napisyRe, raw)),
		Dubbing: trimBrackets(firstGroup(dubbingRe, raw)),
	}

	if r.Lektor == "" {
		if strings.Contains(low, "film polski") {
			r.Lektor = polishFilm
		} else {
			r.Lektor = absent
		}
	}
	if r.Napisy == "" {
		r.Napisy = absent
	}
	if r.Dubbing == "" {
		r.Dubbing = absent
	}

	if strings.EqualFold(category, SeriesCategory) {
		r.Season, r.Episode = seasonEpisode(low)
	}

	return r, true
}

// seasonEpisode reads season and episode numbers from a lower-cased title.
// Numbers are normalized, so "S01E02" yields "1" and "2".
func seasonEpisode(low string) (season, episode string) {
	if m := seasonEpisodeRe.FindStringSubmatch(low); m != nil {
		return normalize(m[1]), normalize(m[2])
	}

	if m := sezonRe.FindStringSubmatch(low); m != nil {
		season = normalize(m[1])
	} else if m := seasonRe.FindStringSubmatch(low); m != nil {
		season = normalize(m[1])
	}

	if m := episodeRangeRe.FindStringSubmatch(low); m != nil {
		episode = normalize(m[1]) + "-" + normalize(m[2])
	} else if m := episodeRe.FindStringSubmatch(low); m != nil {
		episode = normalize(m[1])
	}

	return season, episode
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

func trimBrackets(s string) string {
	return strings.Trim(s, "[]")
}

func normalize(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return digits
	}
	return strconv.Itoa(n)
}
