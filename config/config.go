package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

type EnvVarProvider struct {
	LookupEnv func(string) (string, bool)
}

// Duration is a time.Duration read from JSON strings like "6s" or "480h".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration should be a string. %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q. %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type HTTPConfig struct {
	Timeout         Duration `json:"timeout"`
	Retries         *uint    `json:"retries"`
	RetryBackoff    Duration `json:"retryBackoff"`
	UserAgent       string   `json:"userAgent"`
	FlareSolverrURL string   `json:"flareSolverrUrl"`
}

type ThumbsConfig struct {
	MaxBytes int64    `json:"maxBytes"`
	MaxFiles int      `json:"maxFiles"`
	MaxAge   Duration `json:"maxAge"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
}

type Config struct {
	Categories  map[string]string `json:"categories"`
	CacheDir    string            `json:"cacheDir"`
	HTTP        HTTPConfig        `json:"http"`
	Thumbs      ThumbsConfig      `json:"thumbs"`
	Years       []string          `json:"years"`
	DefaultDays int               `json:"defaultDays"`
	PageSize    int               `json:"pageSize"`
	ListenAddr  string            `json:"listenAddr"`
	AutoRefresh Duration          `json:"autoRefresh"`
	Workers     int               `json:"workers"`
}

const AppID = "electro_rss"

// AllowedDays are the selectable lookback windows, in days.
var AllowedDays = []int{3, 7, 14, 30}

var (
	DefaultCategories = map[string]string{
		"x264/1080p": "https://electro-torrent.pl/rss.php?cat=770",
		"x265/2160p": "https://electro-torrent.pl/rss.php?cat=1160",
		"x265/1080p": "https://electro-torrent.pl/rss.php?cat=1116",
		"Seriale":    "https://electro-torrent.pl/rss.php?cat=7",
	}
	DefaultHTTPTimeout    = 6 * time.Second
	DefaultHTTPRetries    = uint(2)
	DefaultRetryBackoff   = 200 * time.Millisecond
	DefaultUserAgent      = "ElectroRSS/1.0 (+Linux)"
	DefaultThumbsMaxBytes = int64(50 * 1024 * 1024)
	DefaultThumbsMaxFiles = 50
	DefaultThumbsMaxAge   = 20 * 24 * time.Hour
	DefaultThumbWidth     = 170
	DefaultThumbHeight    = 230
	DefaultDays           = 7
	DefaultPageSize       = 20
	DefaultListenAddr     = "127.0.0.1:8765"
	DefaultWorkers        = 4
)

// Load reads the config file at path and applies defaults and environment
// overrides. An empty path yields the default configuration.
func Load(path string, env EnvVarProvider) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.OpenFile(path, os.O_RDONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file. %w", err)
		}
		defer f.Close()

		d := json.NewDecoder(f)
		d.DisallowUnknownFields()
		if err := d.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("unable decode config. %w", err)
		}
	}

	if env.LookupEnv != nil {
		if v, has := env.LookupEnv("ERSS_CACHE_DIR"); has && v != "" {
			cfg.CacheDir = v
		}
		if v, has := env.LookupEnv("ERSS_LISTEN_ADDR"); has && v != "" {
			cfg.ListenAddr = v
		}
		if v, has := env.LookupEnv("ERSS_FLARESOLVERR_URL"); has && v != "" {
			cfg.HTTP.FlareSolverrURL = v
		}
	}

	if err := cfg.applyDefaults(time.Now()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config. %w", err)
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults(now time.Time) error {
	if len(cfg.Categories) == 0 {
		cfg.Categories = make(map[string]string, len(DefaultCategories))
		for name, u := range DefaultCategories {
			cfg.Categories[name] = u
		}
	}

	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("unable to resolve user cache dir. %w", err)
		}
		cfg.CacheDir = filepath.Join(base, AppID)
	}

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = Duration(DefaultHTTPTimeout)
	}
	// An explicit zero disables retries.
	if cfg.HTTP.Retries == nil {
		r := DefaultHTTPRetries
		cfg.HTTP.Retries = &r
	}
	if cfg.HTTP.RetryBackoff == 0 {
		cfg.HTTP.RetryBackoff = Duration(DefaultRetryBackoff)
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultUserAgent
	}

	if cfg.Thumbs.MaxBytes == 0 {
		cfg.Thumbs.MaxBytes = DefaultThumbsMaxBytes
	}
	if cfg.Thumbs.MaxFiles == 0 {
		cfg.Thumbs.MaxFiles = DefaultThumbsMaxFiles
	}
	if cfg.Thumbs.MaxAge == 0 {
		cfg.Thumbs.MaxAge = Duration(DefaultThumbsMaxAge)
	}
	if cfg.Thumbs.Width == 0 {
		cfg.Thumbs.Width = DefaultThumbWidth
	}
	if cfg.Thumbs.Height == 0 {
		cfg.Thumbs.Height = DefaultThumbHeight
	}

	if len(cfg.Years) == 0 {
		y := now.Year()
		cfg.Years = []string{strconv.Itoa(y), strconv.Itoa(y - 1)}
	}
	if cfg.DefaultDays == 0 {
		cfg.DefaultDays = DefaultDays
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}

	return nil
}

func (cfg *Config) Validate() error {
	if len(cfg.Categories) == 0 {
		return errors.New("at least one category is required")
	}

	for name, raw := range cfg.Categories {
		if name == "" {
			return errors.New("category name should not be empty")
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("category %s has invalid feed URL %q", name, raw)
		}
	}

	if !IsAllowedDays(cfg.DefaultDays) {
		return fmt.Errorf("defaultDays should be one of %v, got %d", AllowedDays, cfg.DefaultDays)
	}

	if cfg.PageSize < 0 || cfg.Workers < 0 || cfg.Thumbs.MaxFiles < 0 || cfg.Thumbs.MaxBytes < 0 {
		return errors.New("pageSize, workers and thumbs limits should not be negative")
	}

	if cfg.AutoRefresh < 0 {
		return errors.New("autoRefresh should not be negative")
	}

	return nil
}

func IsAllowedDays(days int) bool {
	return slices.Contains(AllowedDays, days)
}
