package config_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pavelpuchok/electrorss/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func env(vars map[string]string) config.EnvVarProvider {
	return config.EnvVarProvider{LookupEnv: func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("", env(map[string]string{"ERSS_CACHE_DIR": "/tmp/erss"}))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultCategories, cfg.Categories)
	assert.Equal(t, "/tmp/erss", cfg.CacheDir)
	assert.Equal(t, 6*time.Second, time.Duration(cfg.HTTP.Timeout))
	require.NotNil(t, cfg.HTTP.Retries)
	assert.Equal(t, uint(2), *cfg.HTTP.Retries)
	assert.Equal(t, int64(50*1024*1024), cfg.Thumbs.MaxBytes)
	assert.Equal(t, 50, cfg.Thumbs.MaxFiles)
	assert.Equal(t, 20*24*time.Hour, time.Duration(cfg.Thumbs.MaxAge))
	assert.Equal(t, 7, cfg.DefaultDays)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 4, cfg.Workers)

	y := time.Now().Year()
	assert.Equal(t, []string{strconv.Itoa(y), strconv.Itoa(y - 1)}, cfg.Years)
}

func TestLoad_File(t *testing.T) {
	path := writeTempConfig(t, `{
		"categories": {"Seriale": "https://example.com/rss.php?cat=7"},
		"cacheDir": "/var/cache/erss",
		"http": {"timeout": "10s", "retries": 5},
		"thumbs": {"maxAge": "48h"},
		"years": ["2024", "2025"],
		"defaultDays": 14,
		"autoRefresh": "15m"
	}`)

	cfg, err := config.Load(path, env(map[string]string{"ERSS_LISTEN_ADDR": "127.0.0.1:9000"}))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Seriale": "https://example.com/rss.php?cat=7"}, cfg.Categories)
	assert.Equal(t, "/var/cache/erss", cfg.CacheDir)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.HTTP.Timeout))
	require.NotNil(t, cfg.HTTP.Retries)
	assert.Equal(t, uint(5), *cfg.HTTP.Retries)
	assert.Equal(t, 48*time.Hour, time.Duration(cfg.Thumbs.MaxAge))
	assert.Equal(t, []string{"2024", "2025"}, cfg.Years)
	assert.Equal(t, 14, cfg.DefaultDays)
	assert.Equal(t, 15*time.Minute, time.Duration(cfg.AutoRefresh))
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
}

func TestLoad_ZeroRetriesDisablesRetrying(t *testing.T) {
	path := writeTempConfig(t, `{"http": {"retries": 0}}`)

	cfg, err := config.Load(path, env(map[string]string{"ERSS_CACHE_DIR": "/tmp/erss"}))
	require.NoError(t, err)

	require.NotNil(t, cfg.HTTP.Retries)
	assert.Equal(t, uint(0), *cfg.HTTP.Retries)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/config.json", env(nil))
	require.Error(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeTempConfig(t, `{"categories": `)
	_, err := config.Load(path, env(nil))
	require.Error(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeTempConfig(t, `{"cacheDir": "/tmp/x", "http": {"timeout": "soon"}}`)
	_, err := config.Load(path, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidCategoryURL(t *testing.T) {
	path := writeTempConfig(t, `{"cacheDir": "/tmp/x", "categories": {"bad": "ftp://example.com/feed"}}`)
	_, err := config.Load(path, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestLoad_InvalidDefaultDays(t *testing.T) {
	path := writeTempConfig(t, `{"cacheDir": "/tmp/x", "defaultDays": 5}`)
	_, err := config.Load(path, env(nil))
	require.Error(t, err)
}

func TestIsAllowedDays(t *testing.T) {
	for _, d := range []int{3, 7, 14, 30} {
		assert.True(t, config.IsAllowedDays(d), d)
	}
	assert.False(t, config.IsAllowedDays(0))
	assert.False(t, config.IsAllowedDays(10))
}
