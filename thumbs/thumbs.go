// Package thumbs keeps downloaded poster images on disk and serves them
// scaled to the list view size.
package thumbs

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pavelpuchok/electrorss/feed"
	"github.com/pavelpuchok/electrorss/metrics"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

const (
	ext               = ".img"
	maxConcurrentGets = 6
)

type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

type Config struct {
	MaxBytes int64
	MaxFiles int
	MaxAge   time.Duration
	Width    int
	Height   int
}

type Cache struct {
	dir    string
	cfg    Config
	client Opener
	sem    *semaphore.Weighted
	now    func() time.Time
}

func New(dir string, cfg Config, client Opener) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create thumbnails directory %s. %w", dir, err)
	}

	return &Cache{
		dir:    dir,
		cfg:    cfg,
		client: client,
		sem:    semaphore.NewWeighted(maxConcurrentGets),
		now:    time.Now,
	}, nil
}

func Hash(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Path(url string) string {
	return filepath.Join(c.dir, Hash(url)+ext)
}

// LiveHashes returns the hashes of the thumbnails referenced by items.
func LiveHashes(items []feed.Item) map[string]struct{} {
	hs := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Thumb != "" {
			hs[Hash(it.Thumb)] = struct{}{}
		}
	}
	return hs
}

// Get returns the thumbnail of url as a JPEG scaled to fit the configured
// box. The original image is downloaded once and kept on disk.
func (c *Cache) Get(ctx context.Context, url string) ([]byte, error) {
	p := c.Path(url)

	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		if err := c.download(ctx, url, p); err != nil {
			metrics.ThumbDownloadTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.ThumbDownloadTotal.WithLabelValues("ok").Inc()
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("unable to read thumbnail %s. %w", p, err)
	}

	out, err := Scale(data, c.cfg.Width, c.cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("unable to scale thumbnail %s. %w", url, err)
	}
	return out, nil
}

func (c *Cache) download(ctx context.Context, url, p string) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	// Another request may have finished the same download meanwhile.
	if _, err := os.Stat(p); err == nil {
		return nil
	}

	body, err := c.client.Open(ctx, url)
	if err != nil {
		return fmt.Errorf("unable to download thumbnail %s. %w", url, err)
	}
	defer body.Close()

	f, err := os.CreateTemp(c.dir, "dl-*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create thumbnail file. %w", err)
	}
	tmp := f.Name()

	_, err = io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("unable to store thumbnail %s. %w", url, err)
	}

	return os.Rename(tmp, p)
}

// Scale decodes an image and re-encodes it as JPEG fitted into width x
// height, keeping the aspect ratio. Images are never upscaled.
func Scale(data []byte, width, height int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := fit(b.Dx(), b.Dy(), width, height)

	out := img
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return w, h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}

	// Compare w/maxW with h/maxH without floating point.
	if w*maxH >= h*maxW {
		nh := h * maxW / w
		return maxW, max(nh, 1)
	}
	nw := w * maxH / h
	return max(nw, 1), maxH
}

type entry struct {
	path  string
	mtime time.Time
	size  int64
	hash  string
}

// Cleanup evicts thumbnails. Files older than MaxAge are removed unless
// kept; then the oldest unkept files are removed until both MaxBytes and
// MaxFiles hold. A zero limit disables that check. It returns the number of
// removed files.
func (c *Cache) Cleanup(keep map[string]struct{}) (int, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("unable to list thumbnails directory %s. %w", c.dir, err)
	}

	now := c.now()
	removed := 0
	var entries []entry

	for _, de := range dirEntries {
		if !de.Type().IsRegular() || strings.HasSuffix(de.Name(), ".tmp") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}

		e := entry{
			path:  filepath.Join(c.dir, de.Name()),
			mtime: info.ModTime(),
			size:  info.Size(),
			hash:  strings.TrimSuffix(de.Name(), filepath.Ext(de.Name())),
		}
		_, kept := keep[e.hash]

		if c.cfg.MaxAge > 0 && now.Sub(e.mtime) > c.cfg.MaxAge && !kept {
			if c.remove(e.path) {
				removed++
			}
			continue
		}
		entries = append(entries, e)
	}

	var total int64
	for _, e := range entries {
		total += e.size
	}
	count := len(entries)

	within := func() bool {
		return (c.cfg.MaxBytes <= 0 || total <= c.cfg.MaxBytes) && (c.cfg.MaxFiles <= 0 || count <= c.cfg.MaxFiles)
	}

	if !within() {
		sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.Before(entries[j].mtime) })
		for _, e := range entries {
			if _, kept := keep[e.hash]; kept {
				continue
			}
			if c.remove(e.path) {
				removed++
				total -= e.size
				count--
			}
			if within() {
				break
			}
		}
	}

	metrics.ThumbEvictedTotal.Add(float64(removed))
	return removed, nil
}

func (c *Cache) remove(p string) bool {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to remove thumbnail", slog.String("path", p), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Clear removes every cached thumbnail.
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("unable to remove thumbnails directory %s. %w", c.dir, err)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("unable to create thumbnails directory %s. %w", c.dir, err)
	}
	return nil
}
