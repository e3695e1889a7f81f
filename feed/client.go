package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"
	"github.com/pavelpuchok/electrorss/flaresolverr"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrFeedTooLarge     = errors.New("feed body too large")
)

// DefaultMaxFeedSize caps feed bodies when ClientConfig.MaxFeedSize is unset.
const DefaultMaxFeedSize = 8 << 20

const acceptFeed = "application/rss+xml,application/xml;q=0.9,*/*;q=0.8"

// Solver fetches a page through a browser that passes anti-bot challenges.
type Solver interface {
	Get(ctx context.Context, url string, opts ...flaresolverr.GetOption) (*flaresolverr.GetResponse, error)
}

type ClientConfig struct {
	Timeout      time.Duration
	Retries      uint
	RetryBackoff time.Duration
	UserAgent    string
	MaxFeedSize  int64
	Solver       Solver
}

// Client performs feed and image GETs with retries.
type Client struct {
	http *http.Client
	cfg  ClientConfig
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxFeedSize <= 0 {
		cfg.MaxFeedSize = DefaultMaxFeedSize
	}
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

// Response is the outcome of a conditional feed GET.
type Response struct {
	Body        []byte
	Meta        Meta
	NotModified bool
}

type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %d for %s", ErrUnexpectedStatus, e.code, e.url)
}

func (e *statusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

func isChallenge(code int) bool {
	return code == http.StatusForbidden || code == http.StatusServiceUnavailable
}

// FetchFeed performs a conditional GET of a feed URL using the validators in
// meta. A 304 answer yields NotModified with the previous meta.
func (c *Client) FetchFeed(ctx context.Context, url string, meta Meta) (*Response, error) {
	res, err := retry(ctx, c.cfg, func() (*Response, error) {
		return c.fetchFeedOnce(ctx, url, meta)
	})

	if err != nil && c.cfg.Solver != nil && isChallenge(StatusCode(err)) {
		slog.Info("Feed blocked, retrying through FlareSolverr", slog.String("url", url), slog.Int("status", StatusCode(err)))
		return c.solve(ctx, url, meta)
	}

	return res, err
}

func (c *Client) fetchFeedOnce(ctx context.Context, url string, meta Meta) (*Response, error) {
	req, err := c.newRequest(ctx, url, acceptFeed)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.Modified != "" {
		req.Header.Set("If-Modified-Since", meta.Modified)
	}

	r, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s. %w", url, err)
	}
	defer r.Body.Close()

	if r.StatusCode == http.StatusNotModified {
		return &Response{Meta: meta, NotModified: true}, nil
	}

	if err := checkStatus(url, r.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, c.cfg.MaxFeedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body %s. %w", url, err)
	}
	if int64(len(body)) > c.cfg.MaxFeedSize {
		return nil, backoff.Permanent(fmt.Errorf("%w: %s exceeds %d bytes", ErrFeedTooLarge, url, c.cfg.MaxFeedSize))
	}

	newMeta := Meta{
		ETag:     r.Header.Get("ETag"),
		Modified: r.Header.Get("Last-Modified"),
	}
	if newMeta.IsZero() {
		newMeta = meta
	}

	return &Response{Body: body, Meta: newMeta}, nil
}

func (c *Client) solve(ctx context.Context, url string, meta Meta) (*Response, error) {
	opts := []flaresolverr.GetOption{flaresolverr.WithDisabledMedia()}
	if c.cfg.Timeout > 0 {
		opts = append(opts, flaresolverr.WithMaxTimeout(10*c.cfg.Timeout))
	}

	res, err := c.cfg.Solver.Get(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s through FlareSolverr. %w", url, err)
	}

	if err := checkStatus(url, res.Solution.Status); err != nil {
		return nil, err
	}

	// Validators from a solved page are not reusable by direct requests.
	return &Response{Body: unwrapSolution(res.Solution.Response), Meta: meta}, nil
}

// unwrapSolution returns the raw document of a browser-rendered XML page.
// Browsers show XML documents as text inside a <pre> element.
func unwrapSolution(page string) []byte {
	trimmed := strings.TrimSpace(page)
	if strings.HasPrefix(trimmed, "<?xml") || strings.HasPrefix(trimmed, "<rss") || strings.HasPrefix(trimmed, "<feed") {
		return []byte(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return []byte(page)
	}

	if pre := doc.Find("pre").First(); pre.Length() > 0 {
		return []byte(strings.TrimSpace(pre.Text()))
	}
	return []byte(page)
}

// Open GETs url and returns the response body for streaming. The caller
// closes it.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	return retry(ctx, c.cfg, func() (io.ReadCloser, error) {
		req, err := c.newRequest(ctx, url, "image/*,*/*;q=0.8")
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		r, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s. %w", url, err)
		}

		if err := checkStatus(url, r.StatusCode); err != nil {
			r.Body.Close()
			return nil, err
		}

		return r.Body, nil
	})
}

func (c *Client) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s. %w", url, err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	req.Header.Set("Accept", accept)
	return req, nil
}

// checkStatus maps non-2xx statuses to errors. Client errors other than 429
// are permanent.
func checkStatus(url string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}

	err := &statusError{url: url, code: code}
	if code >= 500 || code == http.StatusTooManyRequests {
		return err
	}
	return backoff.Permanent(err)
}

func retry[T any](ctx context.Context, cfg ClientConfig, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.RetryBackoff > 0 {
		b.InitialInterval = cfg.RetryBackoff
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.Retries+1),
	)
}
