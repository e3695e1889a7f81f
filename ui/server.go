// Package ui serves the list of recent releases as a local web page.
package ui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pavelpuchok/electrorss/config"
	"github.com/pavelpuchok/electrorss/feed"
	"github.com/pavelpuchok/electrorss/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ErrBusy is returned by a Refresher when another refresh is running.
var ErrBusy = errors.New("refresh already in progress")

type Store interface {
	LoadItems() ([]feed.Item, error)
	LoadPreferences() (storage.Preferences, error)
	SavePreferences(p storage.Preferences, clearQuery bool) error
	Clear() error
	Stats() (files int, size int64, err error)
}

type Refresher interface {
	Refresh(ctx context.Context, days int) ([]feed.Item, error)
}

type Thumbnails interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Clear() error
}

type Config struct {
	PageSize    int
	DefaultDays int
}

type Server struct {
	e         *echo.Echo
	cfg       Config
	store     Store
	refresher Refresher
	thumbs    Thumbnails
}

type templateRenderer struct {
	t *template.Template
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}

func NewServer(cfg Config, store Store, refresher Refresher, thumbs Thumbnails) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{t: template.Must(template.ParseFS(templatesFS, "templates/*.html"))}
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{
		e:         e,
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		thumbs:    thumbs,
	}

	e.GET("/", s.handleList)
	e.GET("/api/items", s.handleAPIItems)
	e.POST("/refresh", s.handleRefresh)
	e.POST("/clean", s.handleClean)
	e.GET("/thumb", s.handleThumb)
	e.GET("/open", s.handleOpen)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			slog.Debug("HTTP request",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", c.Response().Status),
				slog.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

type itemView struct {
	feed.Item
	Color string
	Date  string
}

type listView struct {
	Items      []itemView
	Empty      bool
	Total      int
	Query      string
	Days       int
	DayOptions []int
	CacheLabel string
	PageLabel  string
	PrevURL    string
	NextURL    string
}

type listParams struct {
	query string
	days  int
	page  int
}

// params resolves the view parameters, falling back to the stored
// preferences and remembering explicit choices.
func (s *Server) params(c echo.Context) (listParams, error) {
	prefs, err := s.store.LoadPreferences()
	if err != nil {
		return listParams{}, err
	}

	p := listParams{query: prefs.Query, days: prefs.Days, page: 1}

	_, hasQuery := c.QueryParams()["q"]
	if hasQuery {
		p.query = c.QueryParam("q")
	}

	if d, err := strconv.Atoi(c.QueryParam("days")); err == nil && config.IsAllowedDays(d) {
		p.days = d
	}
	if !config.IsAllowedDays(p.days) {
		p.days = s.cfg.DefaultDays
	}

	if n, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		p.page = n
	}

	if hasQuery || p.days != prefs.Days {
		if err := s.store.SavePreferences(storage.Preferences{Days: p.days, Query: p.query}, hasQuery); err != nil {
			slog.Warn("Failed to save preferences", slog.String("error", err.Error()))
		}
	}

	return p, nil
}

func (s *Server) filtered(p listParams) ([]feed.Item, error) {
	items, err := s.store.LoadItems()
	if err != nil {
		return nil, err
	}
	return Filter(items, p.query), nil
}

func (s *Server) handleList(c echo.Context) error {
	p, err := s.params(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	items, err := s.filtered(p)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pg := Paginate(len(items), p.page, s.cfg.PageSize)

	view := listView{
		Empty:      len(items) == 0,
		Total:      len(items),
		Query:      p.query,
		Days:       p.days,
		DayOptions: config.AllowedDays,
		PageLabel:  pg.Label(),
		PrevURL:    listURL(p, max(pg.Number-1, 1)),
		NextURL:    listURL(p, min(pg.Number+1, pg.Count)),
	}

	for _, it := range items[pg.Start:pg.End] {
		view.Items = append(view.Items, itemView{
			Item:  it,
			Color: categoryColor(it.Category),
			Date:  it.PubDate.Local().Format(dateLayout),
		})
	}

	files, size, err := s.store.Stats()
	if err != nil {
		slog.Warn("Failed to read cache stats", slog.String("error", err.Error()))
	}
	view.CacheLabel = CacheLabel(files, size)

	return c.Render(http.StatusOK, "list.html", view)
}

func listURL(p listParams, page int) string {
	v := url.Values{}
	v.Set("days", strconv.Itoa(p.days))
	v.Set("q", p.query)
	v.Set("page", strconv.Itoa(page))
	return "/?" + v.Encode()
}

type apiItems struct {
	Items []feed.Item `json:"items"`
	Page  int         `json:"page"`
	Pages int         `json:"pages"`
	Total int         `json:"total"`
}

func (s *Server) handleAPIItems(c echo.Context) error {
	p, err := s.params(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	items, err := s.filtered(p)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pg := Paginate(len(items), p.page, s.cfg.PageSize)
	page := items[pg.Start:pg.End]
	if page == nil {
		page = []feed.Item{}
	}

	return c.JSON(http.StatusOK, apiItems{
		Items: page,
		Page:  pg.Number,
		Pages: pg.Count,
		Total: len(items),
	})
}

func (s *Server) handleRefresh(c echo.Context) error {
	days, err := strconv.Atoi(c.FormValue("days"))
	if err != nil || !config.IsAllowedDays(days) {
		prefs, perr := s.store.LoadPreferences()
		if perr != nil || !config.IsAllowedDays(prefs.Days) {
			days = s.cfg.DefaultDays
		} else {
			days = prefs.Days
		}
	}

	items, err := s.refresher.Refresh(c.Request().Context(), days)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			return echo.NewHTTPError(http.StatusConflict, "Odświeżanie w toku.")
		}
		slog.Error("Refresh failed", slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	slog.Info("Refresh done", slog.Int("items", len(items)), slog.Int("days", days))

	if err := s.store.SavePreferences(storage.Preferences{Days: days}, false); err != nil {
		slog.Warn("Failed to save preferences", slog.String("error", err.Error()))
	}

	v := url.Values{}
	v.Set("days", strconv.Itoa(days))
	if q := c.FormValue("q"); q != "" {
		v.Set("q", q)
	}
	return c.Redirect(http.StatusSeeOther, "/?"+v.Encode())
}

func (s *Server) handleClean(c echo.Context) error {
	if err := s.store.Clear(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := s.thumbs.Clear(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	slog.Info("Cache cleared")
	return c.Redirect(http.StatusSeeOther, "/")
}

// known reports whether u is a thumbnail or link of a listed item, so the
// server never fetches or redirects to arbitrary URLs.
func (s *Server) known(u string, field func(feed.Item) string) (bool, error) {
	if u == "" {
		return false, nil
	}
	items, err := s.store.LoadItems()
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if field(it) == u {
			return true, nil
		}
	}
	return false, nil
}

func (s *Server) handleThumb(c echo.Context) error {
	u := c.QueryParam("u")
	ok, err := s.known(u, func(it feed.Item) string { return it.Thumb })
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	data, err := s.thumbs.Get(c.Request().Context(), u)
	if err != nil {
		slog.Warn("Failed to load thumbnail", slog.String("url", u), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusBadGateway)
	}

	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Blob(http.StatusOK, "image/jpeg", data)
}

func (s *Server) handleOpen(c echo.Context) error {
	u := c.QueryParam("u")
	ok, err := s.known(u, func(it feed.Item) string { return it.Link })
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	return c.Redirect(http.StatusFound, u)
}
