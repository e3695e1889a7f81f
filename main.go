package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pavelpuchok/electrorss/config"
	"github.com/pavelpuchok/electrorss/feed"
	"github.com/pavelpuchok/electrorss/flaresolverr"
	"github.com/pavelpuchok/electrorss/planner"
	"github.com/pavelpuchok/electrorss/storage"
	"github.com/pavelpuchok/electrorss/thumbs"
	"github.com/pavelpuchok/electrorss/ui"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("ERSS_CONFIG_PATH"), "path to config file")
	list := flag.Bool("list", false, "print stored releases and exit")
	refresh := flag.Bool("refresh", false, "refresh feeds before listing")
	days := flag.Int("days", 0, "lookback window in days (3, 7, 14 or 30)")
	query := flag.String("q", "", "title filter for -list")
	debug := flag.Bool("debug", false, "enable debug logs")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath, config.EnvVarProvider{LookupEnv: os.LookupEnv})
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *days != 0 && !config.IsAllowedDays(*days) {
		slog.Error("Unsupported lookback window", slog.Int("days", *days))
		os.Exit(2)
	}

	app, err := newApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *list {
		err = app.list(ctx, os.Stdout, *refresh, *days, *query, !color.NoColor)
	} else {
		err = app.serve(ctx)
	}
	if err != nil {
		slog.Error("Exiting", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	store  *storage.FileStorage
	thumbs *thumbs.Cache
	worker *Worker
	queue  chan Job
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := storage.NewFileStorage(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	clientCfg := feed.ClientConfig{
		Timeout:      time.Duration(cfg.HTTP.Timeout),
		Retries:      *cfg.HTTP.Retries,
		RetryBackoff: time.Duration(cfg.HTTP.RetryBackoff),
		UserAgent:    cfg.HTTP.UserAgent,
	}
	if cfg.HTTP.FlareSolverrURL != "" {
		clientCfg.Solver = flaresolverr.FlareSolverr{
			URL:    cfg.HTTP.FlareSolverrURL,
			Client: &http.Client{},
		}
	}
	client := feed.NewClient(clientCfg)

	tc, err := thumbs.New(filepath.Join(cfg.CacheDir, "thumbs"), thumbs.Config{
		MaxBytes: cfg.Thumbs.MaxBytes,
		MaxFiles: cfg.Thumbs.MaxFiles,
		MaxAge:   time.Duration(cfg.Thumbs.MaxAge),
		Width:    cfg.Thumbs.Width,
		Height:   cfg.Thumbs.Height,
	}, client)
	if err != nil {
		return nil, err
	}

	queue := make(chan Job, 1)
	return &app{
		cfg:    cfg,
		store:  store,
		thumbs: tc,
		queue:  queue,
		worker: &Worker{
			Queue:       queue,
			Storage:     store,
			Fetchers:    fetchers(cfg, client),
			Thumbs:      tc,
			Concurrency: cfg.Workers,
			DefaultDays: cfg.DefaultDays,
		},
	}, nil
}

func fetchers(cfg *config.Config, client *feed.Client) []Fetcher {
	names := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]Fetcher, 0, len(names))
	for _, name := range names {
		out = append(out, feed.NewRSS(name, cfg.Categories[name], cfg.Years, client))
	}
	return out
}

func (a *app) serve(ctx context.Context) error {
	go a.worker.Process(ctx)

	p := &planner.InMemoryPlanner{}
	if a.cfg.AutoRefresh > 0 {
		p.AddJob(ctx, time.Duration(a.cfg.AutoRefresh), a.enqueue)
	}

	srv := ui.NewServer(ui.Config{
		PageSize:    a.cfg.PageSize,
		DefaultDays: a.cfg.DefaultDays,
	}, a.store, a.worker, a.thumbs)

	slog.Info("Serving", slog.String("addr", "http://"+a.cfg.ListenAddr))
	err := srv.Start(ctx, a.cfg.ListenAddr)
	p.Wait()
	return err
}

// enqueue drops the job when one is already pending.
func (a *app) enqueue(ctx context.Context) {
	select {
	case a.queue <- Job{}:
	case <-ctx.Done():
	default:
		slog.Debug("Refresh already queued")
	}
}

func (a *app) list(ctx context.Context, w io.Writer, refresh bool, days int, query string, colors bool) error {
	if refresh {
		if days == 0 {
			d, err := a.worker.jobDays(Job{})
			if err != nil {
				return fmt.Errorf("unable to read preferences. %w", err)
			}
			days = d
		}
		if _, err := a.worker.Refresh(ctx, days); err != nil {
			return err
		}
	}

	items, err := a.store.LoadItems()
	if err != nil {
		return err
	}

	return ui.RenderTable(w, ui.Filter(items, query), colors)
}
