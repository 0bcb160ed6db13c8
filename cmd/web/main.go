package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"etfsave.life/web/internal/cms"
	"etfsave.life/web/internal/config"
	"etfsave.life/web/internal/feed"
	"etfsave.life/web/internal/fees"
	"etfsave.life/web/internal/i18n"
	"etfsave.life/web/internal/nav"
	"etfsave.life/web/internal/observability"
	"etfsave.life/web/internal/sheet"
)

const (
	contentTTL      = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("web: %v", err)
	}
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP listen port")
	flag.StringVar(&cfg.Server.TemplatesDir, "templates", cfg.Server.TemplatesDir, "templates directory")
	flag.StringVar(&cfg.Server.PublicDir, "public", cfg.Server.PublicDir, "public assets directory")
	flag.StringVar(&cfg.SiteFile, "site", cfg.SiteFile, "site file")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		config.Exitf("web: init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("web exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	s, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if s.sheets != nil {
		defer s.sheets.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("web listening", zap.String("addr", srv.Addr), zap.Bool("dev", cfg.Server.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("web shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*server, error) {
	site, err := config.LoadSite(cfg.SiteFile)
	if err != nil {
		return nil, err
	}

	var src i18n.Source = i18n.DirSource(cfg.Server.LocalesDir)
	if cfg.Server.LocalesURL != "" {
		src = i18n.HTTPSource{BaseURL: cfg.Server.LocalesURL}
	}
	bundle, err := i18n.New(src, site.DefaultLanguage, site.Languages)
	if err != nil {
		return nil, err
	}
	preloadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := bundle.Preload(preloadCtx); err != nil {
		logger.Warn("default language pack unavailable", zap.Error(err))
	}

	views, err := newViews(cfg.Server.TemplatesDir, cfg.Server.Dev)
	if err != nil {
		return nil, err
	}

	board := fees.NewBoard()
	client := feed.NewClient(feed.Endpoints{
		Rows:      cfg.Data.RowsURL,
		Updated:   cfg.Data.UpdatedURL,
		Changelog: cfg.Data.ChangelogURL,
	}, feed.WithLogger(logger.Named("feed")))

	ttl := contentTTL
	if cfg.Server.Dev {
		ttl = 0
	}
	menu := make(nav.Menu, 0, len(site.Nav))
	for _, it := range site.Nav {
		menu = append(menu, nav.Item{Path: it.Path, LabelKey: it.LabelKey})
	}

	s := &server{
		cfg:       cfg,
		site:      site,
		logger:    logger,
		bundle:    bundle,
		board:     board,
		feed:      client,
		refresher: feed.NewRefresher(client, board, cfg.Data.RefreshInterval, logger.Named("refresher")),
		content:   cms.NewClient(cfg.Server.ContentDir, ttl, site.DefaultLanguage, "en"),
		views:     views,
		menu:      menu,
	}
	if cfg.Sheet.DBPath != "" {
		store, err := sheet.Open(cfg.Sheet.DBPath)
		if err != nil {
			return nil, err
		}
		s.sheets = store
		logger.Info("sheet endpoint enabled", zap.String("db", cfg.Sheet.DBPath), zap.Bool("publish", cfg.Sheet.Publish))
	}
	return s, nil
}
