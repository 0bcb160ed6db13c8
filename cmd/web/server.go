package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"etfsave.life/web/internal/cms"
	"etfsave.life/web/internal/config"
	"etfsave.life/web/internal/feed"
	"etfsave.life/web/internal/fees"
	"etfsave.life/web/internal/format"
	"etfsave.life/web/internal/handlers"
	"etfsave.life/web/internal/i18n"
	mw "etfsave.life/web/internal/middleware"
	"etfsave.life/web/internal/nav"
	"etfsave.life/web/internal/observability"
	"etfsave.life/web/internal/record"
	"etfsave.life/web/internal/seo"
	"etfsave.life/web/internal/sheet"
)

// server holds everything the routes need.
type server struct {
	cfg       config.Config
	site      config.Site
	logger    *zap.Logger
	bundle    *i18n.Bundle
	board     *fees.Board
	feed      *feed.Client
	refresher *feed.Refresher
	content   *cms.Client
	views     *views
	menu      nav.Menu

	// sheets is nil when the update endpoint is disabled.
	sheets *sheet.Store
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// If deployed behind a trusted reverse proxy/load balancer, RealIP will use
	// X-Forwarded-For to determine the client IP.
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(mw.HTMX)

	r.Get("/healthz", s.healthz)
	r.Handle("/assets/*", mw.AssetsWithCache(filepath.Join(s.cfg.Server.PublicDir, "assets"), "/assets", s.cfg.Server.Dev))
	if s.sheets != nil {
		h := sheet.NewHandler(sheet.NewService(s.sheets))
		if s.cfg.Sheet.Publish {
			h.OnResultReplaced = s.publish
		}
		r.Handle("/api/sheet", h)
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.Locale(s.bundle))
		r.Use(mw.VaryLocale)
		r.Get("/", s.home)
		r.Get("/table", s.table)
		r.Get("/changelog", s.changelog)
		r.Get("/locales/{file}", s.locales)
		r.Get("/{slug}", s.slug)
		r.NotFound(s.notFound)
	})
	return r
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.sheets != nil {
		if err := s.sheets.Ping(r.Context()); err != nil {
			observability.FromContext(r.Context()).Error("sheet store ping failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("sheet store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// publish installs rows posted to the result sheet on the live board.
func (s *server) publish(ctx context.Context, rows []record.Record) {
	ds := s.board.Replace(rows, time.Now().Format("2006/01/02"))
	observability.FromContext(ctx).Info("published sheet rows", zap.Int("rows", len(ds.Rows)))
}

// page fills the layout fields shared by every page.
func (s *server) page(r *http.Request, view, title, description string) handlers.PageData {
	ctx := r.Context()
	lang := mw.Lang(r, s.bundle.Fallback())
	l := s.bundle.For(ctx, lang)
	path := r.URL.Path
	query := r.URL.Query()
	query.Del(mw.LangParam)
	if s.isHome(path) {
		title = l.T("seo_title")
	} else if title != "" {
		title = title + " | " + s.site.Brand
	} else {
		title = s.site.Brand
	}
	if description == "" {
		description = l.T("seo_description")
	}
	return handlers.PageData{
		View:      view,
		Title:     title,
		Brand:     s.site.Brand,
		Lang:      l.Lang,
		L:         l,
		Analytics: handlers.AnalyticsFrom(s.cfg.Analytics),
		SEO: seo.Page{
			BaseURL:     s.site.BaseURL,
			Path:        path,
			Lang:        l.Lang,
			DefaultLang: s.bundle.Fallback(),
			Languages:   s.bundle.Supported(),
			SiteName:    s.site.Brand,
			Title:       title,
			Description: description,
			Image:       s.site.Social.Image,
			TwitterSite: s.site.Social.TwitterSite,
		}.Meta(),
		Path:        path,
		Nav:         s.menu.Build(path),
		Breadcrumbs: s.menu.Breadcrumbs(path),
		Languages:   handlers.LanguageOptions(s.bundle.Supported(), l.Lang, path, query),
		Year:        time.Now().Year(),
	}
}

func (s *server) isHome(path string) bool { return path == "" || path == "/" }

func (s *server) tableData(r *http.Request, sel fees.Selection, basePath string) *handlers.TableData {
	sel.Lang = mw.Lang(r, s.bundle.Fallback())
	v := s.board.View(sel)
	return handlers.NewTableData(v, s.refresher != nil && s.refresher.LastError() != nil, basePath)
}

func (s *server) home(w http.ResponseWriter, r *http.Request) {
	table := s.tableData(r, fees.Selection{Category: r.URL.Query().Get("category")}, "/")
	vm := s.page(r, handlers.ViewHome, "", "")
	vm.Table = table
	vm.SEO.JSONLD = append(vm.SEO.JSONLD,
		seo.JSON(seo.WebSite(s.site.Brand, s.site.BaseURL+"/", s.bundle.Supported())),
		seo.JSON(s.datasetSchema(vm, table)),
	)
	s.views.render(w, r, http.StatusOK, "base", vm)
}

func (s *server) datasetSchema(vm handlers.PageData, table *handlers.TableData) map[string]any {
	d := seo.Dataset{
		Name:        vm.Title,
		Description: vm.SEO.Description,
		URL:         vm.SEO.Canonical,
		Publisher:   s.site.Brand,
		Lang:        vm.Lang,
	}
	if u := s.feed.Endpoints().Rows; feed.IsRemote(u) {
		d.DataURL = u
	}
	if t, ok := format.ParseDate(table.UpdatedAt); ok {
		d.DateModified = t.Format("2006-01-02")
	}
	return d.Schema()
}

// table serves the fee table fragment requested by a tab click. Plain requests are
// sent to the full page.
func (s *server) table(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if !mw.IsHTMX(r.Context()) {
		target := "/"
		if category != "" {
			target += "?" + url.Values{"category": {category}}.Encode()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	table := s.tableData(r, fees.Selection{Category: category}, "/")
	mw.PushURL(w, table.PageHref(table.Selection.Category))
	vm := handlers.PageData{
		Lang:  mw.Lang(r, s.bundle.Fallback()),
		Table: table,
	}
	vm.L = s.bundle.For(r.Context(), vm.Lang)
	s.views.render(w, r, http.StatusOK, "table", vm)
}

func (s *server) changelog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.feed.Changelog(r.Context())
	data := handlers.BuildChangelog(entries)
	if err != nil && !errors.Is(err, feed.ErrNotFound) {
		observability.FromContext(r.Context()).Warn("changelog load failed", zap.Error(err))
		data.Failed = true
	}
	l := s.bundle.For(r.Context(), mw.Lang(r, s.bundle.Fallback()))
	vm := s.page(r, handlers.ViewChangelog, l.T("changelog_title"), l.T("changelog_description"))
	vm.Changelog = data
	s.views.render(w, r, http.StatusOK, "base", vm)
}

// slug serves preset category pages and markdown content pages.
func (s *server) slug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if p, ok := s.site.Preset(slug); ok {
		s.preset(w, r, p)
		return
	}
	if s.site.HasPage(slug) {
		s.contentPage(w, r, slug)
		return
	}
	s.notFound(w, r)
}

func (s *server) preset(w http.ResponseWriter, r *http.Request, p config.Preset) {
	// the category query is ignored on preset pages
	table := s.tableData(r, fees.Selection{Category: p.Category, Fixed: true}, "/"+p.Slug)
	l := s.bundle.For(r.Context(), mw.Lang(r, s.bundle.Fallback()))
	title := p.Category
	if p.TitleKey != "" {
		title = l.T(p.TitleKey)
	}
	description := ""
	if p.DescriptionKey != "" {
		description = l.T(p.DescriptionKey)
	}
	vm := s.page(r, handlers.ViewHome, title, description)
	vm.Table = table
	vm.SEO.JSONLD = append(vm.SEO.JSONLD, seo.JSON(s.datasetSchema(vm, table)))
	s.views.render(w, r, http.StatusOK, "base", vm)
}

func (s *server) contentPage(w http.ResponseWriter, r *http.Request, slug string) {
	lang := mw.Lang(r, s.bundle.Fallback())
	page, err := s.content.GetContentPage(r.Context(), slug, lang)
	if errors.Is(err, cms.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		observability.FromContext(r.Context()).Error("content page failed", zap.String("slug", slug), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	title := page.Title
	if page.SEO.Title != "" {
		title = page.SEO.Title
	}
	description := page.Summary
	if page.SEO.Description != "" {
		description = page.SEO.Description
	}
	vm := s.page(r, handlers.ViewContent, title, description)
	vm.Content = &page
	w.Header().Set("Cache-Control", "public, max-age=600")
	if !page.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", page.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	vm.SEO.OG.Type = "article"
	if page.SEO.OGImage != "" {
		vm.SEO.OG.Image = seo.Absolute(s.site.BaseURL, page.SEO.OGImage)
		vm.SEO.Twitter.Image = vm.SEO.OG.Image
	}
	modified := ""
	if !page.UpdatedAt.IsZero() {
		modified = page.UpdatedAt.Format("2006-01-02")
	}
	crumbs := make([]seo.BreadcrumbItem, 0, len(vm.Breadcrumbs))
	for _, c := range vm.Breadcrumbs {
		name := c.Label
		if c.LabelKey != "" {
			name = vm.L.T(c.LabelKey)
		}
		crumbs = append(crumbs, seo.BreadcrumbItem{Name: name, Item: seo.LangURL(s.site.BaseURL, c.Href, vm.Lang, s.bundle.Fallback())})
	}
	vm.SEO.JSONLD = append(vm.SEO.JSONLD,
		seo.JSON(seo.Article(page.Title, vm.SEO.Canonical, page.Lang, modified)),
		seo.JSON(seo.BreadcrumbList(crumbs)),
	)
	s.views.render(w, r, http.StatusOK, "base", vm)
}

// locales serves a language pack for client-side glue.
func (s *server) locales(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	lang := s.bundle.Normalize(strings.TrimSuffix(file, ".json"))
	if lang == "" || !strings.HasSuffix(file, ".json") {
		http.NotFound(w, r)
		return
	}
	pack := s.bundle.Pack(r.Context(), lang)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(pack)
}

func (s *server) notFound(w http.ResponseWriter, r *http.Request) {
	l := s.bundle.For(r.Context(), mw.Lang(r, s.bundle.Fallback()))
	vm := s.page(r, handlers.ViewNotFound, l.T("not_found_title"), "")
	vm.SEO.Robots = "noindex,follow"
	vm.SEO.Alternates = nil
	s.views.render(w, r, http.StatusNotFound, "base", vm)
}
