// Package cms serves the localized markdown pages (guide, about) from the content
// directory.
package cms

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"etfsave.life/web/internal/format"
)

// ErrNotFound is returned when no language variant of a page exists.
var ErrNotFound = errors.New("cms: page not found")

// ContentPage is one rendered markdown page.
type ContentPage struct {
	Slug      string
	Lang      string
	Title     string
	Summary   string
	Body      template.HTML
	UpdatedAt time.Time
	SEO       ContentSEO
}

// ContentSEO holds optional metadata overrides.
type ContentSEO struct {
	Title       string
	Description string
	OGImage     string
}

type contentFrontMatter struct {
	Title     string `yaml:"title"`
	Summary   string `yaml:"summary"`
	UpdatedAt string `yaml:"updated_at"`
	SEO       struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		OGImage     string `yaml:"og_image"`
	} `yaml:"seo"`
}

const defaultContentDir = "content"

type cacheEntry struct {
	page    ContentPage
	expires time.Time
}

// Client reads pages from <dir>/<lang>/<slug>.md.
type Client struct {
	dir      string
	fallback []string
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewClient builds a client. Missing translations fall back through fallback in order.
// ttl <= 0 disables caching, which suits dev mode.
func NewClient(dir string, ttl time.Duration, fallback ...string) *Client {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = defaultContentDir
	}
	return &Client{
		dir:      dir,
		fallback: fallback,
		ttl:      ttl,
		now:      time.Now,
		cache:    map[string]cacheEntry{},
	}
}

// ContentDir returns the configured directory.
func (c *Client) ContentDir() string { return c.dir }

// GetContentPage returns slug in lang, or in the first fallback language that has it.
func (c *Client) GetContentPage(ctx context.Context, slug, lang string) (ContentPage, error) {
	slug = sanitizeSlug(slug)
	if slug == "" {
		return ContentPage{}, ErrNotFound
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	key := lang + "|" + slug
	if page, ok := c.cached(key); ok {
		return page, nil
	}
	priority := []string{lang}
	for _, l := range c.fallback {
		if l != lang {
			priority = append(priority, l)
		}
	}
	for _, candidate := range priority {
		if err := ctx.Err(); err != nil {
			return ContentPage{}, err
		}
		if candidate == "" {
			continue
		}
		page, err := c.read(slug, candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return ContentPage{}, err
		}
		c.store(key, page)
		return page, nil
	}
	return ContentPage{}, ErrNotFound
}

func (c *Client) read(slug, lang string) (ContentPage, error) {
	file := filepath.Join(c.dir, lang, slug+".md")
	data, err := os.ReadFile(file)
	if err != nil {
		return ContentPage{}, err
	}
	fm, body := splitFrontMatter(string(data))
	var front contentFrontMatter
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return ContentPage{}, fmt.Errorf("cms: parse front matter %s: %w", file, err)
		}
	}
	rendered, err := Render([]byte(body))
	if err != nil {
		return ContentPage{}, fmt.Errorf("cms: render %s: %w", file, err)
	}
	page := ContentPage{
		Slug:    slug,
		Lang:    lang,
		Title:   strings.TrimSpace(front.Title),
		Summary: strings.TrimSpace(front.Summary),
		Body:    rendered,
		SEO: ContentSEO{
			Title:       strings.TrimSpace(front.SEO.Title),
			Description: strings.TrimSpace(front.SEO.Description),
			OGImage:     strings.TrimSpace(front.SEO.OGImage),
		},
	}
	if page.Summary == "" {
		page.Summary = Summarize(rendered, 160)
	}
	if t, ok := format.ParseDate(front.UpdatedAt); ok {
		page.UpdatedAt = t
	} else if info, err := os.Stat(file); err == nil {
		page.UpdatedAt = info.ModTime().UTC()
	}
	if page.Title == "" {
		page.Title = prettifySlug(slug)
	}
	return page, nil
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func prettifySlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(part)
		if runes[0] >= 'a' && runes[0] <= 'z' {
			runes[0] -= 'a' - 'A'
		}
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}

func sanitizeSlug(slug string) string {
	slug = strings.Trim(strings.TrimSpace(strings.ToLower(slug)), "/")
	if slug == "" || strings.Contains(slug, "..") || strings.ContainsAny(slug, `/\`) {
		return ""
	}
	return slug
}

func (c *Client) cached(key string) (ContentPage, bool) {
	if c.ttl <= 0 {
		return ContentPage{}, false
	}
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return ContentPage{}, false
	}
	return entry.page, true
}

func (c *Client) store(key string, page ContentPage) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{page: page, expires: c.now().Add(c.ttl)}
}
