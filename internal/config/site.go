package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Site is the site-level data kept in site.yaml.
type Site struct {
	Brand           string      `yaml:"brand"`
	BaseURL         string      `yaml:"base_url"`
	DefaultLanguage string      `yaml:"default_language"`
	Languages       []string    `yaml:"languages"`
	Nav             []NavItem   `yaml:"nav"`
	Presets         []Preset    `yaml:"presets"`
	Pages           []string    `yaml:"pages"`
	Social          SocialLinks `yaml:"social"`
}

// NavItem is one header navigation link.
type NavItem struct {
	Path     string `yaml:"path"`
	LabelKey string `yaml:"label_key"`
}

// Preset is a page pinned to one category. Tabs are hidden and the category query
// is ignored on it.
type Preset struct {
	Slug           string `yaml:"slug"`
	Category       string `yaml:"category"`
	TitleKey       string `yaml:"title_key"`
	DescriptionKey string `yaml:"description_key"`
}

// SocialLinks feeds Open Graph and Twitter tags.
type SocialLinks struct {
	Image       string `yaml:"image"`
	TwitterSite string `yaml:"twitter_site"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// reserved paths that presets and content pages may not shadow
var reservedSlugs = []string{"assets", "api", "healthz", "locales", "table", "changelog"}

// DefaultSite is used when no site file exists.
func DefaultSite() Site {
	return Site{
		Brand:           "ETF Save",
		BaseURL:         "https://etfsave.life",
		DefaultLanguage: "ko",
		Languages:       []string{"ko", "vi", "zh", "en", "ja", "th", "tl", "km"},
		Nav: []NavItem{
			{Path: "/", LabelKey: "nav_home"},
			{Path: "/guide", LabelKey: "nav_guide"},
			{Path: "/changelog", LabelKey: "nav_changelog"},
			{Path: "/about", LabelKey: "nav_about"},
		},
		Pages: []string{"about", "guide"},
	}
}

// LoadSite reads a site file. A missing file yields DefaultSite.
func LoadSite(path string) (Site, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSite(), nil
	}
	if err != nil {
		return Site{}, fmt.Errorf("read site file: %w", err)
	}
	return ParseSite(raw)
}

// ParseSite decodes site YAML over the defaults and validates it.
func ParseSite(raw []byte) (Site, error) {
	site := DefaultSite()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&site); err != nil && !errors.Is(err, io.EOF) {
		return Site{}, fmt.Errorf("decode site file: %w", err)
	}
	site.normalize()
	if err := site.Validate(); err != nil {
		return Site{}, err
	}
	return site, nil
}

func (s *Site) normalize() {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.DefaultLanguage = strings.ToLower(strings.TrimSpace(s.DefaultLanguage))
	langs := make([]string, 0, len(s.Languages))
	for _, l := range s.Languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" && !slices.Contains(langs, l) {
			langs = append(langs, l)
		}
	}
	s.Languages = langs
	for i := range s.Presets {
		s.Presets[i].Slug = strings.Trim(strings.TrimSpace(s.Presets[i].Slug), "/")
		s.Presets[i].Category = strings.TrimSpace(s.Presets[i].Category)
	}
}

// Validate checks languages, slugs and presets.
func (s Site) Validate() error {
	var bad []string
	if s.DefaultLanguage == "" || !slices.Contains(s.Languages, s.DefaultLanguage) {
		bad = append(bad, "default_language")
	}
	seen := map[string]struct{}{}
	check := func(field, slug string) {
		if !slugPattern.MatchString(slug) || slices.Contains(reservedSlugs, slug) {
			bad = append(bad, field)
			return
		}
		if _, dup := seen[slug]; dup {
			bad = append(bad, field)
			return
		}
		seen[slug] = struct{}{}
	}
	for i, p := range s.Presets {
		check(fmt.Sprintf("presets[%d].slug", i), p.Slug)
		if p.Category == "" {
			bad = append(bad, fmt.Sprintf("presets[%d].category", i))
		}
	}
	for i, p := range s.Pages {
		check(fmt.Sprintf("pages[%d]", i), p)
	}
	if len(bad) > 0 {
		return &ValidationError{fields: bad}
	}
	return nil
}

// Preset returns the preset page for slug.
func (s Site) Preset(slug string) (Preset, bool) {
	for _, p := range s.Presets {
		if p.Slug == slug {
			return p, true
		}
	}
	return Preset{}, false
}

// HasPage reports whether slug is a content page.
func (s Site) HasPage(slug string) bool {
	return slices.Contains(s.Pages, slug)
}
