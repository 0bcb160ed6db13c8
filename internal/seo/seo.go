// Package seo builds the head metadata for a page: canonical and hreflang links,
// Open Graph and Twitter cards, and JSON-LD blocks.
package seo

import (
	"html/template"
	"net/url"
	"strings"
)

type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Type        string
	URL         string
	SiteName    string
	Locale      string
}

type Twitter struct {
	Card  string
	Site  string
	Image string
}

// Alternate is one <link rel="alternate" hreflang> entry.
type Alternate struct {
	Hreflang string
	Href     string
}

type Meta struct {
	Title       string
	Description string
	Canonical   string
	Robots      string
	OG          OpenGraph
	Twitter     Twitter
	Alternates  []Alternate
	JSONLD      []template.JS
}

// Page describes one page in one language.
type Page struct {
	BaseURL     string
	Path        string
	Lang        string
	DefaultLang string
	Languages   []string
	SiteName    string
	Title       string
	Description string
	Image       string
	TwitterSite string
	Type        string
	NoIndex     bool
}

// Meta assembles the head metadata for p. JSON-LD blocks are appended by the caller.
func (p Page) Meta() Meta {
	canonical := LangURL(p.BaseURL, p.Path, p.Lang, p.DefaultLang)
	image := Absolute(p.BaseURL, p.Image)
	ogType := p.Type
	if ogType == "" {
		ogType = "website"
	}
	card := "summary"
	if image != "" {
		card = "summary_large_image"
	}
	m := Meta{
		Title:       p.Title,
		Description: p.Description,
		Canonical:   canonical,
		Robots:      "index,follow",
		OG: OpenGraph{
			Title:       p.Title,
			Description: p.Description,
			Image:       image,
			Type:        ogType,
			URL:         canonical,
			SiteName:    p.SiteName,
			Locale:      OGLocale(p.Lang),
		},
		Twitter:    Twitter{Card: card, Site: p.TwitterSite, Image: image},
		Alternates: Alternates(p.BaseURL, p.Path, p.Languages, p.DefaultLang),
	}
	if p.NoIndex {
		m.Robots = "noindex,follow"
	}
	return m
}

// LangURL is the absolute URL of path in lang. The default language has no lang query.
func LangURL(baseURL, path, lang, defaultLang string) string {
	u := Absolute(baseURL, path)
	if lang == "" || lang == defaultLang {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "lang=" + url.QueryEscape(lang)
}

// Alternates lists one hreflang link per language plus x-default.
func Alternates(baseURL, path string, langs []string, defaultLang string) []Alternate {
	if len(langs) == 0 {
		return nil
	}
	out := make([]Alternate, 0, len(langs)+1)
	for _, l := range langs {
		out = append(out, Alternate{Hreflang: l, Href: LangURL(baseURL, path, l, defaultLang)})
	}
	out = append(out, Alternate{Hreflang: "x-default", Href: Absolute(baseURL, path)})
	return out
}

// Absolute resolves ref against baseURL. Absolute refs are returned unchanged.
func Absolute(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return base + ref
}

var ogLocales = map[string]string{
	"ko": "ko_KR",
	"vi": "vi_VN",
	"zh": "zh_CN",
	"en": "en_US",
	"ja": "ja_JP",
	"th": "th_TH",
	"tl": "tl_PH",
	"km": "km_KH",
}

// OGLocale maps a language code to the og:locale form.
func OGLocale(lang string) string {
	if l, ok := ogLocales[lang]; ok {
		return l
	}
	return lang
}
