package handlers

import (
	"net/url"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"etfsave.life/web/internal/cms"
	"etfsave.life/web/internal/i18n"
	"etfsave.life/web/internal/nav"
	"etfsave.life/web/internal/seo"
)

// View names select the body template rendered inside the shared layout.
const (
	ViewHome      = "home"
	ViewChangelog = "changelog"
	ViewContent   = "content"
	ViewNotFound  = "notfound"
)

// PageData is the view model for every page using the shared layout.
type PageData struct {
	View      string
	Title     string
	Brand     string
	Lang      string
	L         i18n.Localizer
	SEO       seo.Meta
	Analytics Analytics

	Path        string
	Nav         []nav.RenderedItem
	Breadcrumbs []nav.Crumb
	Languages   []LangOption
	Year        int

	// Optional per-page view model payloads
	Table     *TableData
	Changelog *ChangelogData
	Content   *cms.ContentPage
}

// LangOption is one entry of the language selector.
type LangOption struct {
	Code   string
	Label  string
	Href   string
	Active bool
}

// LanguageOptions builds the selector for path. Each link keeps query and sets lang.
func LanguageOptions(langs []string, current, path string, query url.Values) []LangOption {
	out := make([]LangOption, 0, len(langs))
	for _, code := range langs {
		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("lang", code)
		out = append(out, LangOption{
			Code:   code,
			Label:  NativeName(code),
			Href:   path + "?" + q.Encode(),
			Active: code == current,
		})
	}
	return out
}

// NativeName returns the language's name in itself, or the code when unknown.
func NativeName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return code
}
