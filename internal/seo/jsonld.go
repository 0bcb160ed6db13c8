package seo

import (
	"encoding/json"
	"html/template"
)

// JSON marshals v for a <script type="application/ld+json"> block. json.Marshal
// escapes <, > and & so the payload cannot close the script element. It returns an
// empty value on error.
func JSON(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return template.JS(b)
}

// Organization returns a minimal Organization schema.
func Organization(name, url, logoURL string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	return m
}

// WebSite returns a WebSite schema listing the available languages.
func WebSite(name, url string, languages []string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if len(languages) > 0 {
		m["inLanguage"] = languages
	}
	return m
}

// Dataset describes the published fee table.
type Dataset struct {
	Name         string
	Description  string
	URL          string
	DataURL      string
	Publisher    string
	Lang         string
	DateModified string // YYYY-MM-DD
}

// Schema returns the schema.org Dataset payload.
func (d Dataset) Schema() map[string]any {
	m := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "Dataset",
		"name":        d.Name,
		"description": d.Description,
	}
	if d.URL != "" {
		m["url"] = d.URL
	}
	if d.Lang != "" {
		m["inLanguage"] = d.Lang
	}
	if d.DateModified != "" {
		m["dateModified"] = d.DateModified
	}
	if d.Publisher != "" {
		m["creator"] = map[string]any{"@type": "Organization", "name": d.Publisher}
	}
	if d.DataURL != "" {
		m["distribution"] = []map[string]any{{
			"@type":          "DataDownload",
			"encodingFormat": "application/json",
			"contentUrl":     d.DataURL,
		}}
	}
	return m
}

// BreadcrumbItem maps name and absolute item URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds schema.org BreadcrumbList.
func BreadcrumbList(items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "BreadcrumbList",
		"itemListElement": el,
	}
}

// Article returns a minimal Article schema payload for content pages.
func Article(headline, url, lang, dateModified string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Article",
		"headline": headline,
	}
	if url != "" {
		m["url"] = url
	}
	if lang != "" {
		m["inLanguage"] = lang
	}
	if dateModified != "" {
		m["dateModified"] = dateModified
	}
	return m
}
