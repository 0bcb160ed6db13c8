package seo

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPageMeta(t *testing.T) {
	p := Page{
		BaseURL:     "https://etfsave.life/",
		Path:        "/guide",
		Lang:        "en",
		DefaultLang: "ko",
		Languages:   []string{"ko", "en", "ja"},
		SiteName:    "ETF Save",
		Title:       "Guide",
		Description: "How to read the table",
		Image:       "/assets/og.png",
	}
	m := p.Meta()
	if m.Canonical != "https://etfsave.life/guide?lang=en" {
		t.Fatalf("unexpected canonical %q", m.Canonical)
	}
	if m.OG.Image != "https://etfsave.life/assets/og.png" || m.Twitter.Card != "summary_large_image" {
		t.Fatalf("unexpected card %+v %+v", m.OG, m.Twitter)
	}
	if m.OG.Locale != "en_US" || m.OG.Type != "website" {
		t.Fatalf("unexpected og %+v", m.OG)
	}
	if len(m.Alternates) != 4 {
		t.Fatalf("expected 4 alternates, got %d", len(m.Alternates))
	}
	if m.Alternates[0].Href != "https://etfsave.life/guide" || m.Alternates[0].Hreflang != "ko" {
		t.Fatalf("default language must not carry a lang query: %+v", m.Alternates[0])
	}
	if last := m.Alternates[3]; last.Hreflang != "x-default" || last.Href != "https://etfsave.life/guide" {
		t.Fatalf("unexpected x-default %+v", last)
	}
}

func TestNoIndexAndNoImage(t *testing.T) {
	m := Page{BaseURL: "https://etfsave.life", Path: "/", Lang: "ko", DefaultLang: "ko", NoIndex: true}.Meta()
	if m.Robots != "noindex,follow" || m.Twitter.Card != "summary" {
		t.Fatalf("unexpected meta %+v", m)
	}
	if m.Alternates != nil {
		t.Fatalf("expected no alternates without languages")
	}
}

func TestJSONEscapesScriptClose(t *testing.T) {
	out := string(JSON(Dataset{Name: "</script><b>", Description: "x"}.Schema()))
	if strings.Contains(out, "</script>") {
		t.Fatalf("payload can close the script element: %s", out)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if m["@type"] != "Dataset" || m["name"] != "</script><b>" {
		t.Fatalf("unexpected payload %v", m)
	}
}

func TestDatasetSchema(t *testing.T) {
	m := Dataset{
		Name:         "ETF fees",
		URL:          "https://etfsave.life/",
		DataURL:      "https://etfsave.life/data.json",
		Publisher:    "ETF Save",
		Lang:         "ko",
		DateModified: "2025-02-11",
	}.Schema()
	if m["dateModified"] != "2025-02-11" || m["inLanguage"] != "ko" {
		t.Fatalf("unexpected schema %v", m)
	}
	dist, ok := m["distribution"].([]map[string]any)
	if !ok || dist[0]["contentUrl"] != "https://etfsave.life/data.json" {
		t.Fatalf("unexpected distribution %v", m["distribution"])
	}
}

func TestBreadcrumbList(t *testing.T) {
	m := BreadcrumbList([]BreadcrumbItem{{Name: "Home", Item: "https://etfsave.life/"}, {Name: "Guide", Item: "https://etfsave.life/guide"}})
	items := m["itemListElement"].([]map[string]any)
	if len(items) != 2 || items[1]["position"] != 2 {
		t.Fatalf("unexpected items %v", items)
	}
}
