package i18n

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

// Pack is a flat key → string mapping for one language.
type Pack map[string]string

// Source loads the pack for one language.
type Source interface {
	Load(ctx context.Context, lang string) (Pack, error)
}

// Bundle serves language packs loaded lazily from a Source. A pack moves from
// not-requested to loading to cached; once cached it is never fetched again.
// Failed loads are not cached.
type Bundle struct {
	src       Source
	fallback  string
	supported []string
	tags      []language.Tag
	matcher   language.Matcher

	mu    sync.RWMutex
	packs map[string]Pack
	group singleflight.Group

	policy *bluemonday.Policy
}

// New builds a bundle. fallback must be one of supported; it is moved to the front
// so the Accept-Language matcher prefers it on a tie.
func New(src Source, fallback string, supported []string) (*Bundle, error) {
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if fallback == "" {
		return nil, fmt.Errorf("i18n: fallback language is required")
	}
	if len(supported) == 0 {
		supported = []string{fallback}
	}
	langs := []string{fallback}
	for _, l := range supported {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || l == fallback {
			continue
		}
		langs = append(langs, l)
	}
	tags := make([]language.Tag, 0, len(langs))
	for _, l := range langs {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("i18n: parse language %q: %w", l, err)
		}
		tags = append(tags, tag)
	}
	return &Bundle{
		src:       src,
		fallback:  fallback,
		supported: langs,
		tags:      tags,
		matcher:   language.NewMatcher(tags),
		packs:     map[string]Pack{},
		policy:    inlinePolicy(),
	}, nil
}

// Load builds a bundle over a directory of <lang>.json files.
func Load(dir, fallback string, supported []string) (*Bundle, error) {
	return New(DirSource(dir), fallback, supported)
}

func inlinePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("br", "strong", "em", "b", "i", "small", "span")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Supported returns the supported languages, fallback first.
func (b *Bundle) Supported() []string {
	out := make([]string, len(b.supported))
	copy(out, b.supported)
	return out
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() string { return b.fallback }

// IsSupported reports whether lang is one of the configured languages.
func (b *Bundle) IsSupported(lang string) bool {
	for _, l := range b.supported {
		if l == lang {
			return true
		}
	}
	return false
}

// Normalize lowercases lang and maps it to a supported language, or returns "".
func (b *Bundle) Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return ""
	}
	if b.IsSupported(lang) {
		return lang
	}
	if base, _, ok := strings.Cut(lang, "-"); ok && b.IsSupported(base) {
		return base
	}
	return ""
}

// Cached returns the pack for lang if it has already been loaded.
func (b *Bundle) Cached(lang string) (Pack, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.packs[lang]
	return p, ok
}

// Pack returns the pack for lang. Unsupported languages and failed loads fall back to
// the default pack; when that fails too the result is an empty pack.
func (b *Bundle) Pack(ctx context.Context, lang string) Pack {
	lang = b.Normalize(lang)
	if lang == "" {
		lang = b.fallback
	}
	p, err := b.load(ctx, lang)
	if err == nil {
		return p
	}
	if lang != b.fallback {
		if p, err := b.load(ctx, b.fallback); err == nil {
			return p
		}
	}
	return Pack{}
}

func (b *Bundle) load(ctx context.Context, lang string) (Pack, error) {
	if p, ok := b.Cached(lang); ok {
		return p, nil
	}
	// Callers share one load; a cancelled caller must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := b.group.Do(lang, func() (any, error) {
		if p, ok := b.Cached(lang); ok {
			return p, nil
		}
		p, err := b.src.Load(shared, lang)
		if err != nil {
			return nil, fmt.Errorf("i18n: load %s: %w", lang, err)
		}
		if p == nil {
			p = Pack{}
		}
		b.mu.Lock()
		b.packs[lang] = p
		b.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Pack), nil
}

// Preload loads every supported pack and reports the first failure of the fallback.
func (b *Bundle) Preload(ctx context.Context) error {
	var fbErr error
	for _, l := range b.supported {
		if _, err := b.load(ctx, l); err != nil && l == b.fallback {
			fbErr = err
		}
	}
	return fbErr
}

// T returns the non-empty translation of key in lang, then in the fallback language,
// and finally key itself so missing strings stay visible.
func (b *Bundle) T(ctx context.Context, lang, key string) string {
	if v := b.Pack(ctx, lang)[key]; v != "" {
		return v
	}
	if v := b.Pack(ctx, b.fallback)[key]; v != "" {
		return v
	}
	return key
}

// HTML is T for strings that may carry inline markup. The result is sanitized.
func (b *Bundle) HTML(ctx context.Context, lang, key string) template.HTML {
	return template.HTML(b.policy.Sanitize(b.T(ctx, lang, key)))
}

// Resolve chooses the best supported language from an Accept-Language header.
func (b *Bundle) Resolve(acceptLang string) string {
	prefs, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil || len(prefs) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(prefs...)
	if conf == language.No || idx < 0 || idx >= len(b.supported) {
		return b.fallback
	}
	return b.supported[idx]
}

// Localizer binds a bundle to one request language.
type Localizer struct {
	ctx    context.Context
	bundle *Bundle
	Lang   string
}

// For returns a Localizer for lang.
func (b *Bundle) For(ctx context.Context, lang string) Localizer {
	lang = b.Normalize(lang)
	if lang == "" {
		lang = b.fallback
	}
	return Localizer{ctx: ctx, bundle: b, Lang: lang}
}

// T translates key.
func (l Localizer) T(key string) string {
	if l.bundle == nil {
		return key
	}
	return l.bundle.T(l.ctx, l.Lang, key)
}

// HTML translates key, allowing sanitized inline markup.
func (l Localizer) HTML(key string) template.HTML {
	if l.bundle == nil {
		return template.HTML(template.HTMLEscapeString(key))
	}
	return l.bundle.HTML(l.ctx, l.Lang, key)
}
