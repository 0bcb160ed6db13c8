package middleware

import (
	"net/http"
	"time"

	"etfsave.life/web/internal/i18n"
)

const (
	// LangParam overrides the language for one request and persists the choice.
	LangParam = "lang"
	// LangCookie remembers the last selected language.
	LangCookie = "site_language"

	langCookieMaxAge = 365 * 24 * time.Hour
)

// Locale resolves the UI language: the lang query first, then the stored cookie,
// then Accept-Language, then the bundle's fallback. A supported lang query is
// written back to the cookie.
func Locale(bundle *i18n.Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := ""
			if q := bundle.Normalize(r.URL.Query().Get(LangParam)); q != "" {
				lang = q
				if c, err := r.Cookie(LangCookie); err != nil || c.Value != q {
					http.SetCookie(w, langCookie(q, r.TLS != nil))
				}
			}
			if lang == "" {
				if c, err := r.Cookie(LangCookie); err == nil {
					lang = bundle.Normalize(c.Value)
				}
			}
			if lang == "" {
				lang = bundle.Resolve(r.Header.Get("Accept-Language"))
			}
			w.Header().Set("Content-Language", lang)
			next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
		})
	}
}

func langCookie(lang string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     LangCookie,
		Value:    lang,
		Path:     "/",
		MaxAge:   int(langCookieMaxAge / time.Second),
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Lang returns the request language resolved by Locale, or fallback.
func Lang(r *http.Request, fallback string) string {
	if l, ok := LangFromContext(r.Context()); ok {
		return l
	}
	return fallback
}

// VaryLocale marks responses as varying on the inputs Locale reads.
func VaryLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Language")
		w.Header().Add("Vary", "Cookie")
		next.ServeHTTP(w, r)
	})
}
