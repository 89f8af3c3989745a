// Package i18n serves translation bundles and negotiates the request language.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/text/language"

	internalhttputil "github.com/GuardianChain/launch_layer/internal/httputil"
)

// CookieName holds an explicit language choice.
const CookieName = "gtt_lang"

//go:embed locales/*.json
var locales embed.FS

type ctxKey struct{}

// Language describes one supported bundle.
type Language struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Native string `json:"native"`
	Keys   int    `json:"keys"`
}

// Manager holds the loaded bundles. It is immutable after New.
type Manager struct {
	fallback string
	tags     []language.Tag
	codes    []string
	bundles  map[string]map[string]string
	matcher  language.Matcher
}

var displayNames = map[string][2]string{
	"en": {"English", "English"},
	"es": {"Spanish", "Español"},
	"fr": {"French", "Français"},
	"zh": {"Chinese", "中文"},
}

// New loads the embedded bundles. English is the fallback and is listed
// first so the matcher prefers it on ties.
func New() (*Manager, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	m := &Manager{fallback: "en", bundles: make(map[string]map[string]string)}
	for _, e := range entries {
		code := strings.TrimSuffix(e.Name(), ".json")
		data, err := locales.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", code, err)
		}
		bundle := make(map[string]string)
		if err := json.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", code, err)
		}
		m.bundles[code] = bundle
	}
	if _, ok := m.bundles[m.fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %s missing", m.fallback)
	}

	m.codes = append(m.codes, m.fallback)
	for code := range m.bundles {
		if code != m.fallback {
			m.codes = append(m.codes, code)
		}
	}
	sort.Strings(m.codes[1:])
	for _, code := range m.codes {
		m.tags = append(m.tags, language.Make(code))
	}
	m.matcher = language.NewMatcher(m.tags)
	return m, nil
}

// Supported reports whether code names a loaded bundle.
func (m *Manager) Supported(code string) bool {
	_, ok := m.bundles[strings.ToLower(code)]
	return ok
}

// Negotiate picks a language code. A supported cookie value wins, then the
// best Accept-Language match, then the fallback.
func (m *Manager) Negotiate(acceptLanguage, cookie string) string {
	if cookie != "" && m.Supported(cookie) {
		return strings.ToLower(cookie)
	}
	if acceptLanguage == "" {
		return m.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return m.fallback
	}
	_, idx, conf := m.matcher.Match(tags...)
	if conf == language.No {
		return m.fallback
	}
	return m.codes[idx]
}

// Translate returns the message for key in lang, falling back to English and
// then to the key itself.
func (m *Manager) Translate(lang, key string) string {
	if msg, ok := m.bundles[lang][key]; ok {
		return msg
	}
	if msg, ok := m.bundles[m.fallback][key]; ok {
		return msg
	}
	return key
}

// T translates key in the language stored in ctx.
func (m *Manager) T(ctx context.Context, key string) string {
	return m.Translate(FromContext(ctx), key)
}

// Bundle returns the messages of lang with missing keys filled from English.
func (m *Manager) Bundle(lang string) (map[string]string, bool) {
	bundle, ok := m.bundles[strings.ToLower(lang)]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(m.bundles[m.fallback]))
	for k, v := range m.bundles[m.fallback] {
		out[k] = v
	}
	for k, v := range bundle {
		out[k] = v
	}
	return out, true
}

// Languages lists the supported languages, fallback first.
func (m *Manager) Languages() []Language {
	out := make([]Language, 0, len(m.codes))
	for _, code := range m.codes {
		names := displayNames[code]
		out = append(out, Language{Code: code, Name: names[0], Native: names[1], Keys: len(m.bundles[code])})
	}
	return out
}

// WithLanguage stores lang in ctx.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// FromContext returns the language stored in ctx, or "en".
func FromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(ctxKey{}).(string); ok && lang != "" {
		return lang
	}
	return "en"
}

// Middleware negotiates the request language and sets Content-Language.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie := ""
		if c, err := r.Cookie(CookieName); err == nil {
			cookie = c.Value
		}
		lang := m.Negotiate(r.Header.Get("Accept-Language"), cookie)
		w.Header().Set("Content-Language", lang)
		next.ServeHTTP(w, r.WithContext(WithLanguage(r.Context(), lang)))
	})
}

// RegisterRoutes registers the bundle endpoints.
func (m *Manager) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/i18n", m.handleLanguages).Methods(http.MethodGet)
	router.HandleFunc("/api/i18n/{lang}", m.handleBundle).Methods(http.MethodGet)
}

func (m *Manager) handleLanguages(w http.ResponseWriter, r *http.Request) {
	internalhttputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"current":   FromContext(r.Context()),
		"fallback":  m.fallback,
		"languages": m.Languages(),
	})
}

func (m *Manager) handleBundle(w http.ResponseWriter, r *http.Request) {
	lang := mux.Vars(r)["lang"]
	bundle, ok := m.Bundle(lang)
	if !ok {
		internalhttputil.NotFound(w, fmt.Sprintf("language %q not supported", lang))
		return
	}
	internalhttputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"language": strings.ToLower(lang),
		"messages": bundle,
	})
}
