package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

const (
	// LanguageCookie persists the visitor's chosen language.
	LanguageCookie = "preferred-language"
	// LanguageParam selects a language for the request and persists it.
	LanguageParam      = "lang"
	contextLanguageKey = "language"
	languageCookieAge  = 365 * 24 * time.Hour
)

// LanguageNegotiator resolves the display language for a request.
type LanguageNegotiator struct {
	supported []string
	fallback  string
	matcher   language.Matcher
	secure    bool
}

// NewLanguageNegotiator builds a negotiator over the supported codes; fallback
// must be one of them.
func NewLanguageNegotiator(supported []string, fallback string, secureCookie bool) *LanguageNegotiator {
	ordered := make([]string, 0, len(supported))
	if fallback != "" {
		ordered = append(ordered, fallback)
	}
	for _, code := range supported {
		if code != fallback {
			ordered = append(ordered, code)
		}
	}
	tags := make([]language.Tag, 0, len(ordered))
	for _, code := range ordered {
		tags = append(tags, language.Make(code))
	}
	return &LanguageNegotiator{supported: ordered, fallback: fallback, matcher: language.NewMatcher(tags), secure: secureCookie}
}

// Supports reports whether code is a supported language.
func (n *LanguageNegotiator) Supports(code string) bool {
	for _, candidate := range n.supported {
		if candidate == code {
			return true
		}
	}
	return false
}

// Resolve picks the language: lang query, then cookie, then Accept-Language,
// then the fallback. The bool reports whether the query value should be persisted.
func (n *LanguageNegotiator) Resolve(r *http.Request) (string, bool) {
	if value := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(LanguageParam))); n.Supports(value) {
		return value, true
	}
	if cookie, err := r.Cookie(LanguageCookie); err == nil && n.Supports(cookie.Value) {
		return cookie.Value, false
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, index, confidence := n.matcher.Match(tags...)
			if confidence != language.No {
				return n.supported[index], false
			}
		}
	}
	return n.fallback, false
}

// Persist writes the language cookie.
func (n *LanguageNegotiator) Persist(w http.ResponseWriter, code string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LanguageCookie,
		Value:    code,
		Path:     "/",
		MaxAge:   int(languageCookieAge.Seconds()),
		Secure:   n.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Language stores the negotiated language on the context and sets Content-Language.
func Language(n *LanguageNegotiator) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, persist := n.Resolve(c.Request)
		if persist {
			n.Persist(c.Writer, code)
		}
		c.Set(contextLanguageKey, code)
		c.Header("Content-Language", code)
		c.Next()
	}
}

// CurrentLanguage returns the language negotiated for the request.
func CurrentLanguage(c *gin.Context) string {
	if value, ok := c.Get(contextLanguageKey); ok {
		if code, ok := value.(string); ok {
			return code
		}
	}
	return ""
}

// SetCurrentLanguage overrides the request language after an explicit switch.
func SetCurrentLanguage(c *gin.Context, code string) {
	c.Set(contextLanguageKey, code)
	c.Header("Content-Language", code)
}
