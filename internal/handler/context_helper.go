package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labsite-api/internal/middleware"
	"github.com/noah-isme/labsite-api/internal/models"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// requestLanguage falls back to the resolver default when no negotiation ran.
func requestLanguage(c *gin.Context, resolver *i18n.Resolver) string {
	if lang := middleware.CurrentLanguage(c); lang != "" {
		return lang
	}
	if resolver != nil {
		return resolver.Default()
	}
	return i18n.DefaultLanguage
}

// respondError writes err with its message localized for the request language.
func respondError(c *gin.Context, resolver *i18n.Resolver, err error) {
	if resolver == nil {
		response.Error(c, err)
		return
	}
	lang := requestLanguage(c, resolver)
	response.LocalizedError(c, err, func(key string) (string, bool) {
		return resolver.Lookup(lang, key)
	})
}

// wantsHTML reports whether the request came from a plain HTML form rather
// than an API client.
func wantsHTML(c *gin.Context) bool {
	contentType := c.ContentType()
	if contentType == "application/x-www-form-urlencoded" || contentType == "multipart/form-data" {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// redirectBack sends the browser to the page it came from, keeping only the
// path so a forged Referer cannot redirect off-site.
func redirectBack(c *gin.Context) {
	target := "/"
	if referer := c.GetHeader("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil {
			target = u.RequestURI()
		}
	}
	c.Redirect(http.StatusSeeOther, target)
}

// browserNavigation reports whether the request is a page navigation, which
// browsers mark by asking for HTML. API clients asking for JSON never match.
func browserNavigation(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

// redirectOutcome sends a browser to path with the outcome of an admin action:
// the error code on failure, otherwise status.
func redirectOutcome(c *gin.Context, path string, err error, status string) {
	query := url.Values{}
	if err != nil {
		query.Set("error", appErrors.FromError(err).Code)
	} else {
		query.Set("status", status)
	}
	c.Redirect(http.StatusSeeOther, path+"?"+query.Encode())
}
