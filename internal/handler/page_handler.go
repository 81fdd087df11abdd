package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/labsite-api/internal/middleware"
	"github.com/noah-isme/labsite-api/internal/models"
	"github.com/noah-isme/labsite-api/internal/service"
	appErrors "github.com/noah-isme/labsite-api/pkg/errors"
	"github.com/noah-isme/labsite-api/pkg/i18n"
)

// Page describes one server-rendered route.
type Page struct {
	Path     string
	Template string
	TitleKey string
	// Publications loads the catalog into the view.
	Publications bool
}

// Pages lists the public routes of the site.
var Pages = []Page{
	{Path: "/", Template: "home.html", TitleKey: "nav.home", Publications: true},
	{Path: "/about", Template: "about.html", TitleKey: "about.title"},
	{Path: "/news", Template: "news.html", TitleKey: "news.title"},
	{Path: "/team", Template: "team.html", TitleKey: "team.title"},
	{Path: "/publications", Template: "publications.html", TitleKey: "publications.title", Publications: true},
	{Path: "/congresses", Template: "congresses.html", TitleKey: "congresses.title"},
	{Path: "/outreach", Template: "outreach.html", TitleKey: "outreach.title"},
	{Path: "/dissemination", Template: "dissemination.html", TitleKey: "dissemination.title"},
	{Path: "/privacy-policy", Template: "privacy.html", TitleKey: "privacy.title"},
	{Path: "/terms", Template: "terms.html", TitleKey: "terms.title"},
	{Path: "/cookie-policy", Template: "cookies.html", TitleKey: "cookies.page.title"},
}

const homePublicationLimit = 3

// Query parameters that carry the outcome of an admin action back to a page.
const (
	statusParam = "status"
	errorParam  = "error"
)

// pageView is the data every template receives.
type pageView struct {
	Lang         string
	T            func(key string) string
	TitleKey     string
	Path         string
	Languages    []i18n.LanguageOption
	ShowBanner   bool
	Consent      models.ConsentRecord
	Year         int
	Publications []models.Publication
	Publication  *models.Publication
	// Admin is set for a signed-in administrator allowed by the admin policy.
	Admin      bool
	AdminEmail string
	LoginEmail string
	Notice     string
	Error      string
	// Retry links back to the page after a failed catalog read.
	Retry string
}

type publicationReader interface {
	List(ctx context.Context) ([]models.Publication, error)
	Get(ctx context.Context, id string) (*models.Publication, error)
}

type adminSessions interface {
	Login(ctx context.Context, req models.LoginRequest, lang string) (*models.LoginResponse, error)
	Logout(ctx context.Context, claims *models.JWTClaims) error
	ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error)
	Authorized(email string) bool
}

// PageHandler renders the public site.
type PageHandler struct {
	resolver     *i18n.Resolver
	consent      *ConsentCookies
	publications publicationReader
	metrics      *service.MetricsService
	logger       *zap.Logger
	now          func() time.Time
	admin        adminSessions
	adminCookie  middleware.AdminCookie
}

// NewPageHandler constructs the page renderer.
func NewPageHandler(resolver *i18n.Resolver, consent *ConsentCookies, publications publicationReader, metrics *service.MetricsService, logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{resolver: resolver, consent: consent, publications: publications, metrics: metrics, logger: logger, now: time.Now}
}

// WithAdmin enables the admin login pages and the admin controls on the
// publications page.
func (h *PageHandler) WithAdmin(admin adminSessions, cookie middleware.AdminCookie) *PageHandler {
	h.admin = admin
	h.adminCookie = cookie
	return h
}

// Register mounts every page plus the publication detail route, and the admin
// login routes when WithAdmin was called.
func (h *PageHandler) Register(router gin.IRoutes) {
	for _, page := range Pages {
		router.GET(page.Path, h.Render(page))
	}
	router.GET("/publications/:id", h.Publication)
	if h.admin != nil {
		router.GET("/admin/login", h.LoginForm)
		router.POST("/admin/login", h.Login)
		router.POST("/admin/logout", h.Logout)
	}
}

// Render returns the handler for a static page.
func (h *PageHandler) Render(page Page) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, ok := h.view(c, page)
		if !ok {
			return
		}
		status := http.StatusOK
		if page.Publications {
			publications, err := h.publications.List(c.Request.Context())
			if err != nil {
				h.logger.Warn("publications unavailable for page", zap.String("page", page.Path), zap.Error(err))
				status = h.readFailed(c, view, err)
			}
			if page.Path == "/" && len(publications) > homePublicationLimit {
				publications = publications[:homePublicationLimit]
			}
			view.Publications = publications
		}
		c.HTML(status, page.Template, view)
	}
}

// Publication renders the detail page of a single publication.
func (h *PageHandler) Publication(c *gin.Context) {
	view, ok := h.view(c, Page{Path: "/publications", Template: "publication.html", TitleKey: "publications.title"})
	if !ok {
		return
	}

	status := http.StatusOK
	publication, err := h.publications.Get(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		view.Publication = publication
	case appErrors.FromError(err).Code == appErrors.ErrNotFound.Code:
		status = http.StatusNotFound
	default:
		h.logger.Warn("publication detail unavailable", zap.String("id", c.Param("id")), zap.Error(err))
		status = h.readFailed(c, view, err)
	}
	c.HTML(status, "publication.html", view)
}

// LoginForm renders the admin sign-in page. Signed-in administrators go
// straight to the publications page.
func (h *PageHandler) LoginForm(c *gin.Context) {
	view, ok := h.view(c, Page{Path: "/admin/login", Template: "admin_login.html", TitleKey: "admin.login.title"})
	if !ok {
		return
	}
	if view.Admin {
		c.Redirect(http.StatusSeeOther, "/publications")
		return
	}
	c.HTML(http.StatusOK, "admin_login.html", view)
}

// Login signs an administrator in from the login form and keeps the access
// token in the admin session cookie. Failures re-render the form with the
// message returned by the sign-in flow.
func (h *PageHandler) Login(c *gin.Context) {
	view, ok := h.view(c, Page{Path: "/admin/login", Template: "admin_login.html", TitleKey: "admin.login.title"})
	if !ok {
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		view.Error = h.errorMessage(view.Lang, appErrors.ErrValidation)
		c.HTML(http.StatusBadRequest, "admin_login.html", view)
		return
	}
	view.LoginEmail = req.Email

	res, err := h.admin.Login(c.Request.Context(), req, view.Lang)
	if err != nil {
		appErr := appErrors.FromError(err)
		view.Error = appErr.Message
		c.HTML(appErr.Status, "admin_login.html", view)
		return
	}

	h.adminCookie.Set(c.Writer, res.AccessToken, int(res.ExpiresIn))
	c.Redirect(http.StatusSeeOther, "/publications")
}

// Logout revokes the cookie's token and clears the cookie.
func (h *PageHandler) Logout(c *gin.Context) {
	if claims := h.adminClaims(c); claims != nil {
		if err := h.admin.Logout(c.Request.Context(), claims); err != nil {
			h.logger.Warn("admin logout failed", zap.Error(err))
		}
	}
	h.adminCookie.Clear(c.Writer)
	c.Redirect(http.StatusSeeOther, "/")
}

// readFailed fills the localized error and retry link for a failed catalog
// read and returns the status to render with.
func (h *PageHandler) readFailed(c *gin.Context, view *pageView, err error) int {
	appErr := appErrors.FromError(err)
	view.Error = h.errorMessage(view.Lang, appErr)
	view.Retry = c.Request.URL.RequestURI()
	return appErr.Status
}

func (h *PageHandler) errorMessage(lang string, appErr *appErrors.Error) string {
	if msg, ok := h.resolver.Lookup(lang, "errors."+appErr.Code); ok {
		return msg
	}
	return h.resolver.T(lang, "errors."+appErrors.ErrBackend.Code)
}

// adminClaims returns the claims of a valid admin session cookie that still
// passes the admin policy.
func (h *PageHandler) adminClaims(c *gin.Context) *models.JWTClaims {
	if h.admin == nil {
		return nil
	}
	token, err := c.Cookie(middleware.AdminSessionCookie)
	if err != nil || token == "" {
		return nil
	}
	claims, err := h.admin.ValidateToken(c.Request.Context(), token)
	if err != nil || claims == nil || !h.admin.Authorized(claims.Email) {
		return nil
	}
	return claims
}

// view builds the common view. While dictionaries are loading it renders the
// loading page and reports false.
func (h *PageHandler) view(c *gin.Context, page Page) (*pageView, bool) {
	lang := requestLanguage(c, h.resolver)
	translate := h.resolver.Translator(lang)
	if !h.resolver.Ready() {
		c.HTML(http.StatusServiceUnavailable, "loading.html", pageView{Lang: lang, T: translate})
		return nil, false
	}

	state := h.consent.Load(c)
	if state.AnalyticsAllowed() {
		h.metrics.RecordPageView(page.Path, lang)
	}

	view := &pageView{
		Lang:       lang,
		T:          translate,
		TitleKey:   page.TitleKey,
		Path:       c.Request.URL.Path,
		Languages:  h.resolver.Options(lang),
		ShowBanner: state.ShowBanner,
		Year:       h.now().Year(),
	}
	if state.Record != nil {
		view.Consent = *state.Record
	}
	if claims := h.adminClaims(c); claims != nil {
		view.Admin = true
		view.AdminEmail = claims.Email
	}
	h.applyOutcome(c, view)
	return view, true
}

// applyOutcome turns the status and error query parameters left by an admin
// action into a notice. Only known error codes produce a message.
func (h *PageHandler) applyOutcome(c *gin.Context, view *pageView) {
	switch c.Query(statusParam) {
	case "published":
		view.Notice = view.T("admin.upload.success")
	case "deleted":
		view.Notice = view.T("admin.delete.success")
	}
	if code := c.Query(errorParam); code != "" {
		if msg, ok := h.resolver.Lookup(view.Lang, "errors."+code); ok {
			view.Error = msg
		}
	}
}
