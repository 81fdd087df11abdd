package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/supabase-community/supabase-go"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/labsite-api/api/swagger"
	"github.com/noah-isme/labsite-api/internal/handler"
	"github.com/noah-isme/labsite-api/internal/middleware"
	"github.com/noah-isme/labsite-api/internal/models"
	"github.com/noah-isme/labsite-api/internal/repository"
	"github.com/noah-isme/labsite-api/internal/service"
	"github.com/noah-isme/labsite-api/pkg/cache"
	"github.com/noah-isme/labsite-api/pkg/config"
	"github.com/noah-isme/labsite-api/pkg/database"
	"github.com/noah-isme/labsite-api/pkg/i18n"
	"github.com/noah-isme/labsite-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/labsite-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/labsite-api/pkg/middleware/requestid"
	"github.com/noah-isme/labsite-api/pkg/storage"
	"github.com/noah-isme/labsite-api/web"
)

type publicationBackend interface {
	List(ctx context.Context) ([]models.Publication, error)
	Create(ctx context.Context, in models.PublicationInsert) (*models.Publication, error)
	Delete(ctx context.Context, id string) error
}

// backend bundles the collaborators selected by BACKEND.
type backend struct {
	publications publicationBackend
	store        storage.ObjectStore
	identity     service.IdentityProvider
	pdfBucket    string
	imageBucket  string
	// localFiles is set when uploads are served from disk.
	localFiles *storage.LocalStorage
	closers    []func() error
}

type app struct {
	router  *gin.Engine
	logger  *zap.Logger
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	a := &app{logger: logr}
	validate := validator.New()
	metrics := service.NewMetricsService()
	policy := service.NewEmailPolicy(cfg.Admin.Emails...)

	resolver, err := newResolver(ctx, cfg, logr, metrics)
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	a.closers = append(a.closers, cacheRepo.Close)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Publications.CacheTTL, logr, redisClient != nil)

	be, err := newBackend(ctx, cfg, logr, policy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, be.closers...)

	publicationSvc := service.NewPublicationService(be.publications, be.store, cacheSvc, metrics, validate, logr, service.PublicationConfig{
		PDFBucket:     be.pdfBucket,
		ImageBucket:   be.imageBucket,
		MaxPDFBytes:   cfg.Publications.MaxPDFSizeBytes,
		MaxImageBytes: cfg.Publications.MaxImageSizeBytes,
		CacheTTL:      cfg.Publications.CacheTTL,
	})
	authSvc := service.NewAuthService(be.identity, policy, resolver, cacheSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	consentSvc := service.NewConsentService(cfg.Consent.Retention, nil, metrics, logr)

	templates, err := web.Templates(template.FuncMap{})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	a.router = newRouter(cfg, logr, routerDeps{
		resolver:     resolver,
		metrics:      metrics,
		policy:       policy,
		auth:         authSvc,
		publications: publicationSvc,
		consent:      consentSvc,
		templates:    templates,
		localFiles:   be.localFiles,
	})
	return a, nil
}

// Close releases backend connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func newResolver(ctx context.Context, cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService) (*i18n.Resolver, error) {
	var locales fs.FS = web.Locales()
	if cfg.I18n.LocalesDir != "" {
		locales = os.DirFS(cfg.I18n.LocalesDir)
	}
	resolver := i18n.NewResolver(i18n.FSSource{FS: locales}, i18n.Options{
		Languages:       cfg.I18n.Languages,
		DefaultLanguage: cfg.I18n.DefaultLanguage,
		Logger:          logr.Named("i18n"),
		Metrics:         metrics,
	})
	if !resolver.Supports(resolver.Default()) {
		return nil, fmt.Errorf("default language %q is not in LANGUAGES", resolver.Default())
	}

	// pages render the loading view until the first load finishes
	go func() {
		if err := resolver.Load(ctx); err != nil {
			logr.Warn("translations loaded with errors", zap.Error(err))
		}
		if cfg.I18n.Watch && cfg.I18n.LocalesDir != "" {
			if err := resolver.Watch(ctx, cfg.I18n.LocalesDir); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("translation watcher stopped", zap.Error(err))
			}
		}
	}()
	return resolver, nil
}

func newBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger, policy service.AdminPolicy) (*backend, error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, nil)
		if err != nil {
			return nil, fmt.Errorf("create supabase client: %w", err)
		}
		return &backend{
			publications: repository.NewSupabasePublicationRepository(repository.NewSupabaseRest(cfg.Supabase.URL, cfg.Supabase.AnonKey), cfg.Supabase.PublicationsTable),
			store:        storage.NewSupabaseStorage(cfg.Supabase.URL, cfg.Supabase.AnonKey),
			identity:     repository.NewSupabaseAuthRepository(client.Auth),
			pdfBucket:    cfg.Supabase.PDFBucket,
			imageBucket:  cfg.Supabase.ImageBucket,
		}, nil
	case config.BackendPostgres:
		return newPostgresBackend(ctx, cfg, logr, policy)
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

func newPostgresBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger, policy service.AdminPolicy) (*backend, error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	be := &backend{
		publications: repository.NewPublicationRepository(db),
		pdfBucket:    cfg.Storage.PDFBucket,
		imageBucket:  cfg.Storage.ImageBucket,
		closers:      []func() error{db.Close},
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Region:    cfg.Storage.S3Region,
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			PublicURL: cfg.Storage.S3PublicURL,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		be.store = store
	default:
		local, err := storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.PublicBaseURL+cfg.Storage.PublicPath)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		be.store = local
		be.localFiles = local
	}

	identity := service.NewLocalIdentityProvider(repository.NewAdminAccountRepository(db), logr)
	if cfg.Admin.BootstrapPassword != "" {
		for _, email := range cfg.Admin.Emails {
			if err := identity.Register(ctx, policy, email, cfg.Admin.BootstrapPassword); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("bootstrap admin %s: %w", email, err)
			}
		}
	}
	be.identity = identity
	return be, nil
}

func languageField(c *gin.Context) []zap.Field {
	if lang := middleware.CurrentLanguage(c); lang != "" {
		return []zap.Field{zap.String("lang", lang)}
	}
	return nil
}

type routerDeps struct {
	resolver     *i18n.Resolver
	metrics      *service.MetricsService
	policy       service.AdminPolicy
	auth         *service.AuthService
	publications *service.PublicationService
	consent      *service.ConsentService
	templates    *template.Template
	localFiles   *storage.LocalStorage
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	negotiator := middleware.NewLanguageNegotiator(deps.resolver.Languages(), deps.resolver.Default(), cfg.Consent.SecureCookie)
	consentCookies := handler.NewConsentCookies(deps.consent, repository.CookieOptions{
		MaxAge: cfg.Consent.Retention,
		Domain: cfg.Consent.CookieDomain,
		Secure: cfg.Consent.SecureCookie,
	})

	authHandler := handler.NewAuthHandler(deps.auth, deps.resolver)
	publicationHandler := handler.NewPublicationHandler(deps.publications, deps.resolver)
	consentHandler := handler.NewConsentHandler(consentCookies, deps.resolver)
	languageHandler := handler.NewLanguageHandler(deps.resolver, negotiator)
	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.resolver)
	pageHandler := handler.NewPageHandler(deps.resolver, consentCookies, deps.publications, deps.metrics, logr).
		WithAdmin(deps.auth, middleware.AdminCookie{Secure: cfg.Consent.SecureCookie})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, reqidmiddleware.LogFields, languageField))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.SetHTMLTemplate(deps.templates)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if deps.localFiles != nil {
		r.Static(cfg.Storage.PublicPath, deps.localFiles.Dir())
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	site := r.Group("/", middleware.Language(negotiator))
	pageHandler.Register(site)

	api := r.Group(strings.TrimRight(cfg.APIPrefix, "/"), middleware.Language(negotiator))
	{
		api.GET("/language", languageHandler.Current)
		api.PUT("/language", languageHandler.Set)
		api.POST("/language", languageHandler.Set)
		api.GET("/i18n/:lang", languageHandler.Dictionary)

		consent := api.Group("/consent")
		consent.GET("", consentHandler.State)
		consent.POST("/accept", consentHandler.Accept)
		consent.POST("/reject", consentHandler.Reject)
		consent.POST("/preferences", consentHandler.UpdatePreferences)
		consent.POST("/reset", consentHandler.Reset)
		consent.POST("/hide", consentHandler.Hide)

		api.POST("/auth/login", authHandler.Login)

		api.GET("/publications", publicationHandler.List)
		api.GET("/publications/export", publicationHandler.Export)
		api.GET("/publications/:id", publicationHandler.Get)

		admin := api.Group("", middleware.JWT(deps.auth), middleware.RequireAdmin(deps.policy))
		admin.POST("/auth/logout", authHandler.Logout)
		admin.GET("/auth/me", authHandler.Me)
		admin.GET("/system/metrics", metricsHandler.System)
		admin.POST("/publications", middleware.Audit(logr, "create", "publication"), publicationHandler.Create)
		admin.POST("/publications/publish", middleware.Audit(logr, "publish", "publication"), publicationHandler.Publish)
		admin.POST("/publications/files", middleware.Audit(logr, "upload", "publication_file"), publicationHandler.UploadFile)
		admin.DELETE("/publications/:id", middleware.Audit(logr, "delete", "publication"), publicationHandler.Delete)
		admin.POST("/publications/:id/delete", middleware.Audit(logr, "delete", "publication"), publicationHandler.Delete)
	}

	return r
}
