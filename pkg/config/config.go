package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Backend identifiers accepted by BACKEND.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Storage drivers accepted by STORAGE_DRIVER when the postgres backend is active.
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// consentRetention mirrors the six "months" of thirty days a consent decision stays valid.
const consentRetention = 6 * 30 * 24 * time.Hour

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	PublicBaseURL string
	Backend       string

	Supabase     SupabaseConfig
	Database     DatabaseConfig
	Storage      StorageConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	I18n         I18nConfig
	Consent      ConsentConfig
	Admin        AdminConfig
	Publications PublicationsConfig
}

// SupabaseConfig points at the hosted backend project.
type SupabaseConfig struct {
	URL               string
	AnonKey           string
	PublicationsTable string
	PDFBucket         string
	ImageBucket       string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// StorageConfig selects where uploaded publication files live for the self-hosted backend.
type StorageConfig struct {
	Driver      string
	LocalDir    string
	PublicPath  string
	PDFBucket   string
	ImageBucket string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// I18nConfig controls dictionary loading.
type I18nConfig struct {
	DefaultLanguage string
	Languages       []string
	LocalesDir      string
	Watch           bool
}

// ConsentConfig holds the cookie consent retention window.
type ConsentConfig struct {
	Retention    time.Duration
	CookieDomain string
	SecureCookie bool
}

// AdminConfig configures the administrator policy.
type AdminConfig struct {
	Emails            []string
	BootstrapPassword string
}

// PublicationsConfig bounds uploads and list caching.
type PublicationsConfig struct {
	MaxPDFSizeBytes   int64
	MaxImageSizeBytes int64
	CacheTTL          time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicBaseURL = strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/")
	cfg.Backend = strings.ToLower(strings.TrimSpace(v.GetString("BACKEND")))

	cfg.Supabase = SupabaseConfig{
		URL:               strings.TrimSpace(v.GetString("SUPABASE_URL")),
		AnonKey:           strings.TrimSpace(v.GetString("SUPABASE_ANON_KEY")),
		PublicationsTable: v.GetString("SUPABASE_PUBLICATIONS_TABLE"),
		PDFBucket:         v.GetString("PDF_BUCKET"),
		ImageBucket:       v.GetString("IMAGE_BUCKET"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Storage = StorageConfig{
		Driver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:    v.GetString("STORAGE_LOCAL_DIR"),
		PublicPath:  v.GetString("STORAGE_PUBLIC_PATH"),
		PDFBucket:   v.GetString("PDF_BUCKET"),
		ImageBucket: v.GetString("IMAGE_BUCKET"),
		S3Region:    v.GetString("S3_REGION"),
		S3Endpoint:  v.GetString("S3_ENDPOINT"),
		S3AccessKey: v.GetString("S3_ACCESS_KEY"),
		S3SecretKey: v.GetString("S3_SECRET_KEY"),
		S3PublicURL: strings.TrimRight(v.GetString("S3_PUBLIC_URL"), "/"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 8*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.I18n = I18nConfig{
		DefaultLanguage: strings.ToLower(v.GetString("DEFAULT_LANGUAGE")),
		Languages:       splitAndTrim(strings.ToLower(v.GetString("LANGUAGES"))),
		LocalesDir:      v.GetString("LOCALES_DIR"),
		Watch:           v.GetBool("LOCALES_WATCH"),
	}

	cfg.Consent = ConsentConfig{
		Retention:    parseDuration(v.GetString("CONSENT_RETENTION"), consentRetention),
		CookieDomain: v.GetString("COOKIE_DOMAIN"),
		SecureCookie: v.GetBool("COOKIE_SECURE"),
	}

	cfg.Admin = AdminConfig{
		Emails:            splitAndTrim(v.GetString("ADMIN_EMAIL")),
		BootstrapPassword: v.GetString("ADMIN_BOOTSTRAP_PASSWORD"),
	}

	maxPDF := v.GetInt64("PUBLICATIONS_MAX_PDF_SIZE")
	if maxPDF <= 0 {
		maxPDF = 20 * 1024 * 1024
	}
	maxImage := v.GetInt64("PUBLICATIONS_MAX_IMAGE_SIZE")
	if maxImage <= 0 {
		maxImage = 5 * 1024 * 1024
	}
	cfg.Publications = PublicationsConfig{
		MaxPDFSizeBytes:   maxPDF,
		MaxImageSizeBytes: maxImage,
		CacheTTL:          parseDuration(v.GetString("PUBLICATIONS_CACHE_TTL"), 5*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration the server cannot start without.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		var missing []string
		if c.Supabase.URL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if c.Supabase.AnonKey == "" {
			missing = append(missing, "SUPABASE_ANON_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing backend credentials: %s", strings.Join(missing, ", "))
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("DB_HOST and DB_NAME are required for the postgres backend")
		}
		switch c.Storage.Driver {
		case StorageDriverLocal:
		case StorageDriverS3:
			if c.Storage.S3PublicURL == "" {
				return errors.New("S3_PUBLIC_URL is required for the s3 storage driver")
			}
		default:
			return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported BACKEND %q", c.Backend)
	}
	if len(c.Admin.Emails) == 0 {
		return errors.New("ADMIN_EMAIL must not be empty")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("BACKEND", BackendSupabase)

	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_ANON_KEY", "")
	v.SetDefault("SUPABASE_PUBLICATIONS_TABLE", "publications")
	v.SetDefault("PDF_BUCKET", "publications-pdfs")
	v.SetDefault("IMAGE_BUCKET", "publications-images")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "labsite")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_PATH", "/files")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_PUBLIC_URL", "")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "8h")
	v.SetDefault("JWT_ISSUER", "labsite-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DEFAULT_LANGUAGE", "es")
	v.SetDefault("LANGUAGES", "es,en,fr,pt")
	v.SetDefault("LOCALES_DIR", "")
	v.SetDefault("LOCALES_WATCH", false)

	v.SetDefault("CONSENT_RETENTION", consentRetention.String())
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", false)

	v.SetDefault("ADMIN_EMAIL", "admin@moleculargeneticslab.cl")
	v.SetDefault("ADMIN_BOOTSTRAP_PASSWORD", "")

	v.SetDefault("PUBLICATIONS_MAX_PDF_SIZE", 20*1024*1024)
	v.SetDefault("PUBLICATIONS_MAX_IMAGE_SIZE", 5*1024*1024)
	v.SetDefault("PUBLICATIONS_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
