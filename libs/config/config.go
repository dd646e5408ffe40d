// Package config provides configuration for the application
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMediaStoreNotConfigured is returned by MediaStoreConfig.Validate when provider credentials are absent
var ErrMediaStoreNotConfigured = errors.New("media store credentials not configured")

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Server     ServerConfig
	Logging    LoggingConfig
	CORS       CORSConfig
	Auth       AuthConfig
	MediaStore MediaStoreConfig
	Upload     UploadConfig
	Gallery    GalleryConfig
	Sweep      SweepConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port pair for Redis clients
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port          int
	BaseURL       string
	MetricsAPIKey string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig holds identity verification settings.
//
// Tokens are verified against the JWKS endpoint of the identity provider when JWKSURL is set,
// otherwise against the shared HS256 secret.
type AuthConfig struct {
	JWTSecret  string
	JWKSURL    string
	Issuer     string
	Audience   string
	CookieName string
}

// MediaStoreConfig holds the remote media store credentials and endpoints
type MediaStoreConfig struct {
	CloudName          string
	APIKey             string
	APISecret          string
	APIBaseURL         string
	DeliveryBaseURL    string
	SignatureAlgorithm string
	SignatureTTL       time.Duration
}

// Validate reports whether the remote store can be called with this configuration
func (m MediaStoreConfig) Validate() error {
	var missing []string
	if m.CloudName == "" {
		missing = append(missing, "MEDIA_CLOUD_NAME")
	}
	if m.APIKey == "" {
		missing = append(missing, "MEDIA_API_KEY")
	}
	if m.APISecret == "" {
		missing = append(missing, "MEDIA_API_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMediaStoreNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// UploadConfig holds upload limits and destinations
type UploadConfig struct {
	Folder              string
	MaxServerUploadSize int64
	MaxDirectUploadSize int64
}

// GalleryConfig holds gallery listing settings
type GalleryConfig struct {
	ImagePageSize int
}

// SweepConfig holds settings of the upload intent sweeper
type SweepConfig struct {
	Schedule     string
	StaleAfter   time.Duration
	BatchSize    int
	LockTTL      time.Duration
	DiscardQueue string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	if cfg.Server.Port, err = envInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	cfg.Server.BaseURL = os.Getenv("BASE_URL")
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cfg.Server.MetricsAPIKey = os.Getenv("METRICS_API_KEY") // optional

	// Logging configuration
	cfg.Logging.Level = envString("LOG_LEVEL", "info")

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// Auth configuration: at least one verification method must be available
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.JWKSURL = os.Getenv("AUTH_JWKS_URL")
	cfg.Auth.Issuer = os.Getenv("AUTH_ISSUER")
	cfg.Auth.Audience = os.Getenv("AUTH_AUDIENCE")
	cfg.Auth.CookieName = envString("AUTH_COOKIE_NAME", "__session")
	if cfg.Auth.JWTSecret == "" && cfg.Auth.JWKSURL == "" {
		return nil, fmt.Errorf("JWT_SECRET or AUTH_JWKS_URL is required")
	}

	// Media store configuration (credentials are optional at startup; requests fail with a configuration error)
	cfg.MediaStore.CloudName = os.Getenv("MEDIA_CLOUD_NAME")
	cfg.MediaStore.APIKey = os.Getenv("MEDIA_API_KEY")
	cfg.MediaStore.APISecret = os.Getenv("MEDIA_API_SECRET")
	cfg.MediaStore.APIBaseURL = strings.TrimRight(envString("MEDIA_API_BASE_URL", "https://api.cloudinary.com"), "/")
	cfg.MediaStore.DeliveryBaseURL = strings.TrimRight(envString("MEDIA_DELIVERY_BASE_URL", "https://res.cloudinary.com"), "/")
	cfg.MediaStore.SignatureAlgorithm = strings.ToLower(envString("MEDIA_SIGNATURE_ALGORITHM", "sha1"))
	if cfg.MediaStore.SignatureAlgorithm != "sha1" && cfg.MediaStore.SignatureAlgorithm != "sha256" {
		return nil, fmt.Errorf("invalid MEDIA_SIGNATURE_ALGORITHM: %s", cfg.MediaStore.SignatureAlgorithm)
	}
	if cfg.MediaStore.SignatureTTL, err = envDuration("MEDIA_SIGNATURE_TTL", time.Hour); err != nil {
		return nil, err
	}

	// Upload configuration
	cfg.Upload.Folder = envString("MEDIA_UPLOAD_FOLDER", "next-cloudinary-uploads")
	if cfg.Upload.MaxServerUploadSize, err = envInt64("UPLOAD_MAX_SERVER_SIZE", 100<<20); err != nil {
		return nil, err
	}
	if cfg.Upload.MaxDirectUploadSize, err = envInt64("UPLOAD_MAX_DIRECT_SIZE", 670<<20); err != nil {
		return nil, err
	}

	// Gallery configuration
	if cfg.Gallery.ImagePageSize, err = envInt("GALLERY_IMAGE_PAGE_SIZE", 50); err != nil {
		return nil, err
	}

	// Redis configuration (optional, for sweeper and worker)
	cfg.Redis.Host = envString("REDIS_HOST", "localhost")
	if cfg.Redis.Port, err = envInt("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD") // optional
	if cfg.Redis.DB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	// Sweep configuration
	cfg.Sweep.Schedule = envString("SWEEP_SCHEDULE", "@every 5m")
	if cfg.Sweep.StaleAfter, err = envDuration("SWEEP_STALE_AFTER", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Sweep.BatchSize, err = envInt("SWEEP_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.Sweep.LockTTL, err = envDuration("SWEEP_LOCK_TTL", 4*time.Minute); err != nil {
		return nil, err
	}
	cfg.Sweep.DiscardQueue = envString("SWEEP_DISCARD_QUEUE", "reconcile")

	return cfg, nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

// parseOrigins splits a comma-separated origin list, defaulting to all origins
func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
