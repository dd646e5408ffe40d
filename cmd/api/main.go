package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/mediagallery/backend/docs"
	"github.com/mediagallery/backend/internal/handlers"
	"github.com/mediagallery/backend/internal/metrics"
	"github.com/mediagallery/backend/internal/repositories"
	"github.com/mediagallery/backend/internal/services"
	"github.com/mediagallery/backend/internal/storage"
	authMiddleware "github.com/mediagallery/backend/libs/auth/middleware"
	authService "github.com/mediagallery/backend/libs/auth/service"
	"github.com/mediagallery/backend/libs/config"
	"github.com/mediagallery/backend/libs/logger"
	loggerMiddleware "github.com/mediagallery/backend/libs/logger/middleware"
	sharedMiddleware "github.com/mediagallery/backend/libs/middlewares"
)

// multipartOverhead leaves room for form fields and boundaries on top of the file size limit
const multipartOverhead = 1 << 20

// @title Media Gallery API
// @version 1.0
// @description Signed direct uploads, server-mediated uploads and the gallery of a media-hosting backend

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Session token as "Bearer <token>"
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Media Gallery API")
	if err := cfg.MediaStore.Validate(); err != nil {
		// Not fatal: media store requests answer with a configuration error until credentials are provided
		logger.Logger.Warn("Media store is not configured", zap.Error(err))
	}

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize identity verification
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize identity verifier", zap.Error(err))
	}
	defer verifier.Close()

	// Initialize media store
	store := storage.NewClient(cfg.MediaStore, logger.Logger)
	urls := storage.NewURLBuilder(cfg.MediaStore)

	// Initialize repositories
	assetRepo := repositories.NewMediaAssetRepository(db)
	intentRepo := repositories.NewUploadIntentRepository(db)

	// Initialize services
	signatureService := services.NewSignatureService(cfg.MediaStore, cfg.Upload, logger.Logger)
	uploadService := services.NewUploadService(store, assetRepo, intentRepo, cfg.MediaStore, cfg.Upload, logger.Logger)
	galleryService := services.NewGalleryService(assetRepo, store, urls, cfg.MediaStore, cfg.Gallery, logger.Logger)

	// Initialize middleware
	authMw := authMiddleware.AuthMiddleware(verifier, cfg.Auth.CookieName)
	metricsKeyMw := authMiddleware.APIKeyMiddleware(cfg.Server.MetricsAPIKey)

	// Initialize handlers
	mediaHandler := handlers.NewMediaHandler(uploadService, galleryService, cfg.Upload.MaxServerUploadSize, logger.Logger, authMw)
	signatureHandler := handlers.NewSignatureHandler(signatureService, logger.Logger, authMw)
	galleryHandler := handlers.NewGalleryHandler(galleryService, logger.Logger, authMw)
	healthHandler := handlers.NewHealthHandler(db, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(metrics.Middleware)
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(sharedMiddleware.RequestSizeLimitMiddleware(cfg.Upload.MaxServerUploadSize+multipartOverhead, logger.Logger))

	// Operational endpoints
	healthHandler.RegisterRoutes(r)
	r.With(metricsKeyMw).Handle("/metrics", promhttp.Handler())

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(cfg.Server.BaseURL+"/swagger/doc.json"),
	))

	// Scope router to /api/v1
	r.Route("/api/v1", func(r chi.Router) {
		mediaHandler.RegisterRoutes(r)
		signatureHandler.RegisterRoutes(r)
		galleryHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Minute, // server-mediated uploads wait for the media store
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// newVerifier prefers the identity provider's JWKS and falls back to the shared HMAC secret
func newVerifier(ctx context.Context, cfg config.AuthConfig) (*authService.IdentityVerifier, error) {
	if cfg.JWKSURL != "" {
		logger.Logger.Info("Verifying session tokens with JWKS", zap.String("url", cfg.JWKSURL))
		return authService.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience, logger.Logger)
	}
	logger.Logger.Info("Verifying session tokens with the shared secret")
	return authService.NewHMACVerifier(cfg.JWTSecret, cfg.Issuer, cfg.Audience), nil
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "media_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Migrations live at the repository root; also allow running from cmd/api
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		if _, err := os.Stat("../../migrations"); err == nil {
			migrationPath = "file://../../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
