package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rxocr/rxocr/internal/config"
	"github.com/rxocr/rxocr/internal/extraction"
	"github.com/rxocr/rxocr/internal/platform/auth"
	"github.com/rxocr/rxocr/internal/platform/blobstore"
	"github.com/rxocr/rxocr/internal/platform/cache"
	"github.com/rxocr/rxocr/internal/platform/middleware"
	"github.com/rxocr/rxocr/internal/platform/outcome"
	"github.com/rxocr/rxocr/internal/prescription"
	"github.com/rxocr/rxocr/internal/recognition"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "rxocr",
		Short:        "Prescription OCR and structured extraction",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(mcpCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// loadConfig loads and validates configuration and builds the logger.
// Logs go to w; commands that own stdout pass stderr.
func loadConfig(w io.Writer) (*config.Config, zerolog.Logger, error) {
	logger := zerolog.New(w).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return nil, logger, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, logger, err
	}

	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return cfg, logger.Level(cfg.Level()), nil
}

// app holds the components shared by every command.
type app struct {
	svc     *prescription.Service
	uploads blobstore.Store
	close   func()
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, keepUploads bool) (*app, error) {
	store, closeCache := newCache(ctx, cfg, logger)

	image, err := newImageRecognizer(cfg)
	if err != nil {
		// The API still serves /parse and reports 503 for uploads.
		logger.Warn().Err(err).Str("engine", cfg.OCREngine).Msg("image recognition disabled")
		image = nil
	}

	rec := recognition.NewService(recognition.Options{
		Image:      image,
		PDF:        recognition.PDFText{},
		Preprocess: cfg.OCRPreprocess,
		Cache:      store,
		CacheTTL:   cfg.CacheTTL,
	}, logger)

	var uploads blobstore.Store
	if keepUploads {
		if cfg.UploadDir == "" {
			uploads = blobstore.NewInMemoryStore()
		} else {
			fs, err := blobstore.NewFileStore(cfg.UploadDir)
			if err != nil {
				closeCache()
				return nil, err
			}
			uploads = fs
		}
	}

	return &app{
		svc:     prescription.NewService(rec, extraction.New(logger), uploads, logger),
		uploads: uploads,
		close:   closeCache,
	}, nil
}

func newImageRecognizer(cfg *config.Config) (recognition.Recognizer, error) {
	if cfg.OCREngine == config.EngineGosseract {
		return recognition.NewGosseract(cfg.OCRLanguage)
	}
	return recognition.NewTesseract(cfg.TesseractPath, cfg.OCRLanguage)
}

// newCache returns nil when caching is disabled. A Redis that cannot be
// reached falls back to the in-memory store.
func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if cfg.CacheTTL <= 0 {
		return nil, func() {}
	}
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info().Msg("transcription cache: redis")
			return rs, func() { _ = rs.Close() }
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory transcription cache")
	}

	mem := cache.NewInMemoryStore()
	cleanupCtx, cancel := context.WithCancel(ctx)
	mem.StartCleanup(cleanupCtx, 10*time.Minute)
	return mem, cancel
}

func newServer(cfg *config.Config, a *app, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = outcome.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.MaxUploadSize))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	limits := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}

	// Auth middleware
	var authMW echo.MiddlewareFunc
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSigningKey),
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
		})
	}

	web := e.Group("", middleware.RateLimit(limits))
	api := e.Group("/api/v1", authMW, middleware.RateLimit(limits))

	prescription.NewHandler(a.svc).RegisterRoutes(web, api)
	if a.uploads != nil {
		blobstore.NewHandler(a.uploads).RegisterRoutes(api)
	}
	return e
}

func runServer() error {
	cfg, logger, err := loadConfig(os.Stdout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Msg("ENV=development without AUTH_SIGNING_KEY: the API accepts unauthenticated requests")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise")
	}
	defer a.close()

	e := newServer(cfg, a, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
