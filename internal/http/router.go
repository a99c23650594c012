// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-backend/internal/classify"
	"github.com/tbourn/go-attendance-backend/internal/config"
	"github.com/tbourn/go-attendance-backend/internal/http/handlers"
	"github.com/tbourn/go-attendance-backend/internal/http/middleware"
	"github.com/tbourn/go-attendance-backend/internal/repo"
	"github.com/tbourn/go-attendance-backend/internal/services"
	"github.com/tbourn/go-attendance-backend/internal/store"
	"github.com/tbourn/go-attendance-backend/internal/upload"
)

// NewClassifier builds the classifier chain from configuration: the keyword
// or remote strategy, optionally wrapped so a privileged tag short-circuits
// to clock-in.
func NewClassifier(cfg config.Config) classify.Classifier {
	var c classify.Classifier
	switch cfg.Classifier.Mode {
	case "remote":
		c = classify.NewRemote(
			cfg.Classifier.APIKey,
			cfg.Classifier.BaseURL,
			cfg.Classifier.Model,
			cfg.Classifier.Timeout,
		)
	default:
		c = classify.Keyword{
			StartWords: cfg.ClockInWords,
			EndWords:   cfg.ClockOutWords,
		}
	}
	if cfg.PrivilegedTag != "" {
		c = classify.Privileged{Tag: cfg.PrivilegedTag, Next: c}
	}
	return c
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the webhook and report API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. TokenRedactingLogger: structured logs with the webhook token scrubbed
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, st *store.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with token redaction
	r.Use(middleware.TokenRedactingLogger(middleware.RedactOptions{
		MaskParams:  []string{"token"},
		MaskHeaders: []string{"X-Api-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress responses (report listings shrink well)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, key string, now time.Time) (bool, error) {
			if db == nil {
				return false, nil
			}
			rec, err := repo.GetIdempotency(ctx, db, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← store/db/config
	webhookSvc := &services.WebhookService{
		Store: st,
		Loc:   cfg.Location(),
	}
	reportSvc := &services.ReportService{
		Store:       st,
		OutDir:      cfg.ReportDir,
		Loc:         cfg.Location(),
		DB:          db,
		Classifier:  NewClassifier(cfg),
		Concurrency: cfg.Classifier.Concurrency,
	}
	if cfg.Upload.URL != "" {
		reportSvc.Uploader = &upload.Client{URL: cfg.Upload.URL, Token: cfg.Upload.Token}
	}

	h := handlers.New(webhookSvc, reportSvc, db, cfg.WebhookToken, cfg.IdempotencyTTL)

	// Public API
	r.POST("/webhook", h.ReceiveWebhook)
	r.POST("/reports", h.TriggerReport)
	r.GET("/reports", h.ListReports)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
