// Package httpapi wires the HTTP transport (Gin) to the session services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
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
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-profile-backend/internal/clients"
	"github.com/tbourn/go-profile-backend/internal/config"
	"github.com/tbourn/go-profile-backend/internal/domain"
	"github.com/tbourn/go-profile-backend/internal/http/handlers"
	"github.com/tbourn/go-profile-backend/internal/http/middleware"
	"github.com/tbourn/go-profile-backend/internal/realtime"
	"github.com/tbourn/go-profile-backend/internal/repo"
	"github.com/tbourn/go-profile-backend/internal/services"
)

// uploadShim adapts the concrete upload client to the services.UploadAPI
// contract. This keeps services decoupled from the clients package while
// reusing the existing facade.
type uploadShim struct{ c *clients.UploadClient }

// UploadImage proxies clients.UploadClient.UploadImage, mapping the result
// type.
func (s uploadShim) UploadImage(ctx context.Context, payload string) (*services.UploadedImage, error) {
	img, err := s.c.UploadImage(ctx, payload)
	if err != nil || img == nil {
		return nil, err
	}
	return &services.UploadedImage{SecureURL: img.SecureURL, PublicID: img.PublicID}, nil
}

// meteredBroadcaster wraps a per-session realtime channel so every broadcast
// attempt lands in the chat_broadcasts_total counter.
type meteredBroadcaster struct{ ch *realtime.Channel }

func (b meteredBroadcaster) Open() error  { return b.ch.Open() }
func (b meteredBroadcaster) Close() error { return b.ch.Close() }

func (b meteredBroadcaster) Send(msg domain.ChatMessage) error {
	if err := b.ch.Send(msg); err != nil {
		middleware.CountBroadcast("dropped")
		return err
	}
	middleware.CountBroadcast("sent")
	return nil
}

// idemStore adapts the repository free functions to the
// handlers.IdempotencyRecorder contract.
type idemStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Record proxies repo.CreateIdempotency. A concurrent duplicate insert means
// another retry already recorded the same outcome, so it is not an error.
func (s idemStore) Record(ctx context.Context, userID, orderID, key string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, orderID, key, status, s.ttl)
	if err == repo.ErrDuplicate {
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), idempotency and rate limiting,
// CORS and security headers, health and metrics endpoints, the versioned
// profile API under the configured base path, and the websocket endpoint.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (large enough for base64 avatar payloads)
//  6. Gzip compression (order lists compress well)
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and security headers
//
// The returned Registry lets the caller dispose every live session during
// shutdown.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *realtime.Hub, cfg config.Config, log zerolog.Logger) *services.Registry {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction (profile paths carry emails)
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-User-ID"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit. Avatar payloads arrive as base64 data URLs,
	// so the cap is well above the usual JSON-API default.
	r.Use(limitBody(8 << 20))

	// 6) Compress responses (order histories are highly repetitive JSON)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		func(c *gin.Context, userID, orderID, key string) (int, bool, error) {
			rec, err := repo.GetIdempotency(c.Request.Context(), db, userID, orderID, key, time.Now().UTC())
			if err == repo.ErrNotFound {
				return 0, false, nil
			}
			if err != nil {
				return 0, false, err
			}
			return rec.Status, true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-User-ID", "Idempotency-Key"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "X-User-ID", "Idempotency-Key"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.CodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.CodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: controllers ← upstream clients + realtime hub
	upstream := cfg.Upstream
	registry := services.NewRegistry(services.Deps{
		Customers:     clients.NewCustomerClient(upstream.CustomerURL, upstream.Timeout, log),
		Orders:        clients.NewOrderClient(upstream.OrderURL, upstream.Timeout, log),
		Notifications: clients.NewNotificationClient(upstream.NotificationURL, upstream.Timeout, log),
		Uploads:       uploadShim{c: clients.NewUploadClient(upstream.UploadURL, upstream.Timeout, log)},
		Channels: func() services.Broadcaster {
			return meteredBroadcaster{ch: hub.NewChannel()}
		},
		Log: log.With().Str("component", "profile").Logger(),
	})

	h := handlers.NewProfileHandler(registry, idemStore{db: db, ttl: cfg.IdempotencyTTL})

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Profile session
		api.GET("/profile", h.GetProfile)
		api.GET("/profile/orders", h.RefreshOrders)
		api.PUT("/profile", h.UpdateProfile)
		api.DELETE("/profile/session", h.FinalizeSession)

		// Orders
		api.POST("/orders/:id/cancel", h.CancelOrder)
	}

	// Realtime channel (outside the versioned API: one hub per process)
	ws := realtime.NewHandler(hub, cfg.Realtime, cfg.CORS.AllowedOrigins, log)
	r.GET("/ws", ws.Serve)

	return registry
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

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
