package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/middlewares"
	"github.com/parishops/registry_backend/models"
	"github.com/parishops/registry_backend/utils"
	"github.com/parishops/registry_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("registry-backend")

func intEnv(name string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/login", loginHandler())

	// Public capability endpoints carry no session; the token in the URL is
	// the whole credential. Reads get a loose per-IP window; submissions get
	// a far stricter one keyed by IP plus a token prefix, so hammering one
	// token does not lock out unrelated callers from the same network.
	looseLimiter := middlewares.NewRateLimiter(
		intEnv("PUBLIC_READ_MAX_REQUESTS", 120),
		time.Duration(intEnv("PUBLIC_READ_WINDOW_SECONDS", 60))*time.Second,
	)
	strictLimiter := middlewares.NewRateLimiter(
		intEnv("PUBLIC_WRITE_MAX_REQUESTS", 10),
		time.Duration(intEnv("PUBLIC_WRITE_WINDOW_SECONDS", 60))*time.Second,
	)
	public := r.Group("/public/links")
	public.GET("/:token", looseLimiter.RateLimitMiddleware(middlewares.ClientIPKey), publicLinkHandler())
	public.POST("/:token/submission", strictLimiter.RateLimitMiddleware(middlewares.TokenScopedKey("token")), publicSubmissionHandler())

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())
	api.Use(middlewares.RequireOperator())
	{
		api.GET("/me", meHandler())
		api.POST("/users", createUserHandler())

		api.POST("/reports", createReportHandler())
		api.GET("/reports/:id", getReportHandler())
		api.POST("/reports/:id/revoke", revokeReportHandler())
		api.GET("/reports/:id/export", exportReportHandler())

		api.GET("/jobs", listJobsHandler())
		api.GET("/jobs/:id", getJobHandler())
		api.POST("/jobs/:id/cancel", cancelJobHandler())

		api.POST("/review-jobs/:jobId/corrections", appendCorrectionHandler())
		api.GET("/review-jobs/:jobId/corrections", listCorrectionsHandler())
		api.GET("/review-jobs/:jobId/corrections/summary", correctionSummaryHandler())
		api.GET("/review-jobs/:jobId/corrections/digest", correctionDigestHandler())
	}

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Background workers: outbox dispatcher (publishes AFTER commit) and
	// the expiry sweep that keeps report statuses honest.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewMailerDispatcher(db, logger).Run(workerCtx)
	go runExpirySweep(workerCtx, logger)

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func runExpirySweep(ctx context.Context, logger *logrus.Logger) {
	interval := time.Duration(intEnv("EXPIRY_SWEEP_MINUTES", 15)) * time.Minute
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		n, err := models.ExpireDueReports(ctx)
		if err != nil {
			config.LogError(logger, "server.go", "runExpirySweep", "ExpireDueReports", nil, err)
			continue
		}
		if n > 0 {
			logger.WithFields(logrus.Fields{"field": "expirySweep", "expired": n}).Info("reports marked expired")
		}
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
