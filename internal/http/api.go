package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"filedrop/internal/domain"
	"filedrop/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	files        service.FileService
	links        service.LinkService
	auth         service.AuthService
	logger       *logrus.Logger
	loginLimiter *RateLimiter
	secureCookie bool
}

type Options struct {
	Logger *logrus.Logger
	// LoginLimiter throttles login attempts per client IP. Nil disables throttling.
	LoginLimiter *RateLimiter
	SecureCookie bool
}

func NewHandler(files service.FileService, links service.LinkService, auth service.AuthService, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		files:        files,
		links:        links,
		auth:         auth,
		logger:       logger,
		loginLimiter: opts.LoginLimiter,
		secureCookie: opts.SecureCookie,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), accessLog(h.logger))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		login := []gin.HandlerFunc{h.login}
		if h.loginLimiter != nil {
			login = append([]gin.HandlerFunc{h.loginLimiter.Middleware()}, login...)
		}
		api.POST("/auth/login", login...)
		api.POST("/auth/logout", h.logout)
		api.GET("/auth/session", h.session)

		files := api.Group("/files", h.requireAuth())
		files.GET("", h.listFiles(domain.TierPublic))
		files.POST("", h.uploadFiles(domain.TierPublic))
		files.DELETE("", h.deleteFile(domain.TierPublic))
		files.GET("/private", h.listFiles(domain.TierPrivate))
		files.POST("/private", h.uploadFiles(domain.TierPrivate))
		files.DELETE("/private", h.deleteFile(domain.TierPrivate))
		files.POST("/private/link", h.issueLink)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Api-Key")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// accessLog writes one line per request.
func accessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}
