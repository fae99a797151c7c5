package http

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appconfig "github.com/auralis-ai/live-bridge/internal/config"
	"github.com/auralis-ai/live-bridge/internal/ws"
	"github.com/auralis-ai/live-bridge/webassets"
)

// NewRouter executes the newRouter function.
func NewRouter(cfg appconfig.Config, wsHandler *ws.Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/client-ws", func(c *gin.Context) {
		wsHandler.Handle(c.Writer, c.Request)
	})

	if !mountEmbeddedConsole(router, logger) {
		router.Static("/console", cfg.FrontendDir)
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/console/")
		})
	}

	return router
}

func mountEmbeddedConsole(router *gin.Engine, logger *zap.Logger) bool {
	embeddedRoot, err := webassets.Subdir("console")
	if err != nil {
		if logger != nil {
			logger.Warn("failed to load embedded console assets; falling back to disk", zap.Error(err))
		}
		return false
	}

	indexHTML, err := fs.ReadFile(embeddedRoot, "index.html")
	if err != nil {
		if logger != nil {
			logger.Warn("missing embedded index.html; falling back to disk", zap.Error(err))
		}
		return false
	}

	if logger != nil {
		logger.Info("serving embedded console assets", zap.String("source", "webassets/console"))
	}

	router.StaticFS("/console", http.FS(embeddedRoot))
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})

	return true
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
