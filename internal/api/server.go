package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Adda-Baaj/bazaar-khobor/internal/config"
	"github.com/Adda-Baaj/bazaar-khobor/internal/logger"
)

// Auth failure codes.
const (
	CodeMissingAPIKey = "missing_api_key"
	CodeInvalidAPIKey = "invalid_api_key"
)

// NewRouter builds the gin engine with every route mounted.
func NewRouter(h *Handler, cfg config.ServerConfig, log logger.Logger) *gin.Engine {
	log = logger.Ensure(log)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", h.Health)

	api := r.Group("/api", requireAPIKey(cfg.APIKey))
	{
		api.POST("/articles/extract", h.Extract)
		api.POST("/articles/analyze", h.Analyze)
		api.POST("/articles/content", h.Content)
		api.POST("/articles/batch", h.StartBatch)
		api.GET("/articles/batch/:id", h.GetBatch)
		api.POST("/harvest", h.Harvest)
	}
	return r
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.InfoObj("http request", "http_request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
	}
}

// requireAPIKey accepts the key as X-API-Key or a bearer token. An empty
// key disables the check.
func requireAPIKey(key string) gin.HandlerFunc {
	key = strings.TrimSpace(key)
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if got == "" {
			auth := c.GetHeader("Authorization")
			if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
				got = strings.TrimSpace(after)
			}
		}
		switch {
		case got == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    CodeMissingAPIKey,
				"error":   "api key required",
			})
		case subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"code":    CodeInvalidAPIKey,
				"error":   "api key is invalid",
			})
		default:
			c.Next()
		}
	}
}
