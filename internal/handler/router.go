package handler

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tcc-slm-backend/internal/config"
	"tcc-slm-backend/internal/utils"
	"tcc-slm-backend/pkg/logger"
)

// maxBodyBytes fits a full-length prompt written entirely as escaped
// surrogate pairs (12 bytes per character) plus the other fields.
const maxBodyBytes = 12*utils.MaxPromptChars + 64<<10

func NewRouter(cfg *config.Config, h *InferenceHandler) *gin.Engine {
	router := gin.New()

	router.Use(requestLogger())
	router.Use(gin.Recovery())

	router.Use(cors.New(corsConfig(cfg.CORS)))

	router.GET("/health", func(c *gin.Context) {
		writeResponse(c, h.Health(c.Request.Context()))
	})

	router.POST("/inference", func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeResponse(c, errorResponse(http.StatusRequestEntityTooLarge, msgBodyTooLarge))
				return
			}
			logger.Warnf("Failed to read request body: %v", err)
			writeResponse(c, errorResponse(http.StatusBadRequest, msgNotObject))
			return
		}
		writeResponse(c, h.Inference(c.Request.Context(), body))
	})

	router.NoRoute(func(c *gin.Context) {
		writeResponse(c, NotFound())
	})

	return router
}

func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods: c.AllowedMethods,
		AllowHeaders: c.AllowedHeaders,
		MaxAge:       time.Duration(c.MaxAge) * time.Second,
	}
	if len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

func writeResponse(c *gin.Context, resp Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Data(resp.StatusCode, resp.Headers["Content-Type"], resp.Body)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logger.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).String(),
			"clientIP": c.ClientIP(),
		}).Info("request")
	}
}
