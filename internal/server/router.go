// Package server assembles the gin engine: middleware chain, health
// endpoint, and the Gemini-native generation routes.
package server

import (
	"net/http"
	"strings"

	"gcli-nexus-go/internal/config"
	gh "gcli-nexus-go/internal/handlers/gemini"
	mw "gcli-nexus-go/internal/middleware"
	"gcli-nexus-go/internal/version"

	"github.com/gin-gonic/gin"
)

// Build constructs the HTTP engine around the generation handler.
func Build(cfg *config.Config, geminiHandler *gh.Handler) *gin.Engine {
	if cfg.Security.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.Recovery())
	r.Use(mw.RequestID())
	r.Use(mw.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
	})

	v1beta := r.Group("/v1beta")
	v1beta.Use(mw.UnifiedAuth(mw.AuthConfig{
		Key:     cfg.Security.NexusKey,
		KeyHash: cfg.Security.NexusKeyHash,
	}))
	if cfg.RateLimit.Enabled {
		v1beta.Use(mw.RateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	// Gemini URLs carry the action after a literal colon inside the model
	// segment, which gin cannot express as a path parameter. Match the
	// whole tail and split it here.
	v1beta.POST("/models/*modelAction", func(c *gin.Context) {
		model, action, ok := splitModelAction(c.Param("modelAction"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
			return
		}
		switch action {
		case "generateContent":
			geminiHandler.GenerateContent(c, model)
		case "streamGenerateContent":
			geminiHandler.StreamGenerateContent(c, model)
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
		}
	})

	return r
}

// splitModelAction turns "/gemini-2.5-pro:generateContent" into its
// model and action halves.
func splitModelAction(param string) (model, action string, ok bool) {
	trimmed := strings.TrimPrefix(param, "/")
	idx := strings.LastIndex(trimmed, ":")
	if idx <= 0 || idx == len(trimmed)-1 {
		return "", "", false
	}
	return trimmed[:idx], trimmed[idx+1:], true
}
