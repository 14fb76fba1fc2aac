package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS middleware configuration
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       time.Duration
}

// DefaultCORSConfig returns methods and headers used by POS terminals.
// AllowOrigins stays empty until configured.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Accept", "Origin", RequestIDHeader, TenantIDHeader},
		MaxAge:       12 * time.Hour,
	}
}

// CORS returns the gin-contrib CORS middleware. With no allowed origins
// cross-origin requests get no CORS headers; "*" allows every origin
// without credentials.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	defaults := DefaultCORSConfig()
	corsConfig := cors.Config{
		AllowMethods:  cfg.AllowMethods,
		AllowHeaders:  cfg.AllowHeaders,
		ExposeHeaders: []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        cfg.MaxAge,
	}
	if len(corsConfig.AllowMethods) == 0 {
		corsConfig.AllowMethods = defaults.AllowMethods
	}
	if len(corsConfig.AllowHeaders) == 0 {
		corsConfig.AllowHeaders = defaults.AllowHeaders
	}
	if corsConfig.MaxAge == 0 {
		corsConfig.MaxAge = defaults.MaxAge
	}

	if slices.Contains(cfg.AllowOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowOrigins
		corsConfig.AllowCredentials = true
	}
	return cors.New(corsConfig)
}
