package config

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the read-only policy endpoint behind the given
// authentication middleware.
func RegisterRoutes(e *echo.Echo, cfg *Config, authenticate echo.MiddlewareFunc) {
	configService := NewService(cfg)
	h := &handler{configService: configService}

	configGroup := e.Group("/config")
	configGroup.Use(authenticate)
	configGroup.GET("", h.retrieve)
}
