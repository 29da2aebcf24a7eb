package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all auth routes.
func RegisterRoutes(e *echo.Echo, authService *Service, authMiddleware *Middleware) {
	h := &handler{
		authService: authService,
	}

	g := e.Group("/auth")
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)
	g.GET("/status", h.status)
	g.POST("/setup", h.setup)

	g.GET("/me", h.me, authMiddleware.Authenticate)
	g.POST("/password", h.changePassword, authMiddleware.Authenticate)
}
