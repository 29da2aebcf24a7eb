package users

import (
	"github.com/labstack/echo/v4"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all user routes. User management is admin only.
func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	userService := NewService(db)

	h := &handler{
		userService: userService,
	}

	users := e.Group("/users")
	users.Use(authMiddleware.Authenticate)
	users.Use(authMiddleware.RequireLevel(roles.AdminOnly))

	users.GET("", h.list)
	users.GET("/:id", h.retrieve)
	users.POST("", h.create)
	users.POST("/:id", h.update)
	users.DELETE("/:id", h.delete)

	return userService
}
