package circulation

import (
	"github.com/labstack/echo/v4"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the circulation actions and transaction listings.
func RegisterRoutes(e *echo.Echo, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	circulationService := NewService(db)

	h := &handler{
		circulationService: circulationService,
	}

	staff := authMiddleware.RequireLevel(roles.LibrarianOrAdmin)

	circulation := e.Group("/circulation")
	circulation.Use(authMiddleware.Authenticate)
	circulation.Use(staff)
	circulation.POST("/issue", h.issue)
	circulation.POST("/:id/return", h.returnBook)
	circulation.POST("/:id/extend", h.extend)

	transactions := e.Group("/transactions")
	transactions.Use(authMiddleware.Authenticate)
	transactions.GET("", h.list)
	transactions.GET("/active", h.listActive, staff)
	transactions.GET("/extendable", h.listExtendable, staff)
	transactions.GET("/:id", h.retrieve)

	return circulationService
}
