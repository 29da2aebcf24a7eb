package books

import (
	"github.com/labstack/echo/v4"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers catalog routes on a group that already
// requires authentication.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, authMiddleware *auth.Middleware) *Service {
	bookService := NewService(db)

	h := &handler{
		bookService: bookService,
	}

	g.GET("", h.list)
	g.GET("/subjects", h.subjects)
	g.GET("/languages", h.languages)
	g.GET("/available", h.listAvailable, authMiddleware.RequireLevel(roles.LibrarianOrAdmin))
	g.GET("/:id", h.retrieve)
	g.POST("", h.create, authMiddleware.RequireLevel(roles.LibrarianOrAdmin))
	g.POST("/:id", h.update, authMiddleware.RequireLevel(roles.AdminOnly))
	g.DELETE("/:id", h.delete, authMiddleware.RequireLevel(roles.AdminOnly))

	return bookService
}

// RegisterPublicRoutes registers the anonymous catalog search and summary.
func RegisterPublicRoutes(g *echo.Group, db *bun.DB) {
	h := &handler{
		bookService: NewService(db),
	}

	g.GET("/search", h.publicSearch)
	g.GET("/stats", h.publicStats)
}
