package digital

import (
	"github.com/labstack/echo/v4"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the digital library. Reading the collection is
// open to anonymous visitors; a session, when present, is picked up from the
// cookie, the Authorization header or a ?token= parameter so files can be
// opened in a new tab.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, dedup Deduper, authMiddleware *auth.Middleware) *Service {
	digitalService := NewService(db, cfg, dedup)

	h := &handler{
		digitalService: digitalService,
	}

	staff := authMiddleware.RequireLevel(roles.LibrarianOrAdmin)
	admin := authMiddleware.RequireLevel(roles.AdminOnly)

	g := e.Group("/digital-books")
	g.GET("", h.list, authMiddleware.AuthenticateOptional)
	g.GET("/filters", h.filters, authMiddleware.AuthenticateOptional)
	g.GET("/:id", h.retrieve, authMiddleware.AuthenticateOptional)
	g.GET("/:id/links", h.linksForDigitalBook, authMiddleware.AuthenticateOptional)
	g.GET("/:id/view", h.view, authMiddleware.AuthenticateOptional)
	g.GET("/:id/download", h.download, authMiddleware.AuthenticateOptional)
	g.GET("/stats", h.stats, authMiddleware.Authenticate, staff)
	g.POST("", h.upload, authMiddleware.Authenticate, staff)
	g.POST("/:id", h.update, authMiddleware.Authenticate, staff)
	g.DELETE("/:id", h.delete, authMiddleware.Authenticate, admin)

	links := e.Group("/digital-links")
	links.Use(authMiddleware.Authenticate)
	links.POST("", h.createLink, staff)
	links.DELETE("/:id", h.deleteLink, admin)

	e.GET("/books/:id/digital-books", h.linksForBook, authMiddleware.Authenticate)

	return digitalService
}
