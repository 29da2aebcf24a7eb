package magazines

import (
	"github.com/labstack/echo/v4"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers vendors and magazines. The public listing and
// cover images need no session.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cfg *config.Config, authMiddleware *auth.Middleware) *Service {
	magazineService := NewService(db, cfg)

	h := &handler{
		magazineService: magazineService,
	}

	staff := authMiddleware.RequireLevel(roles.LibrarianOrAdmin)
	admin := authMiddleware.RequireLevel(roles.AdminOnly)

	vendors := e.Group("/vendors")
	vendors.Use(authMiddleware.Authenticate)
	vendors.GET("", h.listVendors)
	vendors.POST("", h.createVendor, admin)

	e.GET("/public/magazines", h.listPublic)
	e.GET("/magazines/:id/cover", h.cover)

	g := e.Group("/magazines")
	g.Use(authMiddleware.Authenticate)
	g.GET("", h.list)
	g.GET("/filters", h.filters)
	g.GET("/:id", h.retrieve)
	g.GET("/:id/issues", h.listIssues)
	g.POST("", h.create, staff)
	g.POST("/issues", h.logIssue, staff)
	g.POST("/:id", h.update, staff)
	g.POST("/:id/cover", h.uploadCover, staff)

	return magazineService
}
