package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/binder"
	"github.com/ticnexus/nexus/pkg/books"
	"github.com/ticnexus/nexus/pkg/circulation"
	"github.com/ticnexus/nexus/pkg/config"
	"github.com/ticnexus/nexus/pkg/digital"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/magazines"
	"github.com/ticnexus/nexus/pkg/roles"
	"github.com/ticnexus/nexus/pkg/testutils"
	"github.com/ticnexus/nexus/pkg/users"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, dedup digital.Deduper) (*http.Server, error) {
	e, err := newEcho(cfg, db, dedup)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, dedup digital.Deduper) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New(cfg.StoragePrefix)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b
	// Anonymous downloads are de-duplicated per client address.
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())
	// Uploads get a little headroom over the file limit for the other form
	// fields.
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadSizeMB+1)))

	health.RegisterRoutes(e)

	authService := auth.NewService(db, cfg.JWTSecret, cfg.TokenExpiry)
	authMiddleware := auth.NewMiddleware(authService)
	auth.RegisterRoutes(e, authService, authMiddleware)

	rolesGroup := e.Group("/roles")
	rolesGroup.Use(authMiddleware.Authenticate)
	roles.RegisterRoutesWithGroup(rolesGroup)

	users.RegisterRoutes(e, db, authMiddleware)

	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	books.RegisterRoutesWithGroup(booksGroup, db, authMiddleware)

	books.RegisterPublicRoutes(e.Group("/public"), db)

	circulation.RegisterRoutes(e, db, authMiddleware)
	digital.RegisterRoutes(e, db, cfg, dedup, authMiddleware)
	magazines.RegisterRoutes(e, db, cfg, authMiddleware)

	config.RegisterRoutes(e, cfg, authMiddleware.Authenticate)

	if cfg.Environment == "test" {
		testutils.RegisterRoutes(e, db)
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
