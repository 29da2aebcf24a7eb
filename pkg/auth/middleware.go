package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/ticnexus/nexus/pkg/roles"
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// tokenFromRequest reads the session token from the cookie, then from an
// "Authorization: Bearer" header. allowQuery also accepts a ?token= parameter
// for links that can't carry headers, like iframes and download anchors.
func tokenFromRequest(c echo.Context, allowQuery bool) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if allowQuery {
		return c.QueryParam("token")
	}
	return ""
}

// Authenticate validates the session token and reloads the user from the
// database, so role changes and deactivation apply immediately. Requests
// without a valid session get 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		token := tokenFromRequest(c, false)
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		user, err := m.authService.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return errcodes.Unauthorized("User not found or inactive")
		}

		if user.MustChangePassword && !allowedDuringPasswordReset(c) {
			return errcodes.PasswordResetRequired()
		}

		setUser(c, user)
		return next(c)
	}
}

// AuthenticateOptional sets the user when a valid session is present and
// otherwise lets the request through anonymously.
func (m *Middleware) AuthenticateOptional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if token := tokenFromRequest(c, true); token != "" {
			if claims, err := m.authService.ValidateToken(token); err == nil {
				if user, err := m.authService.GetUserByID(ctx, claims.UserID); err == nil {
					setUser(c, user)
				}
			}
		}
		return next(c)
	}
}

// RequireLevel returns middleware that only lets users through whose role
// meets the given level. Must be used after Authenticate.
func (m *Middleware) RequireLevel(level roles.Level) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFromContext(c)
			if user == nil {
				return errcodes.Unauthorized("Authentication required")
			}

			action := c.Request().Method + " " + c.Path()
			if err := roles.AuthorizeUser(user, level, action); err != nil {
				return err
			}

			return next(c)
		}
	}
}

func allowedDuringPasswordReset(c echo.Context) bool {
	path := c.Path()
	if path == "" {
		path = c.Request().URL.Path
	}
	switch {
	case c.Request().Method == http.MethodPost && path == "/auth/password":
		return true
	case c.Request().Method == http.MethodGet && path == "/auth/me":
		return true
	default:
		return false
	}
}

func setUser(c echo.Context, user *models.User) {
	c.Set("user_id", user.ID)
	c.Set("username", user.Username)
	c.Set("user", user)
}

// UserFromContext returns the authenticated user, or nil for anonymous
// requests.
func UserFromContext(c echo.Context) *models.User {
	user, _ := c.Get("user").(*models.User)
	return user
}
