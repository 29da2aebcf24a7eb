package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	mwlogger "github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/logger"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/ticnexus/nexus/pkg/roles"
)

// CookieName is the name of the session cookie.
const CookieName = "nexus_session"

type handler struct {
	authService *Service
}

func buildMeResponse(user *models.User) MeResponse {
	grants := []string{}
	for _, l := range roles.Levels {
		if roles.Satisfies(user.Role, l) {
			grants = append(grants, l.String())
		}
	}

	return MeResponse{
		ID:                 user.ID,
		Username:           user.Username,
		Email:              user.Email,
		FullName:           user.FullName,
		Role:               user.Role,
		Grants:             grants,
		MustChangePassword: user.MustChangePassword,
	}
}

func (h *handler) sessionCookie(c echo.Context, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *handler) startSession(c echo.Context, user *models.User) error {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}
	c.SetCookie(h.sessionCookie(c, token, int(h.authService.TokenExpiry().Seconds())))

	return c.JSON(http.StatusOK, LoginResponse{
		MeResponse: buildMeResponse(user),
		Token:      token,
	})
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Username, params.Password)
	if err != nil {
		mwlogger.FromEchoContext(c).Info("failed login", logger.Data{"username": params.Username})
		return err
	}

	return h.startSession(c, user)
}

func (h *handler) logout(c echo.Context) error {
	c.SetCookie(h.sessionCookie(c, "", -1))
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// me returns the current authenticated user's info.
func (h *handler) me(c echo.Context) error {
	user := UserFromContext(c)
	if user == nil {
		return errcodes.Unauthorized("Authentication required")
	}
	return c.JSON(http.StatusOK, buildMeResponse(user))
}

// status returns whether the app needs initial setup.
func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.authService.CountUsers(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, StatusResponse{
		NeedsSetup: count == 0,
	})
}

// setup creates the first admin user.
func (h *handler) setup(c echo.Context) error {
	ctx := c.Request().Context()

	params := SetupPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.CreateFirstAdmin(ctx, CreateFirstAdminOptions{
		Username: params.Username,
		Email:    params.Email,
		FullName: params.FullName,
		Password: params.Password,
	})
	if err != nil {
		return err
	}

	return h.startSession(c, user)
}

func (h *handler) changePassword(c echo.Context) error {
	ctx := c.Request().Context()

	user := UserFromContext(c)
	if user == nil {
		return errcodes.Unauthorized("Authentication required")
	}

	params := ChangePasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.authService.ChangePassword(ctx, user.ID, params.CurrentPassword, params.NewPassword); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
