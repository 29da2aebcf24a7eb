package users

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

type handler struct {
	userService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.userService.Create(ctx, auth.UserFromContext(c), CreateUserOptions(params))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	user, err := h.userService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListUsersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	users, total, err := h.userService.List(ctx, ListOptions(params))
	if err != nil {
		return err
	}

	resp := struct {
		Users []*models.User `json:"users"`
		Total int            `json:"total"`
	}{users, total}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	params := UpdateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.userService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	opts := UpdateOptions{Columns: []string{}}

	if params.Email != nil && (user.Email == nil || *params.Email != *user.Email) {
		user.Email = params.Email
		if *params.Email == "" {
			user.Email = nil
		}
		opts.Columns = append(opts.Columns, "email")
	}
	if params.FullName != nil && (user.FullName == nil || *params.FullName != *user.FullName) {
		user.FullName = params.FullName
		opts.Columns = append(opts.Columns, "full_name")
	}
	if params.Role != nil && *params.Role != user.Role {
		user.Role = *params.Role
		opts.Columns = append(opts.Columns, "role")
	}
	if params.IsActive != nil && *params.IsActive != user.IsActive {
		user.IsActive = *params.IsActive
		opts.Columns = append(opts.Columns, "is_active")
	}
	if params.Password != nil {
		opts.Password = params.Password
		opts.RequirePasswordReset = params.RequirePasswordReset
	}

	err = h.userService.Update(ctx, auth.UserFromContext(c), user, opts)
	if err != nil {
		return err
	}

	user, err = h.userService.Retrieve(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	if err := h.userService.Delete(ctx, auth.UserFromContext(c), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
