package testutils

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
	"github.com/uptrace/bun"
)

type handler struct {
	db *bun.DB
}

// createUserRequest is the request body for creating a test user.
type createUserRequest struct {
	Username           string  `json:"username" validate:"required"`
	Password           string  `json:"password" validate:"required"`
	Email              *string `json:"email"`
	Role               string  `json:"role" default:"admin" validate:"oneof=admin librarian viewer"`
	IsActive           *bool   `json:"is_active"`
	MustChangePassword bool    `json:"must_change_password"`
}

// createUserResponse is the response body for creating a test user.
type createUserResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// createUser creates a test user with any role, skipping the admin gate.
// POST /test/users.
func (h *handler) createUser(c echo.Context) error {
	ctx := c.Request().Context()

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.WithStack(err)
	}

	now := time.Now().UTC()
	user := &models.User{
		CreatedAt:          now,
		UpdatedAt:          now,
		Username:           req.Username,
		Email:              req.Email,
		PasswordHash:       hashedPassword,
		Role:               req.Role,
		IsActive:           req.IsActive == nil || *req.IsActive,
		MustChangePassword: req.MustChangePassword,
	}

	_, err = h.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create user")
	}

	return errors.WithStack(c.JSON(http.StatusCreated, createUserResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}))
}

// deleteAllUsersResponse is the response body for deleting all users.
type deleteAllUsersResponse struct {
	Deleted int `json:"deleted"`
}

// deleteAllUsers deletes all users along with everything that references
// them.
// DELETE /test/users.
func (h *handler) deleteAllUsers(c echo.Context) error {
	ctx := c.Request().Context()

	var deleted int64
	err := h.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := clearCirculation(ctx, tx); err != nil {
			return err
		}

		result, err := tx.NewDelete().
			Model((*models.User)(nil)).
			Where("1=1").
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to delete users")
		}
		deleted, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, deleteAllUsersResponse{
		Deleted: int(deleted),
	}))
}

type createBookRequest struct {
	AccessionNumber string `json:"accession_number" validate:"required"`
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" default:"Test Author"`
	StorageLocation string `json:"storage_location" validate:"required,storage_location"`
}

// createBook inserts a catalog entry directly.
// POST /test/books.
func (h *handler) createBook(c echo.Context) error {
	ctx := c.Request().Context()

	var req createBookRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	now := time.Now().UTC()
	book := &models.Book{
		CreatedAt:       now,
		UpdatedAt:       now,
		AccessionNumber: req.AccessionNumber,
		Title:           req.Title,
		Author:          req.Author,
		StorageLocation: req.StorageLocation,
	}
	if _, err := h.db.NewInsert().Model(book).Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to create book")
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

type createTransactionRequest struct {
	BookID    int       `json:"book_id" validate:"required"`
	UserID    int       `json:"user_id" validate:"required"`
	IssueDate time.Time `json:"issue_date" validate:"required"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

// createTransaction opens a loan with arbitrary dates, e.g. one that is
// already overdue. The book is marked issued in the same transaction.
// POST /test/transactions.
func (h *handler) createTransaction(c echo.Context) error {
	ctx := c.Request().Context()

	var req createTransactionRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	txn := &models.Transaction{
		CreatedAt: req.IssueDate.UTC(),
		BookID:    req.BookID,
		UserID:    req.UserID,
		IssueDate: req.IssueDate.UTC(),
		DueDate:   req.DueDate.UTC(),
		Status:    models.TransactionStatusIssued,
	}
	err := h.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Book)(nil)).
			Set("is_issued = ?", true).
			Where("id = ?", req.BookID).
			Where("is_issued = ?", false).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errcodes.Conflict("Book is missing or already issued", errcodes.Details{"book_id": req.BookID})
		}

		_, err = tx.NewInsert().Model(txn).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, txn))
}

// deleteAllData empties every table except users.
// DELETE /test/data.
func (h *handler) deleteAllData(c echo.Context) error {
	ctx := c.Request().Context()

	err := h.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return clearCirculation(ctx, tx)
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func clearCirculation(ctx context.Context, tx bun.Tx) error {
	for _, model := range []interface{}{
		(*models.MagazineIssue)(nil),
		(*models.Magazine)(nil),
		(*models.Vendor)(nil),
		(*models.BookDigitalLink)(nil),
		(*models.Transaction)(nil),
		(*models.DigitalBook)(nil),
		(*models.Book)(nil),
	} {
		_, err := tx.NewDelete().
			Model(model).
			Where("1=1").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
