package circulation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/ticnexus/nexus/pkg/auth"
	"github.com/ticnexus/nexus/pkg/errcodes"
)

type handler struct {
	circulationService *Service
}

func (h *handler) issue(c echo.Context) error {
	ctx := c.Request().Context()

	params := IssuePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := IssueOptions{
		BookID: params.BookID,
		UserID: params.UserID,
		Days:   params.Days,
		Notes:  params.Notes,
	}
	if params.DueDate != nil && *params.DueDate != "" {
		day, err := time.Parse(time.DateOnly, *params.DueDate)
		if err != nil {
			return errcodes.ValidationError(`"due_date" should be in the format of YYYY-MM-DD`)
		}
		due := day.Add(24*time.Hour - time.Second)
		opts.DueDate = &due
	}

	txn, err := h.circulationService.Issue(ctx, auth.UserFromContext(c), opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, newTransactionView(txn, h.circulationService.Now())))
}

func (h *handler) returnBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Transaction")
	}

	c.Set("disallow_empty_body", false)
	params := ReturnPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	txn, err := h.circulationService.Return(ctx, auth.UserFromContext(c), id, params.Notes)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, newTransactionView(txn, h.circulationService.Now())))
}

func (h *handler) extend(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Transaction")
	}

	txn, err := h.circulationService.Extend(ctx, auth.UserFromContext(c), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, newExtendableView(txn, h.circulationService.Now())))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Transaction")
	}

	txn, err := h.circulationService.RetrieveTransaction(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, newTransactionView(txn, h.circulationService.Now())))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListTransactionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	txns, total, err := h.circulationService.ListTransactionsWithTotal(ctx, ListTransactionsOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
		Status: params.Status,
		UserID: params.UserID,
		BookID: params.BookID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := ListTransactionsResponse{
		Transactions: newTransactionViews(txns, h.circulationService.Now()),
		Total:        total,
	}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) listActive(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListOpenTransactionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	txns, err := h.circulationService.ListTransactions(ctx, ListTransactionsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Search:   params.Search,
		OpenOnly: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, newTransactionViews(txns, h.circulationService.Now())))
}

func (h *handler) listExtendable(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListOpenTransactionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	txns, err := h.circulationService.ListTransactions(ctx, ListTransactionsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Search:   params.Search,
		OpenOnly: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	now := h.circulationService.Now()
	views := make([]*ExtendableView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, newExtendableView(txn, now))
	}
	return errors.WithStack(c.JSON(http.StatusOK, views))
}
