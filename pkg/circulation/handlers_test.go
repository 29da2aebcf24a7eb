package circulation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticnexus/nexus/pkg/binder"
	"github.com/ticnexus/nexus/pkg/errcodes"
	"github.com/ticnexus/nexus/pkg/models"
)

func newTestContext(t *testing.T, method, path, payload string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	b, err := binder.New("TIC")
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if payload != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr), rr
}

func newTestHandler(t *testing.T) (*handler, *Service, *testClock) {
	t.Helper()
	svc, db, clock := newTestService(t)
	for id := 1; id <= 3; id++ {
		createBook(t, db, id)
	}
	return &handler{circulationService: svc}, svc, clock
}

func TestHandlerIssue(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)

	c, rr := newTestContext(t, http.MethodPost, "/circulation/issue", `{"book_id": 1, "user_id": 7, "notes": " desk "}`)
	c.Set("user", librarian)
	require.NoError(t, h.issue(c))
	assert.Equal(t, http.StatusCreated, rr.Code)

	var view struct {
		ID           int    `json:"id"`
		Status       string `json:"status"`
		Notes        string `json:"notes"`
		IsOverdue    bool   `json:"is_overdue"`
		DaysUntilDue *int   `json:"days_until_due"`
		Book         struct {
			IsIssued bool `json:"is_issued"`
		} `json:"book"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, models.TransactionStatusIssued, view.Status)
	assert.Equal(t, "desk", view.Notes)
	assert.False(t, view.IsOverdue)
	require.NotNil(t, view.DaysUntilDue)
	assert.Equal(t, 14, *view.DaysUntilDue)
	assert.True(t, view.Book.IsIssued)
}

func TestHandlerIssue_DueDateIsEndOfDay(t *testing.T) {
	t.Parallel()
	h, svc, _ := newTestHandler(t)

	c, rr := newTestContext(t, http.MethodPost, "/circulation/issue", `{"book_id": 1, "user_id": 7, "due_date": "2026-03-10"}`)
	c.Set("user", librarian)
	require.NoError(t, h.issue(c))
	require.Equal(t, http.StatusCreated, rr.Code)

	var view struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))

	txn, err := svc.RetrieveTransaction(c.Request().Context(), view.ID)
	require.NoError(t, err)
	want := time.Date(2026, time.March, 10, 23, 59, 59, 0, time.UTC)
	assert.True(t, txn.DueDate.Equal(want), "got %s", txn.DueDate)
}

func TestHandlerIssue_Validation(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)

	cases := map[string]string{
		"missing book":       `{"user_id": 7}`,
		"days too large":     `{"book_id": 1, "user_id": 7, "days": 120}`,
		"bad due date":       `{"book_id": 1, "user_id": 7, "due_date": "10/03/2026"}`,
		"due date in past":   `{"book_id": 1, "user_id": 7, "due_date": "2026-01-01"}`,
		"unknown parameter":  `{"book_id": 1, "user_id": 7, "status": "Returned"}`,
		"wrong type for day": `{"book_id": 1, "user_id": 7, "days": "seven"}`,
	}
	for name, payload := range cases {
		c, _ := newTestContext(t, http.MethodPost, "/circulation/issue", payload)
		c.Set("user", librarian)
		err := h.issue(c)

		var e *errcodes.Error
		require.ErrorAs(t, err, &e, name)
		assert.Equal(t, http.StatusUnprocessableEntity, e.HTTPCode, name)
	}
}

func TestHandlerReturnAndExtend(t *testing.T) {
	t.Parallel()
	h, svc, clock := newTestHandler(t)

	txn, err := svc.Issue(t.Context(), librarian, IssueOptions{BookID: 2, UserID: borrower.ID})
	require.NoError(t, err)
	id := strconv.Itoa(txn.ID)

	c, rr := newTestContext(t, http.MethodPost, "/circulation/"+id+"/extend", "")
	c.SetParamNames("id")
	c.SetParamValues(id)
	c.Set("user", librarian)
	require.NoError(t, h.extend(c))

	var extended struct {
		ExtensionCount      int  `json:"extension_count"`
		CanExtend           bool `json:"can_extend"`
		RemainingExtensions int  `json:"remaining_extensions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &extended))
	assert.Equal(t, 1, extended.ExtensionCount)
	assert.True(t, extended.CanExtend)
	assert.Equal(t, 1, extended.RemainingExtensions)

	clock.Advance(30 * 24 * time.Hour)

	// An empty body is allowed when returning.
	c, rr = newTestContext(t, http.MethodPost, "/circulation/"+id+"/return", "")
	c.SetParamNames("id")
	c.SetParamValues(id)
	c.Set("user", librarian)
	require.NoError(t, h.returnBook(c))

	var returned struct {
		Status       string  `json:"status"`
		ReturnDate   *string `json:"return_date"`
		DaysUntilDue *int    `json:"days_until_due"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &returned))
	assert.Equal(t, models.TransactionStatusReturned, returned.Status)
	assert.NotNil(t, returned.ReturnDate)
	assert.Nil(t, returned.DaysUntilDue)

	c, _ = newTestContext(t, http.MethodPost, "/circulation/"+id+"/return", "")
	c.SetParamNames("id")
	c.SetParamValues(id)
	c.Set("user", librarian)
	err = h.returnBook(c)
	var e *errcodes.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusConflict, e.HTTPCode)
	assert.Equal(t, errcodes.CodeInvalidState, e.Code)
}

func TestHandlerRetrieve_BadID(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)

	c, _ := newTestContext(t, http.MethodGet, "/transactions/abc", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")
	c.Set("user", viewer)
	err := h.retrieve(c)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeNotFound))
}

func TestHandlerList_OverdueStatus(t *testing.T) {
	t.Parallel()
	h, svc, clock := newTestHandler(t)

	short := 1
	overdue, err := svc.Issue(t.Context(), librarian, IssueOptions{BookID: 1, UserID: borrower.ID, Days: &short})
	require.NoError(t, err)
	_, err = svc.Issue(t.Context(), librarian, IssueOptions{BookID: 2, UserID: borrower.ID})
	require.NoError(t, err)

	clock.Advance(2 * 24 * time.Hour)

	c, rr := newTestContext(t, http.MethodGet, "/transactions?status=Overdue", "")
	c.Set("user", viewer)
	require.NoError(t, h.list(c))

	var resp struct {
		Transactions []struct {
			ID        int    `json:"id"`
			Status    string `json:"status"`
			IsOverdue bool   `json:"is_overdue"`
		} `json:"transactions"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, overdue.ID, resp.Transactions[0].ID)
	assert.Equal(t, models.TransactionStatusOverdue, resp.Transactions[0].Status)
	assert.True(t, resp.Transactions[0].IsOverdue)

	c, _ = newTestContext(t, http.MethodGet, "/transactions?status=Lost", "")
	c.Set("user", viewer)
	assert.True(t, errcodes.HasCode(h.list(c), errcodes.CodeValidation))
}
