package books

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

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

func TestHandlerCreate(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	h := &handler{bookService: NewService(db)}

	payload := `{
		"accession_number": "A-100",
		"title": " Gitanjali ",
		"author": "Rabindranath Tagore",
		"subject": "POETRY",
		"year": 1910,
		"storage_location": "TIC-R-4-S-2"
	}`
	c, rr := newTestContext(t, http.MethodPost, "/books", payload)
	c.Set("user", librarian)
	require.NoError(t, h.create(c))
	assert.Equal(t, http.StatusCreated, rr.Code)

	var book models.Book
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &book))
	assert.Equal(t, "Gitanjali", book.Title)
	require.NotNil(t, book.Subject)
	assert.Equal(t, "Poetry", *book.Subject)
	assert.False(t, book.IsIssued)
}

func TestHandlerCreate_Validation(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	h := &handler{bookService: NewService(db)}

	cases := map[string]string{
		"bad storage location":   `{"accession_number":"A","title":"T","author":"A","storage_location":"TLC-R-1-S-1"}`,
		"year out of range":      `{"accession_number":"A","title":"T","author":"A","storage_location":"TIC-R-1-S-1","year":1700}`,
		"is_issued not settable": `{"accession_number":"A","title":"T","author":"A","storage_location":"TIC-R-1-S-1","is_issued":true}`,
		"missing title":          `{"accession_number":"A","author":"A","storage_location":"TIC-R-1-S-1"}`,
	}
	for name, payload := range cases {
		c, _ := newTestContext(t, http.MethodPost, "/books", payload)
		c.Set("user", librarian)
		err := h.create(c)

		var e *errcodes.Error
		require.ErrorAs(t, err, &e, name)
		assert.Equal(t, http.StatusUnprocessableEntity, e.HTTPCode, name)
	}
}

func TestHandlerUpdate_AccessionImmutable(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db)
	h := &handler{bookService: svc}

	book := newBook("A-001")
	require.NoError(t, svc.CreateBook(t.Context(), admin, book))

	id := strconv.Itoa(book.ID)
	c, _ := newTestContext(t, http.MethodPost, "/books/"+id, `{"accession_number":"B-002"}`)
	c.SetPath("/books/:id")
	c.SetParamNames("id")
	c.SetParamValues(id)
	c.Set("user", admin)
	err := h.update(c)
	var e *errcodes.Error
	require.ErrorAs(t, err, &e)

	c, rr := newTestContext(t, http.MethodPost, "/books/"+id, `{"storage_location":"TIC-R-9-S-9","subject":"history"}`)
	c.SetPath("/books/:id")
	c.SetParamNames("id")
	c.SetParamValues(id)
	c.Set("user", admin)
	require.NoError(t, h.update(c))

	var updated models.Book
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "A-001", updated.AccessionNumber)
	assert.Equal(t, "TIC-R-9-S-9", updated.StorageLocation)
	assert.Equal(t, "History", *updated.Subject)
}

func TestHandlerListAvailable(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db)
	h := &handler{bookService: svc}

	free := newBook("A-001")
	taken := newBook("A-002")
	require.NoError(t, svc.CreateBook(t.Context(), admin, free))
	require.NoError(t, svc.CreateBook(t.Context(), admin, taken))
	issue(t, db, taken)

	c, rr := newTestContext(t, http.MethodGet, "/books/available", "")
	require.NoError(t, h.listAvailable(c))

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "A-001", resp[0]["accession_number"])
	assert.Equal(t, true, resp[0]["can_issue"])
	assert.Equal(t, false, resp[1]["can_issue"])
}
