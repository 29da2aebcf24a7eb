package binder

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticnexus/nexus/pkg/errcodes"
)

type bookParams struct {
	Title           string  `json:"title" mod:"trim" validate:"required,max=9"`
	StorageLocation string  `json:"storage_location" validate:"required,storage_location"`
	ISBN            *string `json:"isbn" validate:"omitempty,isbn"`
}

type listParams struct {
	Limit  int    `query:"limit" default:"24" validate:"min=1,max=50"`
	Search string `query:"search" mod:"trim"`
}

type uploadParams struct {
	Title     string                           `form:"title" validate:"required"`
	FormFiles map[string]*multipart.FileHeader `form:"-"`
}

func newBinder(t *testing.T) *Binder {
	t.Helper()
	b, err := New("TIC")
	require.NoError(t, err)
	return b
}

func newContext(method, payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(payload))
	if mime != "" {
		req.Header.Set(echo.HeaderContentType, mime)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestBind_JSON(t *testing.T) {
	t.Parallel()
	b := newBinder(t)

	t.Run("trims and validates", func(t *testing.T) {
		c := newContext(http.MethodPost, `{"title":" Dune ","storage_location":"TIC-R-1-S-4","isbn":"978-0-441-17271-9"}`, echo.MIMEApplicationJSON)
		p := bookParams{}
		require.NoError(t, b.Bind(&p, c))
		assert.Equal(t, "Dune", p.Title)
		assert.Equal(t, "TIC-R-1-S-4", p.StorageLocation)
	})

	t.Run("rejects unsupported media types", func(t *testing.T) {
		c := newContext(http.MethodPost, `{}`, echo.MIMEApplicationXML)
		err := b.Bind(&bookParams{}, c)
		assert.Contains(t, err.Error(), "Unsupported Media Type")
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		c := newContext(http.MethodPost, `{"title":"x","storage_location":"TIC-R-1-S-1","is_issued":true}`, echo.MIMEApplicationJSON)
		err := b.Bind(&bookParams{}, c)
		assert.Contains(t, err.Error(), `Unknown Parameter "is_issued"`)
	})

	t.Run("reports type errors", func(t *testing.T) {
		c := newContext(http.MethodPost, `{"title":12}`, echo.MIMEApplicationJSON)
		err := b.Bind(&bookParams{}, c)
		assert.Contains(t, err.Error(), `"title" should be of type string`)
	})

	t.Run("rejects locations with the wrong prefix", func(t *testing.T) {
		c := newContext(http.MethodPost, `{"title":"x","storage_location":"TLC-R-1-S-1"}`, echo.MIMEApplicationJSON)
		err := b.Bind(&bookParams{}, c)
		require.Error(t, err)
		assert.True(t, errcodes.HasCode(err, errcodes.CodeValidation))
		assert.Contains(t, err.Error(), "TIC-R-<rack>-S-<shelf>")
	})

	t.Run("rejects malformed isbns", func(t *testing.T) {
		c := newContext(http.MethodPost, `{"title":"x","storage_location":"TIC-R-1-S-1","isbn":"12345"}`, echo.MIMEApplicationJSON)
		err := b.Bind(&bookParams{}, c)
		assert.Contains(t, err.Error(), "not a valid ISBN")
	})

	t.Run("requires a body on POST", func(t *testing.T) {
		c := newContext(http.MethodPost, "", echo.MIMEApplicationJSON)
		err := b.Bind(&bookParams{}, c)
		assert.Contains(t, err.Error(), "Request body can't be empty.")
	})
}

func TestBind_Query(t *testing.T) {
	t.Parallel()
	b := newBinder(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?search=%20dune%20", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	p := listParams{}
	require.NoError(t, b.Bind(&p, c))
	assert.Equal(t, "dune", p.Search)
	assert.Equal(t, 24, p.Limit)

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	err := b.Bind(&listParams{}, c)
	assert.Contains(t, err.Error(), `"limit" should be of type int`)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	c = e.NewContext(req, httptest.NewRecorder())
	err = b.Bind(&listParams{}, c)
	assert.Contains(t, err.Error(), `"limit" must be less than or equal to 50`)
}

func TestBind_Multipart(t *testing.T) {
	t.Parallel()
	b := newBinder(t)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("title", "Networks"))
	fw, err := w.CreateFormFile("file", "networks.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	c := e.NewContext(req, httptest.NewRecorder())

	p := uploadParams{}
	require.NoError(t, b.Bind(&p, c))
	assert.Equal(t, "Networks", p.Title)
	require.Contains(t, p.FormFiles, "file")
	assert.Equal(t, "networks.pdf", p.FormFiles["file"].Filename)
}
