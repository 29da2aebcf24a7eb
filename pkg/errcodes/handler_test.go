package errcodes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHandler().Handle(err, c)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	payload, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	return rec.Code, payload
}

func TestHandle_CustomErrorWithDetails(t *testing.T) {
	t.Parallel()

	err := errors.WithStack(LimitExceeded("Transaction 3 has already been extended 2 times.", Details{
		"transaction_id":  3,
		"extension_count": 2,
	}))
	code, payload := handle(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, CodeLimitExceeded, payload["code"])
	assert.EqualValues(t, http.StatusUnprocessableEntity, payload["status_code"])
	details, ok := payload["details"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, details["transaction_id"])
	assert.EqualValues(t, 2, details["extension_count"])
}

func TestHandle_NoDetailsOmitted(t *testing.T) {
	t.Parallel()

	code, payload := handle(t, NotFound("Book"))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Book not found.", payload["message"])
	_, ok := payload["details"]
	assert.False(t, ok)
}

func TestHandle_GenericError(t *testing.T) {
	t.Parallel()

	code, payload := handle(t, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal_server_error", payload["code"])
	assert.Equal(t, "Internal Server Error", payload["message"])
}

func TestHandle_EchoError(t *testing.T) {
	t.Parallel()

	code, payload := handle(t, echo.ErrMethodNotAllowed)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "method_not_allowed", payload["code"])
}

func TestErrorKinds_StatusCodes(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		code int
	}{
		CodeNotFound:      {NotFoundID("Transaction", 9), http.StatusNotFound},
		CodeConflict:      {Conflict("Book is already issued.", nil), http.StatusConflict},
		CodeInvalidState:  {InvalidState("Transaction already returned.", nil), http.StatusConflict},
		CodeLimitExceeded: {LimitExceeded("Extension limit reached.", nil), http.StatusUnprocessableEntity},
		CodeForbidden:     {Forbidden("Deleting a book"), http.StatusForbidden},
	}

	for name, tc := range cases {
		var e *Error
		require.True(t, errors.As(tc.err, &e), name)
		assert.Equal(t, tc.code, e.HTTPCode, name)
		assert.True(t, HasCode(errors.WithStack(tc.err), name), name)
	}
}

func TestWithDetails_CopiesError(t *testing.T) {
	t.Parallel()

	base := Forbidden("Issuing a book")
	withDetails := WithDetails(base, Details{"role": "viewer"})

	assert.True(t, errors.Is(withDetails, base))
	var e *Error
	require.True(t, errors.As(withDetails, &e))
	assert.Equal(t, "viewer", e.Details["role"])

	var orig *Error
	require.True(t, errors.As(base, &orig))
	assert.Nil(t, orig.Details)

	plain := errors.New("plain")
	assert.Equal(t, plain, WithDetails(plain, Details{"x": 1}))
}
