package roles

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	t.Parallel()

	e := echo.New()
	RegisterRoutesWithGroup(e.Group("/roles"))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Roles []struct {
			Name   string   `json:"name"`
			Level  string   `json:"level"`
			Grants []string `json:"grants"`
		} `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Roles, 3)

	assert.Equal(t, "viewer", resp.Roles[0].Name)
	assert.Equal(t, []string{"any_authenticated"}, resp.Roles[0].Grants)
	assert.Equal(t, "admin", resp.Roles[2].Name)
	assert.Equal(t, "admin_only", resp.Roles[2].Level)
	assert.Len(t, resp.Roles[2].Grants, 3)
}
