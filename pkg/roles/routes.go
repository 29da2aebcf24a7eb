package roles

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers role routes on a group that has already
// been authenticated.
func RegisterRoutesWithGroup(g *echo.Group) {
	h := &handler{}
	g.GET("", h.list)
}
