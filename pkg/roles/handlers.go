package roles

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ticnexus/nexus/pkg/models"
)

type handler struct{}

type roleResponse struct {
	Name   string  `json:"name"`
	Level  Level   `json:"level"`
	Grants []Level `json:"grants"`
}

func (h *handler) list(c echo.Context) error {
	resp := make([]roleResponse, 0, len(models.Roles))
	for _, name := range models.Roles {
		grants := []Level{}
		for _, l := range Levels {
			if Satisfies(name, l) {
				grants = append(grants, l)
			}
		}
		resp = append(resp, roleResponse{Name: name, Level: LevelOf(name), Grants: grants})
	}

	return c.JSON(http.StatusOK, struct {
		Roles []roleResponse `json:"roles"`
	}{resp})
}
