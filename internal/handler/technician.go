package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/service"
)

// TechnicianHandler lists the names that may appear in AssignTo.
type TechnicianHandler struct {
	Techs *service.TechnicianRegistry
}

func NewTechnicianHandler(t *service.TechnicianRegistry) *TechnicianHandler {
	return &TechnicianHandler{Techs: t}
}

// List: GET /v1/technicians
func (h *TechnicianHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Techs.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
