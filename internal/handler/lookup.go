package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/service"
)

// LookupHandler serves the systems, fault locations and sections
// dictionaries. Reads are open to every role; appends are admin only.
type LookupHandler struct {
	Lookups *service.LookupRegistry
}

func NewLookupHandler(l *service.LookupRegistry) *LookupHandler {
	return &LookupHandler{Lookups: l}
}

type addSystemReq struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"max=100"`
}

type addNameReq struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *LookupHandler) Systems(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Lookups.Systems(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LookupHandler) AddSystem(c echo.Context) error {
	var req addSystemReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	s, err := h.Lookups.AddSystem(ctx, req.Code, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *LookupHandler) Locations(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Lookups.Locations(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LookupHandler) AddLocation(c echo.Context) error {
	var req addNameReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	loc, err := h.Lookups.AddLocation(ctx, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, loc)
}

func (h *LookupHandler) Sections(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	out, err := h.Lookups.Sections(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *LookupHandler) AddSection(c echo.Context) error {
	var req addNameReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	sec, err := h.Lookups.AddSection(ctx, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sec)
}
