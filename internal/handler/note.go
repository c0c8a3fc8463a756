package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/service"
)

// NoteHandler serves the notes of a fault.
type NoteHandler struct {
	Notes *service.NoteLedger
}

func NewNoteHandler(notes *service.NoteLedger) *NoteHandler {
	return &NoteHandler{Notes: notes}
}

type createNoteReq struct {
	FaultID int64  `json:"FaultID" validate:"required,gt=0"`
	Notes   string `json:"Notes"`
}

type updateNoteReq struct {
	Notes string `json:"Notes"`
}

// List: GET /v1/faults/:id/notes, newest first.
func (h *NoteHandler) List(c echo.Context) error {
	faultID, err := service.ParseID("faultId", c.Param("id"))
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Notes.List(ctx, principal(c), faultID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Create: POST /v1/notes {"FaultID": 5, "Notes": "..."}
func (h *NoteHandler) Create(c echo.Context) error {
	var req createNoteReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	n, err := h.Notes.Create(ctx, principal(c), req.FaultID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

// Update: PUT /v1/notes/:id rewrites the text and the date.
func (h *NoteHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateNoteReq
	if err := c.Bind(&req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	n, err := h.Notes.Update(ctx, principal(c), id, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// Delete: DELETE /v1/notes/:id
func (h *NoteHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Notes.Delete(ctx, principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "note deleted", "id": id})
}
