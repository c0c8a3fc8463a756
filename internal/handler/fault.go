package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/service"
)

// FaultHandler serves the fault resource.
type FaultHandler struct {
	Faults    *service.FaultStore
	Photos    *service.PhotoManager
	MaxUpload int64
}

func NewFaultHandler(faults *service.FaultStore, photos *service.PhotoManager, maxUpload int64) *FaultHandler {
	return &FaultHandler{Faults: faults, Photos: photos, MaxUpload: maxUpload}
}

// Create: POST /v1/faults
func (h *FaultHandler) Create(c echo.Context) error {
	fields, err := decodeFields(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	f, err := h.Faults.Create(ctx, principal(c), fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, f)
}

// List: GET /v1/faults. Technicians only see faults assigned to them.
func (h *FaultHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Faults.List(ctx, principal(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /v1/faults/:id
func (h *FaultHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	f, err := h.Faults.Get(ctx, principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

// Update: PUT /v1/faults/:id with any subset of the updatable fields.
func (h *FaultHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	fields, err := decodeFields(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	f, err := h.Faults.Update(ctx, principal(c), id, fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

// Delete: DELETE /v1/faults/:id
func (h *FaultHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Faults.Delete(ctx, principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "fault deleted", "id": id})
}

type submitResp struct {
	Fault  *model.Fault   `json:"fault"`
	Photos []*model.Photo `json:"photos"`
}

// Submit: POST /v1/faults/submit (multipart). Form values are the fault
// fields, repeated AssignTo values select group mode, and every file under
// "photos" is attached. Nothing is kept when any step fails.
func (h *FaultHandler) Submit(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required").SetInternal(err)
	}
	fields := formFields(form)

	var files []*multipart.FileHeader
	files = append(files, form.File["photos"]...)
	files = append(files, form.File["photo"]...)
	uploads := make([]service.Upload, 0, len(files))
	for _, fh := range files {
		u, closeFn, err := openUpload(fh, h.MaxUpload)
		if err != nil {
			return err
		}
		defer closeFn()
		uploads = append(uploads, u)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	f, photos, err := h.Photos.SubmitFault(ctx, principal(c), fields, uploads)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, submitResp{Fault: f, Photos: photos})
}

func formFields(form *multipart.Form) service.Fields {
	fields := make(service.Fields, len(form.Value))
	for k, vs := range form.Value {
		switch {
		case len(vs) == 0:
		case k == "AssignTo" && len(vs) > 1:
			fields[k] = vs
		default:
			fields[k] = vs[0]
		}
	}
	return fields
}

// openUpload enforces the per-file size cap and opens the part.
func openUpload(fh *multipart.FileHeader, limit int64) (service.Upload, func(), error) {
	if limit > 0 && fh.Size > limit {
		return service.Upload{}, nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("photo %q exceeds %d bytes", fh.Filename, limit))
	}
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "photo could not be read").SetInternal(err)
	}
	return service.Upload{Name: fh.Filename, Body: f}, func() { _ = f.Close() }, nil
}
