package handler

import (
	"errors"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/faultdesk/internal/model"
	"github.com/iliyamo/faultdesk/internal/service"
)

// UploadsPrefix is the URL prefix photo files are served under.
const UploadsPrefix = "/uploads"

// PhotoHandler serves photo attachments.
type PhotoHandler struct {
	Photos    *service.PhotoManager
	MaxUpload int64
}

func NewPhotoHandler(photos *service.PhotoManager, maxUpload int64) *PhotoHandler {
	return &PhotoHandler{Photos: photos, MaxUpload: maxUpload}
}

type photoView struct {
	*model.Photo
	URL string `json:"url"`
}

func viewPhoto(p *model.Photo) photoView {
	return photoView{Photo: p, URL: path.Join(UploadsPrefix, p.PhotoPath)}
}

// Upload: POST /v1/photos/upload (multipart "photo" and "faultId").
func (h *PhotoHandler) Upload(c echo.Context) error {
	faultID, err := service.ParseID("faultId", c.FormValue("faultId"))
	if err != nil {
		return err
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return echo.NewHTTPError(http.StatusBadRequest, "photo is required")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "multipart form required").SetInternal(err)
	}
	u, closeFn, err := openUpload(fh, h.MaxUpload)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := requestCtx(c)
	defer cancel()

	ph, err := h.Photos.Upload(ctx, principal(c), faultID, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, viewPhoto(ph))
}

// ListByFault: GET /v1/photos/fault/:faultId in upload order.
func (h *PhotoHandler) ListByFault(c echo.Context) error {
	faultID, err := pathID(c, "faultId")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	photos, err := h.Photos.ListByFault(ctx, principal(c), faultID)
	if err != nil {
		return err
	}
	out := make([]photoView, 0, len(photos))
	for _, p := range photos {
		out = append(out, viewPhoto(p))
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /v1/photos/:photoId
func (h *PhotoHandler) Get(c echo.Context) error {
	id, err := pathID(c, "photoId")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	ph, err := h.Photos.Get(ctx, principal(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewPhoto(ph))
}

// Delete: DELETE /v1/photos/:photoId removes the file and the row.
func (h *PhotoHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "photoId")
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Photos.Delete(ctx, principal(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "photo deleted", "id": id})
}
