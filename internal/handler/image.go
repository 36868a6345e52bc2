package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/service"
	"github.com/iliyamo/property-listings/internal/validation"
)

// ImageHandler accepts multipart uploads. Owners and admins get different
// limits; the route decides which.
type ImageHandler struct {
	Images      *service.ImageService
	OwnerLimits service.ImageLimits
	AdminLimits service.ImageLimits
	Errors      Errors
}

func NewImageHandler(images *service.ImageService, owner, admin service.ImageLimits, errs Errors) *ImageHandler {
	return &ImageHandler{Images: images, OwnerLimits: owner, AdminLimits: admin, Errors: errs}
}

// Upload takes a single file in the "image" field (or "file").
func (h *ImageHandler) Upload(c echo.Context) error {
	return h.upload(c, h.OwnerLimits)
}

// AdminUpload is Upload with the admin ceiling and no count limit.
func (h *ImageHandler) AdminUpload(c echo.Context) error {
	return h.upload(c, h.AdminLimits)
}

func (h *ImageHandler) upload(c echo.Context, limits service.ImageLimits) error {
	fh, err := c.FormFile("image")
	if err != nil {
		if fh, err = c.FormFile("file"); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "image file is required"})
		}
	}
	up, err := readUpload(fh, limits.MaxFileSize)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	img, err := h.Images.Upload(c.Request().Context(), actor(c), c.Param("id"), up, limits)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusCreated, img)
}

// UploadBatch takes every file in the "images" field, in form order.
func (h *ImageHandler) UploadBatch(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form required"})
	}
	files := form.File["images"]
	ups := make([]service.Upload, 0, len(files))
	for _, fh := range files {
		up, err := readUpload(fh, h.OwnerLimits.MaxBatchSize)
		if err != nil {
			return h.Errors.Respond(c, err, msgListingNotFound)
		}
		ups = append(ups, up)
	}
	imgs, err := h.Images.UploadBatch(c.Request().Context(), actor(c), c.Param("id"), ups, h.OwnerLimits)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": imgs})
}

func (h *ImageHandler) SetPrimary(c echo.Context) error {
	imgs, err := h.Images.SetPrimary(c.Request().Context(), actor(c), c.Param("id"), c.Param("imageId"))
	if err != nil {
		return h.Errors.Respond(c, err, "image not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": imgs})
}

func (h *ImageHandler) Delete(c echo.Context) error {
	if err := h.Images.Delete(c.Request().Context(), actor(c), c.Param("id"), c.Param("imageId")); err != nil {
		return h.Errors.Respond(c, err, "image not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// readUpload reads at most max+1 bytes so an oversized file is rejected
// without buffering all of it.
func readUpload(fh *multipart.FileHeader, max int64) (service.Upload, error) {
	if max > 0 && fh.Size > max {
		return service.Upload{}, validation.New("file", fmt.Sprintf("must be at most %d MB", max>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer f.Close()
	var r io.Reader = f
	if max > 0 {
		r = io.LimitReader(f, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return service.Upload{}, err
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	if ct == "" || ct == echo.MIMEOctetStream {
		ct = http.DetectContentType(data)
	}
	return service.Upload{Filename: fh.Filename, ContentType: ct, Data: data}, nil
}
