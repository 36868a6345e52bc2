package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/middleware"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/repository"
)

// AnalysisStore is implemented by *repository.AnalysisRepo.
type AnalysisStore interface {
	Create(ctx context.Context, a *model.SavedAnalysis) error
	ListByUser(ctx context.Context, userID string, page, size int) ([]model.SavedAnalysis, int64, error)
	GetByID(ctx context.Context, userID, id string) (model.SavedAnalysis, error)
	Delete(ctx context.Context, userID, id string) error
}

// LibraryHandler manages a user's saved analyses. Entries of other users
// are reported as missing.
type LibraryHandler struct {
	Analyses AnalysisStore
	Errors   Errors
}

type saveAnalysisReq struct {
	Address string          `json:"address" validate:"required,max=500"`
	Title   string          `json:"title" validate:"max=200"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

const msgAnalysisNotFound = "analysis not found"

func (h *LibraryHandler) List(c echo.Context) error {
	page, size := repository.Paginate(queryInt(c, "page"), queryInt(c, "page_size"))
	items, total, err := h.Analyses.ListByUser(c.Request().Context(), middleware.UserID(c), page, size)
	if err != nil {
		return h.Errors.Respond(c, err, msgAnalysisNotFound)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": size,
	})
}

func (h *LibraryHandler) Save(c echo.Context) error {
	var req saveAnalysisReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return h.Errors.Respond(c, err, msgAnalysisNotFound)
	}
	if !json.Valid(req.Payload) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payload must be JSON"})
	}
	a := &model.SavedAnalysis{
		UserID:  middleware.UserID(c),
		Address: strings.TrimSpace(req.Address),
		Title:   strings.TrimSpace(req.Title),
		Payload: req.Payload,
	}
	if err := h.Analyses.Create(c.Request().Context(), a); err != nil {
		return h.Errors.Respond(c, err, msgAnalysisNotFound)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *LibraryHandler) Get(c echo.Context) error {
	a, err := h.Analyses.GetByID(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return h.Errors.Respond(c, err, msgAnalysisNotFound)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *LibraryHandler) Delete(c echo.Context) error {
	if err := h.Analyses.Delete(c.Request().Context(), middleware.UserID(c), c.Param("id")); err != nil {
		return h.Errors.Respond(c, err, msgAnalysisNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}
