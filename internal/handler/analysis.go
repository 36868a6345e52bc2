package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/service"
	"github.com/iliyamo/property-listings/internal/workflow"
)

// AnalysisHandler proxies analysis and search requests to the workflow
// and returns its JSON untouched. An authenticated caller can ask for the
// result to be stored in their library.
type AnalysisHandler struct {
	Workflow workflow.Analyzer
	Library  AnalysisStore
	Runner   service.Runner
	Activity service.ActivityStore
	Errors   Errors
}

type analyzeReq struct {
	Address string `json:"address" validate:"required,max=500"`
	Save    bool   `json:"save"`
}

func (h *AnalysisHandler) Analyze(c echo.Context) error {
	var req analyzeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Address = strings.TrimSpace(req.Address)
	if err := c.Validate(&req); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	result, err := h.Workflow.Analyze(c.Request().Context(), req.Address)
	if err != nil {
		return h.Errors.Internal(c, err, "property analysis failed")
	}

	a := actor(c)
	if req.Save && a.UserID != "" && h.Library != nil {
		saved := &model.SavedAnalysis{UserID: a.UserID, Address: req.Address, Title: req.Address, Payload: result}
		if err := h.Library.Create(c.Request().Context(), saved); err != nil {
			return h.Errors.Internal(c, err, "save analysis failed")
		}
		c.Response().Header().Set("X-Saved-Analysis-ID", saved.ID)
	}
	if h.Runner != nil && h.Activity != nil {
		_ = h.Runner.Go("activity:"+model.ActionAnalysisRun, func(ctx context.Context) error {
			return h.Activity.Log(ctx, a.UserID, model.ActionAnalysisRun, req.Address, a.IP)
		})
	}
	return c.JSONBlob(http.StatusOK, result)
}

func (h *AnalysisHandler) Search(c echo.Context) error {
	var req workflow.SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Location = strings.TrimSpace(req.Location)
	if err := c.Validate(&req); err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	result, err := h.Workflow.Search(c.Request().Context(), req)
	if err != nil {
		return h.Errors.Internal(c, err, "property search failed")
	}
	return c.JSONBlob(http.StatusOK, result)
}
