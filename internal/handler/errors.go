package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/property-listings/internal/logger"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/otp"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/service"
	"github.com/iliyamo/property-listings/internal/validation"
	"github.com/iliyamo/property-listings/internal/workflow"
)

// Errors maps domain errors to HTTP responses. In production the body of
// a 500 carries only a generic message; elsewhere the cause is appended.
type Errors struct {
	Production bool
	Logger     *zap.Logger
}

// Respond writes err as {"error": ...} with the status its kind maps to.
// notFound is the message used for a missing resource.
func (h Errors) Respond(c echo.Context, err error, notFound string) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrReasonRequired),
		errors.Is(err, otp.ErrInvalidCode):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFound})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrPhoneExists),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, service.ErrListingLocked):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict, please retry"})
	}
	return h.Internal(c, err, "internal server error")
}

// Internal logs err and answers 500 with msg.
func (h Errors) Internal(c echo.Context, err error, msg string) error {
	logger.FromContext(c, h.Logger).Error(msg, zap.Error(err))
	if errors.Is(err, workflow.ErrNotConfigured) {
		msg = "analysis service is not configured"
	}
	if !h.Production && err != nil {
		msg += ": " + err.Error()
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": msg})
}
