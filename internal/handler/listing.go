package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-listings/internal/service"
)

// ListingHandler serves the public browse API, the owner's listings and
// the admin moderation queue. All three share one ListingService, so every
// status change goes through the same transition path.
type ListingHandler struct {
	Listings *service.ListingService
	Errors   Errors
}

func NewListingHandler(listings *service.ListingService, errs Errors) *ListingHandler {
	return &ListingHandler{Listings: listings, Errors: errs}
}

// ListPublic returns approved listings only.
func (h *ListingHandler) ListPublic(c echo.Context) error {
	f, err := listingFilter(c)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	page, err := h.Listings.ListPublic(c.Request().Context(), f)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, page)
}

// Get returns one listing if the caller may see it. Anonymous callers see
// approved listings; owners and admins see everything they are entitled to.
func (h *ListingHandler) Get(c echo.Context) error {
	l, err := h.Listings.Get(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *ListingHandler) ListOwn(c echo.Context) error {
	f, err := listingFilter(c)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	page, err := h.Listings.ListOwn(c.Request().Context(), actor(c), f)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ListingHandler) ListAdmin(c echo.Context) error {
	f, err := listingFilter(c)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	page, err := h.Listings.ListAdmin(c.Request().Context(), actor(c), f)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ListingHandler) Create(c echo.Context) error {
	var in service.ListingInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	l, err := h.Listings.Create(c.Request().Context(), actor(c), in)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *ListingHandler) Update(c echo.Context) error {
	var in service.ListingInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	l, err := h.Listings.Update(c.Request().Context(), actor(c), c.Param("id"), in)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *ListingHandler) Delete(c echo.Context) error {
	if err := h.Listings.Delete(c.Request().Context(), actor(c), c.Param("id")); err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ListingHandler) Submit(c echo.Context) error {
	l, err := h.Listings.Submit(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *ListingHandler) Approve(c echo.Context) error {
	l, err := h.Listings.Approve(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

type rejectReq struct {
	Reason string `json:"reason"`
}

func (h *ListingHandler) Reject(c echo.Context) error {
	var req rejectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	l, err := h.Listings.Reject(c.Request().Context(), actor(c), c.Param("id"), strings.TrimSpace(req.Reason))
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *ListingHandler) Reset(c echo.Context) error {
	l, err := h.Listings.Reset(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

// MarkSold accepts an optional body; without sold_price the list price is
// recorded.
func (h *ListingHandler) MarkSold(c echo.Context) error {
	var in service.SoldInput
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&in); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
	}
	l, err := h.Listings.MarkSold(c.Request().Context(), actor(c), c.Param("id"), in)
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *ListingHandler) RevertSold(c echo.Context) error {
	l, err := h.Listings.RevertSold(c.Request().Context(), actor(c), c.Param("id"))
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, l)
}

// Stats returns listing counts per status.
func (h *ListingHandler) Stats(c echo.Context) error {
	counts, err := h.Listings.Stats(c.Request().Context(), actor(c))
	if err != nil {
		return h.Errors.Respond(c, err, msgListingNotFound)
	}
	return c.JSON(http.StatusOK, echo.Map{"counts": counts})
}

func (h *ListingHandler) Activity(c echo.Context) error {
	items, err := h.Listings.Activity(c.Request().Context(), actor(c), queryInt(c, "limit"))
	if err != nil {
		return h.Errors.Respond(c, err, "not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
