package handler

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/property-listings/internal/middleware"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/service"
	"github.com/iliyamo/property-listings/internal/validation"
)

const msgListingNotFound = "listing not found"

func actor(c echo.Context) service.Actor {
	return service.Actor{
		UserID:  middleware.UserID(c),
		IsAdmin: middleware.IsAdmin(c),
		IP:      c.RealIP(),
	}
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	return n
}

// listingFilter reads the browse filters. An unparsable price is a 400;
// other junk values are ignored.
func listingFilter(c echo.Context) (model.ListingFilter, error) {
	f := model.ListingFilter{
		City:         strings.TrimSpace(c.QueryParam("city")),
		State:        strings.TrimSpace(c.QueryParam("state")),
		PropertyType: strings.TrimSpace(c.QueryParam("property_type")),
		MinBedrooms:  queryInt(c, "min_bedrooms"),
		Page:         queryInt(c, "page"),
		PageSize:     queryInt(c, "page_size"),
	}
	for name, dst := range map[string]**decimal.Decimal{"min_price": &f.MinPrice, "max_price": &f.MaxPrice} {
		raw := strings.TrimSpace(c.QueryParam(name))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return f, validation.New(name, "must be a non-negative number")
		}
		*dst = &d
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseListingStatus(raw)
		if !ok {
			return f, validation.New("status", "must be one of draft, pending, approved, rejected, sold")
		}
		f.Status = st
	}
	return f, nil
}
