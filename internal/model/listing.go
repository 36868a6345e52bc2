package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotApplicable marks a numeric spec (bedrooms, year built, ...) that does
// not apply to the property or is unknown.  It is distinct from zero.
const NotApplicable = -1

// Listing represents a row in the `listings` table together with its
// images.  Nullable moderation columns are pointers so that "cleared"
// serializes as null.
type Listing struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Status      ListingStatus `json:"status"`
	Title       string        `json:"title"`
	Description string        `json:"description"`

	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
	PropertyType string `json:"property_type"`

	Bedrooms   int     `json:"bedrooms"`
	Bathrooms  float64 `json:"bathrooms"`
	SquareFeet int     `json:"square_feet"`
	LotSize    float64 `json:"lot_size"`
	YearBuilt  int     `json:"year_built"`

	ListPrice   decimal.Decimal  `json:"list_price"`
	SoldPrice   *decimal.Decimal `json:"sold_price"`
	HOAFee      *decimal.Decimal `json:"hoa_fee,omitempty"`
	PropertyTax *decimal.Decimal `json:"property_tax,omitempty"`

	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`

	RejectionReason *string    `json:"rejection_reason"`
	ApprovedAt      *time.Time `json:"approved_at"`
	ApprovedBy      *string    `json:"approved_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectedBy      *string    `json:"rejected_by"`
	SoldAt          *time.Time `json:"sold_at"`
	SoldBy          *string    `json:"sold_by"`
	SaleNotes       *string    `json:"sale_notes"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Images []PropertyImage `json:"images"`
}

// PrimaryImage returns the image flagged primary, or nil.
func (l *Listing) PrimaryImage() *PropertyImage {
	for i := range l.Images {
		if l.Images[i].IsPrimary {
			return &l.Images[i]
		}
	}
	return nil
}

// ListingFilter narrows listing queries.  Zero values mean "no filter".
type ListingFilter struct {
	Status       ListingStatus
	UserID       string
	City         string
	State        string
	PropertyType string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	MinBedrooms  int
	Page         int
	PageSize     int
}

// StatusCounts maps each status to the number of listings in it.
type StatusCounts map[ListingStatus]int64
