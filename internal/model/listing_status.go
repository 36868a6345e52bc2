package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus is the moderation state of a listing.  A listing holds
// exactly one status at any time.
type ListingStatus string

const (
	StatusDraft    ListingStatus = "draft"
	StatusPending  ListingStatus = "pending"
	StatusApproved ListingStatus = "approved"
	StatusRejected ListingStatus = "rejected"
	StatusSold     ListingStatus = "sold"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ListingStatus{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusSold}

var (
	// ErrInvalidTransition is returned when the current status does not
	// allow the requested move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrReasonRequired is returned when a rejection has an empty reason.
	ErrReasonRequired = errors.New("rejection reason is required")
)

// ParseListingStatus normalizes s and reports whether it names a status.
func ParseListingStatus(s string) (ListingStatus, bool) {
	st := ListingStatus(strings.ToLower(strings.TrimSpace(s)))
	return st, st.IsValid()
}

// IsValid reports whether s is one of the five known statuses.
func (s ListingStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusSold:
		return true
	}
	return false
}

func (s ListingStatus) String() string { return string(s) }

// CanTransitionTo is the transition table for listings.  Every route that
// changes a status goes through one of the Listing methods below; each
// accepts only source statuses from which this table allows its target.
func (s ListingStatus) CanTransitionTo(target ListingStatus) bool {
	switch s {
	case StatusDraft:
		return target == StatusPending
	case StatusPending:
		return target == StatusApproved || target == StatusRejected
	case StatusApproved:
		return target == StatusPending || target == StatusSold
	case StatusRejected:
		return target == StatusPending
	case StatusSold:
		return target == StatusPending || target == StatusApproved
	}
	return false
}

func (l *Listing) transitionError(target ListingStatus) error {
	return fmt.Errorf("%w: cannot move listing from %s to %s", ErrInvalidTransition, l.Status, target)
}

// Submit moves a draft into the moderation queue.
func (l *Listing) Submit(now time.Time) error {
	if l.Status != StatusDraft {
		return l.transitionError(StatusPending)
	}
	l.Status = StatusPending
	l.UpdatedAt = now
	return nil
}

// Approve publishes a pending listing.
func (l *Listing) Approve(adminID string, now time.Time) error {
	if l.Status != StatusPending {
		return l.transitionError(StatusApproved)
	}
	l.clearReview()
	l.clearSale()
	l.Status = StatusApproved
	l.ApprovedAt = &now
	l.ApprovedBy = &adminID
	l.UpdatedAt = now
	return nil
}

// Reject declines a pending listing.  The reason is mandatory and is
// checked before the status so a missing reason is always reported as such.
func (l *Listing) Reject(adminID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if l.Status != StatusPending {
		return l.transitionError(StatusRejected)
	}
	l.clearReview()
	l.clearSale()
	l.Status = StatusRejected
	l.RejectionReason = &reason
	l.RejectedAt = &now
	l.RejectedBy = &adminID
	l.UpdatedAt = now
	return nil
}

// ResetToPending sends a reviewed listing back to the queue and wipes all
// review and sale metadata.
func (l *Listing) ResetToPending(now time.Time) error {
	switch l.Status {
	case StatusApproved, StatusRejected, StatusSold:
	default:
		return l.transitionError(StatusPending)
	}
	l.clearReview()
	l.clearSale()
	l.Status = StatusPending
	l.UpdatedAt = now
	return nil
}

// MarkSold closes an approved listing.  A nil price falls back to the list
// price.
func (l *Listing) MarkSold(adminID string, price *decimal.Decimal, notes string, now time.Time) error {
	if l.Status != StatusApproved {
		return l.transitionError(StatusSold)
	}
	sold := l.ListPrice
	if price != nil {
		sold = *price
	}
	l.Status = StatusSold
	l.SoldPrice = &sold
	l.SoldAt = &now
	l.SoldBy = &adminID
	if notes = strings.TrimSpace(notes); notes != "" {
		l.SaleNotes = &notes
	} else {
		l.SaleNotes = nil
	}
	l.UpdatedAt = now
	return nil
}

// RevertSold reopens a sold listing as approved.
func (l *Listing) RevertSold(now time.Time) error {
	if l.Status != StatusSold {
		return l.transitionError(StatusApproved)
	}
	l.clearSale()
	l.Status = StatusApproved
	l.UpdatedAt = now
	return nil
}

func (l *Listing) clearReview() {
	l.ApprovedAt, l.ApprovedBy = nil, nil
	l.RejectedAt, l.RejectedBy = nil, nil
	l.RejectionReason = nil
}

func (l *Listing) clearSale() {
	l.SoldAt, l.SoldBy = nil, nil
	l.SoldPrice = nil
	l.SaleNotes = nil
}

// CanView decides whether viewerID may see the listing detail.  An empty
// viewerID is an anonymous caller.
func CanView(l *Listing, viewerID string, isAdmin bool) bool {
	if l == nil {
		return false
	}
	if l.Status == StatusApproved || isAdmin {
		return true
	}
	return viewerID != "" && viewerID == l.UserID
}
