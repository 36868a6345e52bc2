package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/property-listings/internal/model"
)

// ListingStore is the persistence the listing services need;
// *repository.ListingRepo implements it.
type ListingStore interface {
	Create(ctx context.Context, l *model.Listing) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	List(ctx context.Context, f model.ListingFilter) ([]model.Listing, int64, error)
	Update(ctx context.Context, l *model.Listing) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (model.StatusCounts, error)
}

// ImageStore is implemented by *repository.ImageRepo.
type ImageStore interface {
	Create(ctx context.Context, img *model.PropertyImage) error
	ListByListing(ctx context.Context, listingID string) ([]model.PropertyImage, error)
	Count(ctx context.Context, listingID string) (int, error)
	NextDisplayOrder(ctx context.Context, listingID string) (int, error)
	SetPrimary(ctx context.Context, listingID, imageID string) error
	Delete(ctx context.Context, listingID, imageID string) (model.PropertyImage, error)
	PromoteFirst(ctx context.Context, listingID string) (string, error)
}

// UserLookup resolves listing owners for notifications.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

// ActivityStore is implemented by *repository.ActivityRepo.
type ActivityStore interface {
	Log(ctx context.Context, userID, action, subject, ip string) error
	Recent(ctx context.Context, limit int) ([]model.ActivityLog, error)
}

// TransitionCounter is implemented by *metrics.Metrics.
type TransitionCounter interface {
	Transitioned(to string)
}

// Actor is the caller of a service operation as established by the auth
// middleware.
type Actor struct {
	UserID  string
	IsAdmin bool
	IP      string
}

// validID reports whether id can name a row; ids are UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// getListing treats an id that is not a UUID as a missing listing.
func getListing(ctx context.Context, store ListingStore, id string) (*model.Listing, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return store.GetByID(ctx, id)
}
