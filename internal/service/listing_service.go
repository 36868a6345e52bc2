package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/property-listings/internal/mailer"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/storage"
	"github.com/iliyamo/property-listings/internal/validation"
)

var (
	// ErrListingLocked is returned when an owner edits a listing that is
	// approved or sold. Only an admin may change those.
	ErrListingLocked = errors.New("approved or sold listings can only be changed by an administrator")
	ErrForbidden     = repository.ErrForbidden
	ErrNotFound      = repository.ErrNotFound
)

// ListingInput is the editable part of a listing as accepted from clients.
// Missing numeric specs default to model.NotApplicable.
type ListingInput struct {
	Title        string           `json:"title" validate:"required,max=200"`
	Description  string           `json:"description" validate:"max=10000"`
	Street       string           `json:"street" validate:"max=200"`
	City         string           `json:"city" validate:"required,max=100"`
	State        string           `json:"state" validate:"max=100"`
	ZipCode      string           `json:"zip_code" validate:"max=20"`
	PropertyType string           `json:"property_type" validate:"max=50"`
	Bedrooms     *int             `json:"bedrooms" validate:"omitempty,gte=-1"`
	Bathrooms    *float64         `json:"bathrooms" validate:"omitempty,gte=-1"`
	SquareFeet   *int             `json:"square_feet" validate:"omitempty,gte=-1"`
	LotSize      *float64         `json:"lot_size" validate:"omitempty,gte=-1"`
	YearBuilt    *int             `json:"year_built" validate:"omitempty,gte=-1"`
	ListPrice    *decimal.Decimal `json:"list_price"`
	HOAFee       *decimal.Decimal `json:"hoa_fee"`
	PropertyTax  *decimal.Decimal `json:"property_tax"`
	ContactName  string           `json:"contact_name" validate:"max=200"`
	ContactEmail string           `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string           `json:"contact_phone" validate:"max=40"`
	// Version, when non-zero, must match the stored version.
	Version int `json:"version" validate:"gte=0"`
	// Submit sends a new listing straight to review.
	Submit bool `json:"submit"`
}

// Validate checks the struct tags plus the money fields, which the tag
// validator cannot compare.
func (in ListingInput) Validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.ListPrice == nil {
		return validation.New("list_price", "is required")
	}
	for name, d := range map[string]*decimal.Decimal{
		"list_price":   in.ListPrice,
		"hoa_fee":      in.HOAFee,
		"property_tax": in.PropertyTax,
	} {
		if d != nil && d.IsNegative() {
			return validation.New(name, "must not be negative")
		}
	}
	return nil
}

func (in ListingInput) apply(l *model.Listing) {
	spec := func(p *int) int {
		if p == nil {
			return model.NotApplicable
		}
		return *p
	}
	specF := func(p *float64) float64 {
		if p == nil {
			return model.NotApplicable
		}
		return *p
	}
	l.Title = strings.TrimSpace(in.Title)
	l.Description = strings.TrimSpace(in.Description)
	l.Street = strings.TrimSpace(in.Street)
	l.City = strings.TrimSpace(in.City)
	l.State = strings.TrimSpace(in.State)
	l.ZipCode = strings.TrimSpace(in.ZipCode)
	l.PropertyType = strings.TrimSpace(in.PropertyType)
	l.Bedrooms = spec(in.Bedrooms)
	l.Bathrooms = specF(in.Bathrooms)
	l.SquareFeet = spec(in.SquareFeet)
	l.LotSize = specF(in.LotSize)
	l.YearBuilt = spec(in.YearBuilt)
	l.ListPrice = *in.ListPrice
	l.HOAFee = in.HOAFee
	l.PropertyTax = in.PropertyTax
	l.ContactName = strings.TrimSpace(in.ContactName)
	l.ContactEmail = strings.ToLower(strings.TrimSpace(in.ContactEmail))
	l.ContactPhone = strings.TrimSpace(in.ContactPhone)
}

// SoldInput carries the optional sale details.
type SoldInput struct {
	SoldPrice *decimal.Decimal `json:"sold_price"`
	SaleNotes string           `json:"sale_notes" validate:"max=2000"`
}

// Page is one page of a listing query.
type Page struct {
	Items    []model.Listing `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ListingService owns the listing lifecycle. Every status change goes
// through a model.Listing transition method and one version-guarded update.
type ListingService struct {
	listings ListingStore
	images   ImageStore
	users    UserLookup
	objects  storage.Storage
	runner   Runner
	notifier Notifier
	activity ActivityStore
	counter  TransitionCounter
	logger   *zap.Logger
	now      func() time.Time
}

// ListingDeps groups the collaborators of ListingService. Runner, Notifier,
// Activity, Counter and Objects may be nil.
type ListingDeps struct {
	Listings ListingStore
	Images   ImageStore
	Users    UserLookup
	Objects  storage.Storage
	Runner   Runner
	Notifier Notifier
	Activity ActivityStore
	Counter  TransitionCounter
	Logger   *zap.Logger
}

func NewListingService(d ListingDeps) *ListingService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{
		listings: d.Listings,
		images:   d.Images,
		users:    d.Users,
		objects:  d.Objects,
		runner:   d.Runner,
		notifier: d.Notifier,
		activity: d.Activity,
		counter:  d.Counter,
		logger:   logger.Named("listings"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new listing owned by the actor, as a draft or, with
// in.Submit, directly pending review.
func (s *ListingService) Create(ctx context.Context, actor Actor, in ListingInput) (*model.Listing, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	l := &model.Listing{UserID: actor.UserID, Status: model.StatusDraft}
	in.apply(l)
	if in.Submit {
		if err := l.Submit(s.now()); err != nil {
			return nil, err
		}
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, err
	}
	l.Images = []model.PropertyImage{}
	s.record(actor, model.ActionListingCreated, l.ID)
	if l.Status == model.StatusPending {
		s.counted(l)
		s.record(actor, model.ActionListingSubmitted, l.ID)
	}
	return l, nil
}

// Get returns a listing with its images when the actor may see it. Hidden
// listings are indistinguishable from missing ones.
func (s *ListingService) Get(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	l, err := getListing(ctx, s.listings, id)
	if err != nil {
		return nil, err
	}
	if !model.CanView(l, actor.UserID, actor.IsAdmin) {
		return nil, ErrNotFound
	}
	if err := s.attachImages(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ListPublic returns approved listings only, whatever status f asks for.
func (s *ListingService) ListPublic(ctx context.Context, f model.ListingFilter) (Page, error) {
	f.Status = model.StatusApproved
	f.UserID = ""
	return s.list(ctx, f)
}

// ListOwn returns the actor's listings in every status.
func (s *ListingService) ListOwn(ctx context.Context, actor Actor, f model.ListingFilter) (Page, error) {
	f.UserID = actor.UserID
	return s.list(ctx, f)
}

// ListAdmin returns listings in any status; f.Status narrows it.
func (s *ListingService) ListAdmin(ctx context.Context, actor Actor, f model.ListingFilter) (Page, error) {
	if !actor.IsAdmin {
		return Page{}, ErrForbidden
	}
	return s.list(ctx, f)
}

func (s *ListingService) list(ctx context.Context, f model.ListingFilter) (Page, error) {
	f.Page, f.PageSize = repository.Paginate(f.Page, f.PageSize)
	items, total, err := s.listings.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	for i := range items {
		if err := s.attachImages(ctx, &items[i]); err != nil {
			return Page{}, err
		}
	}
	return Page{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// Update replaces the editable fields. Owners may edit drafts, pending and
// rejected listings; admins may edit any.
func (s *ListingService) Update(ctx context.Context, actor Actor, id string, in ListingInput) (*model.Listing, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	l, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && (l.Status == model.StatusApproved || l.Status == model.StatusSold) {
		return nil, ErrListingLocked
	}
	if in.Version != 0 && in.Version != l.Version {
		return nil, repository.ErrVersionConflict
	}
	in.apply(l)
	if err := s.listings.Update(ctx, l); err != nil {
		return nil, err
	}
	if err := s.attachImages(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Delete removes the listing and its image rows. Stored objects are
// removed afterwards in the background; a failed cleanup leaves orphaned
// objects but never fails the deletion.
func (s *ListingService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	imgs, err := s.images.ListByListing(ctx, id)
	if err != nil {
		return err
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return err
	}
	for _, img := range imgs {
		s.removeObjects(img)
	}
	s.record(actor, model.ActionListingDeleted, id)
	return nil
}

// Submit moves the owner's draft to pending review.
func (s *ListingService) Submit(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	l, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := l.Submit(s.now()); err != nil {
		return nil, err
	}
	return l, s.save(ctx, actor, l, model.ActionListingSubmitted)
}

// Approve publishes a pending listing and emails the owner.
func (s *ListingService) Approve(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	l, err := s.transition(ctx, actor, id, model.ActionListingApproved, func(l *model.Listing) error {
		return l.Approve(actor.UserID, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.notifyOwner(l, mailer.TemplateListingApproved, nil)
	return l, nil
}

// Reject sends a pending listing back to its owner with a reason.
func (s *ListingService) Reject(ctx context.Context, actor Actor, id, reason string) (*model.Listing, error) {
	l, err := s.transition(ctx, actor, id, model.ActionListingRejected, func(l *model.Listing) error {
		return l.Reject(actor.UserID, reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.notifyOwner(l, mailer.TemplateListingRejected, map[string]string{"reason": *l.RejectionReason})
	return l, nil
}

// Reset returns a reviewed listing to pending and clears every review field.
func (s *ListingService) Reset(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	return s.transition(ctx, actor, id, model.ActionListingReset, func(l *model.Listing) error {
		return l.ResetToPending(s.now())
	})
}

// MarkSold closes an approved listing. The sold price defaults to the list
// price.
func (s *ListingService) MarkSold(ctx context.Context, actor Actor, id string, in SoldInput) (*model.Listing, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.SoldPrice != nil && in.SoldPrice.IsNegative() {
		return nil, validation.New("sold_price", "must not be negative")
	}
	return s.transition(ctx, actor, id, model.ActionListingSold, func(l *model.Listing) error {
		return l.MarkSold(actor.UserID, in.SoldPrice, in.SaleNotes, s.now())
	})
}

// RevertSold puts a sold listing back on the market as approved.
func (s *ListingService) RevertSold(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	return s.transition(ctx, actor, id, model.ActionListingUnsold, func(l *model.Listing) error {
		return l.RevertSold(s.now())
	})
}

// Stats returns the number of listings per status.
func (s *ListingService) Stats(ctx context.Context, actor Actor) (model.StatusCounts, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return s.listings.CountByStatus(ctx)
}

// Activity returns the newest audit entries.
func (s *ListingService) Activity(ctx context.Context, actor Actor, limit int) ([]model.ActivityLog, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	if s.activity == nil {
		return []model.ActivityLog{}, nil
	}
	return s.activity.Recent(ctx, limit)
}

// transition is the shared path of every admin status change: load, apply
// the model rule, persist with the version check. A rule violation leaves
// the stored row untouched.
func (s *ListingService) transition(ctx context.Context, actor Actor, id, action string, apply func(*model.Listing) error) (*model.Listing, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	l, err := getListing(ctx, s.listings, id)
	if err != nil {
		return nil, err
	}
	if err := apply(l); err != nil {
		return nil, err
	}
	if err := s.save(ctx, actor, l, action); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *ListingService) save(ctx context.Context, actor Actor, l *model.Listing, action string) error {
	if err := s.listings.Update(ctx, l); err != nil {
		return err
	}
	s.counted(l)
	s.record(actor, action, l.ID)
	s.logger.Info("listing transitioned",
		zap.String("listing_id", l.ID),
		zap.String("status", l.Status.String()),
		zap.String("actor", actor.UserID),
	)
	return s.attachImages(ctx, l)
}

// load returns the listing when the actor owns it or is an admin.
func (s *ListingService) load(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	if actor.IsAdmin {
		return getListing(ctx, s.listings, id)
	}
	return s.loadOwned(ctx, actor, id)
}

// loadOwned hides other users' listings behind ErrNotFound.
func (s *ListingService) loadOwned(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	l, err := getListing(ctx, s.listings, id)
	if err != nil {
		return nil, err
	}
	if actor.UserID == "" || l.UserID != actor.UserID {
		return nil, ErrNotFound
	}
	return l, nil
}

func (s *ListingService) attachImages(ctx context.Context, l *model.Listing) error {
	imgs, err := s.images.ListByListing(ctx, l.ID)
	if err != nil {
		return err
	}
	l.Images = imgs
	return nil
}

func (s *ListingService) counted(l *model.Listing) {
	if s.counter != nil {
		s.counter.Transitioned(l.Status.String())
	}
}

func (s *ListingService) record(actor Actor, action, subject string) {
	recordActivity(s.runner, s.activity, actor, action, subject)
}

// notifyOwner looks the owner up and emails them, all in the background.
func (s *ListingService) notifyOwner(l *model.Listing, template string, extra map[string]string) {
	if s.runner == nil || s.notifier == nil || s.users == nil {
		return
	}
	data := map[string]string{"title": l.Title, "listing_id": l.ID}
	for k, v := range extra {
		data[k] = v
	}
	ownerID := l.UserID
	_ = s.runner.Go("email:"+template, func(ctx context.Context) error {
		owner, err := s.users.GetByID(ctx, ownerID)
		if err != nil {
			return err
		}
		return s.notifier.Notify(ctx, mailer.Message{Template: template, To: owner.Email, Data: data})
	})
}

func (s *ListingService) removeObjects(img model.PropertyImage) {
	removeImageObjects(s.runner, s.objects, img)
}

// recordActivity appends an audit entry in the background.
func recordActivity(r Runner, store ActivityStore, actor Actor, action, subject string) {
	if r == nil || store == nil {
		return
	}
	_ = r.Go("activity:"+action, func(ctx context.Context) error {
		return store.Log(ctx, actor.UserID, action, subject, actor.IP)
	})
}

// removeImageObjects deletes an image's original and thumbnails in the
// background.
func removeImageObjects(r Runner, objects storage.Storage, img model.PropertyImage) {
	if r == nil || objects == nil || img.StorageKey == "" {
		return
	}
	keys := append([]string{img.StorageKey}, model.ThumbnailKeys(img.StorageKey)...)
	_ = r.Go("storage_cleanup", func(ctx context.Context) error {
		var errs []error
		for _, k := range keys {
			if err := objects.Delete(ctx, k); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
