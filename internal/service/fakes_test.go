package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/property-listings/internal/mailer"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/storage"
)

type fakeListings struct {
	mu   sync.Mutex
	rows map[string]model.Listing
}

func newFakeListings() *fakeListings { return &fakeListings{rows: map[string]model.Listing{}} }

func (f *fakeListings) Create(_ context.Context, l *model.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = uuid.NewString()
	l.Version = 1
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	f.rows[l.ID] = *l
	return nil
}

func (f *fakeListings) GetByID(_ context.Context, id string) (*model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (f *fakeListings) List(_ context.Context, flt model.ListingFilter) ([]model.Listing, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Listing{}
	for _, l := range f.rows {
		if flt.Status != "" && l.Status != flt.Status {
			continue
		}
		if flt.UserID != "" && l.UserID != flt.UserID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, int64(len(out)), nil
}

func (f *fakeListings) Update(_ context.Context, l *model.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[l.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != l.Version {
		return repository.ErrVersionConflict
	}
	l.Version++
	f.rows[l.ID] = *l
	return nil
}

func (f *fakeListings) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeListings) CountByStatus(_ context.Context) (model.StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := model.StatusCounts{}
	for _, s := range model.AllStatuses {
		out[s] = 0
	}
	for _, l := range f.rows {
		out[l.Status]++
	}
	return out, nil
}

// bump simulates a concurrent writer.
func (f *fakeListings) bump(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.rows[id]
	l.Version++
	f.rows[id] = l
}

type fakeImages struct {
	mu          sync.Mutex
	rows        []model.PropertyImage
	promoteErr  error
	createLimit int // inserts fail once this many rows exist
}

func (f *fakeImages) Create(_ context.Context, img *model.PropertyImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createLimit > 0 && len(f.rows) >= f.createLimit {
		return errors.New("insert failed")
	}
	for _, r := range f.rows {
		if r.ListingID == img.ListingID && (r.DisplayOrder == img.DisplayOrder || (r.IsPrimary && img.IsPrimary)) {
			return repository.ErrConflict
		}
	}
	img.ID = uuid.NewString()
	img.CreatedAt = time.Now()
	f.rows = append(f.rows, *img)
	return nil
}

func (f *fakeImages) ListByListing(_ context.Context, listingID string) ([]model.PropertyImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.PropertyImage{}
	for _, r := range f.rows {
		if r.ListingID == listingID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f *fakeImages) Count(ctx context.Context, listingID string) (int, error) {
	imgs, _ := f.ListByListing(ctx, listingID)
	return len(imgs), nil
}

func (f *fakeImages) NextDisplayOrder(ctx context.Context, listingID string) (int, error) {
	imgs, _ := f.ListByListing(ctx, listingID)
	if len(imgs) == 0 {
		return 0, nil
	}
	return imgs[len(imgs)-1].DisplayOrder + 1, nil
}

func (f *fakeImages) SetPrimary(_ context.Context, listingID, imageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for _, r := range f.rows {
		if r.ListingID == listingID && r.ID == imageID {
			found = true
		}
	}
	if !found {
		return repository.ErrNotFound
	}
	for i := range f.rows {
		if f.rows[i].ListingID == listingID {
			f.rows[i].IsPrimary = f.rows[i].ID == imageID
		}
	}
	return nil
}

func (f *fakeImages) Delete(_ context.Context, listingID, imageID string) (model.PropertyImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ListingID == listingID && r.ID == imageID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return r, nil
		}
	}
	return model.PropertyImage{}, repository.ErrNotFound
}

func (f *fakeImages) PromoteFirst(ctx context.Context, listingID string) (string, error) {
	if f.promoteErr != nil {
		return "", f.promoteErr
	}
	imgs, _ := f.ListByListing(ctx, listingID)
	if len(imgs) == 0 {
		return "", nil
	}
	return imgs[0].ID, f.SetPrimary(ctx, listingID, imgs[0].ID)
}

type fakeUsers map[string]model.User

func (f fakeUsers) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := f[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

// syncRunner runs tasks inline and remembers their names and errors.
type syncRunner struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (r *syncRunner) Go(name string, fn func(ctx context.Context) error) error {
	err := fn(context.Background())
	r.mu.Lock()
	r.names = append(r.names, name)
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	return nil
}

// failed returns the names of tasks that returned an error.
func (r *syncRunner) failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for i, err := range r.errs {
		if err != nil {
			out = append(out, r.names[i])
		}
	}
	return out
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (n *captureNotifier) Notify(_ context.Context, msg mailer.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

type fakeActivity struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeActivity) Log(_ context.Context, _, action, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeActivity) Recent(_ context.Context, _ int) ([]model.ActivityLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.ActivityLog, 0, len(f.actions))
	for _, a := range f.actions {
		out = append(out, model.ActivityLog{Action: a})
	}
	return out, nil
}

type countTransitions map[string]int

func (c countTransitions) Transitioned(to string) { c[to]++ }

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, mailer.Message) error {
	return errors.New("smtp: connection refused")
}

// brokenBucket accepts uploads but every delete fails.
type brokenBucket struct {
	*storage.MemoryStorage
}

func (brokenBucket) Delete(context.Context, string) error {
	return errors.New("s3: service unavailable")
}
