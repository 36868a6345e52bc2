package handler

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/property-listings/internal/mailer"
	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/workflow"
)

type memUsers struct {
	mu     sync.Mutex
	byID   map[string]model.User
	admins map[string]bool
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]model.User{}, admins: map[string]bool{}}
}

func (m *memUsers) Create(_ context.Context, in repository.NewUser) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(in.Email)
	for _, u := range m.byID {
		if u.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
		if in.Phone != "" && u.Phone != nil && *u.Phone == in.Phone {
			return model.User{}, repository.ErrPhoneExists
		}
	}
	u := model.User{ID: uuid.NewString(), Email: email, Name: in.Name, PasswordHash: in.PasswordHash, Provider: in.Provider}
	if in.Phone != "" {
		p := in.Phone
		u.Phone = &p
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpsertGoogle(ctx context.Context, email, name string) (model.User, error) {
	if u, err := m.GetByEmail(ctx, email); err == nil {
		return u, nil
	}
	return m.Create(ctx, repository.NewUser{Email: email, Name: name, Provider: model.ProviderGoogle})
}

func (m *memUsers) SetEmailVerified(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if u.Email == email {
			u.EmailVerified = true
			m.byID[id] = u
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	m.byID[userID] = u
	return nil
}

func (m *memUsers) IsAdmin(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[strings.ToLower(email)], nil
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]string // hash -> user id
}

func newMemTokens() *memTokens { return &memTokens{rows: map[string]string{}} }

func (m *memTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.rows[hash]
	if !ok {
		return "", repository.ErrNotFound
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, hash)
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, uid := range m.rows {
		if uid == userID {
			delete(m.rows, h)
		}
	}
	return nil
}

type memListings struct {
	mu   sync.Mutex
	rows map[string]model.Listing
}

func (m *memListings) Create(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.NewString()
	l.Version = 1
	m.rows[l.ID] = *l
	return nil
}

func (m *memListings) GetByID(_ context.Context, id string) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (m *memListings) List(_ context.Context, f model.ListingFilter) ([]model.Listing, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Listing{}
	for _, l := range m.rows {
		if (f.Status == "" || l.Status == f.Status) && (f.UserID == "" || l.UserID == f.UserID) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memListings) Update(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[l.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Version != l.Version {
		return repository.ErrVersionConflict
	}
	l.Version++
	m.rows[l.ID] = *l
	return nil
}

func (m *memListings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memListings) CountByStatus(_ context.Context) (model.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := model.StatusCounts{}
	for _, s := range model.AllStatuses {
		out[s] = 0
	}
	for _, l := range m.rows {
		out[l.Status]++
	}
	return out, nil
}

type memImages struct {
	mu   sync.Mutex
	rows []model.PropertyImage
}

func (m *memImages) Create(_ context.Context, img *model.PropertyImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img.ID = uuid.NewString()
	m.rows = append(m.rows, *img)
	return nil
}

func (m *memImages) ListByListing(_ context.Context, listingID string) ([]model.PropertyImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PropertyImage{}
	for _, r := range m.rows {
		if r.ListingID == listingID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (m *memImages) Count(ctx context.Context, listingID string) (int, error) {
	imgs, _ := m.ListByListing(ctx, listingID)
	return len(imgs), nil
}

func (m *memImages) NextDisplayOrder(ctx context.Context, listingID string) (int, error) {
	imgs, _ := m.ListByListing(ctx, listingID)
	if len(imgs) == 0 {
		return 0, nil
	}
	return imgs[len(imgs)-1].DisplayOrder + 1, nil
}

func (m *memImages) SetPrimary(_ context.Context, listingID, imageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for i := range m.rows {
		if m.rows[i].ListingID == listingID {
			m.rows[i].IsPrimary = m.rows[i].ID == imageID
			found = found || m.rows[i].ID == imageID
		}
	}
	if !found {
		return repository.ErrNotFound
	}
	return nil
}

func (m *memImages) Delete(_ context.Context, listingID, imageID string) (model.PropertyImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ListingID == listingID && r.ID == imageID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return r, nil
		}
	}
	return model.PropertyImage{}, repository.ErrNotFound
}

func (m *memImages) PromoteFirst(ctx context.Context, listingID string) (string, error) {
	imgs, _ := m.ListByListing(ctx, listingID)
	if len(imgs) == 0 {
		return "", nil
	}
	return imgs[0].ID, m.SetPrimary(ctx, listingID, imgs[0].ID)
}

type memLibrary struct {
	mu   sync.Mutex
	rows []model.SavedAnalysis
}

func (m *memLibrary) Create(_ context.Context, a *model.SavedAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now()
	m.rows = append(m.rows, *a)
	return nil
}

func (m *memLibrary) ListByUser(_ context.Context, userID string, _, _ int) ([]model.SavedAnalysis, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.SavedAnalysis{}
	for _, a := range m.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memLibrary) GetByID(_ context.Context, userID, id string) (model.SavedAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.ID == id && a.UserID == userID {
			return a, nil
		}
	}
	return model.SavedAnalysis{}, repository.ErrNotFound
}

func (m *memLibrary) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.rows {
		if a.ID == id && a.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type inlineRunner struct{}

func (inlineRunner) Go(_ string, fn func(ctx context.Context) error) error {
	_ = fn(context.Background())
	return nil
}

type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (o *outbox) Notify(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last(template string) (mailer.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].Template == template {
			return o.msgs[i], true
		}
	}
	return mailer.Message{}, false
}

type stubWorkflow struct {
	result json.RawMessage
	err    error
	last   string
}

func (s *stubWorkflow) Analyze(_ context.Context, address string) (json.RawMessage, error) {
	s.last = address
	return s.result, s.err
}

func (s *stubWorkflow) Search(_ context.Context, req workflow.SearchRequest) (json.RawMessage, error) {
	s.last = req.Location
	return s.result, s.err
}
