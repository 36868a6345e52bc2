package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListing(status ListingStatus) *Listing {
	return &Listing{
		ID:        "listing-1",
		UserID:    "owner-1",
		Status:    status,
		Title:     "Cottage",
		ListPrice: decimal.NewFromInt(450000),
	}
}

func TestListingStatus_CanTransitionTo(t *testing.T) {
	allowed := map[ListingStatus][]ListingStatus{
		StatusDraft:    {StatusPending},
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusPending, StatusSold},
		StatusRejected: {StatusPending},
		StatusSold:     {StatusPending, StatusApproved},
	}
	for from, targets := range allowed {
		ok := map[ListingStatus]bool{}
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range AllStatuses {
			assert.Equal(t, ok[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, ListingStatus("archived").CanTransitionTo(StatusPending))
}

func TestParseListingStatus(t *testing.T) {
	st, ok := ParseListingStatus("  Approved ")
	assert.True(t, ok)
	assert.Equal(t, StatusApproved, st)

	_, ok = ParseListingStatus("archived")
	assert.False(t, ok)
}

func TestListing_Submit(t *testing.T) {
	now := time.Now()

	t.Run("draft becomes pending", func(t *testing.T) {
		l := newTestListing(StatusDraft)
		require.NoError(t, l.Submit(now))
		assert.Equal(t, StatusPending, l.Status)
	})

	t.Run("non-draft is rejected", func(t *testing.T) {
		for _, st := range []ListingStatus{StatusPending, StatusApproved, StatusRejected, StatusSold} {
			l := newTestListing(st)
			err := l.Submit(now)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, st, l.Status)
		}
	})
}

func TestListing_Approve(t *testing.T) {
	now := time.Now()

	t.Run("pending listing is approved", func(t *testing.T) {
		l := newTestListing(StatusPending)
		require.NoError(t, l.Approve("admin-1", now))
		assert.Equal(t, StatusApproved, l.Status)
		require.NotNil(t, l.ApprovedAt)
		assert.Equal(t, now, *l.ApprovedAt)
		assert.Equal(t, "admin-1", *l.ApprovedBy)
		assert.Nil(t, l.RejectionReason)
	})

	t.Run("only pending can be approved", func(t *testing.T) {
		for _, st := range []ListingStatus{StatusDraft, StatusApproved, StatusRejected, StatusSold} {
			l := newTestListing(st)
			assert.ErrorIs(t, l.Approve("admin-1", now), ErrInvalidTransition)
			assert.Equal(t, st, l.Status)
			assert.Nil(t, l.ApprovedAt)
		}
	})
}

func TestListing_Reject(t *testing.T) {
	now := time.Now()

	t.Run("pending listing is rejected with reason", func(t *testing.T) {
		l := newTestListing(StatusPending)
		require.NoError(t, l.Reject("admin-1", "  blurry photos ", now))
		assert.Equal(t, StatusRejected, l.Status)
		require.NotNil(t, l.RejectionReason)
		assert.Equal(t, "blurry photos", *l.RejectionReason)
		assert.Equal(t, "admin-1", *l.RejectedBy)
		assert.NotNil(t, l.RejectedAt)
	})

	t.Run("missing reason leaves listing pending", func(t *testing.T) {
		l := newTestListing(StatusPending)
		assert.ErrorIs(t, l.Reject("admin-1", "   ", now), ErrReasonRequired)
		assert.Equal(t, StatusPending, l.Status)
		assert.Nil(t, l.RejectedAt)
	})

	t.Run("only pending can be rejected", func(t *testing.T) {
		l := newTestListing(StatusApproved)
		assert.ErrorIs(t, l.Reject("admin-1", "late", now), ErrInvalidTransition)
		assert.Equal(t, StatusApproved, l.Status)
	})
}

func TestListing_ResetToPending(t *testing.T) {
	now := time.Now()

	t.Run("rejected reset clears reason", func(t *testing.T) {
		l := newTestListing(StatusPending)
		require.NoError(t, l.Reject("admin-1", "duplicate", now))
		require.NoError(t, l.ResetToPending(now))
		assert.Equal(t, StatusPending, l.Status)
		assert.Nil(t, l.RejectionReason)
		assert.Nil(t, l.RejectedAt)
		assert.Nil(t, l.RejectedBy)
	})

	t.Run("sold reset clears approval and sale", func(t *testing.T) {
		l := newTestListing(StatusPending)
		require.NoError(t, l.Approve("admin-1", now))
		require.NoError(t, l.MarkSold("admin-1", nil, "cash buyer", now))
		require.NoError(t, l.ResetToPending(now))
		assert.Equal(t, StatusPending, l.Status)
		assert.Nil(t, l.ApprovedAt)
		assert.Nil(t, l.ApprovedBy)
		assert.Nil(t, l.SoldAt)
		assert.Nil(t, l.SoldBy)
		assert.Nil(t, l.SoldPrice)
		assert.Nil(t, l.SaleNotes)
	})

	t.Run("draft and pending cannot be reset", func(t *testing.T) {
		for _, st := range []ListingStatus{StatusDraft, StatusPending} {
			l := newTestListing(st)
			assert.ErrorIs(t, l.ResetToPending(now), ErrInvalidTransition)
		}
	})
}

func TestListing_MarkSoldAndRevert(t *testing.T) {
	now := time.Now()

	t.Run("sold price defaults to list price", func(t *testing.T) {
		l := newTestListing(StatusApproved)
		require.NoError(t, l.MarkSold("admin-1", nil, "", now))
		assert.Equal(t, StatusSold, l.Status)
		require.NotNil(t, l.SoldPrice)
		assert.True(t, l.SoldPrice.Equal(l.ListPrice))
		assert.NotNil(t, l.SoldAt)
		assert.Equal(t, "admin-1", *l.SoldBy)
		assert.Nil(t, l.SaleNotes)
	})

	t.Run("explicit price and notes are kept", func(t *testing.T) {
		l := newTestListing(StatusApproved)
		price := decimal.NewFromInt(430000)
		require.NoError(t, l.MarkSold("admin-1", &price, "over asking", now))
		assert.True(t, l.SoldPrice.Equal(price))
		assert.Equal(t, "over asking", *l.SaleNotes)
	})

	t.Run("only approved can be sold", func(t *testing.T) {
		l := newTestListing(StatusPending)
		assert.ErrorIs(t, l.MarkSold("admin-1", nil, "", now), ErrInvalidTransition)
		assert.Nil(t, l.SoldPrice)
	})

	t.Run("revert clears sale metadata", func(t *testing.T) {
		l := newTestListing(StatusApproved)
		require.NoError(t, l.MarkSold("admin-1", nil, "notes", now))
		require.NoError(t, l.RevertSold(now))
		assert.Equal(t, StatusApproved, l.Status)
		assert.Nil(t, l.SoldPrice)
		assert.Nil(t, l.SoldAt)
		assert.Nil(t, l.SoldBy)
		assert.Nil(t, l.SaleNotes)
	})

	t.Run("revert requires sold", func(t *testing.T) {
		l := newTestListing(StatusApproved)
		assert.ErrorIs(t, l.RevertSold(now), ErrInvalidTransition)
		assert.Equal(t, StatusApproved, l.Status)
	})
}

func TestCanView(t *testing.T) {
	cases := []struct {
		name    string
		status  ListingStatus
		viewer  string
		isAdmin bool
		want    bool
	}{
		{"approved anonymous", StatusApproved, "", false, true},
		{"approved stranger", StatusApproved, "someone", false, true},
		{"pending anonymous", StatusPending, "", false, false},
		{"pending stranger", StatusPending, "someone", false, false},
		{"pending owner", StatusPending, "owner-1", false, true},
		{"rejected admin", StatusRejected, "admin-1", true, true},
		{"sold stranger", StatusSold, "someone", false, false},
		{"draft owner", StatusDraft, "owner-1", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestListing(tc.status)
			assert.Equal(t, tc.want, CanView(l, tc.viewer, tc.isAdmin))
		})
	}
	assert.False(t, CanView(nil, "owner-1", true))
}

func TestListing_PrimaryImage(t *testing.T) {
	l := newTestListing(StatusApproved)
	assert.Nil(t, l.PrimaryImage())
	l.Images = []PropertyImage{{ID: "a"}, {ID: "b", IsPrimary: true}}
	require.NotNil(t, l.PrimaryImage())
	assert.Equal(t, "b", l.PrimaryImage().ID)
}

// No Listing method may perform a move the table forbids.
func TestListing_MethodsStayInsideTable(t *testing.T) {
	now := time.Now()
	moves := map[string]func(*Listing) error{
		"submit":      func(l *Listing) error { return l.Submit(now) },
		"approve":     func(l *Listing) error { return l.Approve("admin-1", now) },
		"reject":      func(l *Listing) error { return l.Reject("admin-1", "blurry", now) },
		"reset":       func(l *Listing) error { return l.ResetToPending(now) },
		"mark sold":   func(l *Listing) error { return l.MarkSold("admin-1", nil, "", now) },
		"revert sold": func(l *Listing) error { return l.RevertSold(now) },
	}
	for name, move := range moves {
		for _, from := range AllStatuses {
			l := newTestListing(from)
			if err := move(l); err != nil {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", name, from)
				assert.Equal(t, from, l.Status)
				continue
			}
			assert.True(t, from.CanTransitionTo(l.Status), "%s moved %s to %s", name, from, l.Status)
		}
	}
}
