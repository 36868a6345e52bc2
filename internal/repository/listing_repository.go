package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/property-listings/internal/model"
)

// ListingRepo reads and writes the listings table. Images are handled by
// ImageRepo and attached by the service layer.
type ListingRepo struct{ db *sql.DB }

func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

const listingColumns = `id, user_id, status, title, description,
	street, city, state, zip_code, property_type,
	bedrooms, bathrooms, square_feet, lot_size, year_built,
	list_price, sold_price, hoa_fee, property_tax,
	contact_name, contact_email, contact_phone,
	rejection_reason, approved_at, approved_by, rejected_at, rejected_by,
	sold_at, sold_by, sale_notes,
	version, created_at, updated_at`

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts l and fills in its generated id, version and timestamps.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO listings (user_id, status, title, description,
			street, city, state, zip_code, property_type,
			bedrooms, bathrooms, square_feet, lot_size, year_built,
			list_price, hoa_fee, property_tax,
			contact_name, contact_email, contact_phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING id, version, created_at, updated_at`,
		l.UserID, l.Status, l.Title, l.Description,
		l.Street, l.City, l.State, l.ZipCode, l.PropertyType,
		l.Bedrooms, l.Bathrooms, l.SquareFeet, l.LotSize, l.YearBuilt,
		l.ListPrice, nullDecimal(l.HOAFee), nullDecimal(l.PropertyTax),
		l.ContactName, l.ContactEmail, l.ContactPhone,
	).Scan(&l.ID, &l.Version, &l.CreatedAt, &l.UpdatedAt)
}

// GetByID returns the listing without its images.
func (r *ListingRepo) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings WHERE id=$1", id)
	l, err := scanListing(row)
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// List returns one page of listings matching f, newest first, together
// with the total number of matches.
func (r *ListingRepo) List(ctx context.Context, f model.ListingFilter) ([]model.Listing, int64, error) {
	where := []string{}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.City != "" {
		add("LOWER(city) = $%d", strings.ToLower(strings.TrimSpace(f.City)))
	}
	if f.State != "" {
		add("LOWER(state) = $%d", strings.ToLower(strings.TrimSpace(f.State)))
	}
	if f.PropertyType != "" {
		add("LOWER(property_type) = $%d", strings.ToLower(strings.TrimSpace(f.PropertyType)))
	}
	if f.MinPrice != nil {
		add("list_price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("list_price <= $%d", *f.MaxPrice)
	}
	if f.MinBedrooms > 0 {
		add("bedrooms >= $%d", f.MinBedrooms)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, size := Paginate(f.Page, f.PageSize)
	dataSQL := fmt.Sprintf("SELECT %s FROM listings WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		listingColumns, cond, len(args)+1, len(args)+2)
	argsData := append(append([]any{}, args...), size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Listing, 0, size)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update writes every mutable column of l in one statement guarded by the
// version l was read at. On success l.Version and l.UpdatedAt reflect the
// stored row. A missing row yields ErrNotFound and a stale version
// ErrVersionConflict.
func (r *ListingRepo) Update(ctx context.Context, l *model.Listing) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE listings SET
			status=$3, title=$4, description=$5,
			street=$6, city=$7, state=$8, zip_code=$9, property_type=$10,
			bedrooms=$11, bathrooms=$12, square_feet=$13, lot_size=$14, year_built=$15,
			list_price=$16, sold_price=$17, hoa_fee=$18, property_tax=$19,
			contact_name=$20, contact_email=$21, contact_phone=$22,
			rejection_reason=$23, approved_at=$24, approved_by=$25,
			rejected_at=$26, rejected_by=$27,
			sold_at=$28, sold_by=$29, sale_notes=$30,
			version=version+1, updated_at=NOW()
		WHERE id=$1 AND version=$2
		RETURNING version, updated_at`,
		l.ID, l.Version,
		l.Status, l.Title, l.Description,
		l.Street, l.City, l.State, l.ZipCode, l.PropertyType,
		l.Bedrooms, l.Bathrooms, l.SquareFeet, l.LotSize, l.YearBuilt,
		l.ListPrice, nullDecimal(l.SoldPrice), nullDecimal(l.HOAFee), nullDecimal(l.PropertyTax),
		l.ContactName, l.ContactEmail, l.ContactPhone,
		l.RejectionReason, l.ApprovedAt, l.ApprovedBy,
		l.RejectedAt, l.RejectedBy,
		l.SoldAt, l.SoldBy, l.SaleNotes,
	).Scan(&l.Version, &l.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM listings WHERE id=$1)", l.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// Delete removes the listing; its image rows go with it through the
// foreign key cascade.
func (r *ListingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM listings WHERE id=$1", id)
	return affectedOne(res, err)
}

// CountByStatus returns the number of listings in each status. Statuses
// without listings are reported as zero.
func (r *ListingRepo) CountByStatus(ctx context.Context) (model.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM listings GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(model.StatusCounts, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		out[s] = 0
	}
	for rows.Next() {
		var (
			s model.ListingStatus
			n int64
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

// Paginate clamps page and size to sane values.
func Paginate(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func scanListing(row rowScanner) (*model.Listing, error) {
	var (
		l                            model.Listing
		soldPrice, hoaFee, tax       decimal.NullDecimal
		reason, approvedBy           sql.NullString
		rejectedBy, soldBy, notes    sql.NullString
		approvedAt, rejectedAt, sold sql.NullTime
	)
	err := row.Scan(
		&l.ID, &l.UserID, &l.Status, &l.Title, &l.Description,
		&l.Street, &l.City, &l.State, &l.ZipCode, &l.PropertyType,
		&l.Bedrooms, &l.Bathrooms, &l.SquareFeet, &l.LotSize, &l.YearBuilt,
		&l.ListPrice, &soldPrice, &hoaFee, &tax,
		&l.ContactName, &l.ContactEmail, &l.ContactPhone,
		&reason, &approvedAt, &approvedBy, &rejectedAt, &rejectedBy,
		&sold, &soldBy, &notes,
		&l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.SoldPrice = decimalPtr(soldPrice)
	l.HOAFee = decimalPtr(hoaFee)
	l.PropertyTax = decimalPtr(tax)
	l.RejectionReason = stringPtr(reason)
	l.ApprovedBy = stringPtr(approvedBy)
	l.RejectedBy = stringPtr(rejectedBy)
	l.SoldBy = stringPtr(soldBy)
	l.SaleNotes = stringPtr(notes)
	l.ApprovedAt = timePtr(approvedAt)
	l.RejectedAt = timePtr(rejectedAt)
	l.SoldAt = timePtr(sold)
	return &l, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
