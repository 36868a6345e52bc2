package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/property-listings/internal/model"
)

// ImageRepo persists listing_images rows. The partial unique index on
// (listing_id) WHERE is_primary backs the single-primary invariant.
type ImageRepo struct{ db *sql.DB }

func NewImageRepo(db *sql.DB) *ImageRepo { return &ImageRepo{db: db} }

const imageColumns = `id, listing_id, storage_key, url, thumbnail_small, thumbnail_med, thumbnail_large,
	content_type, size_bytes, display_order, is_primary, created_at`

// Create inserts img and fills in its id and creation time.
func (r *ImageRepo) Create(ctx context.Context, img *model.PropertyImage) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO listing_images (listing_id, storage_key, url, thumbnail_small, thumbnail_med, thumbnail_large,
			content_type, size_bytes, display_order, is_primary)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at`,
		img.ListingID, img.StorageKey, img.URL, img.ThumbnailSmall, img.ThumbnailMed, img.ThumbnailLarge,
		img.ContentType, img.SizeBytes, img.DisplayOrder, img.IsPrimary,
	).Scan(&img.ID, &img.CreatedAt)
	if _, ok := uniqueViolation(err); ok {
		return ErrConflict
	}
	return err
}

// ListByListing returns a listing's images ordered by display order.
func (r *ImageRepo) ListByListing(ctx context.Context, listingID string) ([]model.PropertyImage, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+imageColumns+" FROM listing_images WHERE listing_id=$1 ORDER BY display_order", listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PropertyImage{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// GetByID returns one image of a listing.
func (r *ImageRepo) GetByID(ctx context.Context, listingID, imageID string) (model.PropertyImage, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM listing_images WHERE id=$1 AND listing_id=$2", imageID, listingID)
	img, err := scanImage(row)
	return img, notFound(err)
}

// Count returns how many images a listing has.
func (r *ImageRepo) Count(ctx context.Context, listingID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM listing_images WHERE listing_id=$1", listingID).Scan(&n)
	return n, err
}

// NextDisplayOrder returns the first free display_order after the current
// highest one, 0 for a listing without images.
func (r *ImageRepo) NextDisplayOrder(ctx context.Context, listingID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(display_order)+1, 0) FROM listing_images WHERE listing_id=$1", listingID).Scan(&n)
	return n, err
}

// SetPrimary moves the primary flag to imageID in one transaction.
func (r *ImageRepo) SetPrimary(ctx context.Context, listingID, imageID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		"UPDATE listing_images SET is_primary=FALSE WHERE listing_id=$1 AND is_primary", listingID); err != nil {
		return err
	}
	var res sql.Result
	res, err = tx.ExecContext(ctx,
		"UPDATE listing_images SET is_primary=TRUE WHERE id=$1 AND listing_id=$2", imageID, listingID)
	err = affectedOne(res, err)
	return err
}

// Delete removes an image row and returns it so that the caller can clean
// up the stored objects.
func (r *ImageRepo) Delete(ctx context.Context, listingID, imageID string) (model.PropertyImage, error) {
	row := r.db.QueryRowContext(ctx,
		"DELETE FROM listing_images WHERE id=$1 AND listing_id=$2 RETURNING "+imageColumns, imageID, listingID)
	img, err := scanImage(row)
	return img, notFound(err)
}

// PromoteFirst makes the image with the lowest display order primary when
// the listing has images but none of them is primary. It returns the id of
// the promoted image, or "" when nothing changed.
func (r *ImageRepo) PromoteFirst(ctx context.Context, listingID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE listing_images SET is_primary=TRUE
		WHERE id = (SELECT id FROM listing_images WHERE listing_id=$1 ORDER BY display_order LIMIT 1)
		  AND NOT EXISTS (SELECT 1 FROM listing_images WHERE listing_id=$1 AND is_primary)
		RETURNING id`, listingID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func scanImage(row rowScanner) (model.PropertyImage, error) {
	var (
		img               model.PropertyImage
		small, med, large sql.NullString
	)
	err := row.Scan(&img.ID, &img.ListingID, &img.StorageKey, &img.URL, &small, &med, &large,
		&img.ContentType, &img.SizeBytes, &img.DisplayOrder, &img.IsPrimary, &img.CreatedAt)
	if err != nil {
		return model.PropertyImage{}, err
	}
	img.ThumbnailSmall = stringPtr(small)
	img.ThumbnailMed = stringPtr(med)
	img.ThumbnailLarge = stringPtr(large)
	return img, nil
}
