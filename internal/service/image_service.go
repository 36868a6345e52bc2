package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/repository"
	"github.com/iliyamo/property-listings/internal/storage"
	"github.com/iliyamo/property-listings/internal/validation"
)

// ImageLimits bounds what a caller may upload.
type ImageLimits struct {
	MaxFileSize  int64 // per file, 0 means unlimited
	MaxBatchSize int64 // per file in a batch
	MaxImages    int   // per listing, 0 means unlimited
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImageService attaches images to listings and keeps the primary and
// display order invariants.
type ImageService struct {
	listings ListingStore
	images   ImageStore
	objects  storage.Storage
	runner   Runner
	logger   *zap.Logger
}

func NewImageService(listings ListingStore, images ImageStore, objects storage.Storage, runner Runner, logger *zap.Logger) *ImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageService{
		listings: listings,
		images:   images,
		objects:  objects,
		runner:   runner,
		logger:   logger.Named("images"),
	}
}

// Upload attaches one image. The first image of a listing becomes primary.
func (s *ImageService) Upload(ctx context.Context, actor Actor, listingID string, up Upload, limits ImageLimits) (model.PropertyImage, error) {
	if err := checkUpload(up, limits.MaxFileSize); err != nil {
		return model.PropertyImage{}, err
	}
	if _, err := s.listing(ctx, actor, listingID); err != nil {
		return model.PropertyImage{}, err
	}
	if err := s.checkCount(ctx, listingID, 1, limits.MaxImages); err != nil {
		return model.PropertyImage{}, err
	}
	return s.attach(ctx, listingID, up, func(ctx context.Context) (int, error) {
		return s.images.NextDisplayOrder(ctx, listingID)
	})
}

// UploadBatch attaches several images in order. Display orders are
// consecutive from the next free index. A failure discards the images
// already stored, so a batch lands whole or not at all.
func (s *ImageService) UploadBatch(ctx context.Context, actor Actor, listingID string, ups []Upload, limits ImageLimits) ([]model.PropertyImage, error) {
	if len(ups) == 0 {
		return nil, validation.New("images", "at least one file is required")
	}
	for _, up := range ups {
		if err := checkUpload(up, limits.MaxBatchSize); err != nil {
			return nil, err
		}
	}
	if _, err := s.listing(ctx, actor, listingID); err != nil {
		return nil, err
	}
	if err := s.checkCount(ctx, listingID, len(ups), limits.MaxImages); err != nil {
		return nil, err
	}
	base, err := s.images.NextDisplayOrder(ctx, listingID)
	if err != nil {
		return nil, err
	}
	out := make([]model.PropertyImage, 0, len(ups))
	for i, up := range ups {
		order := base + i
		img, err := s.attach(ctx, listingID, up, func(ctx context.Context) (int, error) {
			if order >= 0 {
				o := order
				order = -1
				return o, nil
			}
			return s.images.NextDisplayOrder(ctx, listingID)
		})
		if err != nil {
			s.discard(ctx, listingID, out)
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// discard undoes a partly stored batch. Rows go first; their objects are
// removed in the background like any other deleted image.
func (s *ImageService) discard(ctx context.Context, listingID string, imgs []model.PropertyImage) {
	for _, img := range imgs {
		if _, err := s.images.Delete(ctx, listingID, img.ID); err != nil {
			s.logger.Warn("discard batch image failed",
				zap.String("listing_id", listingID), zap.String("image_id", img.ID), zap.Error(err))
			continue
		}
		removeImageObjects(s.runner, s.objects, img)
	}
}

// SetPrimary makes imageID the listing's only primary image.
func (s *ImageService) SetPrimary(ctx context.Context, actor Actor, listingID, imageID string) ([]model.PropertyImage, error) {
	if _, err := s.listing(ctx, actor, listingID); err != nil {
		return nil, err
	}
	if !validID(imageID) {
		return nil, ErrNotFound
	}
	if err := s.images.SetPrimary(ctx, listingID, imageID); err != nil {
		return nil, err
	}
	return s.images.ListByListing(ctx, listingID)
}

// Delete removes the image row and schedules removal of its objects. A
// deleted primary hands over to the lowest remaining display order.
func (s *ImageService) Delete(ctx context.Context, actor Actor, listingID, imageID string) error {
	if _, err := s.listing(ctx, actor, listingID); err != nil {
		return err
	}
	if !validID(imageID) {
		return ErrNotFound
	}
	img, err := s.images.Delete(ctx, listingID, imageID)
	if err != nil {
		return err
	}
	// The row is already gone. A listing left without a primary is fixed
	// with SetPrimary.
	if img.IsPrimary {
		if _, err := s.images.PromoteFirst(ctx, listingID); err != nil {
			s.logger.Warn("promote primary image failed",
				zap.String("listing_id", listingID), zap.String("image_id", imageID), zap.Error(err))
		}
	}
	removeImageObjects(s.runner, s.objects, img)
	return nil
}

const attachAttempts = 3

// attach stores the object and thumbnails, then inserts the row. A
// concurrent upload can take the same display order; the insert is then
// retried with a fresh one.
func (s *ImageService) attach(ctx context.Context, listingID string, up Upload, nextOrder func(context.Context) (int, error)) (model.PropertyImage, error) {
	key := fmt.Sprintf("listings/%s/%s%s", listingID, uuid.NewString(), extension(up))
	url, err := s.objects.Upload(ctx, key, up.Data, up.ContentType)
	if err != nil {
		return model.PropertyImage{}, fmt.Errorf("upload image: %w", err)
	}
	img := model.PropertyImage{
		ListingID:   listingID,
		StorageKey:  key,
		URL:         url,
		ContentType: up.ContentType,
		SizeBytes:   int64(len(up.Data)),
	}
	s.thumbnails(ctx, &img, up.Data)

	count, err := s.images.Count(ctx, listingID)
	if err != nil {
		removeImageObjects(s.runner, s.objects, img)
		return model.PropertyImage{}, err
	}
	img.IsPrimary = count == 0

	for attempt := 1; ; attempt++ {
		if img.DisplayOrder, err = nextOrder(ctx); err != nil {
			break
		}
		err = s.images.Create(ctx, &img)
		if err == nil || !errors.Is(err, repository.ErrConflict) || attempt == attachAttempts {
			break
		}
		img.IsPrimary = false
	}
	if err != nil {
		removeImageObjects(s.runner, s.objects, img)
		return model.PropertyImage{}, err
	}
	return img, nil
}

// thumbnails is best-effort: an undecodable image is kept without them.
func (s *ImageService) thumbnails(ctx context.Context, img *model.PropertyImage, data []byte) {
	thumbs, err := storage.Thumbnails(data)
	if err != nil {
		s.logger.Warn("thumbnail generation failed", zap.String("key", img.StorageKey), zap.Error(err))
		return
	}
	keys := model.ThumbnailKeys(img.StorageKey)
	urls := make([]*string, len(keys))
	for i, thumb := range thumbs {
		u, err := s.objects.Upload(ctx, keys[i], thumb, "image/jpeg")
		if err != nil {
			s.logger.Warn("thumbnail upload failed", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		urls[i] = &u
	}
	img.ThumbnailSmall, img.ThumbnailMed, img.ThumbnailLarge = urls[0], urls[1], urls[2]
}

func (s *ImageService) listing(ctx context.Context, actor Actor, id string) (*model.Listing, error) {
	l, err := getListing(ctx, s.listings, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && (actor.UserID == "" || l.UserID != actor.UserID) {
		return nil, ErrNotFound
	}
	return l, nil
}

func (s *ImageService) checkCount(ctx context.Context, listingID string, adding, max int) error {
	if max <= 0 {
		return nil
	}
	n, err := s.images.Count(ctx, listingID)
	if err != nil {
		return err
	}
	if n+adding > max {
		return validation.New("images", fmt.Sprintf("a listing can have at most %d images", max))
	}
	return nil
}

func checkUpload(up Upload, maxSize int64) error {
	if !strings.HasPrefix(strings.ToLower(up.ContentType), "image/") {
		return validation.New("file", "must be an image")
	}
	if len(up.Data) == 0 {
		return validation.New("file", "is empty")
	}
	if maxSize > 0 && int64(len(up.Data)) > maxSize {
		return validation.New("file", fmt.Sprintf("must be at most %d MB", maxSize>>20))
	}
	return nil
}

func extension(up Upload) string {
	if ext := strings.ToLower(path.Ext(up.Filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch strings.ToLower(up.ContentType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".jpg"
}
