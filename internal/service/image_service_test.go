package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-listings/internal/model"
	"github.com/iliyamo/property-listings/internal/storage"
	"github.com/iliyamo/property-listings/internal/validation"
)

func pngData(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		img.Set(x, x%30, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newImageFixture(t *testing.T) (*listingFixture, *ImageService, *model.Listing) {
	t.Helper()
	f := newListingFixture()
	l, err := f.svc.Create(context.Background(), f.owner, validInput())
	require.NoError(t, err)
	return f, NewImageService(f.listings, f.images, f.objects, f.runner, nil), l
}

// Three uploads get orders 0, 1, 2 and only the first is primary.
func TestUpload_OrderAndPrimary(t *testing.T) {
	f, svc, l := newImageFixture(t)
	ctx := context.Background()
	data := pngData(t)

	for i := 0; i < 3; i++ {
		img, err := svc.Upload(ctx, f.owner, l.ID, Upload{Filename: "p.png", ContentType: "image/png", Data: data}, ImageLimits{MaxFileSize: 10 << 20, MaxImages: 35})
		require.NoError(t, err)
		assert.Equal(t, i, img.DisplayOrder)
		assert.Equal(t, i == 0, img.IsPrimary)
		assert.NotNil(t, img.ThumbnailSmall)
		assert.Contains(t, img.StorageKey, "listings/"+l.ID+"/")
	}

	imgs, err := f.images.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	primaries := 0
	for _, img := range imgs {
		if img.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestUpload_Rejections(t *testing.T) {
	f, svc, l := newImageFixture(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "application/pdf", Data: []byte("%PDF")}, ImageLimits{})
	assert.ErrorIs(t, err, &validation.Error{})

	_, err = svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "image/png", Data: make([]byte, 11)}, ImageLimits{MaxFileSize: 10})
	assert.ErrorIs(t, err, &validation.Error{})

	_, err = svc.Upload(ctx, f.stranger, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, ImageLimits{})
	assert.ErrorIs(t, err, ErrNotFound)

	limits := ImageLimits{MaxImages: 1}
	_, err = svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, limits)
	require.NoError(t, err)
	_, err = svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, limits)
	assert.ErrorIs(t, err, &validation.Error{})
}

func TestUpload_UndecodableKeepsOriginal(t *testing.T) {
	f, svc, l := newImageFixture(t)
	img, err := svc.Upload(context.Background(), f.owner, l.ID, Upload{ContentType: "image/heic", Data: []byte("not really")}, ImageLimits{})
	require.NoError(t, err)
	assert.Nil(t, img.ThumbnailSmall)
	assert.Equal(t, 1, f.objects.Len())
}

func TestUploadBatch(t *testing.T) {
	f, svc, l := newImageFixture(t)
	ctx := context.Background()
	_, err := svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, ImageLimits{})
	require.NoError(t, err)

	ups := []Upload{
		{ContentType: "image/png", Data: pngData(t)},
		{ContentType: "image/png", Data: pngData(t)},
	}
	imgs, err := svc.UploadBatch(ctx, f.owner, l.ID, ups, ImageLimits{MaxBatchSize: 15 << 20, MaxImages: 35})
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, 1, imgs[0].DisplayOrder)
	assert.Equal(t, 2, imgs[1].DisplayOrder)
	assert.False(t, imgs[0].IsPrimary)

	_, err = svc.UploadBatch(ctx, f.owner, l.ID, nil, ImageLimits{})
	assert.ErrorIs(t, err, &validation.Error{})
}

func TestSetPrimaryAndDelete(t *testing.T) {
	f, svc, l := newImageFixture(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		img, err := svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, ImageLimits{})
		require.NoError(t, err)
		ids = append(ids, img.ID)
	}

	imgs, err := svc.SetPrimary(ctx, f.owner, l.ID, ids[2])
	require.NoError(t, err)
	assert.False(t, imgs[0].IsPrimary)
	assert.True(t, imgs[2].IsPrimary)

	_, err = svc.SetPrimary(ctx, f.owner, l.ID, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	before := f.objects.Len()
	require.NoError(t, svc.Delete(ctx, f.owner, l.ID, ids[2]))
	assert.Equal(t, before-4, f.objects.Len())

	imgs, err = f.images.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, ids[0], imgs[0].ID)
	assert.True(t, imgs[0].IsPrimary)

	assert.ErrorIs(t, svc.Delete(ctx, f.owner, l.ID, ids[2]), ErrNotFound)
}

func TestAdminUploadSkipsCountLimit(t *testing.T) {
	f, svc, l := newImageFixture(t)
	img, err := svc.Upload(context.Background(), f.admin, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, ImageLimits{MaxFileSize: 15 << 20})
	require.NoError(t, err)
	assert.True(t, img.IsPrimary)
}

func TestDelete_BestEffortAfterRowRemoved(t *testing.T) {
	f := newListingFixture()
	ctx := context.Background()
	l, err := f.svc.Create(ctx, f.owner, validInput())
	require.NoError(t, err)
	bucket := brokenBucket{storage.NewMemoryStorage("http://cdn.test")}
	svc := NewImageService(f.listings, f.images, bucket, f.runner, nil)

	var ids []string
	for i := 0; i < 2; i++ {
		img, err := svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, ImageLimits{})
		require.NoError(t, err)
		ids = append(ids, img.ID)
	}
	f.images.promoteErr = errors.New("connection reset")

	require.NoError(t, svc.Delete(ctx, f.owner, l.ID, ids[0]))
	imgs, err := f.images.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Equal(t, ids[1], imgs[0].ID)
	assert.False(t, imgs[0].IsPrimary)
	assert.Equal(t, []string{"storage_cleanup"}, f.runner.failed())

	f.images.promoteErr = nil
	imgs, err = svc.SetPrimary(ctx, f.owner, l.ID, ids[1])
	require.NoError(t, err)
	assert.True(t, imgs[0].IsPrimary)
}

func TestImageRoutes_MalformedIDsAreNotFound(t *testing.T) {
	f, svc, l := newImageFixture(t)
	ctx := context.Background()
	_, err := svc.Upload(ctx, f.owner, "abc", Upload{ContentType: "image/png", Data: pngData(t)}, ImageLimits{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.SetPrimary(ctx, f.owner, l.ID, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, f.owner, l.ID, "abc"), ErrNotFound)
}

func TestUploadBatch_FailureDiscardsStoredImages(t *testing.T) {
	f, svc, l := newImageFixture(t)
	ctx := context.Background()
	_, err := svc.Upload(ctx, f.owner, l.ID, Upload{ContentType: "image/png", Data: pngData(t)}, ImageLimits{})
	require.NoError(t, err)
	objects := f.objects.Len()

	f.images.createLimit = 2
	ups := []Upload{
		{ContentType: "image/png", Data: pngData(t)},
		{ContentType: "image/png", Data: pngData(t)},
	}
	imgs, err := svc.UploadBatch(ctx, f.owner, l.ID, ups, ImageLimits{MaxBatchSize: 15 << 20, MaxImages: 35})
	require.Error(t, err)
	assert.Empty(t, imgs)

	left, err := f.images.ListByListing(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.True(t, left[0].IsPrimary)
	assert.Equal(t, objects, f.objects.Len())
}
