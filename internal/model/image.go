package model

import "time"

// PropertyImage is one photo attached to a listing (`listing_images`).
// DisplayOrder is zero-based and unique within a listing; at most one image
// per listing has IsPrimary set.
type PropertyImage struct {
	ID             string    `json:"id"`
	ListingID      string    `json:"listing_id"`
	StorageKey     string    `json:"storage_key"`
	URL            string    `json:"url"`
	ThumbnailSmall *string   `json:"thumbnail_small,omitempty"`
	ThumbnailMed   *string   `json:"thumbnail_medium,omitempty"`
	ThumbnailLarge *string   `json:"thumbnail_large,omitempty"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	DisplayOrder   int       `json:"display_order"`
	IsPrimary      bool      `json:"is_primary"`
	CreatedAt      time.Time `json:"created_at"`
}

// ThumbnailKeys returns the storage keys of the derived thumbnails for a
// given original key.  The storage layer writes thumbnails next to the
// original using these names.
func ThumbnailKeys(storageKey string) []string {
	return []string{
		storageKey + "_small.jpg",
		storageKey + "_medium.jpg",
		storageKey + "_large.jpg",
	}
}
