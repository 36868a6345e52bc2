package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	_ "image/png" // register png

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp
)

// ThumbnailSize is a named target width. Height follows the aspect ratio.
type ThumbnailSize struct {
	Name  string
	Width int
}

// ThumbnailSizes are the derived sizes written next to every original, in
// the order of model.ThumbnailKeys.
var ThumbnailSizes = []ThumbnailSize{
	{Name: "small", Width: 320},
	{Name: "medium", Width: 640},
	{Name: "large", Width: 1280},
}

const thumbnailQuality = 82

// Thumbnails decodes data and returns one JPEG per ThumbnailSizes entry.
// Images narrower than a target are re-encoded at their own size rather
// than upscaled.
func Thumbnails(data []byte) ([][]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	out := make([][]byte, 0, len(ThumbnailSizes))
	for _, size := range ThumbnailSizes {
		b, err := resizeJPEG(src, size.Width)
		if err != nil {
			return nil, fmt.Errorf("thumbnail %s: %w", size.Name, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func resizeJPEG(src image.Image, width int) ([]byte, error) {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if w > width {
		h = h * width / w
		if h == 0 {
			h = 1
		}
		w = width
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// JPEG has no alpha; paint white under transparent pixels.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
