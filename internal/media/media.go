// Package media stores uploaded post images either on local disk or in an
// S3-compatible bucket.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// KeyPrefix is the folder every uploaded post image lives under.
const KeyPrefix = "post-gallery/"

var (
	ErrNotImage = errors.New("upload a valid image: the file is either not an image or corrupted")
	ErrTooLarge = errors.New("the uploaded image is too large")
	ErrBadKey   = errors.New("invalid media key")
)

// rasterTypes are the image formats uploads may have. Vector and markup
// formats such as SVG are refused since they can carry script.
var rasterTypes = []string{
	"image/jpeg",
	"image/png",
	"image/vnd.mozilla.apng",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// Storage keeps uploaded objects by key. Handler serves GET requests whose
// path is the key.
type Storage interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Remove(ctx context.Context, key string) error
	Handler() http.Handler
}

// Upload is a checked image from a multipart form.
type Upload struct {
	Header      *multipart.FileHeader
	ContentType string
	Ext         string
}

// Inspect sniffs the uploaded bytes and accepts only raster images up to
// maxBytes.
func Inspect(fh *multipart.FileHeader, maxBytes int64) (Upload, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return Upload{}, ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return Upload{}, fmt.Errorf("detect upload type: %w", err)
	}
	if !mimetype.EqualsAny(mt.String(), rasterTypes...) {
		return Upload{}, ErrNotImage
	}
	return Upload{Header: fh, ContentType: mt.String(), Ext: mt.Extension()}, nil
}

// NewKey returns a fresh object key for an image with extension ext.
func NewKey(ext string) string {
	return KeyPrefix + uuid.NewString() + ext
}

// Save writes u to st under a new key and returns the key.
func Save(ctx context.Context, st Storage, u Upload) (string, error) {
	f, err := u.Header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := NewKey(u.Ext)
	if err := st.Put(ctx, key, u.ContentType, f, u.Header.Size); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return key, nil
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || k != key {
		return "", ErrBadKey
	}
	return k, nil
}
