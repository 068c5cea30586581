package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"library-server/internal/domain"
)

// MaxImageSize bounds book covers and profile pictures.
const MaxImageSize = 5 << 20

// Object kinds, used as the second key segment.
const (
	KindBooks    = "books"
	KindProfiles = "profiles"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Service stores uploaded images and returns the URL clients fetch them from.
type Service interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object a previous Upload returned url for. URLs this
	// service does not own are ignored.
	Delete(ctx context.Context, url string) error
}

// ImageKey validates an image upload and builds its object key:
// <prefix>/<kind>/<uuid><ext>.
func ImageKey(prefix, kind, contentType string, size int64) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := imageExtensions[ct]
	if !ok {
		return "", domain.Validationf("Unsupported image type %q", contentType)
	}
	if size <= 0 {
		return "", domain.Validationf("Image is empty")
	}
	if size > MaxImageSize {
		return "", domain.Validationf("Image exceeds %d MiB", MaxImageSize>>20)
	}

	key := path.Join(strings.Trim(prefix, "/"), kind, uuid.NewString()+ext)
	return strings.TrimPrefix(key, "/"), nil
}

func joinURL(base, key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), strings.TrimLeft(key, "/"))
}

// keyFromURL returns the key of url under base, or false if url is elsewhere.
func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if base == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
