package app

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Upload is a file received from a multipart form, fully buffered.
// Handlers cap the body size before building one.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

const presignTTL = 15 * time.Minute

// FileURL resolves a stored object key to a short-lived download URL.
// Returns "" when the key is empty or object storage is disabled.
func (a *App) FileURL(ctx context.Context, key string) (string, error) {
	if a.objects == nil || key == "" {
		return "", nil
	}
	return a.objects.PresignGet(ctx, key, presignTTL)
}

// safeExt returns a lowercased file extension limited to a known set,
// so user-supplied filenames never leak odd suffixes into object keys.
func safeExt(filename string, allowed ...string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return ext
		}
	}
	return ""
}
