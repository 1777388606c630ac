package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ObjectStore is the binary store school images are uploaded to.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	PublicURL(key string) string
	Ping(ctx context.Context) error
}

// NewKey returns a random object key that keeps the original file extension.
// A filename without an extension falls back to the one registered for contentType.
func NewKey(filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || ext == "." {
		ext = ""
		if m := mimetype.Lookup(contentType); m != nil {
			ext = m.Extension()
		}
	}
	return uuid.NewString() + ext
}
