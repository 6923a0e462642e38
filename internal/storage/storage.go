package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// MediaStore persists answer recordings. Paths returned by Upload are opaque
// and only meaningful to the same store.
type MediaStore interface {
	Uploader
	Open(ctx context.Context, storedPath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storedPath string) error
}

// ObjectName builds a write-once name: <prefix>/<unix-millis>-<uuid><ext>.
func ObjectName(prefix, originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	if len(ext) > 10 {
		ext = ""
	}
	name := fmt.Sprintf("%d-%s%s", time.Now().UTC().UnixMilli(), uuid.NewString(), ext)
	if prefix == "" {
		return name
	}
	return strings.Trim(prefix, "/") + "/" + name
}
