// Package storage holds the opaque blob stores used for attachments and profile images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBlobNotFound is returned by Get when no blob exists for a handle.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHandle is returned for handles that escape the store namespace.
var ErrInvalidHandle = errors.New("invalid blob handle")

// BlobStore persists opaque bytes under path-like handles. Writing the same handle twice keeps the last write.
type BlobStore interface {
	Put(ctx context.Context, handle string, r io.Reader, contentType string) error
	Get(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// NewHandle builds a unique, date-partitioned handle for an uploaded file name.
func NewHandle(folder, filename string, now time.Time) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.ReplaceAll(name, "..", "_")
	return path.Join(folder, now.Format("2006/01/02"), fmt.Sprintf("%s_%s", uuid.NewString(), name))
}

// cleanHandle normalizes a handle and rejects absolute or parent-relative paths.
func cleanHandle(handle string) (string, error) {
	h := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(handle)), "/")
	if h == "" || h == "." || strings.HasPrefix(handle, "/") || strings.Contains(handle, "..") {
		return "", ErrInvalidHandle
	}
	return h, nil
}
