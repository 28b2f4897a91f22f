// Package storage places validated image payloads on a backend and removes
// them again. Three backends are provided: a managed local directory, an
// S3-compatible bucket (MinIO, AWS S3, R2) and Cloudflare Images. Exactly one
// is active per deployment, chosen at startup by Open.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxBytes is the upload ceiling used when none is configured (5 MiB).
const DefaultMaxBytes int64 = 5 << 20

var (
	// ErrEmpty is returned for zero-length payloads.
	ErrEmpty = errors.New("empty payload")
	// ErrTooLarge is returned when a payload exceeds the configured ceiling.
	ErrTooLarge = errors.New("payload too large")
	// ErrUnsupportedType is returned when the payload is not an accepted image.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrNotFound is returned by Delete and Open when the reference is unknown
	// to the backend.
	ErrNotFound = errors.New("object not found")
)

// OrphanError reports an object a backend placed and then failed to remove
// after the rest of the placement went wrong. Ref addresses the leftover.
type OrphanError struct {
	Ref     string
	Cleanup error
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("object %s left behind: %v", e.Ref, e.Cleanup)
}

func (e *OrphanError) Unwrap() error { return e.Cleanup }

// allowedTypes are the content types accepted after sniffing. SVG is excluded
// since it can carry script and is served from our own origin.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/avif": true,
}

// Object is a payload that passed validation and is ready to be placed.
type Object struct {
	Data         []byte
	StoredName   string
	OriginalName string
	MimeType     string
}

// Size returns the payload length in bytes.
func (o Object) Size() int64 { return int64(len(o.Data)) }

// Stored describes where a backend put an object.
type Stored struct {
	StoredName string
	StorageRef string
	PublicURL  string
}

// Store is the contract every backend satisfies.
type Store interface {
	// Backend returns a short name used in logs and health output.
	Backend() string
	Put(ctx context.Context, obj Object) (Stored, error)
	// Delete removes the object addressed by ref. A reference the backend
	// does not know yields ErrNotFound.
	Delete(ctx context.Context, ref string) error
}

// Opener is implemented by backends that can stream objects back themselves.
type Opener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// Checker is implemented by backends that can report their own health.
type Checker interface {
	Check(ctx context.Context) error
}

// NewObject validates a raw payload and assigns it a collision-free stored
// name. The content type is sniffed from the bytes; declaredType is the type
// the client claimed and only needs to agree that the payload is an image.
func NewObject(data []byte, originalName, declaredType string, maxBytes int64) (Object, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) == 0 {
		return Object{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return Object{}, ErrTooLarge
	}

	if !declaredImage(declaredType) {
		return Object{}, ErrUnsupportedType
	}

	mt := mimetype.Detect(data)
	mimeType, _, err := mime.ParseMediaType(mt.String())
	if err != nil || !allowedTypes[mimeType] {
		return Object{}, ErrUnsupportedType
	}

	return Object{
		Data:         data,
		StoredName:   uuid.NewString() + mt.Extension(),
		OriginalName: SanitizeFilename(originalName),
		MimeType:     mimeType,
	}, nil
}

// declaredImage reports whether a client-declared content type is compatible
// with an image upload. Missing and generic binary types are accepted since
// the payload is sniffed anyway.
func declaredImage(declared string) bool {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	return mt == "application/octet-stream" || strings.HasPrefix(mt, "image/")
}

// SanitizeFilename reduces a client-supplied file name to something safe to
// store and echo back. It is never used to address storage.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.Trim(filename, " .")

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		if len(ext) > 16 {
			ext = ""
		}
		base := filename[:len(filename)-len(ext)]
		filename = base[:255-len(ext)] + ext
	}

	if filename == "" || filename == "/" {
		filename = "unnamed"
	}
	return filename
}
