package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileRoute is the public path under which locally stored files are served.
const FileRoute = "/api/public/images/file/"

// Local keeps objects in a directory on the server's filesystem.
type Local struct {
	dir     string
	baseURL string
}

// NewLocal creates dir if needed. publicBaseURL prefixes generated public URLs
// and may be empty, in which case URLs are root-relative.
func NewLocal(dir, publicBaseURL string) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Local{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (l *Local) Backend() string { return "local" }

// Put writes the object through a temp file in the same directory and renames
// it into place, so a half-written file is never visible under its final name.
func (l *Local) Put(ctx context.Context, obj Object) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	name := filepath.Base(obj.StoredName)
	if !validRef(name) {
		return Stored{}, fmt.Errorf("invalid stored name %q", obj.StoredName)
	}

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return Stored{}, err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(obj.Data); err != nil {
		_ = tmp.Close()
		cleanup()
		return Stored{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return Stored{}, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return Stored{}, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return Stored{}, err
	}
	if err := os.Rename(tmpName, filepath.Join(l.dir, name)); err != nil {
		cleanup()
		return Stored{}, err
	}

	return Stored{
		StoredName: name,
		StorageRef: name,
		PublicURL:  l.baseURL + FileRoute + url.PathEscape(name),
	}, nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := filepath.Base(ref)
	if !validRef(name) {
		return ErrNotFound
	}

	err := os.Remove(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// Open returns a reader over a stored file. The caller closes it.
func (l *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.Base(ref)
	if !validRef(name) {
		return nil, ErrNotFound
	}

	f, err := os.Open(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Check verifies the upload directory is still present and writable.
func (l *Local) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(l.dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// validRef rejects references that would escape the upload directory or hit
// temp files.
func validRef(name string) bool {
	return name != "" && name != "." && name != ".." && name != string(filepath.Separator) &&
		!strings.HasPrefix(name, ".")
}
