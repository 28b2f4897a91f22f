package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"asset-catalog/internal/db"
	"asset-catalog/internal/storage"
)

const (
	testSecret   = "test-secret-that-is-long-enough-for-hs256"
	testEmail    = "admin@voith.com"
	testPassword = "Admin@123"
)

type fakeAccounts struct {
	byEmail map[string]db.Admin
	err     error
}

func newFakeAccounts(t *testing.T) *fakeAccounts {
	t.Helper()
	digest, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	adm := db.Admin{
		ID:             uuid.NewString(),
		Email:          testEmail,
		PasswordDigest: string(digest),
		CreatedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	return &fakeAccounts{byEmail: map[string]db.Admin{testEmail: adm}}
}

func (f *fakeAccounts) admin() db.Admin { return f.byEmail[testEmail] }

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (db.Admin, error) {
	if f.err != nil {
		return db.Admin{}, f.err
	}
	adm, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return db.Admin{}, db.ErrNotFound
	}
	return adm, nil
}

func (f *fakeAccounts) FindByID(_ context.Context, id string) (db.Admin, error) {
	if f.err != nil {
		return db.Admin{}, f.err
	}
	for _, adm := range f.byEmail {
		if adm.ID == id {
			return adm, nil
		}
	}
	return db.Admin{}, db.ErrNotFound
}

type fakeCatalog struct {
	mu        sync.Mutex
	rows      map[string]db.Image
	seq       int
	createErr error
	deleteErr error
	// onCreate runs before Create returns, with the caller's context.
	onCreate func(ctx context.Context)
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{rows: map[string]db.Image{}}
}

func (f *fakeCatalog) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeCatalog) Create(ctx context.Context, in db.NewImage) (db.Image, error) {
	if f.onCreate != nil {
		f.onCreate(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return db.Image{}, f.createErr
	}
	f.seq++
	img := db.Image{
		ID:           uuid.NewString(),
		Filename:     in.Filename,
		OriginalName: in.OriginalName,
		MimeType:     in.MimeType,
		Size:         in.Size,
		Path:         in.Path,
		URL:          in.URL,
		UploadedBy:   in.UploadedBy,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, f.seq, 0, time.UTC),
	}
	if in.UploadedBy != "" {
		img.UploadedByEmail = testEmail
	}
	f.rows[img.ID] = img
	return img, nil
}

func (f *fakeCatalog) List(context.Context) ([]db.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]db.Image, 0, len(f.rows))
	for _, img := range f.rows {
		out = append(out, img)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (db.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.rows[id]
	if !ok {
		return db.Image{}, db.ErrNotFound
	}
	return img, nil
}

func (f *fakeCatalog) GetByFilename(_ context.Context, name string) (db.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range f.rows {
		if img.Filename == name {
			return img, nil
		}
	}
	return db.Image{}, db.ErrNotFound
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

// fakeStore behaves like a remote backend: no Opener, public URLs on a CDN.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	deletes   []string
	putErr    error
	deleteErr error
	// deleteCtxErr records ctx.Err() seen by the last Delete call.
	deleteCtxErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Backend() string { return "fake" }

func (f *fakeStore) Put(_ context.Context, obj storage.Object) (storage.Stored, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return storage.Stored{}, f.putErr
	}
	ref := "voith/" + obj.StoredName
	f.objects[ref] = obj.Data
	return storage.Stored{
		StoredName: obj.StoredName,
		StorageRef: ref,
		PublicURL:  "https://cdn.example.com/" + ref,
	}, nil
}

func (f *fakeStore) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, ref)
	f.deleteCtxErr = ctx.Err()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.objects[ref]; !ok {
		return storage.ErrNotFound
	}
	delete(f.objects, ref)
	return nil
}

func (f *fakeStore) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

// jpegPayload returns n bytes that sniff as JPEG.
func jpegPayload(n int) []byte {
	b := make([]byte, n)
	copy(b, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return b
}

// multipartBody builds a multipart form with a single file part.
func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}
