package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"asset-catalog/internal/db"
	"asset-catalog/internal/storage"
)

const (
	storeTimeout      = 30 * time.Second
	compensateTimeout = 10 * time.Second
)

// Catalog is the metadata store for uploaded images.
type Catalog interface {
	Create(ctx context.Context, in db.NewImage) (db.Image, error)
	List(ctx context.Context) ([]db.Image, error)
	Get(ctx context.Context, id string) (db.Image, error)
	GetByFilename(ctx context.Context, filename string) (db.Image, error)
	Delete(ctx context.Context, id string) error
}

// UploadInput is a received file together with the admin uploading it.
type UploadInput struct {
	Data         []byte
	OriginalName string
	DeclaredType string
	UploadedBy   string
}

// Pipeline runs the upload and delete flows across the asset store and the
// catalog, keeping the two consistent.
type Pipeline struct {
	store    storage.Store
	catalog  Catalog
	maxBytes int64
	log      *zap.Logger
	metrics  *Metrics
}

func NewPipeline(store storage.Store, catalog Catalog, maxBytes int64, log *zap.Logger, metrics *Metrics) *Pipeline {
	if maxBytes <= 0 {
		maxBytes = storage.DefaultMaxBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		catalog:  catalog,
		maxBytes: maxBytes,
		log:      log,
		metrics:  metrics,
	}
}

// Upload validates the payload, places it on the backend and records it.
// When recording fails the placed object is removed again; if that removal
// fails too the object is reported as orphaned and the caller still gets
// ErrRecordFailure.
func (p *Pipeline) Upload(ctx context.Context, in UploadInput) (img db.Image, err error) {
	defer func() { p.metrics.RecordUpload(int64(len(in.Data)), err) }()

	if in.Data == nil {
		return db.Image{}, ErrMissingFile
	}

	obj, err := storage.NewObject(in.Data, in.OriginalName, in.DeclaredType, p.maxBytes)
	if err != nil {
		return db.Image{}, err
	}

	putCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	stored, err := p.store.Put(putCtx, obj)
	cancel()
	if err != nil {
		p.log.Error("store object failed",
			zap.String("backend", p.store.Backend()),
			zap.String("stored_name", obj.StoredName),
			zap.Error(err))
		var orphan *storage.OrphanError
		if errors.As(err, &orphan) {
			p.reportOrphan(storage.Stored{StoredName: obj.StoredName, StorageRef: orphan.Ref}, orphan.Cleanup)
		}
		return db.Image{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	img, err = p.catalog.Create(ctx, db.NewImage{
		Filename:     stored.StoredName,
		OriginalName: obj.OriginalName,
		MimeType:     obj.MimeType,
		Size:         obj.Size(),
		Path:         stored.StorageRef,
		URL:          stored.PublicURL,
		UploadedBy:   in.UploadedBy,
	})
	if err != nil {
		p.log.Error("record image failed",
			zap.String("stored_name", stored.StoredName),
			zap.String("storage_ref", stored.StorageRef),
			zap.Error(err))
		p.compensate(ctx, stored)
		return db.Image{}, fmt.Errorf("%w: %v", ErrRecordFailure, err)
	}

	p.log.Info("image uploaded",
		zap.String("id", img.ID),
		zap.String("stored_name", img.Filename),
		zap.String("mime_type", img.MimeType),
		zap.Int64("size", img.Size),
		zap.String("uploaded_by", in.UploadedBy))
	return img, nil
}

// compensate removes an object whose catalog row could not be written. It
// runs detached from the request so a client hanging up does not leave the
// object behind.
func (p *Pipeline) compensate(ctx context.Context, stored storage.Stored) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	err := p.store.Delete(ctx, stored.StorageRef)
	if err == nil || errors.Is(err, storage.ErrNotFound) {
		p.log.Warn("removed stored object after failed record",
			zap.String("storage_ref", stored.StorageRef))
		return
	}

	p.reportOrphan(stored, err)
}

// reportOrphan records an object left on the backend with no catalog row.
func (p *Pipeline) reportOrphan(stored storage.Stored, err error) {
	p.metrics.RecordOrphan()
	p.log.Error("compensating delete failed",
		zap.String("event", "orphaned_asset"),
		zap.String("backend", p.store.Backend()),
		zap.String("stored_name", stored.StoredName),
		zap.String("storage_ref", stored.StorageRef),
		zap.String("public_url", stored.PublicURL),
		zap.Error(err))
}

// Delete removes the stored object and then the catalog row. An object that
// is already gone from the backend does not block removing the row.
func (p *Pipeline) Delete(ctx context.Context, id string) (err error) {
	defer func() { p.metrics.RecordDelete(err) }()

	img, err := p.catalog.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecordFailure, err)
	}

	delCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	err = p.store.Delete(delCtx, img.Path)
	cancel()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p.log.Warn("stored object already missing",
			zap.String("id", img.ID),
			zap.String("storage_ref", img.Path))
	case err != nil:
		p.log.Error("delete stored object failed",
			zap.String("id", img.ID),
			zap.String("storage_ref", img.Path),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	err = p.catalog.Delete(ctx, img.ID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		p.log.Error("delete image record failed", zap.String("id", img.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrRecordFailure, err)
	}

	p.log.Info("image deleted", zap.String("id", img.ID), zap.String("stored_name", img.Filename))
	return nil
}
