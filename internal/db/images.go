package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Image is a catalog row as seen by administrators. UploadedByEmail is only
// populated by queries that join the admins table.
type Image struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	OriginalName    string    `json:"original_name"`
	MimeType        string    `json:"mime_type"`
	Size            int64     `json:"size"`
	Path            string    `json:"path"`
	URL             string    `json:"url"`
	UploadedBy      string    `json:"uploaded_by,omitempty"`
	UploadedByEmail string    `json:"uploaded_by_email,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewImage carries the fields of a row about to be inserted.
type NewImage struct {
	Filename     string
	OriginalName string
	MimeType     string
	Size         int64
	Path         string
	URL          string
	UploadedBy   string
}

// Images is the SQL-backed asset catalog.
type Images struct {
	db *sql.DB
}

func NewImages(db *sql.DB) *Images {
	return &Images{db: db}
}

const imageColumns = `
	i.id, i.filename, i.original_name, i.mime_type, i.size, i.path, i.url,
	i.uploaded_by, a.email, i.created_at`

// Create inserts a row and returns it as stored, including the generated id
// and timestamp.
func (s *Images) Create(ctx context.Context, in NewImage) (Image, error) {
	if in.UploadedBy != "" {
		if _, err := uuid.Parse(in.UploadedBy); err != nil {
			return Image{}, err
		}
	}

	row := s.db.QueryRowContext(ctx, `
		WITH i AS (
			INSERT INTO images (filename, original_name, mime_type, size, path, url, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING *
		)
		SELECT `+imageColumns+`
		FROM i
		LEFT JOIN admins a ON a.id = i.uploaded_by
	`, in.Filename, in.OriginalName, in.MimeType, in.Size, in.Path, in.URL, nullString(in.UploadedBy))
	return scanImage(row)
}

// List returns every image, newest first.
func (s *Images) List(ctx context.Context) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+imageColumns+`
		FROM images i
		LEFT JOIN admins a ON a.id = i.uploaded_by
		ORDER BY i.created_at DESC, i.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *Images) Get(ctx context.Context, id string) (Image, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Image{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+imageColumns+`
		FROM images i
		LEFT JOIN admins a ON a.id = i.uploaded_by
		WHERE i.id = $1
	`, id)
	return scanImage(row)
}

func (s *Images) GetByFilename(ctx context.Context, filename string) (Image, error) {
	if filename == "" {
		return Image{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+imageColumns+`
		FROM images i
		LEFT JOIN admins a ON a.id = i.uploaded_by
		WHERE i.filename = $1
	`, filename)
	return scanImage(row)
}

// Delete removes the row. A missing row yields ErrNotFound.
func (s *Images) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (Image, error) {
	var (
		img        Image
		uploadedBy sql.NullString
		email      sql.NullString
	)
	err := row.Scan(
		&img.ID, &img.Filename, &img.OriginalName, &img.MimeType, &img.Size,
		&img.Path, &img.URL, &uploadedBy, &email, &img.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, ErrNotFound
	}
	if err != nil {
		return Image{}, err
	}
	img.UploadedBy = uploadedBy.String
	img.UploadedByEmail = email.String
	return img, nil
}
