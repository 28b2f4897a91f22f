package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"asset-catalog/internal/db"
	"asset-catalog/internal/storage"
)

// uploadField is the multipart field carrying the image.
const uploadField = "image"

// PublicImage is the catalog entry shown to anonymous readers. It leaves out
// the storage reference and the uploader.
type PublicImage struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

func publicImage(img db.Image) PublicImage {
	return PublicImage{
		ID:           img.ID,
		Filename:     img.Filename,
		OriginalName: img.OriginalName,
		MimeType:     img.MimeType,
		Size:         img.Size,
		URL:          img.URL,
		CreatedAt:    img.CreatedAt,
	}
}

// readImagePart pulls the "image" part out of a multipart body without
// buffering the rest of the form. At most maxBytes+1 bytes of the part are
// read so an oversized file is detected without reading all of it.
func readImagePart(r *http.Request, maxBytes int64) (UploadInput, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return UploadInput{}, ErrMissingFile
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return UploadInput{}, ErrMissingFile
		}
		if err != nil {
			return UploadInput{}, err
		}

		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, maxBytes+1))
		_ = part.Close()
		if err != nil {
			return UploadInput{}, err
		}
		if int64(len(data)) > maxBytes {
			return UploadInput{}, storage.ErrTooLarge
		}
		if data == nil {
			data = []byte{}
		}

		return UploadInput{
			Data:         data,
			OriginalName: part.FileName(),
			DeclaredType: part.Header.Get("Content-Type"),
		}, nil
	}
}

// handleUpload handles POST /api/admin/images/upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	rid := RequestIDFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+1<<20)

	in, err := readImagePart(r, s.maxBytes)
	if err != nil {
		status, msg := errorStatus(err, s.maxBytes, "Failed to upload image")
		if status == http.StatusInternalServerError {
			// A body that fails mid-read is the client's problem, not ours.
			status, msg = http.StatusBadRequest, "No file uploaded"
		}
		s.metrics.RecordUpload(0, err)
		s.log.Info("upload rejected", zap.String("rid", rid), zap.Error(err))
		writeMessage(w, status, msg)
		return
	}

	if id, ok := IdentityFromContext(r.Context()); ok {
		in.UploadedBy = id.AdminID
	}

	img, err := s.pipeline.Upload(r.Context(), in)
	if err != nil {
		status, msg := errorStatus(err, s.maxBytes, "Failed to upload image")
		if status == http.StatusInternalServerError {
			s.log.Error("upload failed", zap.String("rid", rid), zap.Error(err))
		} else {
			s.log.Info("upload rejected", zap.String("rid", rid), zap.Error(err))
		}
		writeMessage(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "Image uploaded successfully",
		Data:    img,
	})
}

// handleAdminList handles GET /api/admin/images/all.
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	images, err := s.catalog.List(r.Context())
	if err != nil {
		s.log.Error("list images failed", zap.String("rid", RequestIDFromContext(r.Context())), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch images")
		return
	}
	writeData(w, http.StatusOK, images)
}

// handleDelete handles DELETE /api/admin/images/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.pipeline.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		status, msg := errorStatus(err, s.maxBytes, "Failed to delete image")
		if status == http.StatusInternalServerError {
			s.log.Error("delete failed", zap.String("rid", RequestIDFromContext(r.Context())), zap.Error(err))
		}
		writeMessage(w, status, msg)
		return
	}
	writeMessage(w, http.StatusOK, "Image deleted successfully")
}

// handlePublicList handles GET /api/public/images.
func (s *Server) handlePublicList(w http.ResponseWriter, r *http.Request) {
	images, err := s.catalog.List(r.Context())
	if err != nil {
		s.log.Error("list images failed", zap.String("rid", RequestIDFromContext(r.Context())), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch images")
		return
	}

	out := make([]PublicImage, 0, len(images))
	for _, img := range images {
		out = append(out, publicImage(img))
	}
	writeData(w, http.StatusOK, out)
}

// handlePublicGet handles GET /api/public/images/{id}.
func (s *Server) handlePublicGet(w http.ResponseWriter, r *http.Request) {
	img, err := s.catalog.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, db.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		s.log.Error("get image failed", zap.String("rid", RequestIDFromContext(r.Context())), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch image")
		return
	}
	writeData(w, http.StatusOK, publicImage(img))
}

// handleFile handles GET /api/public/images/file/{filename}. Backends that can
// stream objects serve the bytes directly; for the others the client is
// redirected to the public URL.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	img, err := s.catalog.GetByFilename(r.Context(), r.PathValue("filename"))
	if errors.Is(err, db.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		s.log.Error("get image failed", zap.String("rid", RequestIDFromContext(r.Context())), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch image")
		return
	}

	opener, ok := s.store.(storage.Opener)
	if !ok {
		http.Redirect(w, r, img.URL, http.StatusFound)
		return
	}

	rc, err := opener.Open(r.Context(), img.Path)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("stored object missing", zap.String("id", img.ID), zap.String("storage_ref", img.Path))
		writeMessage(w, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		s.log.Error("open stored object failed", zap.String("id", img.ID), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Failed to fetch image")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, img.Filename, img.CreatedAt, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(img.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// handleNotFound answers every unmatched route.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, "Route not found")
}
