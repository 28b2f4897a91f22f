package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the settings of an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is the folder objects are written under.
	Prefix string
	// PublicURL is the base URL objects are reachable at (CDN or bucket
	// website). When empty, path-style bucket URLs on Endpoint are used.
	PublicURL string
}

// S3 stores objects in an S3-compatible bucket through minio-go.
type S3 struct {
	client    *minio.Client
	bucket    string
	prefix    string
	publicURL string
}

// NewS3 builds the client. It does not contact the endpoint; use Check.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicURL = scheme + "://" + endpoint + "/" + cfg.Bucket
	}

	return &S3{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: publicURL,
	}, nil
}

func (s *S3) Backend() string { return "s3" }

func (s *S3) Put(ctx context.Context, obj Object) (Stored, error) {
	key := s.objectKey(obj.StoredName)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(obj.Data), obj.Size(), minio.PutObjectOptions{
		ContentType: obj.MimeType,
		UserMetadata: map[string]string{
			"original-name": url.QueryEscape(obj.OriginalName),
		},
	})
	if err != nil {
		return Stored{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return Stored{
		StoredName: obj.StoredName,
		StorageRef: key,
		PublicURL:  s.objectURL(key),
	}, nil
}

// Delete stats the object first because RemoveObject reports success for
// keys that do not exist.
func (s *S3) Delete(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return ErrNotFound
	}

	if _, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return ErrNotFound
		}
		return fmt.Errorf("stat object %s: %w", ref, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", ref, err)
	}
	return nil
}

// Check confirms the bucket exists and the credentials can see it.
func (s *S3) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket does not exist: %s", s.bucket)
	}
	return nil
}

func (s *S3) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3) objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/" + strings.Join(segments, "/")
}

// normaliseEndpoint accepts either "minio:9000" or "http(s)://minio:9000" and
// returns the host:port minio-go expects plus whether TLS is on.
func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme: plain host:port, insecure as for a local MinIO.
	return raw, false, nil
}
