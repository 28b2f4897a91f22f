package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config selects and configures the active backend.
type Config struct {
	Backend       string
	LocalDir      string
	PublicBaseURL string
	S3            S3Config
	Cloudflare    CloudflareConfig
}

// Backends lists the names accepted in Config.Backend.
var Backends = []string{"local", "s3", "cloudflare"}

// Open builds the configured backend and, when it supports it, checks that
// it is reachable before handing it out.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		store, err = NewLocal(cfg.LocalDir, cfg.PublicBaseURL)
	case "s3":
		store, err = NewS3(cfg.S3)
	case "cloudflare":
		store, err = NewCloudflare(cfg.Cloudflare)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if c, ok := store.(Checker); ok {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Check(ctx); err != nil {
			return nil, fmt.Errorf("%s backend unavailable: %w", store.Backend(), err)
		}
	}
	return store, nil
}
