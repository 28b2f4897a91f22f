package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

var errNoVariants = errors.New("no delivery variants")

// CloudflareConfig holds the Cloudflare Images account settings.
type CloudflareConfig struct {
	AccountID string
	APIToken  string
	// Variant selects the delivery variant used as public URL. The first
	// variant returned by the API is used when empty or absent.
	Variant string
	// Folder is attached to every upload as metadata.
	Folder string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Cloudflare stores objects in Cloudflare Images.
type Cloudflare struct {
	api     *cloudflare.API
	account *cloudflare.ResourceContainer
	variant string
	folder  string
}

func NewCloudflare(cfg CloudflareConfig) (*Cloudflare, error) {
	if cfg.AccountID == "" || cfg.APIToken == "" {
		return nil, errors.New("cloudflare configuration incomplete")
	}

	var opts []cloudflare.Option
	if cfg.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.BaseURL))
	}

	api, err := cloudflare.NewWithAPIToken(cfg.APIToken, opts...)
	if err != nil {
		return nil, err
	}

	return &Cloudflare{
		api:     api,
		account: cloudflare.AccountIdentifier(cfg.AccountID),
		variant: cfg.Variant,
		folder:  cfg.Folder,
	}, nil
}

func (c *Cloudflare) Backend() string { return "cloudflare" }

func (c *Cloudflare) Put(ctx context.Context, obj Object) (Stored, error) {
	metadata := map[string]interface{}{
		"original_name": obj.OriginalName,
		"mime_type":     obj.MimeType,
	}
	if c.folder != "" {
		metadata["folder"] = c.folder
	}

	img, err := c.api.UploadImage(ctx, c.account, cloudflare.UploadImageParams{
		File:     io.NopCloser(bytes.NewReader(obj.Data)),
		Name:     obj.StoredName,
		Metadata: metadata,
	})
	if err != nil {
		return Stored{}, fmt.Errorf("upload image %s: %w", obj.StoredName, err)
	}
	if len(img.Variants) == 0 {
		// Nothing to publish; remove the upload rather than leave it behind.
		err := fmt.Errorf("upload image %s: %w", obj.StoredName, errNoVariants)
		if delErr := c.api.DeleteImage(ctx, c.account, img.ID); delErr != nil {
			return Stored{}, errors.Join(err, &OrphanError{Ref: img.ID, Cleanup: delErr})
		}
		return Stored{}, err
	}

	return Stored{
		StoredName: obj.StoredName,
		StorageRef: img.ID,
		PublicURL:  c.pickVariant(img.Variants),
	}, nil
}

func (c *Cloudflare) Delete(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return ErrNotFound
	}

	err := c.api.DeleteImage(ctx, c.account, ref)
	if err == nil {
		return nil
	}

	var notFound *cloudflare.NotFoundError
	if errors.As(err, &notFound) {
		return ErrNotFound
	}
	return fmt.Errorf("delete image %s: %w", ref, err)
}

// Check verifies the API token is still accepted.
func (c *Cloudflare) Check(ctx context.Context) error {
	_, err := c.api.VerifyAPIToken(ctx)
	return err
}

func (c *Cloudflare) pickVariant(variants []string) string {
	if c.variant != "" {
		for _, v := range variants {
			if strings.HasSuffix(v, "/"+c.variant) {
				return v
			}
		}
	}
	return variants[0]
}
