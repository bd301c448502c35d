package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/upgrade-events/Upgrade-Events/pkg/config"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"go.uber.org/zap"
)

const listMaxResults = 100

// CloudinaryStorage implements ObjectStorage using Cloudinary
type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage creates a CloudinaryStorage from the storage config
func NewCloudinaryStorage(cfg config.StorageConfig) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: cfg.Folder}, nil
}

func (s *CloudinaryStorage) publicID(p string) string {
	id := PublicIDFromPath(p)
	if s.folder == "" {
		return id
	}
	return path.Join(s.folder, id)
}

// Upload stores r as an auto-detected resource so PDFs and images both work
func (s *CloudinaryStorage) Upload(ctx context.Context, p string, r io.Reader) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}

	result, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     s.publicID(p),
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if result.Error.Message != "" {
		return "", errors.New("cloudinary upload: " + result.Error.Message)
	}
	return result.SecureURL, nil
}

// Delete destroys the object served at url. Unknown URLs are ignored.
func (s *CloudinaryStorage) Delete(ctx context.Context, url string) error {
	publicID := PublicIDFromURL(url)
	if publicID == "" {
		return nil
	}

	result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if result.Error.Message != "" {
		return errors.New("cloudinary destroy: " + result.Error.Message)
	}
	if result.Result != "ok" {
		logger.Get().WarnContext(ctx, "cloudinary destroy did not remove object",
			zap.String("public_id", publicID), zap.String("result", result.Result))
	}
	return nil
}

// List returns the uploaded objects under prefix
func (s *CloudinaryStorage) List(ctx context.Context, prefix string) ([]Object, error) {
	result, err := s.cld.Admin.Assets(ctx, admin.AssetsParams{
		DeliveryType: "upload",
		Prefix:       s.publicID(prefix),
		MaxResults:   listMaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary list: %w", err)
	}
	if result.Error.Message != "" {
		return nil, errors.New("cloudinary list: " + result.Error.Message)
	}

	objects := make([]Object, 0, len(result.Assets))
	for _, a := range result.Assets {
		objects = append(objects, Object{PublicID: a.PublicID, URL: a.SecureURL})
	}
	return objects, nil
}
