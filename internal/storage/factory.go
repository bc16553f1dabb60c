package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/vehicle-catalog/internal/config"
)

// NewStorage creates the ObjectStorage selected by cfg and makes sure its
// bucket exists.
func NewStorage(ctx context.Context, cfg config.ArchiveConfig) (ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	var (
		store ObjectStorage
		err   error
	)
	switch StorageType(strings.ToLower(cfg.Type)) {
	case StorageTypeMinIO:
		store, err = NewMinIOStorage(&MinIOConfig{
			Endpoint:  normalizeEndpoint(cfg.Endpoint),
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	case "":
		store, err = NewS3Storage(ctx, s3ConfigFrom(cfg, detectStorageType(cfg.Endpoint)))
	case StorageTypeR2, StorageTypeS3, StorageTypeS3Compatible:
		store, err = NewS3Storage(ctx, s3ConfigFrom(cfg, StorageType(strings.ToLower(cfg.Type))))
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func s3ConfigFrom(cfg config.ArchiveConfig, t StorageType) *S3Config {
	return &S3Config{
		Type:      t,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
	}
}

// detectStorageType guesses the backend from the endpoint host.
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}

// normalizeEndpoint strips the scheme and any path from endpoint.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return endpoint
}
