package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vehicle-catalog/internal/config"
)

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"https://abc123.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.eu-west-1.amazonaws.com", StorageTypeS3},
		{"", StorageTypeS3},
		{"http://localhost:9000", StorageTypeS3Compatible},
	}
	for _, tc := range tests {
		t.Run(tc.endpoint, func(t *testing.T) {
			assert.Equal(t, tc.want, detectStorageType(tc.endpoint))
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:9000", normalizeEndpoint("http://localhost:9000/"))
	assert.Equal(t, "minio.internal:9000", normalizeEndpoint("https://minio.internal:9000/some/path"))
	assert.Equal(t, "localhost:9000", normalizeEndpoint("localhost:9000"))
	assert.Equal(t, "", normalizeEndpoint(""))
}

func TestNewStorage_RejectsBadConfig(t *testing.T) {
	_, err := NewStorage(context.Background(), config.ArchiveConfig{Type: "minio"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	_, err = NewStorage(context.Background(), config.ArchiveConfig{Type: "gcs", Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported archive type")
}

func TestS3ConfigFrom(t *testing.T) {
	cfg := s3ConfigFrom(config.ArchiveConfig{
		Endpoint:  "https://abc.r2.cloudflarestorage.com",
		AccessKey: "ak",
		SecretKey: "sk",
		UseSSL:    true,
		Bucket:    "vehicle-catalog",
	}, StorageTypeR2)

	assert.Equal(t, StorageTypeR2, cfg.Type)
	assert.Equal(t, "vehicle-catalog", cfg.Bucket)
	assert.True(t, cfg.UseSSL)
}
