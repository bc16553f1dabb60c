package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/source"
)

type memObjectStorage struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memObjectStorage) Upload(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memObjectStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) EnsureBucket(context.Context) error { return nil }

func (m *memObjectStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func TestObjectSnapshotArchive_RoundTrip(t *testing.T) {
	store := newMemObjectStorage()
	archive := NewObjectSnapshotArchive(store, "")
	ctx := context.Background()

	snap := &RunSnapshot{
		JobID:      "job-1",
		CapturedAt: testNow,
		Index: []ArchivedMake{
			{MakeID: 1, Name: "Acme", Fetched: true, VehicleTypes: []source.VehicleTypeRecord{{TypeID: 3, Name: "Truck"}}},
			{MakeID: 2, Name: "Zenith"},
		},
		Failures: []domain.JobError{{EntityKey: "2", Message: "boom", OccurredAt: testNow}},
	}
	require.NoError(t, archive.Archive(ctx, snap))
	assert.Contains(t, store.objects, "snapshots/job-1.json")
	assert.Equal(t, "application/json", store.contentTypes["snapshots/job-1.json"])

	rc, err := archive.Open(ctx, "job-1")
	require.NoError(t, err)
	defer rc.Close()

	var got RunSnapshot
	require.NoError(t, json.NewDecoder(rc).Decode(&got))
	assert.Equal(t, *snap, got)
}

func TestObjectSnapshotArchive_OpenMissing(t *testing.T) {
	archive := NewObjectSnapshotArchive(newMemObjectStorage(), "archive")

	_, err := archive.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
