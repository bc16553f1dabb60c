package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/source"
	"github.com/timmy/vehicle-catalog/internal/storage"
)

// RunSnapshot is the archived record of what one run fetched upstream.
type RunSnapshot struct {
	JobID      string            `json:"jobId"`
	CapturedAt time.Time         `json:"capturedAt"`
	Index      []ArchivedMake    `json:"index"`
	Failures   []domain.JobError `json:"failures"`
}

// ArchivedMake is an index entry and, when fetched, its vehicle types.
type ArchivedMake struct {
	MakeID       int64                      `json:"makeId"`
	Name         string                     `json:"name"`
	Fetched      bool                       `json:"fetched"`
	VehicleTypes []source.VehicleTypeRecord `json:"vehicleTypes,omitempty"`
}

// ObjectSnapshotArchive stores snapshots as JSON objects under prefix.
type ObjectSnapshotArchive struct {
	store  storage.ObjectStorage
	prefix string
}

// NewObjectSnapshotArchive creates an archive backed by store.
func NewObjectSnapshotArchive(store storage.ObjectStorage, prefix string) *ObjectSnapshotArchive {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &ObjectSnapshotArchive{store: store, prefix: prefix}
}

func (a *ObjectSnapshotArchive) key(jobID string) string {
	return path.Join(a.prefix, jobID+".json")
}

// Archive uploads snapshot as {prefix}/{jobId}.json.
func (a *ObjectSnapshotArchive) Archive(ctx context.Context, snapshot *RunSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return a.store.Upload(ctx, a.key(snapshot.JobID), bytes.NewReader(data), int64(len(data)), "application/json")
}

// Open streams the snapshot of jobID.
func (a *ObjectSnapshotArchive) Open(ctx context.Context, jobID string) (io.ReadCloser, error) {
	key := a.key(jobID)
	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("snapshot %s: %w", jobID, domain.ErrNotFound)
	}
	return a.store.Download(ctx, key)
}
