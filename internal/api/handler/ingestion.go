package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/logger"
	"github.com/timmy/vehicle-catalog/pkg/apierr"
)

// IngestionRunner starts an ingestion run.
type IngestionRunner interface {
	Run(ctx context.Context) (domain.JobSnapshot, error)
}

// JobReader reads ingestion job state and archived snapshots.
type JobReader interface {
	GetIngestionStatus(ctx context.Context, jobID string) (*domain.JobSnapshot, error)
	GetCurrentIngestion(ctx context.Context) (*domain.JobSnapshot, error)
	OpenSnapshot(ctx context.Context, jobID string) (io.ReadCloser, error)
}

// IngestionHandler serves /ingestions.
type IngestionHandler struct {
	runner IngestionRunner
	jobs   JobReader
}

func NewIngestionHandler(runner IngestionRunner, jobs JobReader) *IngestionHandler {
	return &IngestionHandler{runner: runner, jobs: jobs}
}

// Trigger handles POST /api/v1/ingestions. The run executes synchronously
// and is not canceled when the client disconnects.
func (h *IngestionHandler) Trigger(c *gin.Context) {
	ctx := logger.WithField(c.Request.Context(), logger.FieldTrigger, "api")
	logger.CtxInfo(ctx, "Ingestion requested: client_ip=%s", c.ClientIP())

	snap, err := h.runner.Run(context.WithoutCancel(ctx))
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.CtxWarn(ctx, "Ingestion rejected: already running, client_ip=%s", c.ClientIP())
			writeError(c, apierr.IngestionInProgress(err))
			return
		}
		writeError(c, apierr.InternalError(err))
		return
	}

	c.JSON(http.StatusOK, snap)
}

// Current handles GET /api/v1/ingestions/current.
func (h *IngestionHandler) Current(c *gin.Context) {
	snap, err := h.jobs.GetCurrentIngestion(c.Request.Context())
	if err != nil {
		if apierr.IsNotFound(err) {
			writeError(c, apierr.JobNotFound())
			return
		}
		writeError(c, apierr.FromError(err))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Get handles GET /api/v1/ingestions/:id.
func (h *IngestionHandler) Get(c *gin.Context) {
	snap, err := h.jobs.GetIngestionStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, jobError(err, apierr.JobNotFound()))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Snapshot handles GET /api/v1/ingestions/:id/snapshot.
func (h *IngestionHandler) Snapshot(c *gin.Context) {
	rc, err := h.jobs.OpenSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, jobError(err, apierr.SnapshotNotFound()))
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.CtxWarn(c.Request.Context(), "Snapshot stream interrupted: %v", err)
	}
}

func jobError(err error, notFound *apierr.Error) *apierr.Error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return apierr.InvalidJobID()
	case apierr.IsNotFound(err):
		return notFound
	default:
		return apierr.FromError(err)
	}
}
