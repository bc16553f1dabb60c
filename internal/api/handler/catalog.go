package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/pagination"
	"github.com/timmy/vehicle-catalog/pkg/apierr"
)

// CatalogReader reads the vehicle catalog.
type CatalogReader interface {
	ListCatalog(ctx context.Context, first int, after string) (pagination.Connection[domain.Make], error)
	GetMake(ctx context.Context, makeID int64) (*domain.Make, error)
}

// MakeListResponse is one page of makes.
type MakeListResponse struct {
	Items      []domain.Make       `json:"items"`
	PageInfo   pagination.PageInfo `json:"pageInfo"`
	TotalCount int64               `json:"totalCount"`
}

// CatalogHandler serves /makes.
type CatalogHandler struct {
	catalog CatalogReader
}

func NewCatalogHandler(catalog CatalogReader) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListMakes handles GET /api/v1/makes?first=&after=.
func (h *CatalogHandler) ListMakes(c *gin.Context) {
	first := 0
	if raw := c.Query("first"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, apierr.InvalidPageSize("first must be an integer"))
			return
		}
		first = n
	}

	conn, err := h.catalog.ListCatalog(c.Request.Context(), first, c.Query("after"))
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case pagination.IsInvalidCursor(err):
			writeError(c, apierr.InvalidCursor(err))
		case errors.As(err, &verr) && verr.Field == "first":
			writeError(c, apierr.InvalidPageSize(verr.Error()))
		default:
			writeError(c, apierr.FromError(err))
		}
		return
	}

	c.JSON(http.StatusOK, MakeListResponse{
		Items:      conn.Nodes(),
		PageInfo:   conn.PageInfo,
		TotalCount: conn.TotalCount,
	})
}

// GetMake handles GET /api/v1/makes/:makeId.
func (h *CatalogHandler) GetMake(c *gin.Context) {
	makeID, err := strconv.ParseInt(c.Param("makeId"), 10, 64)
	if err != nil {
		writeError(c, apierr.InvalidMakeID())
		return
	}

	m, err := h.catalog.GetMake(c.Request.Context(), makeID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeError(c, apierr.InvalidMakeID())
		case apierr.IsNotFound(err):
			writeError(c, apierr.MakeNotFound())
		default:
			writeError(c, apierr.FromError(err))
		}
		return
	}
	c.JSON(http.StatusOK, m)
}
