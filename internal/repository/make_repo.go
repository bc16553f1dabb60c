package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/pagination"
)

// DefaultBatchSize bounds the rows written per upsert transaction.
const DefaultBatchSize = 50

// MakeRepository is the gorm-backed catalog store.
type MakeRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewMakeRepository creates a MakeRepository writing batchSize rows per chunk.
func NewMakeRepository(db *gorm.DB, batchSize int) *MakeRepository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &MakeRepository{db: db, batchSize: batchSize}
}

// SaveMany upserts makes on make_id in chunks. Existing rows keep their id
// and created_at; updated_at only moves when the name or type list changed.
// Each chunk is its own transaction.
func (r *MakeRepository) SaveMany(ctx context.Context, makes []*domain.Make) error {
	for start := 0; start < len(makes); start += r.batchSize {
		end := start + r.batchSize
		if end > len(makes) {
			end = len(makes)
		}
		if err := r.saveChunk(ctx, makes[start:end]); err != nil {
			return fmt.Errorf("%w: save makes %d-%d: %v", domain.ErrPersistence, start, end-1, err)
		}
	}
	return nil
}

func (r *MakeRepository) saveChunk(ctx context.Context, chunk []*domain.Make) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]int64, 0, len(chunk))
		for _, m := range chunk {
			ids = append(ids, m.MakeID)
		}

		var existing []domain.Make
		if err := tx.Where("make_id IN ?", ids).Find(&existing).Error; err != nil {
			return err
		}
		byMakeID := make(map[int64]domain.Make, len(existing))
		for _, e := range existing {
			byMakeID[e.MakeID] = e
		}

		rows := make([]*domain.Make, 0, len(chunk))
		for _, m := range chunk {
			row := *m
			if prev, ok := byMakeID[m.MakeID]; ok {
				merged := prev
				changed := merged.ReplaceVehicleTypes(m.VehicleTypes, m.UpdatedAt)
				if merged.Name != m.Name {
					merged.Name = m.Name
					if !changed {
						merged.UpdatedAt = m.UpdatedAt
					}
				}
				row = merged
			}
			rows = append(rows, &row)
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "make_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "vehicle_types", "updated_at"}),
		}).Create(&rows).Error
	})
}

// FindByMakeID returns the make with registry id makeID.
func (r *MakeRepository) FindByMakeID(ctx context.Context, makeID int64) (*domain.Make, error) {
	var m domain.Make
	err := r.db.WithContext(ctx).First(&m, "make_id = ?", makeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("make %d: %w", makeID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAll returns one page ordered by make_id. One extra row is read to
// decide hasNextPage.
func (r *MakeRepository) FindAll(ctx context.Context, req pagination.PageRequest) (pagination.Connection[domain.Make], error) {
	q := r.db.WithContext(ctx).Model(&domain.Make{}).Order("make_id ASC").Limit(req.First + 1)
	if req.HasAfter {
		q = q.Where("make_id > ?", req.After)
	}

	var rows []domain.Make
	if err := q.Find(&rows).Error; err != nil {
		return pagination.Connection[domain.Make]{}, err
	}

	total, err := r.Count(ctx)
	if err != nil {
		return pagination.Connection[domain.Make]{}, err
	}

	return pagination.BuildConnection(req, rows, func(m domain.Make) int64 { return m.MakeID }, total), nil
}

// Count returns the number of makes in the catalog.
func (r *MakeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Make{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
