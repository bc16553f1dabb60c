package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/timmy/vehicle-catalog/internal/domain"
	"github.com/timmy/vehicle-catalog/internal/source"
)

// FetchedMake is an index entry paired with its successfully fetched detail.
type FetchedMake struct {
	Make  source.MakeRecord
	Types []source.VehicleTypeRecord
}

// TransformReject is an upstream record the transformer refused.
type TransformReject struct {
	Key string
	Err error
}

// Transformer normalizes upstream records into Make aggregates.
type Transformer struct {
	ids domain.IDGenerator
}

// NewTransformer creates a Transformer that assigns ids from ids.
func NewTransformer(ids domain.IDGenerator) *Transformer {
	return &Transformer{ids: ids}
}

// Transform trims names and deduplicates makes by MakeID and vehicle types by
// TypeID, first occurrence winning. Records with a negative id or an empty
// name are rejected with an error matching domain.ErrTransformation.
func (t *Transformer) Transform(fetched []FetchedMake, now time.Time) ([]*domain.Make, []TransformReject) {
	makes := make([]*domain.Make, 0, len(fetched))
	var rejects []TransformReject
	seen := make(map[int64]bool, len(fetched))

	for _, f := range fetched {
		key := entityKey(f.Make.MakeID)
		name := strings.TrimSpace(f.Make.Name)

		switch {
		case f.Make.MakeID < 0:
			rejects = append(rejects, TransformReject{Key: key, Err: fmt.Errorf("%w: negative make id %d", domain.ErrTransformation, f.Make.MakeID)})
			continue
		case name == "":
			rejects = append(rejects, TransformReject{Key: key, Err: fmt.Errorf("%w: make %d has an empty name", domain.ErrTransformation, f.Make.MakeID)})
			continue
		case seen[f.Make.MakeID]:
			continue
		}
		seen[f.Make.MakeID] = true

		types := make([]domain.VehicleType, 0, len(f.Types))
		for _, vt := range f.Types {
			typeName := strings.TrimSpace(vt.Name)
			if typeName == "" {
				continue
			}
			types = append(types, domain.VehicleType{TypeID: vt.TypeID, Name: typeName})
		}

		makes = append(makes, domain.NewMake(t.ids.NewID(), f.Make.MakeID, name, types, now))
	}

	return makes, rejects
}
