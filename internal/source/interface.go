package source

import "context"

// MakeRecord is one entry of the registry's make index.
type MakeRecord struct {
	MakeID int64  `json:"makeId"`
	Name   string `json:"name"`
}

// VehicleTypeRecord is one vehicle type the registry lists for a make.
type VehicleTypeRecord struct {
	TypeID int64  `json:"typeId"`
	Name   string `json:"name"`
}

// Source defines the interface for the external vehicle registry.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// ListMakes fetches the full make index in a single call.
	ListMakes(ctx context.Context) ([]MakeRecord, error)

	// FetchVehicleTypes fetches the vehicle types registered for one make.
	// Failures are *Error values classified by Retryable.
	FetchVehicleTypes(ctx context.Context, makeID int64) ([]VehicleTypeRecord, error)
}
