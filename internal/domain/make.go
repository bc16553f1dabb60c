package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// VehicleType is a vehicle type owned by a Make.
type VehicleType struct {
	TypeID int64  `json:"typeId"`
	Name   string `json:"name"`
}

// VehicleTypeList stores a make's vehicle types as a JSON column.
type VehicleTypeList []VehicleType

// Value implements the driver.Valuer interface for database serialization.
func (l VehicleTypeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (l *VehicleTypeList) Scan(value interface{}) error {
	if value == nil {
		*l = VehicleTypeList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan VehicleTypeList")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, l)
}

// Make is a vehicle make and the vehicle types it owns.
// MakeID is the registry-assigned natural key; ID is internal and may change
// across re-ingestion.
type Make struct {
	ID           string          `gorm:"type:text;primaryKey" json:"id"`
	MakeID       int64           `gorm:"not null;uniqueIndex:idx_makes_make_id" json:"makeId"`
	Name         string          `gorm:"type:text;not null" json:"name"`
	VehicleTypes VehicleTypeList `gorm:"type:text" json:"vehicleTypes"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// TableName returns the database table name for Make.
func (Make) TableName() string {
	return "makes"
}

// NewMake builds a Make with deduplicated vehicle types.
func NewMake(id string, makeID int64, name string, types []VehicleType, now time.Time) *Make {
	m := &Make{
		ID:        id,
		MakeID:    makeID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.VehicleTypes = dedupeVehicleTypes(types)
	return m
}

// ReplaceVehicleTypes swaps the owned type list and bumps UpdatedAt when it changed.
// Returns true when the list changed.
func (m *Make) ReplaceVehicleTypes(types []VehicleType, now time.Time) bool {
	next := dedupeVehicleTypes(types)
	if equalVehicleTypes(m.VehicleTypes, next) {
		return false
	}
	m.VehicleTypes = next
	m.UpdatedAt = now
	return true
}

// dedupeVehicleTypes keeps the first occurrence of each TypeID.
func dedupeVehicleTypes(types []VehicleType) VehicleTypeList {
	seen := make(map[int64]bool, len(types))
	out := make(VehicleTypeList, 0, len(types))
	for _, t := range types {
		if seen[t.TypeID] {
			continue
		}
		seen[t.TypeID] = true
		out = append(out, t)
	}
	return out
}

func equalVehicleTypes(a, b VehicleTypeList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
