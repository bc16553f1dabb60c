// Package pagination encodes opaque catalog cursors and validates page requests.
package pagination

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/timmy/vehicle-catalog/internal/domain"
)

// ErrInvalidCursor is returned when a cursor cannot be decoded.
// It matches domain.ErrValidation.
var ErrInvalidCursor = fmt.Errorf("invalid cursor: %w", domain.ErrValidation)

// cursorToken is the JSON body of a cursor. Only the natural sort key is
// encoded, never the internal id, so cursors survive re-ingestion.
type cursorToken struct {
	Key *int64 `json:"k"`
}

// Encode returns the cursor for natural key.
func Encode(key int64) string {
	b, _ := json.Marshal(cursorToken{Key: &key})
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode returns the natural key encoded in cursor.
func Decode(cursor string) (int64, error) {
	if cursor == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidCursor)
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var tok cursorToken
	if err := dec.Decode(&tok); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if dec.More() {
		return 0, fmt.Errorf("%w: trailing data", ErrInvalidCursor)
	}
	if tok.Key == nil {
		return 0, fmt.Errorf("%w: missing key", ErrInvalidCursor)
	}
	if *tok.Key < 0 {
		return 0, fmt.Errorf("%w: negative key", ErrInvalidCursor)
	}
	return *tok.Key, nil
}

// IsInvalidCursor reports whether err came from Decode.
func IsInvalidCursor(err error) bool {
	return errors.Is(err, ErrInvalidCursor)
}
