package shared

import "github.com/google/uuid"

// NewUUID generates a new UUIDv7 (time-ordered).
// Falls back to UUIDv4 if v7 generation fails.
func NewUUID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// ParseUUID parses a string into a UUID.
func ParseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, NewFieldError(ErrInvalidInput, "id", "invalid UUID format")
	}
	return id, nil
}

// MustParseUUID parses a string into a UUID and panics if invalid.
// Use only for compile-time constants or in tests.
func MustParseUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

// IsNilUUID checks if a UUID is nil (all zeros).
func IsNilUUID(id uuid.UUID) bool {
	return id == uuid.Nil
}

// ValidateUUID validates that a UUID is not nil.
func ValidateUUID(id uuid.UUID, fieldName string) error {
	if IsNilUUID(id) {
		return NewFieldError(ErrInvalidInput, fieldName, fieldName+" is required")
	}
	return nil
}
