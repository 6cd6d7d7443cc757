package domain

import "github.com/google/uuid"

// NewID returns a time-sortable UUIDv7 string. Store layers rely on the
// ordering to keep insertion order stable.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
