package utils

import "github.com/google/uuid"

// NewID returns a unique identifier for connections and database rows.
func NewID() string {
	return uuid.NewString()
}
