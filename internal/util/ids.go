package util

import "github.com/google/uuid"

// NewID returns a fresh execution identifier.
func NewID() string {
	return uuid.NewString()
}
