package core

import "github.com/google/uuid"

// NewID generates a new unique identifier used for runs and generated
// completion ids.
func NewID() string { return uuid.NewString() }
