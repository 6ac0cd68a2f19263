// README: Shared identifier and value types used across modules.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a fresh opaque identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

type Point struct {
	Lat float64
	Lng float64
}
