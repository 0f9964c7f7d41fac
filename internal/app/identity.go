package app

import "github.com/google/uuid"

// IDGenerator issues transaction identifiers.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues random (version 4) UUID strings.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string {
	return uuid.NewString()
}
