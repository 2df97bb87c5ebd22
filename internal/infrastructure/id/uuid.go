package id

import "github.com/google/uuid"

// UUIDGenerator issues collision-resistant order IDs. Order IDs double as
// idempotency keys, so the ID space has to be large enough that reuse never
// happens in practice.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}
