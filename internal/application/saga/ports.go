package saga

import "context"

// Archiver writes the receipt document content-addressed by order ID and
// returns a locator for it. Re-archiving the same order overwrites
// deterministically, so retries are unconditionally safe.
type Archiver interface {
	Archive(ctx context.Context, orderID string, doc []byte) (string, error)
}

type IDGenerator interface {
	NewID() string
}
