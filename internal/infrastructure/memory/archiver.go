package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archiver stores receipt documents in memory, content-addressed by order ID.
// Re-archiving the same order overwrites deterministically.
type Archiver struct {
	mu   sync.Mutex
	docs map[string][]byte
	fail error
}

func NewArchiver() *Archiver {
	return &Archiver{
		docs: make(map[string][]byte),
	}
}

// Fail makes every subsequent Archive return err; nil restores writes.
func (a *Archiver) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = err
}

func (a *Archiver) Archive(ctx context.Context, orderID string, doc []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fail != nil {
		return "", a.fail
	}
	a.docs[orderID] = append([]byte(nil), doc...)
	return fmt.Sprintf("mem://receipts/%s.json", orderID), nil
}

// Document returns the stored receipt for an order, if any.
func (a *Archiver) Document(orderID string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, ok := a.docs[orderID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), doc...), true
}
