package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSArchiver writes receipt documents to the local filesystem under
// <root>/receipts/<orderID>.json. The write is content-addressed by order ID:
// the same order always lands on the same path, so re-archiving overwrites
// deterministically and retries are safe.
type FSArchiver struct {
	root string
}

func NewFSArchiver(root string) (*FSArchiver, error) {
	if root == "" {
		return nil, fmt.Errorf("blob: root directory is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "receipts"), 0o755); err != nil {
		return nil, fmt.Errorf("blob: prepare receipts dir: %w", err)
	}
	return &FSArchiver{root: root}, nil
}

func (a *FSArchiver) Archive(ctx context.Context, orderID string, doc []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if orderID == "" {
		return "", fmt.Errorf("blob: order id is required")
	}

	path := filepath.Join(a.root, "receipts", orderID+".json")

	// Write via a temp file and rename so a crash never leaves a torn receipt.
	tmp, err := os.CreateTemp(filepath.Dir(path), orderID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("blob: create temp: %w", err)
	}
	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: write receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: publish receipt: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs, nil
}
