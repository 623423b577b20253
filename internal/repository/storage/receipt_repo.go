package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

// ReceiptRepository defines the interface for payment receipt storage
type ReceiptRepository interface {
	Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) (string, error)
	Delete(ctx context.Context, objectPath string) error
	GeneratePresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
}

// ReceiptObjectPath builds the object key for a stored receipt image.
// Keys are grouped by loan so a loan's receipts can be listed with a
// single prefix scan.
func ReceiptObjectPath(loanID, paymentReference, variant string) string {
	filename := fmt.Sprintf("%s.jpg", variant)
	return path.Join("receipts", loanID, paymentReference, filename)
}
