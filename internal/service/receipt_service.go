package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"time"

	"github.com/chamapesa/chamapesa-backend/internal/repository/storage"
	"github.com/disintegration/imaging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxReceiptSize   = 5 * 1024 * 1024 // 5MB
	MinReceiptWidth  = 50
	MinReceiptHeight = 50
	ThumbnailWidth   = 200
	DisplayWidth     = 800
	JPEGQuality      = 85

	// ReceiptURLTTL is how long presigned receipt links stay valid
	ReceiptURLTTL = 15 * time.Minute
)

var (
	ErrReceiptTooLarge     = errors.New("file too large. Maximum size is 5MB")
	ErrReceiptBadFormat    = errors.New("invalid format. Supported: JPEG, PNG, WebP")
	ErrReceiptTooSmall     = errors.New("image too small. Minimum 50x50 pixels")
	ErrReceiptInvalidData  = errors.New("invalid image data")
	ErrReceiptsUnavailable = errors.New("receipt storage not configured")
)

// allowedReceiptExtensions maps extensions to content types
var allowedReceiptExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ReceiptMetadata contains the stored object keys of a receipt's variants
type ReceiptMetadata struct {
	Key          string `json:"key"`
	ThumbnailKey string `json:"thumbnailKey"`
	DisplayKey   string `json:"displayKey"`
}

// ReceiptService validates, resizes and stores payment receipt images.
// Receipts are evidence attachments; losing one never affects the
// ledger entry it documents.
type ReceiptService struct {
	storage storage.ReceiptRepository
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(storage storage.ReceiptRepository) *ReceiptService {
	return &ReceiptService{storage: storage}
}

// IsEnabled indicates whether receipt uploads are supported
func (s *ReceiptService) IsEnabled() bool {
	return s != nil && s.storage != nil
}

// validateAndDecode checks size, extension and dimensions and returns
// the decoded image
func (s *ReceiptService) validateAndDecode(data []byte, filename string) (image.Image, error) {
	if len(data) > MaxReceiptSize {
		return nil, ErrReceiptTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedReceiptExtensions[ext]; !ok {
		return nil, ErrReceiptBadFormat
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrReceiptInvalidData
	}

	bounds := img.Bounds()
	if bounds.Dx() < MinReceiptWidth || bounds.Dy() < MinReceiptHeight {
		return nil, ErrReceiptTooSmall
	}

	return img, nil
}

// StoreReceipt processes a receipt image and uploads the original plus
// resized display and thumbnail variants. It returns the object keys;
// presigned URLs are generated on read.
func (s *ReceiptService) StoreReceipt(ctx context.Context, loanID primitive.ObjectID, paymentReference string, data []byte, filename string) (*ReceiptMetadata, error) {
	if !s.IsEnabled() {
		return nil, ErrReceiptsUnavailable
	}

	img, err := s.validateAndDecode(data, filename)
	if err != nil {
		return nil, err
	}

	variants := []struct {
		name     string
		maxWidth int
	}{
		{"thumb", ThumbnailWidth},
		{"display", DisplayWidth},
		{"original", 0}, // keep original size
	}

	keys := make(map[string]string)
	for _, variant := range variants {
		var processed image.Image
		if variant.maxWidth > 0 && img.Bounds().Dx() > variant.maxWidth {
			processed = imaging.Resize(img, variant.maxWidth, 0, imaging.Lanczos)
		} else {
			processed = img
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode receipt: %w", err)
		}

		objectPath := storage.ReceiptObjectPath(loanID.Hex(), paymentReference, variant.name)
		key, err := s.storage.Upload(ctx, objectPath, bytes.NewReader(buf.Bytes()), "image/jpeg", int64(buf.Len()))
		if err != nil {
			s.cleanup(ctx, keys)
			return nil, fmt.Errorf("failed to upload %s variant: %w", variant.name, err)
		}
		keys[variant.name] = key
	}

	return &ReceiptMetadata{
		Key:          keys["original"],
		ThumbnailKey: keys["thumb"],
		DisplayKey:   keys["display"],
	}, nil
}

// cleanup removes variants uploaded before a failed upload, best effort
func (s *ReceiptService) cleanup(ctx context.Context, keys map[string]string) {
	for _, key := range keys {
		_ = s.storage.Delete(ctx, key)
	}
}

// ReceiptURL generates a presigned link for a stored receipt key
func (s *ReceiptService) ReceiptURL(ctx context.Context, key string) (string, error) {
	if !s.IsEnabled() {
		return "", ErrReceiptsUnavailable
	}
	return s.storage.GeneratePresignedURL(ctx, key, ReceiptURLTTL)
}
