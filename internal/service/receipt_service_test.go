package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/chamapesa/chamapesa-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestStoreReceiptUploadsVariants(t *testing.T) {
	repo := testutil.NewMockReceiptRepository()
	svc := NewReceiptService(repo)
	loanID := primitive.NewObjectID()

	meta, err := svc.StoreReceipt(context.Background(), loanID, "QX12345", makeJPEG(t, 1200, 900), "receipt.jpg")
	require.NoError(t, err)

	assert.Contains(t, meta.Key, loanID.Hex())
	assert.Contains(t, meta.Key, "original.jpg")
	assert.Contains(t, meta.DisplayKey, "display.jpg")
	assert.Contains(t, meta.ThumbnailKey, "thumb.jpg")
	assert.Len(t, repo.Objects, 3)

	// Resized variants must be smaller than the original upload
	assert.Less(t, len(repo.Objects[meta.ThumbnailKey]), len(repo.Objects[meta.Key]))
}

func TestStoreReceiptSmallImageNotUpscaled(t *testing.T) {
	repo := testutil.NewMockReceiptRepository()
	svc := NewReceiptService(repo)

	// 100px wide: below both resize thresholds, stored as-is three times
	meta, err := svc.StoreReceipt(context.Background(), primitive.NewObjectID(), "ref", makeJPEG(t, 100, 100), "r.jpg")
	require.NoError(t, err)
	assert.NotNil(t, meta)
	assert.Len(t, repo.Objects, 3)
}

func TestStoreReceiptRejectsGarbageData(t *testing.T) {
	svc := NewReceiptService(testutil.NewMockReceiptRepository())

	_, err := svc.StoreReceipt(context.Background(), primitive.NewObjectID(), "ref", []byte("not an image"), "r.jpg")
	assert.ErrorIs(t, err, ErrReceiptInvalidData)
}

func TestStoreReceiptRejectsTooSmall(t *testing.T) {
	svc := NewReceiptService(testutil.NewMockReceiptRepository())

	_, err := svc.StoreReceipt(context.Background(), primitive.NewObjectID(), "ref", makeJPEG(t, 20, 20), "r.jpg")
	assert.ErrorIs(t, err, ErrReceiptTooSmall)
}

func TestStoreReceiptRejectsBadExtension(t *testing.T) {
	svc := NewReceiptService(testutil.NewMockReceiptRepository())

	_, err := svc.StoreReceipt(context.Background(), primitive.NewObjectID(), "ref", makeJPEG(t, 100, 100), "receipt.pdf")
	assert.ErrorIs(t, err, ErrReceiptBadFormat)
}

func TestStoreReceiptRejectsOversized(t *testing.T) {
	svc := NewReceiptService(testutil.NewMockReceiptRepository())

	data := make([]byte, MaxReceiptSize+1)
	_, err := svc.StoreReceipt(context.Background(), primitive.NewObjectID(), "ref", data, "r.jpg")
	assert.ErrorIs(t, err, ErrReceiptTooLarge)
}

func TestStoreReceiptDisabled(t *testing.T) {
	svc := NewReceiptService(nil)

	_, err := svc.StoreReceipt(context.Background(), primitive.NewObjectID(), "ref", makeJPEG(t, 100, 100), "r.jpg")
	assert.ErrorIs(t, err, ErrReceiptsUnavailable)
	assert.False(t, svc.IsEnabled())
}

func TestReceiptURL(t *testing.T) {
	repo := testutil.NewMockReceiptRepository()
	svc := NewReceiptService(repo)

	url, err := svc.ReceiptURL(context.Background(), "receipts/x/ref/original.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://receipts.test/receipts/x/ref/original.jpg", url)
}
