package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/chamapesa/chamapesa-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ReceiptHandler handles payment receipt uploads and access
type ReceiptHandler struct {
	receiptService *service.ReceiptService
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(receiptService *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService}
}

// ReceiptUploadResponse contains the stored keys and a display URL
type ReceiptUploadResponse struct {
	Key          string `json:"key"`
	ThumbnailKey string `json:"thumbnailKey"`
	DisplayKey   string `json:"displayKey"`
	DisplayURL   string `json:"displayUrl"`
}

func receiptError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrReceiptTooLarge),
		errors.Is(err, service.ErrReceiptBadFormat),
		errors.Is(err, service.ErrReceiptTooSmall),
		errors.Is(err, service.ErrReceiptInvalidData):
		return NewValidationError(c, err.Error(), nil)
	case errors.Is(err, service.ErrReceiptsUnavailable):
		return c.JSON(http.StatusServiceUnavailable, ProblemDetails{
			Type:     ErrorTypeInternal,
			Title:    "Service Unavailable",
			Status:   http.StatusServiceUnavailable,
			Detail:   err.Error(),
			Instance: c.Request().URL.Path,
		})
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("receipt request failed")
		return NewInternalError(c, "An unexpected error occurred")
	}
}

// Upload handles POST /api/v1/loans/:id/receipts. The multipart form
// carries the image under "file" and the payment reference under
// "reference". The returned key is attached to a payment on recording.
func (h *ReceiptHandler) Upload(c echo.Context) error {
	loanID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	reference := c.FormValue("reference")
	if reference == "" {
		return NewValidationError(c, "Missing payment reference", []ValidationError{
			{Field: "reference", Message: "Required"},
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewValidationError(c, "Missing receipt file", []ValidationError{
			{Field: "file", Message: "Required"},
		})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return NewInternalError(c, "Failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxReceiptSize+1))
	if err != nil {
		return NewInternalError(c, "Failed to read uploaded file")
	}

	meta, err := h.receiptService.StoreReceipt(c.Request().Context(), loanID, reference, data, fileHeader.Filename)
	if err != nil {
		return receiptError(c, err)
	}

	displayURL, err := h.receiptService.ReceiptURL(c.Request().Context(), meta.DisplayKey)
	if err != nil {
		return receiptError(c, err)
	}

	return c.JSON(http.StatusCreated, ReceiptUploadResponse{
		Key:          meta.Key,
		ThumbnailKey: meta.ThumbnailKey,
		DisplayKey:   meta.DisplayKey,
		DisplayURL:   displayURL,
	})
}

// GetURL handles GET /api/v1/receipts/url?key=... and returns a
// short-lived presigned link for a stored receipt.
func (h *ReceiptHandler) GetURL(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return NewValidationError(c, "Missing key", []ValidationError{
			{Field: "key", Message: "Required"},
		})
	}

	url, err := h.receiptService.ReceiptURL(c.Request().Context(), key)
	if err != nil {
		return receiptError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
