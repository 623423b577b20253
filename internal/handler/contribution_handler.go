package handler

import (
	"errors"
	"net/http"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/middleware"
	"github.com/chamapesa/chamapesa-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ContributionHandler handles contribution-related HTTP requests
type ContributionHandler struct {
	contributionService *service.ContributionService
}

// NewContributionHandler creates a new ContributionHandler
func NewContributionHandler(contributionService *service.ContributionService) *ContributionHandler {
	return &ContributionHandler{contributionService: contributionService}
}

// RecordContributionRequest represents the contribution body
type RecordContributionRequest struct {
	ChamaID   string `json:"chamaId"`
	MemberID  string `json:"memberId"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference,omitempty"`
}

// ContributionResponse represents a contribution in API responses
type ContributionResponse struct {
	ID         string `json:"id"`
	ChamaID    string `json:"chamaId"`
	MemberID   string `json:"memberId"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
	Reference  string `json:"reference,omitempty"`
	RecordedBy string `json:"recordedBy"`
	Date       string `json:"date"`
}

func toContributionResponse(c *domain.Contribution) ContributionResponse {
	return ContributionResponse{
		ID:         c.ID.Hex(),
		ChamaID:    c.ChamaID.Hex(),
		MemberID:   c.MemberID.Hex(),
		Amount:     c.Amount.StringFixed(2),
		Method:     c.Method,
		Reference:  c.Reference,
		RecordedBy: c.RecordedBy.Hex(),
		Date:       formatTime(c.Date),
	}
}

func contributionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrChamaNotFound), errors.Is(err, domain.ErrContributionNotFound):
		return NewNotFoundError(c, err.Error())
	case errors.Is(err, domain.ErrNotChamaMember):
		return NewForbiddenError(c, err.Error())
	case errors.Is(err, domain.ErrContributionAmountInvalid):
		return NewValidationError(c, err.Error(), nil)
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("contribution request failed")
		return NewInternalError(c, "An unexpected error occurred")
	}
}

// RecordContribution handles POST /api/v1/contributions
func (h *ContributionHandler) RecordContribution(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var req RecordContributionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	chamaID, echoErr := parseObjectID(c, "chamaId", req.ChamaID)
	if echoErr != nil {
		return echoErr
	}
	memberID, echoErr := parseObjectID(c, "memberId", req.MemberID)
	if echoErr != nil {
		return echoErr
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	contribution, err := h.contributionService.RecordContribution(c.Request().Context(), service.RecordContributionInput{
		ChamaID:    chamaID,
		MemberID:   memberID,
		Amount:     amount,
		Method:     req.Method,
		Reference:  req.Reference,
		RecordedBy: userID,
	})
	if err != nil {
		return contributionError(c, err)
	}
	return c.JSON(http.StatusCreated, toContributionResponse(contribution))
}

// GetChamaContributions handles GET /api/v1/chamas/:id/contributions
func (h *ContributionHandler) GetChamaContributions(c echo.Context) error {
	userID := middleware.GetUserID(c)
	chamaID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	contributions, err := h.contributionService.ListChamaContributions(c.Request().Context(), chamaID, userID)
	if err != nil {
		return contributionError(c, err)
	}

	resp := make([]ContributionResponse, 0, len(contributions))
	for _, contribution := range contributions {
		resp = append(resp, toContributionResponse(contribution))
	}
	return c.JSON(http.StatusOK, resp)
}

// MemberSummaryResponse represents a member's standing in API responses
type MemberSummaryResponse struct {
	MemberID           string                 `json:"memberId"`
	TotalContributions string                 `json:"totalContributions"`
	Contributions      []ContributionResponse `json:"contributions"`
}

// GetMemberSummary handles GET /api/v1/chamas/:id/members/:memberId/contributions
func (h *ContributionHandler) GetMemberSummary(c echo.Context) error {
	userID := middleware.GetUserID(c)
	chamaID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}
	memberID, echoErr := parseObjectID(c, "memberId", c.Param("memberId"))
	if echoErr != nil {
		return echoErr
	}

	summary, err := h.contributionService.MemberContributionSummary(c.Request().Context(), chamaID, memberID, userID)
	if err != nil {
		return contributionError(c, err)
	}

	resp := MemberSummaryResponse{
		MemberID:           summary.MemberID.Hex(),
		TotalContributions: summary.TotalContributions.StringFixed(2),
		Contributions:      make([]ContributionResponse, 0, len(summary.Contributions)),
	}
	for _, contribution := range summary.Contributions {
		resp.Contributions = append(resp.Contributions, toContributionResponse(contribution))
	}
	return c.JSON(http.StatusOK, resp)
}
