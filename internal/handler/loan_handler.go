package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/middleware"
	"github.com/chamapesa/chamapesa-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoanHandler handles loan-related HTTP requests
type LoanHandler struct {
	loanService *service.LoanService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *service.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// RequestLoanRequest represents the loan request body
type RequestLoanRequest struct {
	ChamaID      string   `json:"chamaId"`
	Amount       string   `json:"amount"`
	Purpose      string   `json:"purpose"`
	InterestRate string   `json:"interestRate"`
	GuarantorIDs []string `json:"guarantorIds,omitempty"`
}

// UpdateLoanStatusRequest represents the approval decision body
type UpdateLoanStatusRequest struct {
	Status     string `json:"status"` // "approved" or "rejected"
	TermMonths int    `json:"termMonths,omitempty"`
}

// RecordPaymentRequest represents the payment body
type RecordPaymentRequest struct {
	Amount     string  `json:"amount"`
	Method     string  `json:"method"`
	Reference  string  `json:"reference,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	ReceiptKey *string `json:"receiptKey,omitempty"`
}

// InstallmentResponse represents one schedule entry in API responses
type InstallmentResponse struct {
	Amount      string  `json:"amount"`
	DueDate     string  `json:"dueDate"`
	Status      string  `json:"status"`
	AmountPaid  string  `json:"amountPaid"`
	PaymentDate *string `json:"paymentDate,omitempty"`
}

// PaymentResponse represents one payment history entry in API responses
type PaymentResponse struct {
	Amount     string  `json:"amount"`
	Date       string  `json:"date"`
	Method     string  `json:"method"`
	Reference  string  `json:"reference,omitempty"`
	RecordedBy string  `json:"recordedBy"`
	Notes      string  `json:"notes,omitempty"`
	ReceiptKey *string `json:"receiptKey,omitempty"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID             string                `json:"id"`
	ChamaID        string                `json:"chamaId"`
	BorrowerID     string                `json:"borrowerId"`
	GuarantorIDs   []string              `json:"guarantorIds,omitempty"`
	Principal      string                `json:"principal"`
	Purpose        string                `json:"purpose"`
	InterestRate   string                `json:"interestRate"`
	InterestAmount string                `json:"interestAmount"`
	TotalRepayment string                `json:"totalRepaymentAmount"`
	TotalPaid      string                `json:"totalPaid"`
	Balance        string                `json:"balance"`
	Status         string                `json:"status"`
	ApprovedBy     *string               `json:"approvedBy,omitempty"`
	ApprovalDate   *string               `json:"approvalDate,omitempty"`
	Schedule       []InstallmentResponse `json:"repaymentSchedule"`
	Payments       []PaymentResponse     `json:"paymentHistory"`
	ClosedAt       *string               `json:"closedAt,omitempty"`
	DefaultDate    *string               `json:"defaultDate,omitempty"`
	OverdueSince   *string               `json:"overdueSince,omitempty"`
	DaysOverdue    int                   `json:"daysOverdue"`
	CreatedAt      string                `json:"createdAt"`
	UpdatedAt      string                `json:"updatedAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toInstallmentResponse(inst domain.Installment) InstallmentResponse {
	return InstallmentResponse{
		Amount:      inst.Amount.StringFixed(2),
		DueDate:     formatTime(inst.DueDate),
		Status:      string(inst.Status),
		AmountPaid:  inst.AmountPaid.StringFixed(2),
		PaymentDate: formatTimePtr(inst.PaymentDate),
	}
}

func toPaymentResponse(p domain.PaymentRecord) PaymentResponse {
	return PaymentResponse{
		Amount:     p.Amount.StringFixed(2),
		Date:       formatTime(p.Date),
		Method:     p.Method,
		Reference:  p.Reference,
		RecordedBy: p.RecordedBy.Hex(),
		Notes:      p.Notes,
		ReceiptKey: p.ReceiptKey,
	}
}

func toLoanResponse(loan *domain.Loan) LoanResponse {
	resp := LoanResponse{
		ID:             loan.ID.Hex(),
		ChamaID:        loan.ChamaID.Hex(),
		BorrowerID:     loan.BorrowerID.Hex(),
		Principal:      loan.Principal.StringFixed(2),
		Purpose:        loan.Purpose,
		InterestRate:   loan.InterestRate.String(),
		InterestAmount: loan.InterestAmount.StringFixed(2),
		TotalRepayment: loan.TotalRepayment.StringFixed(2),
		TotalPaid:      loan.TotalPaid().StringFixed(2),
		Balance:        loan.Balance().StringFixed(2),
		Status:         string(loan.Status),
		ApprovalDate:   formatTimePtr(loan.ApprovalDate),
		ClosedAt:       formatTimePtr(loan.ClosedAt),
		DefaultDate:    formatTimePtr(loan.DefaultDate),
		OverdueSince:   formatTimePtr(loan.OverdueSince),
		DaysOverdue:    loan.DaysOverdue(time.Now().UTC()),
		CreatedAt:      formatTime(loan.CreatedAt),
		UpdatedAt:      formatTime(loan.UpdatedAt),
		Schedule:       make([]InstallmentResponse, 0, len(loan.Schedule)),
		Payments:       make([]PaymentResponse, 0, len(loan.Payments)),
	}
	if loan.ApprovedBy != nil {
		hex := loan.ApprovedBy.Hex()
		resp.ApprovedBy = &hex
	}
	for _, gid := range loan.GuarantorIDs {
		resp.GuarantorIDs = append(resp.GuarantorIDs, gid.Hex())
	}
	for _, inst := range loan.Schedule {
		resp.Schedule = append(resp.Schedule, toInstallmentResponse(inst))
	}
	for _, p := range loan.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	return resp
}

// loanError maps domain errors to problem responses
func loanError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrLoanNotFound), errors.Is(err, domain.ErrChamaNotFound):
		return NewNotFoundError(c, err.Error())
	case errors.Is(err, domain.ErrNotChamaMember):
		return NewForbiddenError(c, err.Error())
	case errors.Is(err, domain.ErrActiveLoanExists),
		errors.Is(err, domain.ErrLoanStateInvalid),
		errors.Is(err, domain.ErrVersionConflict):
		return NewConflictError(c, err.Error())
	case errors.Is(err, domain.ErrLoanAmountInvalid),
		errors.Is(err, domain.ErrLoanPurposeRequired),
		errors.Is(err, domain.ErrLoanTermInvalid),
		errors.Is(err, domain.ErrLoanRateInvalid),
		errors.Is(err, domain.ErrPaymentAmountInvalid):
		return NewValidationError(c, err.Error(), nil)
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("loan request failed")
		return NewInternalError(c, "An unexpected error occurred")
	}
}

func parseObjectID(c echo.Context, name, value string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, NewValidationError(c, "Invalid "+name, []ValidationError{
			{Field: name, Message: "Must be a valid object id"},
		})
	}
	return id, nil
}

// RequestLoan handles POST /api/v1/loans
func (h *LoanHandler) RequestLoan(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var req RequestLoanRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	chamaID, echoErr := parseObjectID(c, "chamaId", req.ChamaID)
	if echoErr != nil {
		return echoErr
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}
	rate := decimal.Zero
	if req.InterestRate != "" {
		rate, err = decimal.NewFromString(req.InterestRate)
		if err != nil {
			return NewValidationError(c, "Invalid interest rate", []ValidationError{
				{Field: "interestRate", Message: "Must be a valid decimal number"},
			})
		}
	}
	var guarantors []primitive.ObjectID
	for _, g := range req.GuarantorIDs {
		gid, echoErr := parseObjectID(c, "guarantorIds", g)
		if echoErr != nil {
			return echoErr
		}
		guarantors = append(guarantors, gid)
	}

	loan, err := h.loanService.RequestLoan(c.Request().Context(), service.RequestLoanInput{
		ChamaID:      chamaID,
		BorrowerID:   userID,
		Principal:    amount,
		Purpose:      req.Purpose,
		InterestRate: rate,
		GuarantorIDs: guarantors,
	})
	if err != nil {
		return loanError(c, err)
	}
	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// GetLoans handles GET /api/v1/loans. Without a chamaId query parameter
// it returns the caller's own loans; with one it returns the chama's.
func (h *LoanHandler) GetLoans(c echo.Context) error {
	userID := middleware.GetUserID(c)

	var (
		loans []*domain.Loan
		err   error
	)
	if chamaHex := c.QueryParam("chamaId"); chamaHex != "" {
		chamaID, echoErr := parseObjectID(c, "chamaId", chamaHex)
		if echoErr != nil {
			return echoErr
		}
		loans, err = h.loanService.ListChamaLoans(c.Request().Context(), chamaID, userID)
	} else {
		loans, err = h.loanService.ListBorrowerLoans(c.Request().Context(), userID)
	}
	if err != nil {
		return loanError(c, err)
	}

	resp := make([]LoanResponse, 0, len(loans))
	for _, loan := range loans {
		resp = append(resp, toLoanResponse(loan))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetLoan handles GET /api/v1/loans/:id
func (h *LoanHandler) GetLoan(c echo.Context) error {
	userID := middleware.GetUserID(c)
	loanID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), loanID, userID)
	if err != nil {
		return loanError(c, err)
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// GetSchedule handles GET /api/v1/loans/:id/schedule
func (h *LoanHandler) GetSchedule(c echo.Context) error {
	userID := middleware.GetUserID(c)
	loanID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), loanID, userID)
	if err != nil {
		return loanError(c, err)
	}

	resp := make([]InstallmentResponse, 0, len(loan.Schedule))
	for _, inst := range loan.Schedule {
		resp = append(resp, toInstallmentResponse(inst))
	}
	return c.JSON(http.StatusOK, resp)
}

// GetPayments handles GET /api/v1/loans/:id/payments
func (h *LoanHandler) GetPayments(c echo.Context) error {
	userID := middleware.GetUserID(c)
	loanID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	loan, err := h.loanService.GetLoan(c.Request().Context(), loanID, userID)
	if err != nil {
		return loanError(c, err)
	}

	resp := make([]PaymentResponse, 0, len(loan.Payments))
	for _, p := range loan.Payments {
		resp = append(resp, toPaymentResponse(p))
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateStatus handles PUT /api/v1/loans/:id/status
func (h *LoanHandler) UpdateStatus(c echo.Context) error {
	userID := middleware.GetUserID(c)
	loanID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	var req UpdateLoanStatusRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var (
		loan *domain.Loan
		err  error
	)
	switch req.Status {
	case string(domain.LoanStatusApproved):
		loan, err = h.loanService.ApproveLoan(c.Request().Context(), loanID, userID, req.TermMonths)
	case string(domain.LoanStatusRejected):
		loan, err = h.loanService.RejectLoan(c.Request().Context(), loanID, userID)
	default:
		return NewValidationError(c, "Invalid status", []ValidationError{
			{Field: "status", Message: "Must be \"approved\" or \"rejected\""},
		})
	}
	if err != nil {
		return loanError(c, err)
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}

// RecordPayment handles POST /api/v1/loans/:id/payments
func (h *LoanHandler) RecordPayment(c echo.Context) error {
	userID := middleware.GetUserID(c)
	loanID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	var req RecordPaymentRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	loan, err := h.loanService.RecordPayment(c.Request().Context(), service.RecordPaymentInput{
		LoanID:     loanID,
		Amount:     amount,
		Method:     req.Method,
		Reference:  req.Reference,
		RecordedBy: userID,
		Notes:      req.Notes,
		ReceiptKey: req.ReceiptKey,
	})
	if err != nil {
		return loanError(c, err)
	}
	return c.JSON(http.StatusCreated, toLoanResponse(loan))
}

// MarkDefaulted handles POST /api/v1/loans/:id/default
func (h *LoanHandler) MarkDefaulted(c echo.Context) error {
	userID := middleware.GetUserID(c)
	loanID, echoErr := parseObjectID(c, "id", c.Param("id"))
	if echoErr != nil {
		return echoErr
	}

	loan, err := h.loanService.MarkDefaulted(c.Request().Context(), loanID, userID)
	if err != nil {
		return loanError(c, err)
	}
	return c.JSON(http.StatusOK, toLoanResponse(loan))
}
