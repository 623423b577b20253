package handler

import (
	"net/http"

	"github.com/chamapesa/chamapesa-backend/internal/domain"
	"github.com/chamapesa/chamapesa-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(
	e *echo.Echo,
	auth *middleware.JWTAuth,
	rateLimiter *middleware.RateLimiter,
	loanHandler *LoanHandler,
	contributionHandler *ContributionHandler,
	receiptHandler *ReceiptHandler,
	notificationHandler *NotificationHandler,
	wsHandler *WebSocketHandler,
) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Websocket endpoint authenticates via query token, not headers
	e.GET("/ws", wsHandler.HandleWS)

	// API version 1 (protected)
	api := e.Group("/api/v1")
	api.Use(auth.Middleware())
	api.Use(middleware.RateLimitMiddleware(rateLimiter))

	decide := middleware.RequireRole(
		string(domain.MemberRoleAdmin),
		string(domain.MemberRoleTreasurer),
	)

	// Loan routes
	loans := api.Group("/loans")
	loans.POST("", loanHandler.RequestLoan)
	loans.GET("", loanHandler.GetLoans)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.GET("/:id/schedule", loanHandler.GetSchedule)
	loans.GET("/:id/payments", loanHandler.GetPayments)
	loans.PUT("/:id/status", loanHandler.UpdateStatus, decide)
	loans.POST("/:id/payments", loanHandler.RecordPayment, decide)
	loans.POST("/:id/default", loanHandler.MarkDefaulted, decide)
	loans.POST("/:id/receipts", receiptHandler.Upload, decide)

	// Contribution routes
	contributions := api.Group("/contributions")
	contributions.POST("", contributionHandler.RecordContribution, decide)

	chamas := api.Group("/chamas")
	chamas.GET("/:id/contributions", contributionHandler.GetChamaContributions)
	chamas.GET("/:id/members/:memberId/contributions", contributionHandler.GetMemberSummary)

	// Receipt access
	api.GET("/receipts/url", receiptHandler.GetURL)

	// Notification inbox
	api.GET("/notifications", notificationHandler.List)
}
