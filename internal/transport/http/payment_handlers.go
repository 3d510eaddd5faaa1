package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sparkleclean/realtime/internal/store"
)

// PaymentHandlers serves payment history and payout reads.
type PaymentHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewPaymentHandlers creates a new payment handlers instance.
func NewPaymentHandlers(st store.Store, logger *zerolog.Logger) *PaymentHandlers {
	return &PaymentHandlers{
		store: st,
		log:   logger,
	}
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID          int64  `json:"id"`
	JobID       int64  `json:"job_id"`
	ClientID    int64  `json:"client_id"`
	CleanerID   int64  `json:"cleaner_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// EarningsResponse represents total cleaner earnings.
type EarningsResponse struct {
	TotalCents int64 `json:"total_cents"`
}

// History lists payments the caller is a party to.
// GET /api/payments/history
func (h *PaymentHandlers) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	payments, err := h.store.ListPaymentsForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list payments")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		response = append(response, PaymentResponse{
			ID:          p.ID,
			JobID:       p.JobID,
			ClientID:    p.ClientID,
			CleanerID:   p.CleanerID,
			AmountCents: p.AmountCents,
			Status:      string(p.Status),
			CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, response)
}

// Earnings totals completed payouts for the calling cleaner.
// GET /api/payments/payouts/earnings
func (h *PaymentHandlers) Earnings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	if currentRole(c) != string(store.RoleCleaner) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "earnings are only available to cleaners"})
		return
	}

	total, err := h.store.SumEarnings(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to sum earnings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, EarningsResponse{TotalCents: total})
}
