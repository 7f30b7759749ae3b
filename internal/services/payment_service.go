package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"spendsmart/internal/core"
)

// Payment lifecycle states.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailed  = "failed"
)

// PaymentStorage persists simulated UPI payment intents.
type PaymentStorage interface {
	CreatePaymentRequest(ctx context.Context, p core.PaymentRequest) error
	GetPaymentRequest(ctx context.Context, id string) (core.PaymentRequest, error)
	UpdatePaymentStatus(ctx context.Context, id, status string, completedAt time.Time) error
}

// PaymentService creates UPI payment intents and settles them. A
// successful settlement records a Transfer expense so the money shows up
// in the user's ledger.
type PaymentService struct {
	storage      PaymentStorage
	transactions *TransactionService
}

func NewPaymentService(storage PaymentStorage, transactions *TransactionService) *PaymentService {
	return &PaymentService{
		storage:      storage,
		transactions: transactions,
	}
}

// CreateUPIIntent stores a pending payment and returns the deep link the
// client hands to the UPI app.
func (s *PaymentService) CreateUPIIntent(ctx context.Context, p core.PaymentRequest) (core.PaymentRequest, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return core.PaymentRequest{}, core.ErrMissingUser
	}
	if !p.Amount.IsPositive() {
		return core.PaymentRequest{}, core.ErrInvalidAmount
	}
	if strings.TrimSpace(p.PayeeVPA) == "" {
		return core.PaymentRequest{}, fmt.Errorf("missing payee VPA")
	}

	// Short ids read better in UPI transaction references.
	p.ID = core.NewID()[:8]
	p.Status = PaymentPending
	p.CreatedAt = time.Now().UTC()

	params := url.Values{}
	params.Set("pa", p.PayeeVPA)
	params.Set("pn", p.PayeeName)
	params.Set("am", p.Amount.StringFixed(2))
	params.Set("cu", "INR")
	params.Set("tn", p.Description)
	params.Set("tid", p.ID)
	p.UPIURL = "upi://pay?" + params.Encode()

	if err := s.storage.CreatePaymentRequest(ctx, p); err != nil {
		return core.PaymentRequest{}, fmt.Errorf("create payment request: %w", err)
	}

	slog.InfoContext(ctx, "Created UPI payment intent",
		"payment_id", p.ID,
		"user_id", p.UserID,
		"payee_vpa", p.PayeeVPA)
	return p, nil
}

// Settle applies a callback status to a payment. Success records a
// Transfer expense; the transaction failing to save does not undo the
// status change.
func (s *PaymentService) Settle(ctx context.Context, id, status string) (core.PaymentRequest, error) {
	if status != PaymentSuccess && status != PaymentFailed {
		return core.PaymentRequest{}, fmt.Errorf("invalid payment status %q", status)
	}

	if err := s.storage.UpdatePaymentStatus(ctx, id, status, time.Now().UTC()); err != nil {
		return core.PaymentRequest{}, fmt.Errorf("update payment status: %w", err)
	}

	p, err := s.storage.GetPaymentRequest(ctx, id)
	if err != nil {
		return core.PaymentRequest{}, fmt.Errorf("get payment request: %w", err)
	}

	if status == PaymentSuccess {
		description := p.Description
		if description == "" {
			description = fmt.Sprintf("UPI payment to %s", p.PayeeName)
		}
		_, err := s.transactions.Create(ctx, core.Transaction{
			UserID:        p.UserID,
			Amount:        p.Amount,
			Category:      "Transfer",
			Description:   description,
			Merchant:      p.PayeeName,
			Date:          time.Now().UTC(),
			Type:          core.Expense,
			PaymentMethod: "UPI",
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to record transaction for settled payment",
				"payment_id", id, "error", err)
		}
	}

	return p, nil
}
