package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	MaxDescriptionLen = 200
	MaxMerchantLen    = 100
)

type (
	TransactionType string

	// Transaction is a single movement of money for a user. Records are
	// append-only: once stored, only the category may be corrected.
	Transaction struct {
		ID            string          `json:"id"`
		UserID        string          `json:"user_id"`
		Amount        decimal.Decimal `json:"amount"`
		Category      string          `json:"category"`
		Description   string          `json:"description"`
		Merchant      string          `json:"merchant"`
		Date          time.Time       `json:"date"`
		Type          TransactionType `json:"type"`
		PaymentMethod string          `json:"payment_method"`
		Location      string          `json:"location,omitempty"`
		SourceRow     int             `json:"source_row,omitempty"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	// Insight is a canned observation derived from aggregate spending.
	Insight struct {
		ID             string    `json:"id"`
		UserID         string    `json:"user_id"`
		InsightType    string    `json:"insight_type"`
		Timeframe      string    `json:"timeframe"`
		Title          string    `json:"title"`
		Description    string    `json:"description"`
		Recommendation string    `json:"recommendation"`
		Priority       string    `json:"priority"`
		CreatedAt      time.Time `json:"created_at"`
	}

	// PaymentRequest is a simulated UPI payment intent.
	PaymentRequest struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id"`
		Amount      decimal.Decimal `json:"amount"`
		PayeeName   string          `json:"payee_name"`
		PayeeVPA    string          `json:"payee_vpa"`
		Description string          `json:"description"`
		Status      string          `json:"status"`
		UPIURL      string          `json:"upi_url"`
		CreatedAt   time.Time       `json:"created_at"`
		CompletedAt time.Time       `json:"completed_at,omitzero"`
	}
)

var (
	ErrMissingUser      = errors.New("missing user id")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrMissingAmount    = errors.New("missing amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("unparseable date")
	ErrInvalidType      = errors.New("invalid transaction type")
)

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingUser
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > MaxDescriptionLen {
		return errors.New("description too long (max 200 characters)")
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// Truncate clips a string to at most n bytes; statement narration columns
// can carry arbitrarily long text.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
