// Package services orchestrates transaction operations across storage,
// classification, and the AMQP export queue.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendsmart/internal/classify"
	"spendsmart/internal/core"
	"spendsmart/internal/storage"
)

const manualPaymentMethod = "UPI"

// Storage is the persistence surface the transaction service needs.
type Storage interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	CreateTransactions(ctx context.Context, batch []core.Transaction) error
	FindDuplicate(ctx context.Context, userID string, amount decimal.Decimal, date time.Time, description string) (bool, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, filter storage.ListFilter) ([]core.Transaction, error)
	UpdateTransactionCategory(ctx context.Context, id, category string) error
	DeleteTransaction(ctx context.Context, id string) error
}

// Publisher enqueues transactions for spreadsheet export.
type Publisher interface {
	PublishTransactionExport(ctx context.Context, id, userID string) error
}

// TransactionService saves transactions locally first and publishes
// export messages best-effort, so a broker outage never fails a request.
type TransactionService struct {
	storage   Storage
	rules     *classify.RuleTable
	refiner   classify.Refiner
	publisher Publisher
}

func NewTransactionService(storage Storage, rules *classify.RuleTable, refiner classify.Refiner, publisher Publisher) *TransactionService {
	if refiner == nil {
		refiner = classify.NoopRefiner{}
	}
	return &TransactionService{
		storage:   storage,
		rules:     rules,
		refiner:   refiner,
		publisher: publisher,
	}
}

// Create validates, categorizes, and persists one transaction.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	prepared, err := s.prepare(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.storage.CreateTransaction(ctx, prepared); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishExport(ctx, prepared)
	return prepared, nil
}

// BulkResult tallies one bulk create call.
type BulkResult struct {
	TotalRequested    int                `json:"total_requested"`
	CreatedCount      int                `json:"created_count"`
	SkippedDuplicates int                `json:"skipped_duplicates"`
	FailedCount       int                `json:"failed_count"`
	Errors            []string           `json:"errors"`
	Created           []core.Transaction `json:"created_transactions"`
}

const bulkPreviewLimit = 10

// BulkCreate prepares each input independently, optionally drops
// duplicates, and inserts the survivors in one batch.
func (s *TransactionService) BulkCreate(ctx context.Context, inputs []core.Transaction, skipDuplicates bool) (BulkResult, error) {
	result := BulkResult{TotalRequested: len(inputs), Errors: []string{}}

	var prepared []core.Transaction
	for i, input := range inputs {
		t, err := s.prepare(ctx, input)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("transaction %d: %v", i+1, err))
			continue
		}
		prepared = append(prepared, t)
	}

	var toInsert []core.Transaction
	if skipDuplicates {
		for _, t := range prepared {
			dup, err := s.storage.FindDuplicate(ctx, t.UserID, t.Amount, t.Date, t.Description)
			if err != nil {
				return result, fmt.Errorf("check duplicate: %w", err)
			}
			if dup {
				result.SkippedDuplicates++
				continue
			}
			toInsert = append(toInsert, t)
		}
	} else {
		toInsert = prepared
	}

	if len(toInsert) > 0 {
		if err := s.storage.CreateTransactions(ctx, toInsert); err != nil {
			return result, fmt.Errorf("insert transactions: %w", err)
		}
		result.CreatedCount = len(toInsert)
	}
	result.FailedCount = result.TotalRequested - result.CreatedCount - result.SkippedDuplicates

	for _, t := range toInsert {
		s.publishExport(ctx, t)
	}
	if len(toInsert) > bulkPreviewLimit {
		result.Created = toInsert[:bulkPreviewLimit]
	} else {
		result.Created = toInsert
	}

	return result, nil
}

// List returns a user's transactions newest-first.
func (s *TransactionService) List(ctx context.Context, filter storage.ListFilter) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, filter)
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

// UpdateCategory corrects a transaction's category. The new label must
// normalize to a canonical one.
func (s *TransactionService) UpdateCategory(ctx context.Context, id, category string) (string, error) {
	normalized := classify.Normalize(category)
	if normalized == "" {
		return "", fmt.Errorf("unknown category %q", category)
	}
	if err := s.storage.UpdateTransactionCategory(ctx, id, normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	return s.storage.DeleteTransaction(ctx, id)
}

// prepare fills defaults and resolves the category for one input.
func (s *TransactionService) prepare(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = core.NewID()
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.Description = core.Truncate(strings.TrimSpace(t.Description), core.MaxDescriptionLen)
	if t.Merchant == "" {
		if fields := strings.Fields(t.Description); len(fields) > 0 {
			t.Merchant = fields[0]
		}
	}
	t.Merchant = core.Truncate(t.Merchant, core.MaxMerchantLen)
	if t.PaymentMethod == "" {
		t.PaymentMethod = manualPaymentMethod
	}

	category := classify.Normalize(t.Category)
	if category == "" {
		category = s.rules.Classify(t.Description, t.Merchant)
	}
	if classify.ShouldRefine(category) {
		if refined := s.refineOne(ctx, t, category); refined != "" {
			category = refined
		}
	}
	t.Category = category

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *TransactionService) refineOne(ctx context.Context, t core.Transaction, current string) string {
	results := s.refiner.RefineBatch(ctx, []classify.Entry{{
		ID:              t.ID,
		Description:     t.Description,
		Merchant:        t.Merchant,
		Amount:          t.Amount.StringFixed(2),
		Type:            string(t.Type),
		CurrentCategory: current,
	}})
	return results[t.ID]
}

func (s *TransactionService) publishExport(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping export message", "transaction_id", t.ID)
		return
	}
	if err := s.publisher.PublishTransactionExport(ctx, t.ID, t.UserID); err != nil {
		// Saved locally; the worker's poll fallback picks it up.
		slog.ErrorContext(ctx, "Failed to publish export message",
			"transaction_id", t.ID, "error", err)
	}
}
