// Package importer turns uploaded bank statements into stored
// transactions.
//
// The pipeline is strictly row-at-a-time: a malformed row or a failed
// insert is recorded and skipped, never aborting the rest of the file.
// Rows that match an already stored transaction on (user, amount, date,
// description) are counted as duplicates and dropped.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendsmart/internal/classify"
	"spendsmart/internal/core"
)

const (
	defaultDescription   = "Import"
	defaultPaymentMethod = "Bank Transfer"
	importPreviewLimit   = 10
)

// Store is the persistence surface the importer needs.
type Store interface {
	FindDuplicate(ctx context.Context, userID string, amount decimal.Decimal, date time.Time, description string) (bool, error)
	CreateTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransactionCategory(ctx context.Context, id, category string) error
}

// Publisher enqueues freshly imported transactions for spreadsheet
// export. A nil publisher disables the export path.
type Publisher interface {
	PublishTransactionExport(ctx context.Context, id, userID string) error
}

// RowError describes one row that could not be imported. Row numbers are
// 1-based spreadsheet positions, header included.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result tallies one import run. TotalRows counts every non-blank data
// row, so TotalRows = Imported + Duplicates + Failed always holds.
// ImportedTransactions previews the first few stored rows; Errors lists
// every failed row, plus advisory entries for rows imported while the
// duplicate check was unavailable.
type Result struct {
	TotalRows            int                `json:"total_rows"`
	Imported             int                `json:"imported"`
	Duplicates           int                `json:"duplicates"`
	Failed               int                `json:"failed"`
	ImportedTransactions []core.Transaction `json:"imported_transactions"`
	Errors               []RowError         `json:"errors,omitempty"`
}

type Importer struct {
	store     Store
	rules     *classify.RuleTable
	refiner   classify.Refiner
	publisher Publisher
}

func New(store Store, rules *classify.RuleTable, refiner classify.Refiner, publisher Publisher) *Importer {
	if refiner == nil {
		refiner = classify.NoopRefiner{}
	}
	return &Importer{
		store:     store,
		rules:     rules,
		refiner:   refiner,
		publisher: publisher,
	}
}

// Import parses a statement and persists its rows for the user. With
// skipDuplicates set, rows matching a stored transaction on (user,
// amount, date, description) are dropped and counted instead of
// inserted again.
func (im *Importer) Import(ctx context.Context, userID, filename string, r io.Reader, skipDuplicates bool) (Result, error) {
	rows, err := ReadStatement(filename, r)
	if err != nil {
		return Result{}, err
	}

	headerIdx := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return Result{}, ErrEmptyStatement
	}

	columns := mapHeader(rows[headerIdx])
	if _, ok := columns[colDate]; !ok {
		return Result{}, ErrNoDateColumn
	}

	var result Result
	var created []core.Transaction

	for i, row := range rows[headerIdx+1:] {
		if blankRow(row) {
			continue
		}
		rowNum := headerIdx + i + 2 // 1-based, header included

		t, err := im.buildTransaction(userID, columns, row, rowNum)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: rowNum, Message: err.Error()})
			continue
		}

		if skipDuplicates {
			dup, err := im.store.FindDuplicate(ctx, userID, t.Amount, t.Date, t.Description)
			if err != nil {
				// Fall back to importing the row rather than losing it.
				slog.WarnContext(ctx, "Duplicate check failed, importing row anyway",
					"user_id", userID, "row", rowNum, "error", err)
				result.Errors = append(result.Errors, RowError{Row: rowNum,
					Message: fmt.Sprintf("duplicate check unavailable, imported without deduplication: %v", err)})
				dup = false
			}
			if dup {
				result.Duplicates++
				continue
			}
		}

		if err := im.store.CreateTransaction(ctx, t); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: rowNum,
				Message: fmt.Sprintf("store transaction: %v", err)})
			continue
		}
		result.Imported++
		created = append(created, t)
	}

	result.TotalRows = result.Imported + result.Duplicates + result.Failed
	if len(created) > importPreviewLimit {
		result.ImportedTransactions = created[:importPreviewLimit]
	} else {
		result.ImportedTransactions = created
	}

	im.refineCategories(ctx, created)
	im.publishExports(ctx, created)

	slog.InfoContext(ctx, "Statement import finished",
		"user_id", userID,
		"file", filename,
		"total_rows", result.TotalRows,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"failed", result.Failed)

	return result, nil
}

func (im *Importer) buildTransaction(userID string, columns map[string]int, row []string, rowNum int) (core.Transaction, error) {
	rawDate := cell(row, columns, colDate)
	if rawDate == "" {
		return core.Transaction{}, fmt.Errorf("missing date")
	}
	date, err := core.ParseStatementDate(rawDate)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", rawDate, err)
	}

	amount, txType, err := resolveAmount(columns, row)
	if err != nil {
		return core.Transaction{}, err
	}

	description := cell(row, columns, colDescription)
	if description == "" {
		description = defaultDescription
	}
	if chq := cell(row, columns, colCheque); chq != "" {
		description = fmt.Sprintf("%s (Chq: %s)", description, chq)
	}
	description = core.Truncate(description, core.MaxDescriptionLen)

	merchant := cell(row, columns, colMerchant)
	if merchant == "" {
		if fields := strings.Fields(description); len(fields) > 0 {
			merchant = fields[0]
		}
	}
	merchant = core.Truncate(merchant, core.MaxMerchantLen)

	category := classify.Normalize(cell(row, columns, colCategory))
	if category == "" {
		category = im.rules.Classify(description, merchant)
	}

	paymentMethod := cell(row, columns, colPaymentMethod)
	if paymentMethod == "" {
		paymentMethod = defaultPaymentMethod
	}

	t := core.Transaction{
		ID:            core.NewID(),
		UserID:        userID,
		Amount:        amount,
		Category:      category,
		Description:   description,
		Merchant:      merchant,
		Date:          date,
		Type:          txType,
		PaymentMethod: paymentMethod,
		Location:      cell(row, columns, colLocation),
		SourceRow:     rowNum,
		CreatedAt:     time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// resolveAmount finds the row's amount and direction. Dedicated debit and
// credit columns take precedence; a single amount column falls back to an
// explicit type column, then to the sign of the value.
func resolveAmount(columns map[string]int, row []string) (decimal.Decimal, core.TransactionType, error) {
	// "-" and "--" are filler markers, treated the same as an empty cell.
	debit := cell(row, columns, colDebit)
	if debit != "" {
		amount, err := core.ParseStatementAmount(debit)
		switch {
		case err == nil:
			return amount.Abs(), core.Expense, nil
		case !errors.Is(err, core.ErrMissingAmount):
			return decimal.Decimal{}, "", fmt.Errorf("debit %q: %w", debit, err)
		}
	}
	credit := cell(row, columns, colCredit)
	if credit != "" {
		amount, err := core.ParseStatementAmount(credit)
		switch {
		case err == nil:
			return amount.Abs(), core.Income, nil
		case !errors.Is(err, core.ErrMissingAmount):
			return decimal.Decimal{}, "", fmt.Errorf("credit %q: %w", credit, err)
		}
	}

	raw := cell(row, columns, colAmount)
	if raw == "" {
		return decimal.Decimal{}, "", core.ErrMissingAmount
	}
	amount, err := core.ParseStatementAmount(raw)
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("amount %q: %w", raw, err)
	}

	if txType, ok := explicitType(cell(row, columns, colType)); ok {
		return amount.Abs(), txType, nil
	}
	if amount.IsNegative() {
		return amount.Abs(), core.Expense, nil
	}
	return amount, core.Income, nil
}

func explicitType(raw string) (core.TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dr", "debit", "expense", "withdrawal":
		return core.Expense, true
	case "cr", "credit", "income", "deposit":
		return core.Income, true
	default:
		return "", false
	}
}

// refineCategories submits vaguely categorized transactions for a second
// opinion. Failures leave the keyword result in place.
func (im *Importer) refineCategories(ctx context.Context, created []core.Transaction) {
	var entries []classify.Entry
	byID := make(map[string]core.Transaction)
	for _, t := range created {
		if !classify.ShouldRefine(t.Category) {
			continue
		}
		entries = append(entries, classify.Entry{
			ID:              t.ID,
			Description:     t.Description,
			Merchant:        t.Merchant,
			Amount:          t.Amount.StringFixed(2),
			Type:            string(t.Type),
			CurrentCategory: t.Category,
		})
		byID[t.ID] = t
	}
	if len(entries) == 0 {
		return
	}

	for id, category := range im.refiner.RefineBatch(ctx, entries) {
		t, ok := byID[id]
		if !ok || category == t.Category {
			continue
		}
		if err := im.store.UpdateTransactionCategory(ctx, id, category); err != nil {
			slog.WarnContext(ctx, "Failed to apply refined category",
				"transaction_id", id, "category", category, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Refined transaction category",
			"transaction_id", id, "from", t.Category, "to", category)
	}
}

func (im *Importer) publishExports(ctx context.Context, created []core.Transaction) {
	if im.publisher == nil {
		if len(created) > 0 {
			slog.WarnContext(ctx, "AMQP client not available, skipping export messages", "count", len(created))
		}
		return
	}
	for _, t := range created {
		if err := im.publisher.PublishTransactionExport(ctx, t.ID, t.UserID); err != nil {
			// The poll fallback in the worker picks these up later.
			slog.ErrorContext(ctx, "Failed to publish export message",
				"transaction_id", t.ID, "error", err)
		}
	}
}

func cell(row []string, columns map[string]int, role string) string {
	idx, ok := columns[role]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
