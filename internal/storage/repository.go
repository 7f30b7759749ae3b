package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"spendsmart/internal/core"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Sync states for the Sheets export queue.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

const dateLayout = "2006-01-02"

// ListFilter narrows ListTransactions. Zero values mean "no constraint"
// except Limit, where 0 falls back to a server-side cap.
type ListFilter struct {
	UserID   string
	Category string
	Since    time.Time
	Limit    int
}

const defaultListLimit = 500

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database connection, for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertTransactionSQL = `INSERT INTO transactions
	(id, user_id, amount, category, description, merchant, date, type, payment_method, location, source_row, sync_status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateTransaction persists one transaction with a pending export status.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertTransactionSQL,
		t.ID, t.UserID, amountKey(t.Amount), t.Category, t.Description, t.Merchant,
		t.Date.Format(dateLayout), string(t.Type), t.PaymentMethod, t.Location,
		t.SourceRow, SyncPending, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// CreateTransactions inserts a batch inside one SQL transaction. Either
// the whole batch lands or none of it does.
func (r *SQLiteRepository) CreateTransactions(ctx context.Context, batch []core.Transaction) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTransactionSQL)
	if err != nil {
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range batch {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		_, err := stmt.ExecContext(ctx,
			t.ID, t.UserID, amountKey(t.Amount), t.Category, t.Description, t.Merchant,
			t.Date.Format(dateLayout), string(t.Type), t.PaymentMethod, t.Location,
			t.SourceRow, SyncPending, t.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

// FindDuplicate reports whether a transaction with the same user, amount,
// date, and description already exists.
func (r *SQLiteRepository) FindDuplicate(ctx context.Context, userID string, amount decimal.Decimal, date time.Time, description string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM transactions WHERE user_id = ? AND amount = ? AND date = ? AND description = ? LIMIT 1`,
		userID, amountKey(amount), date.Format(dateLayout), description).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return true, nil
}

const selectTransactionSQL = `SELECT id, user_id, amount, category, description, merchant, date, type, payment_method, location, source_row, created_at
	FROM transactions`

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactionSQL+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns a user's transactions newest-first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, filter ListFilter) ([]core.Transaction, error) {
	query := selectTransactionSQL + ` WHERE user_id = ?`
	args := []any{filter.UserID}

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if !filter.Since.IsZero() {
		query += ` AND date >= ?`
		args = append(args, filter.Since.Format(dateLayout))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY date DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateTransactionCategory(ctx context.Context, id, category string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE id = ?`, category, id)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PendingExport returns the oldest transactions still waiting for the
// spreadsheet export.
func (r *SQLiteRepository) PendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		selectTransactionSQL+` WHERE sync_status = ? ORDER BY created_at ASC LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending export: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = ? WHERE id = ?`, SyncDone, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "transaction_id", id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = ? WHERE id = ?`, SyncError, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "transaction_id", id)
	return nil
}

// ReplaceInsights swaps a user's stored insights for a timeframe with a
// freshly generated set.
func (r *SQLiteRepository) ReplaceInsights(ctx context.Context, userID, timeframe string, insights []core.Insight) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insights replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE user_id = ? AND timeframe = ?`, userID, timeframe); err != nil {
		return fmt.Errorf("clear insights: %w", err)
	}

	for _, ins := range insights {
		if ins.CreatedAt.IsZero() {
			ins.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO insights (id, user_id, insight_type, timeframe, title, description, recommendation, priority, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ins.ID, ins.UserID, ins.InsightType, ins.Timeframe, ins.Title,
			ins.Description, ins.Recommendation, ins.Priority, ins.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert insight: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insights replace: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListInsights(ctx context.Context, userID, timeframe string) ([]core.Insight, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, insight_type, timeframe, title, description, recommendation, priority, created_at
		 FROM insights WHERE user_id = ? AND timeframe = ? ORDER BY created_at DESC`,
		userID, timeframe)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var out []core.Insight
	for rows.Next() {
		var ins core.Insight
		var createdAt string
		if err := rows.Scan(&ins.ID, &ins.UserID, &ins.InsightType, &ins.Timeframe,
			&ins.Title, &ins.Description, &ins.Recommendation, &ins.Priority, &createdAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		ins.CreatedAt = parseStoredTime(createdAt)
		out = append(out, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreatePaymentRequest(ctx context.Context, p core.PaymentRequest) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_requests (id, user_id, amount, payee_name, payee_vpa, description, status, upi_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, amountKey(p.Amount), p.PayeeName, p.PayeeVPA,
		p.Description, p.Status, p.UPIURL, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert payment request: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPaymentRequest(ctx context.Context, id string) (core.PaymentRequest, error) {
	var p core.PaymentRequest
	var amount, createdAt string
	var completedAt sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, payee_name, payee_vpa, description, status, upi_url, created_at, completed_at
		 FROM payment_requests WHERE id = ?`, id).
		Scan(&p.ID, &p.UserID, &amount, &p.PayeeName, &p.PayeeVPA,
			&p.Description, &p.Status, &p.UPIURL, &createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaymentRequest{}, ErrNotFound
	}
	if err != nil {
		return core.PaymentRequest{}, fmt.Errorf("get payment request: %w", err)
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.PaymentRequest{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	p.CreatedAt = parseStoredTime(createdAt)
	if completedAt.Valid {
		p.CompletedAt = parseStoredTime(completedAt.String)
	}
	return p, nil
}

func (r *SQLiteRepository) UpdatePaymentStatus(ctx context.Context, id, status string, completedAt time.Time) error {
	var completed any
	if !completedAt.IsZero() {
		completed = completedAt.Format(time.RFC3339)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_requests SET status = ?, completed_at = ? WHERE id = ?`,
		status, completed, id)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment status rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var amount, date, txType, createdAt string
	err := row.Scan(&t.ID, &t.UserID, &amount, &t.Category, &t.Description, &t.Merchant,
		&date, &txType, &t.PaymentMethod, &t.Location, &t.SourceRow, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	t.Date, err = time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Type = core.TransactionType(txType)
	t.CreatedAt = parseStoredTime(createdAt)
	return t, nil
}

// amountKey is the canonical stored form of an amount. Two-decimal fixed
// formatting keeps the duplicate index comparing "100" and "100.00" equal.
func amountKey(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// Rows written by SQLite's CURRENT_TIMESTAMP default.
	t, _ := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	return t
}
