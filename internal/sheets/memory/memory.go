// Package memory is an in-process TransactionWriter for tests and local
// development without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendsmart/internal/core"
	"spendsmart/internal/sheets"
)

type Writer struct {
	mu   sync.Mutex
	rows []core.Transaction
}

var _ sheets.TransactionWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

func (w *Writer) Append(_ context.Context, t core.Transaction) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, t)
	return fmt.Sprintf("memory!A%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []core.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]core.Transaction, len(w.rows))
	copy(out, w.rows)
	return out
}
