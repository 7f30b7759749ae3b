package sheets

import (
	"context"

	"spendsmart/internal/core"
)

// TransactionWriter appends one transaction to an external ledger and
// returns a reference to the written row.
type TransactionWriter interface {
	Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
}
