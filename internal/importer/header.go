package importer

import "strings"

// Canonical column roles a statement can carry. Banks disagree wildly on
// header wording, so raw headers are normalized and then matched against
// an alias table.
const (
	colDate          = "date"
	colDescription   = "description"
	colDebit         = "debit"
	colCredit        = "credit"
	colAmount        = "amount"
	colMerchant      = "merchant"
	colCheque        = "cheque"
	colCategory      = "category"
	colPaymentMethod = "payment_method"
	colLocation      = "location"
	colType          = "type"
)

var headerAliases = map[string]string{
	"date":                colDate,
	"tran date":           colDate,
	"txn date":            colDate,
	"transaction date":    colDate,
	"transaction dt":      colDate,
	"value date":          colDate,
	"value dt":            colDate,
	"posting date":        colDate,
	"description":         colDescription,
	"narration":           colDescription,
	"particulars":         colDescription,
	"details":             colDescription,
	"remarks":             colDescription,
	"transaction details": colDescription,
	"transaction remarks": colDescription,
	"debit":               colDebit,
	"debit amount":        colDebit,
	"debit amt":           colDebit,
	"withdrawal":          colDebit,
	"withdrawal amount":   colDebit,
	"withdrawal amt":      colDebit,
	"dr amount":           colDebit,
	"credit":              colCredit,
	"credit amount":       colCredit,
	"credit amt":          colCredit,
	"deposit":             colCredit,
	"deposit amount":      colCredit,
	"deposit amt":         colCredit,
	"cr amount":           colCredit,
	"amount":              colAmount,
	"amt":                 colAmount,
	"transaction amount":  colAmount,
	"merchant":            colMerchant,
	"payee":               colMerchant,
	"counterparty":        colMerchant,
	"beneficiary":         colMerchant,
	"chq no":              colCheque,
	"cheque no":           colCheque,
	"cheque number":       colCheque,
	"chq/ref no":          colCheque,
	"ref no":              colCheque,
	"category":            colCategory,
	"txn category":        colCategory,
	"payment method":      colPaymentMethod,
	"payment mode":        colPaymentMethod,
	"mode":                colPaymentMethod,
	"location":            colLocation,
	"place":               colLocation,
	"type":                colType,
	"transaction type":    colType,
	"dr/cr":               colType,
}

// normalizeHeader reduces a raw header cell to its alias-table form:
// lowercase, punctuation collapsed to single spaces. Excel exports often
// prefix the first cell with a UTF-8 BOM, which must not defeat matching.
func normalizeHeader(raw string) string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch r {
		case '_', '-', '.', ',':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// mapHeader resolves each header cell to a canonical column role. The
// first cell claiming a role wins; unrecognized columns are ignored.
func mapHeader(header []string) map[string]int {
	columns := make(map[string]int)
	for i, cell := range header {
		role, ok := headerAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, taken := columns[role]; taken {
			continue
		}
		columns[role] = i
	}
	return columns
}
