package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendsmart/internal/classify"
	"spendsmart/internal/core"
)

type fakeStore struct {
	created    []core.Transaction
	categories map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{categories: make(map[string]string)}
}

func (s *fakeStore) FindDuplicate(_ context.Context, userID string, amount decimal.Decimal, date time.Time, description string) (bool, error) {
	for _, t := range s.created {
		if t.UserID == userID && t.Amount.Equal(amount) && t.Date.Equal(date) && t.Description == description {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.created = append(s.created, t)
	return nil
}

func (s *fakeStore) UpdateTransactionCategory(_ context.Context, id, category string) error {
	s.categories[id] = category
	for i := range s.created {
		if s.created[i].ID == id {
			s.created[i].Category = category
		}
	}
	return nil
}

// failingStore injects storage failures into the fake.
type failingStore struct {
	*fakeStore
	failDescription string
	dupCheckErr     error
}

func (s *failingStore) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if s.failDescription != "" && t.Description == s.failDescription {
		return errors.New("storage unavailable")
	}
	return s.fakeStore.CreateTransaction(ctx, t)
}

func (s *failingStore) FindDuplicate(ctx context.Context, userID string, amount decimal.Decimal, date time.Time, description string) (bool, error) {
	if s.dupCheckErr != nil {
		return false, s.dupCheckErr
	}
	return s.fakeStore.FindDuplicate(ctx, userID, amount, date, description)
}

type fakePublisher struct {
	published []string
}

func (p *fakePublisher) PublishTransactionExport(_ context.Context, id, _ string) error {
	p.published = append(p.published, id)
	return nil
}

type fakeRefiner struct {
	answer map[string]string
}

func (r fakeRefiner) RefineBatch(_ context.Context, entries []classify.Entry) map[string]string {
	out := make(map[string]string)
	for _, e := range entries {
		if category, ok := r.answer[e.Description]; ok {
			out[e.ID] = category
		}
	}
	return out
}

const sampleCSV = `Tran Date,Chq No,Particulars,Debit,Credit,Balance,Init. Br
05/09/2025,,ZOMATO ORDER 99412,249.50,,10000.00,BR1
06/09/2025,123456,NEFT SALARY CREDIT,,"55,000.00",65000.00,BR1
07/09/2025,,UBER TRIP 482,120.00,,64880.00,BR1
notadate,,COFFEE SHOP,80.00,,64800.00,BR1
,,,,,,
08/09/2025,,MYSTERY VENDOR XYZ,500.00,,64300.00,BR1
`

func TestImporter_Import(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	im := New(store, classify.DefaultRules(), nil, publisher)

	result, err := im.Import(context.Background(), "user-1", "statement.csv", strings.NewReader(sampleCSV), true)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if result.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5 (blank filler row not counted)", result.TotalRows)
	}
	if result.Imported != 4 {
		t.Errorf("Imported = %d, want 4", result.Imported)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
	if result.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0", result.Duplicates)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 5 {
		t.Errorf("Errors = %+v, want one error at row 5", result.Errors)
	}
	if len(publisher.published) != 4 {
		t.Errorf("published %d export messages, want 4", len(publisher.published))
	}
	if len(result.ImportedTransactions) != 4 {
		t.Errorf("ImportedTransactions has %d entries, want 4", len(result.ImportedTransactions))
	}

	byDescription := make(map[string]core.Transaction)
	for _, tx := range store.created {
		byDescription[tx.Description] = tx
	}

	zomato := byDescription["ZOMATO ORDER 99412"]
	if zomato.Category != "Food & Dining" || zomato.Type != core.Expense {
		t.Errorf("zomato row = %+v, want Food & Dining expense", zomato)
	}
	if !zomato.Amount.Equal(decimal.RequireFromString("249.5")) {
		t.Errorf("zomato amount = %s, want 249.5", zomato.Amount)
	}
	if zomato.Merchant != "ZOMATO" {
		t.Errorf("zomato merchant = %q, want first word of description", zomato.Merchant)
	}
	if zomato.PaymentMethod != "Bank Transfer" {
		t.Errorf("zomato payment method = %q, want Bank Transfer", zomato.PaymentMethod)
	}

	salary := byDescription["NEFT SALARY CREDIT (Chq: 123456)"]
	if salary.Type != core.Income {
		t.Errorf("salary type = %q, want income", salary.Type)
	}
	if !salary.Amount.Equal(decimal.RequireFromString("55000")) {
		t.Errorf("salary amount = %s, want 55000", salary.Amount)
	}
	if !salary.Date.Equal(time.Date(2025, 9, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("salary date = %v, want 2025-09-06", salary.Date)
	}

	mystery := byDescription["MYSTERY VENDOR XYZ"]
	if mystery.Category != "Others" {
		t.Errorf("unmatched row category = %q, want Others", mystery.Category)
	}
}

func TestImporter_ImportIsIdempotent(t *testing.T) {
	store := newFakeStore()
	im := New(store, classify.DefaultRules(), nil, nil)
	ctx := context.Background()

	first, err := im.Import(ctx, "user-1", "statement.csv", strings.NewReader(sampleCSV), true)
	if err != nil {
		t.Fatalf("first Import() error: %v", err)
	}

	second, err := im.Import(ctx, "user-1", "statement.csv", strings.NewReader(sampleCSV), true)
	if err != nil {
		t.Fatalf("second Import() error: %v", err)
	}
	if second.Imported != 0 {
		t.Errorf("second Imported = %d, want 0", second.Imported)
	}
	if second.Duplicates != first.Imported {
		t.Errorf("second Duplicates = %d, want %d", second.Duplicates, first.Imported)
	}
	if second.TotalRows != first.TotalRows {
		t.Errorf("second TotalRows = %d, want %d", second.TotalRows, first.TotalRows)
	}

	// With duplicate skipping off every row is inserted again.
	third, err := im.Import(ctx, "user-1", "statement.csv", strings.NewReader(sampleCSV), false)
	if err != nil {
		t.Fatalf("third Import() error: %v", err)
	}
	if third.Imported != first.Imported || third.Duplicates != 0 {
		t.Errorf("third result = %+v, want %d imported and no duplicates", third, first.Imported)
	}
}

func TestImporter_InsertFailureIsRowLevel(t *testing.T) {
	store := &failingStore{fakeStore: newFakeStore(), failDescription: "UBER TRIP 482"}
	im := New(store, classify.DefaultRules(), nil, nil)

	result, err := im.Import(context.Background(), "user-1", "statement.csv", strings.NewReader(sampleCSV), true)
	if err != nil {
		t.Fatalf("Import() error: %v, storage failures must stay row-level", err)
	}

	if result.Imported != 3 {
		t.Errorf("Imported = %d, want 3", result.Imported)
	}
	if result.Failed != 2 {
		t.Errorf("Failed = %d, want 2 (bad date + failed insert)", result.Failed)
	}
	if result.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5", result.TotalRows)
	}
	if len(store.created) != 3 {
		t.Errorf("stored %d transactions, want 3", len(store.created))
	}

	var stored bool
	for _, e := range result.Errors {
		if e.Row == 4 && strings.Contains(e.Message, "store transaction") {
			stored = true
		}
	}
	if !stored {
		t.Errorf("Errors = %+v, want a store failure recorded for row 4", result.Errors)
	}
}

func TestImporter_DuplicateCheckFailureImportsAnyway(t *testing.T) {
	store := &failingStore{fakeStore: newFakeStore(), dupCheckErr: errors.New("database unavailable")}
	im := New(store, classify.DefaultRules(), nil, nil)

	result, err := im.Import(context.Background(), "user-1", "statement.csv", strings.NewReader(sampleCSV), true)
	if err != nil {
		t.Fatalf("Import() error: %v, a broken duplicate check must not abort the batch", err)
	}

	if result.Imported != 4 || result.Duplicates != 0 || result.Failed != 1 {
		t.Errorf("result = %+v, want 4 imported, 0 duplicates, 1 failed", result)
	}

	var advisories int
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "duplicate check unavailable") {
			advisories++
		}
	}
	if advisories != 4 {
		t.Errorf("advisory errors = %d, want one per imported row", advisories)
	}
}

func TestImporter_PreviewCappedAtTen(t *testing.T) {
	var b strings.Builder
	b.WriteString("Tran Date,Particulars,Debit\n")
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "%02d/09/2025,VENDOR %d,%d.00\n", i, i, 100+i)
	}

	store := newFakeStore()
	im := New(store, classify.DefaultRules(), nil, nil)

	result, err := im.Import(context.Background(), "user-1", "statement.csv", strings.NewReader(b.String()), true)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if result.Imported != 12 {
		t.Errorf("Imported = %d, want 12", result.Imported)
	}
	if len(result.ImportedTransactions) != 10 {
		t.Errorf("ImportedTransactions has %d entries, want 10", len(result.ImportedTransactions))
	}
	if result.ImportedTransactions[0].Description != "VENDOR 1" {
		t.Errorf("first preview row = %q, want VENDOR 1", result.ImportedTransactions[0].Description)
	}
}

func TestImporter_AllRowErrorsReported(t *testing.T) {
	var b strings.Builder
	b.WriteString("Tran Date,Particulars,Debit\n")
	for i := 1; i <= 15; i++ {
		fmt.Fprintf(&b, "notadate,ROW %d,10.00\n", i)
	}

	im := New(newFakeStore(), classify.DefaultRules(), nil, nil)
	result, err := im.Import(context.Background(), "user-1", "statement.csv", strings.NewReader(b.String()), true)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if result.Failed != 15 {
		t.Errorf("Failed = %d, want 15", result.Failed)
	}
	if len(result.Errors) != 15 {
		t.Fatalf("Errors has %d entries, want every failed row reported", len(result.Errors))
	}
	if result.Errors[0].Row != 2 || result.Errors[14].Row != 16 {
		t.Errorf("error rows span %d..%d, want 2..16", result.Errors[0].Row, result.Errors[14].Row)
	}
}

func TestImporter_StripsByteOrderMark(t *testing.T) {
	store := newFakeStore()
	im := New(store, classify.DefaultRules(), nil, nil)

	result, err := im.Import(context.Background(), "user-1", "statement.csv", strings.NewReader("\ufeff"+sampleCSV), true)
	if err != nil {
		t.Fatalf("Import() of BOM-prefixed statement error: %v", err)
	}
	if result.Imported != 4 {
		t.Errorf("Imported = %d, want 4", result.Imported)
	}
}

func TestImporter_RefinesAmbiguousCategories(t *testing.T) {
	store := newFakeStore()
	refiner := fakeRefiner{answer: map[string]string{"MYSTERY VENDOR XYZ": "Shopping"}}
	im := New(store, classify.DefaultRules(), refiner, nil)

	if _, err := im.Import(context.Background(), "user-1", "statement.csv", strings.NewReader(sampleCSV), true); err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	for _, tx := range store.created {
		if tx.Description == "MYSTERY VENDOR XYZ" && tx.Category != "Shopping" {
			t.Errorf("refined category = %q, want Shopping", tx.Category)
		}
		if tx.Description == "ZOMATO ORDER 99412" && tx.Category != "Food & Dining" {
			t.Errorf("confident category changed to %q, should stay Food & Dining", tx.Category)
		}
	}
}

func TestImporter_ImportRejectsUnknownFormat(t *testing.T) {
	im := New(newFakeStore(), classify.DefaultRules(), nil, nil)
	if _, err := im.Import(context.Background(), "user-1", "statement.pdf", strings.NewReader("x"), true); err == nil {
		t.Error("Import() of pdf expected error, got nil")
	}
}

func TestImporter_ImportRequiresDateColumn(t *testing.T) {
	im := New(newFakeStore(), classify.DefaultRules(), nil, nil)
	csv := "Particulars,Debit\nfoo,10\n"
	if _, err := im.Import(context.Background(), "user-1", "s.csv", strings.NewReader(csv), true); err == nil {
		t.Error("Import() without date column expected error, got nil")
	}
}

func TestResolveAmount(t *testing.T) {
	columns := map[string]int{colDebit: 0, colCredit: 1, colAmount: 2, colType: 3}

	tests := []struct {
		name     string
		row      []string
		want     string
		wantType core.TransactionType
		wantErr  bool
	}{
		{name: "debit column", row: []string{"120.00", "", "", ""}, want: "120", wantType: core.Expense},
		{name: "credit column", row: []string{"", "55,000.00", "", ""}, want: "55000", wantType: core.Income},
		{name: "debit filler falls through to credit", row: []string{"--", "500", "", ""}, want: "500", wantType: core.Income},
		{name: "signed amount negative", row: []string{"", "", "-80", ""}, want: "80", wantType: core.Expense},
		{name: "signed amount positive", row: []string{"", "", "80", ""}, want: "80", wantType: core.Income},
		{name: "explicit dr marker", row: []string{"", "", "80", "DR"}, want: "80", wantType: core.Expense},
		{name: "explicit cr marker", row: []string{"", "", "80", "cr"}, want: "80", wantType: core.Income},
		{name: "all empty", row: []string{"", "", "", ""}, wantErr: true},
		{name: "junk debit", row: []string{"abc", "", "", ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, txType, err := resolveAmount(columns, tt.row)
			if tt.wantErr {
				if err == nil {
					t.Fatal("resolveAmount() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveAmount() error: %v", err)
			}
			if !amount.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("amount = %s, want %s", amount, tt.want)
			}
			if txType != tt.wantType {
				t.Errorf("type = %q, want %q", txType, tt.wantType)
			}
		})
	}
}
