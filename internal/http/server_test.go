package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendsmart/internal/classify"
	"spendsmart/internal/core"
	"spendsmart/internal/importer"
	"spendsmart/internal/insights"
	"spendsmart/internal/log"
	"spendsmart/internal/services"
	"spendsmart/internal/storage"
)

// stubStore backs the full service stack in memory for handler tests.
type stubStore struct {
	transactions []core.Transaction
	payments     map[string]core.PaymentRequest
	insights     map[string][]core.Insight
}

func newStubStore() *stubStore {
	return &stubStore{
		payments: make(map[string]core.PaymentRequest),
		insights: make(map[string][]core.Insight),
	}
}

func (st *stubStore) Ping(context.Context) error { return nil }

func (st *stubStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	st.transactions = append(st.transactions, t)
	return nil
}

func (st *stubStore) CreateTransactions(_ context.Context, batch []core.Transaction) error {
	st.transactions = append(st.transactions, batch...)
	return nil
}

func (st *stubStore) FindDuplicate(_ context.Context, userID string, amount decimal.Decimal, date time.Time, description string) (bool, error) {
	day := date.Format("2006-01-02")
	for _, t := range st.transactions {
		if t.UserID == userID && t.Amount.Equal(amount) && t.Date.Format("2006-01-02") == day && t.Description == description {
			return true, nil
		}
	}
	return false, nil
}

func (st *stubStore) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	for _, t := range st.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, storage.ErrNotFound
}

func (st *stubStore) ListTransactions(_ context.Context, filter storage.ListFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range st.transactions {
		if t.UserID != filter.UserID {
			continue
		}
		if !filter.Since.IsZero() && t.Date.Before(filter.Since) {
			continue
		}
		out = append(out, t)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (st *stubStore) UpdateTransactionCategory(_ context.Context, id, category string) error {
	for i := range st.transactions {
		if st.transactions[i].ID == id {
			st.transactions[i].Category = category
			return nil
		}
	}
	return storage.ErrNotFound
}

func (st *stubStore) DeleteTransaction(_ context.Context, id string) error {
	for i := range st.transactions {
		if st.transactions[i].ID == id {
			st.transactions = append(st.transactions[:i], st.transactions[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (st *stubStore) CreatePaymentRequest(_ context.Context, p core.PaymentRequest) error {
	st.payments[p.ID] = p
	return nil
}

func (st *stubStore) GetPaymentRequest(_ context.Context, id string) (core.PaymentRequest, error) {
	p, ok := st.payments[id]
	if !ok {
		return core.PaymentRequest{}, storage.ErrNotFound
	}
	return p, nil
}

func (st *stubStore) UpdatePaymentStatus(_ context.Context, id, status string, completedAt time.Time) error {
	p, ok := st.payments[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = status
	p.CompletedAt = completedAt
	st.payments[id] = p
	return nil
}

func (st *stubStore) ReplaceInsights(_ context.Context, userID, timeframe string, set []core.Insight) error {
	st.insights[userID+"|"+timeframe] = set
	return nil
}

func (st *stubStore) ListInsights(_ context.Context, userID, timeframe string) ([]core.Insight, error) {
	return st.insights[userID+"|"+timeframe], nil
}

func newTestServer(t *testing.T) (*Server, *stubStore) {
	t.Helper()

	store := newStubStore()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	rules := classify.DefaultRules()
	txSvc := services.NewTransactionService(store, rules, nil, nil)
	paySvc := services.NewPaymentService(store, txSvc)
	insSvc := insights.NewService(store)
	imp := importer.New(store, rules, nil, nil)

	srv := NewServer(":0", logger, store, txSvc, paySvc, insSvc, imp)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestServer_CreateAndListTransactions(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"user_id":     "user-1",
		"amount":      "249.50",
		"description": "SWIGGY ORDER 1234",
		"type":        "expense",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[core.Transaction](t, rec)
	if created.Category != "Food & Dining" {
		t.Errorf("Category = %q, want Food & Dining", created.Category)
	}
	if len(store.transactions) != 1 {
		t.Fatalf("stored %d transactions, want 1", len(store.transactions))
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/transactions/user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody[struct {
		Count int `json:"count"`
	}](t, rec)
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}
}

func TestServer_CreateTransactionValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", map[string]any{
		"amount":      "100",
		"description": "no user",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing user status = %d, want 422", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader("{broken"))
	rec2 := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON status = %d, want 400", rec2.Code)
	}
}

func TestServer_BulkCreate(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions/bulk", map[string]any{
		"transactions": []map[string]any{
			{"user_id": "user-1", "amount": "100", "description": "UBER TRIP", "type": "expense"},
			{"user_id": "user-1", "amount": "200", "description": "BIG BAZAAR", "type": "expense"},
			{"user_id": "user-1", "amount": "50", "description": "bad date", "date": "not-a-date"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("bulk status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[services.BulkResult](t, rec)
	if result.TotalRequested != 3 || result.CreatedCount != 2 || result.FailedCount != 1 {
		t.Errorf("result = %+v, want 3 requested, 2 created, 1 failed", result)
	}

	empty := doJSON(t, srv, http.MethodPost, "/api/transactions/bulk", map[string]any{"transactions": []any{}})
	if empty.Code != http.StatusBadRequest {
		t.Errorf("empty bulk status = %d, want 400", empty.Code)
	}
}

func TestServer_ImportStatement(t *testing.T) {
	srv, store := newTestServer(t)

	csv := "Tran Date,Chq No,Particulars,Debit,Credit,Balance,Init. Br\n" +
		"05/09/2025,,ZOMATO ORDER 99412,249.50,--,64550.50,BR1\n" +
		"06/09/2025,,NEFT SALARY CREDIT,--,55000.00,119550.50,BR1\n"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "statement.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, csv); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/import/user-1", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[importer.Result](t, rec)
	if result.TotalRows != 2 || result.Imported != 2 {
		t.Errorf("result = %+v, want 2 rows imported", result)
	}
	if len(result.ImportedTransactions) != 2 {
		t.Errorf("response previews %d transactions, want 2", len(result.ImportedTransactions))
	}
	if len(store.transactions) != 2 {
		t.Errorf("stored %d transactions, want 2", len(store.transactions))
	}
}

func TestServer_ImportRejectsUnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "statement.pdf")
	_, _ = io.WriteString(part, "not a table")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/import/user-1", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("pdf import status = %d, want 400", rec.Code)
	}
}

func TestServer_SampleStatement(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/transactions/sample-statement", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sample statement status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "Tran Date,") {
		t.Errorf("sample statement should start with the bank header, got %q", rec.Body.String()[:20])
	}
}

func TestServer_GenerateDemoData(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/transactions/generate/user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[services.DemoResult](t, rec)
	if result.Created == 0 {
		t.Error("generate created nothing")
	}
	if len(store.transactions) != result.Created {
		t.Errorf("stored %d transactions, result says %d", len(store.transactions), result.Created)
	}
}

func TestServer_SpendingSummaryAndTrends(t *testing.T) {
	srv, store := newTestServer(t)

	now := time.Now().UTC()
	store.transactions = []core.Transaction{
		{ID: "t1", UserID: "user-1", Amount: decimal.NewFromInt(1000), Category: "Groceries", Description: "g", Date: now.AddDate(0, 0, -1), Type: core.Expense},
		{ID: "t2", UserID: "user-1", Amount: decimal.NewFromInt(5000), Category: "Income", Description: "s", Date: now.AddDate(0, 0, -2), Type: core.Income},
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/analytics/spending-summary/user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	summary := decodeBody[core.SpendingSummary](t, rec)
	if !summary.TotalExpenses.Equal(decimal.NewFromInt(1000)) || !summary.TotalIncome.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("summary = %+v, want 1000 expenses and 5000 income", summary)
	}

	bad := doJSON(t, srv, http.MethodGet, "/api/analytics/spending-summary/user-1?timeframe=decade", nil)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("unknown timeframe status = %d, want 400", bad.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/analytics/spending-trends/user-1?days=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trends status = %d", rec.Code)
	}
	trends := decodeBody[core.SpendingTrends](t, rec)
	if len(trends.Trends) != 7 {
		t.Errorf("trend series has %d points, want 7", len(trends.Trends))
	}
}

func TestServer_Insights(t *testing.T) {
	srv, store := newTestServer(t)

	now := time.Now().UTC()
	store.transactions = []core.Transaction{
		{ID: "t1", UserID: "user-1", Amount: decimal.NewFromInt(40000), Category: "Income", Description: "salary", Date: now.AddDate(0, 0, -3), Type: core.Income},
		{ID: "t2", UserID: "user-1", Amount: decimal.NewFromInt(12000), Category: "Rent", Description: "rent", Date: now.AddDate(0, 0, -2), Type: core.Expense},
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/ai/insights/user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("insight generate status = %d, body %s", rec.Code, rec.Body.String())
	}
	generated := decodeBody[struct {
		Count int `json:"count"`
	}](t, rec)
	if generated.Count == 0 {
		t.Error("no insights generated")
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/ai/insights/user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("insight list status = %d", rec.Code)
	}
	listed := decodeBody[struct {
		Count int `json:"count"`
	}](t, rec)
	if listed.Count != generated.Count {
		t.Errorf("listed %d insights, generated %d", listed.Count, generated.Count)
	}
}

func TestServer_PaymentFlow(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/payments/upi-intent", map[string]any{
		"user_id":     "user-1",
		"amount":      "500",
		"payee_name":  "Landlord",
		"payee_vpa":   "landlord@upi",
		"description": "rent",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("intent status = %d, body %s", rec.Code, rec.Body.String())
	}
	intent := decodeBody[core.PaymentRequest](t, rec)
	if !strings.HasPrefix(intent.UPIURL, "upi://pay?") {
		t.Errorf("UPIURL = %q, want upi://pay deep link", intent.UPIURL)
	}

	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/payments/callback/%s?status=success", intent.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d, body %s", rec.Code, rec.Body.String())
	}
	settled := decodeBody[core.PaymentRequest](t, rec)
	if settled.Status != services.PaymentSuccess {
		t.Errorf("settled status = %q, want success", settled.Status)
	}
	if len(store.transactions) != 1 || store.transactions[0].Category != "Transfer" {
		t.Errorf("expected one Transfer transaction after settlement, got %+v", store.transactions)
	}

	bad := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/payments/callback/%s?status=refunded", intent.ID), nil)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("invalid status code = %d, want 400", bad.Code)
	}

	missing := doJSON(t, srv, http.MethodPost, "/api/payments/callback/nope?status=failed", nil)
	if missing.Code != http.StatusNotFound {
		t.Errorf("unknown payment code = %d, want 404", missing.Code)
	}
}

func TestServer_UpdateAndDeleteTransaction(t *testing.T) {
	srv, store := newTestServer(t)

	store.transactions = []core.Transaction{
		{ID: "t1", UserID: "user-1", Amount: decimal.NewFromInt(100), Category: "Others", Description: "x", Date: time.Now().UTC(), Type: core.Expense},
	}

	rec := doJSON(t, srv, http.MethodPatch, "/api/transactions/user-1/t1/category", map[string]any{"category": "groceries"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	patched := decodeBody[map[string]string](t, rec)
	if patched["category"] != "Groceries" {
		t.Errorf("category = %q, want Groceries", patched["category"])
	}

	bad := doJSON(t, srv, http.MethodPatch, "/api/transactions/user-1/t1/category", map[string]any{"category": "nonsense"})
	if bad.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid category status = %d, want 422", bad.Code)
	}

	del := doJSON(t, srv, http.MethodDelete, "/api/transactions/user-1/t1", nil)
	if del.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", del.Code)
	}
	again := doJSON(t, srv, http.MethodDelete, "/api/transactions/user-1/t1", nil)
	if again.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", again.Code)
	}
}

func TestServer_HealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, body %s", rec.Code, rec.Body.String())
	}
}
