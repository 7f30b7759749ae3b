package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendsmart/assets"
	"spendsmart/internal/core"
	"spendsmart/internal/importer"
	"spendsmart/internal/log"
	"spendsmart/internal/storage"
)

const maxUploadBytes = 10 << 20

// transactionRequest is the wire shape for transaction creation. Dates
// accept any statement layout, not just RFC 3339.
type transactionRequest struct {
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Merchant      string          `json:"merchant"`
	Date          string          `json:"date"`
	Type          string          `json:"type"`
	PaymentMethod string          `json:"payment_method"`
	Location      string          `json:"location"`
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	t := core.Transaction{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Category:      req.Category,
		Description:   req.Description,
		Merchant:      req.Merchant,
		Type:          core.TransactionType(strings.ToLower(req.Type)),
		PaymentMethod: req.PaymentMethod,
		Location:      req.Location,
	}
	if t.Type == "" {
		t.Type = core.Expense
	}
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err := core.ParseStatementDate(raw)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("date %q: %w", raw, err)
		}
		t.Date = date
	}
	return t, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := req.toTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction create failed",
			log.FieldUserID, req.UserID, log.FieldError, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.invalidateUser(created.UserID)
	writeJSON(w, http.StatusCreated, created)
}

type bulkCreateRequest struct {
	Transactions   []transactionRequest `json:"transactions"`
	SkipDuplicates *bool                `json:"skip_duplicates"`
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Transactions) == 0 {
		writeError(w, http.StatusBadRequest, "no transactions in payload")
		return
	}
	skipDuplicates := true
	if req.SkipDuplicates != nil {
		skipDuplicates = *req.SkipDuplicates
	}

	var inputs []core.Transaction
	var convErrors []string
	for i, tr := range req.Transactions {
		t, err := tr.toTransaction()
		if err != nil {
			convErrors = append(convErrors, fmt.Sprintf("transaction %d: %v", i+1, err))
			continue
		}
		inputs = append(inputs, t)
	}

	result, err := s.transactions.BulkCreate(r.Context(), inputs, skipDuplicates)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Bulk create failed", log.FieldError, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	result.TotalRequested = len(req.Transactions)
	result.FailedCount += len(convErrors)
	result.Errors = append(convErrors, result.Errors...)

	seen := make(map[string]struct{})
	for _, t := range inputs {
		if _, ok := seen[t.UserID]; ok {
			continue
		}
		seen[t.UserID] = struct{}{}
		s.invalidateUser(t.UserID)
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	transactions, err := s.transactions.List(r.Context(), storage.ListFilter{UserID: userID, Limit: limit})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction list failed",
			log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if transactions == nil {
		transactions = []core.Transaction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	id := r.PathValue("id")

	var body struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	category, err := s.transactions.UpdateCategory(r.Context(), id, body.Category)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "category": category})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	id := r.PathValue("id")

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Transaction delete failed",
			log.FieldTransactionID, id, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.invalidateUser(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	skipDuplicates := true
	if raw := r.URL.Query().Get("skip_duplicates"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "skip_duplicates must be a boolean")
			return
		}
		skipDuplicates = parsed
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	start := time.Now()
	result, err := s.importer.Import(r.Context(), userID, header.Filename, file, skipDuplicates)
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFormat) ||
			errors.Is(err, importer.ErrEmptyStatement) ||
			errors.Is(err, importer.ErrNoDateColumn) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Statement import failed",
			log.FieldUserID, userID,
			log.FieldFilename, header.Filename,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	s.logger.InfoContext(r.Context(), "Statement imported",
		log.FieldUserID, userID,
		log.FieldFilename, header.Filename,
		log.FieldTotalRows, result.TotalRows,
		log.FieldImported, result.Imported,
		log.FieldDuplicates, result.Duplicates,
		log.FieldFailed, result.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())

	s.invalidateUser(userID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateDemo(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	overwrite := false
	if raw := r.URL.Query().Get("overwrite"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "overwrite must be a boolean")
			return
		}
		overwrite = parsed
	}

	result, err := s.transactions.GenerateDemoData(r.Context(), userID, overwrite)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.invalidateUser(userID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSampleStatement(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sample_statement.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(assets.SampleStatement)
}
