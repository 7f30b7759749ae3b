package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"spendsmart/internal/core"
	"spendsmart/internal/log"
	"spendsmart/internal/services"
	"spendsmart/internal/storage"
)

type upiIntentRequest struct {
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	PayeeName   string          `json:"payee_name"`
	PayeeVPA    string          `json:"payee_vpa"`
	Description string          `json:"description"`
}

func (s *Server) handleCreateUPIIntent(w http.ResponseWriter, r *http.Request) {
	var req upiIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.payments.CreateUPIIntent(r.Context(), core.PaymentRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		PayeeName:   req.PayeeName,
		PayeeVPA:    req.PayeeVPA,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, core.ErrMissingUser) || errors.Is(err, core.ErrInvalidAmount) ||
			strings.Contains(err.Error(), "payee") {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "UPI intent creation failed",
			log.FieldUserID, req.UserID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to create payment intent")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	transactionID := r.PathValue("transactionID")
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))

	if status != services.PaymentSuccess && status != services.PaymentFailed {
		writeError(w, http.StatusBadRequest, "status must be success or failed")
		return
	}

	settled, err := s.payments.Settle(r.Context(), transactionID, status)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "payment request not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Payment settlement failed",
			log.FieldTransactionID, transactionID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to settle payment")
		return
	}

	if status == services.PaymentSuccess {
		s.invalidateUser(settled.UserID)
	}
	writeJSON(w, http.StatusOK, settled)
}
