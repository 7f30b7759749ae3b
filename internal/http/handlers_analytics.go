package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendsmart/internal/analytics"
	"spendsmart/internal/core"
	"spendsmart/internal/log"
	"spendsmart/internal/storage"
)

const (
	defaultTrendDays  = 30
	maxTrendDays      = 365
	analyticsRowLimit = 10000
)

func (s *Server) handleSpendingSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	timeframe := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("timeframe")))
	if timeframe == "" {
		timeframe = "month"
	}

	key := summaryKey(userID, timeframe)
	if cached, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	start, err := analytics.WindowStart(timeframe, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := s.transactions.List(r.Context(), storage.ListFilter{
		UserID: userID,
		Since:  start,
		Limit:  analyticsRowLimit,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary query failed",
			log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	summary := analytics.Summarize(transactions)
	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSpendingTrends(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	days := defaultTrendDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTrendDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = parsed
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -(days - 1))

	transactions, err := s.transactions.List(r.Context(), storage.ListFilter{
		UserID: userID,
		Since:  start,
		Limit:  analyticsRowLimit,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Trends query failed",
			log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to compute trends")
		return
	}

	writeJSON(w, http.StatusOK, analytics.Trends(transactions, start, end))
}

func (s *Server) handleGenerateInsights(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	timeframe := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("timeframe")))
	if timeframe == "" {
		timeframe = "month"
	}

	start, err := analytics.WindowStart(timeframe, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := s.transactions.List(r.Context(), storage.ListFilter{
		UserID: userID,
		Since:  start,
		Limit:  analyticsRowLimit,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Insight query failed",
			log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to generate insights")
		return
	}

	summary := analytics.Summarize(transactions)
	trends := analytics.Trends(transactions, start, time.Now().UTC())

	generated, err := s.insights.Generate(r.Context(), userID, timeframe, summary, trends)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Insight generation failed",
			log.FieldUserID, userID,
			log.FieldTimeframe, timeframe,
			log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to generate insights")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"insights": generated,
		"count":    len(generated),
	})
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	timeframe := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("timeframe")))
	if timeframe == "" {
		timeframe = "month"
	}

	stored, err := s.insights.List(r.Context(), userID, timeframe)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Insight list failed",
			log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list insights")
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if len(stored) > parsed {
			stored = stored[:parsed]
		}
	}
	if stored == nil {
		stored = []core.Insight{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"insights": stored,
		"count":    len(stored),
	})
}
