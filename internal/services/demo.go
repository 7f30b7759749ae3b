package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spendsmart/internal/core"
	"spendsmart/internal/storage"
)

type demoEntry struct {
	description   string
	merchant      string
	amount        string
	txType        core.TransactionType
	category      string
	paymentMethod string
	offsetDays    int
}

// demoBlueprint is a month of plausible activity for a new user: salary
// and bonus income, rent, SIP, and everyday spending.
var demoBlueprint = []demoEntry{
	{"Monthly Salary Credit", "Acme Corp Payroll", "125000", core.Income, "Income", "Bank Transfer", 3},
	{"Flat Rent - Koramangala", "Urban Homes", "32000", core.Expense, "Rent", "UPI", 2},
	{"Systematic Investment Plan", "Groww Investments", "15000", core.Expense, "Investments", "Bank Transfer", 1},
	{"Weekend Groceries", "Big Bazaar", "5400", core.Expense, "Groceries", "UPI", 5},
	{"Daily Commute - Metro Card", "BMRCL", "2400", core.Expense, "Transportation", "UPI", 6},
	{"Friday Dinner with Friends", "Toit Brewpub", "2600", core.Expense, "Food & Dining", "Credit Card", 7},
	{"Electricity Bill - BESCOM", "BESCOM", "4200", core.Expense, "Bills & Utilities", "NetBanking", 8},
	{"Monthly Phone Bill", "Airtel", "999", core.Expense, "Bills & Utilities", "UPI", 9},
	{"Streaming Subscription Renewal", "Netflix", "649", core.Expense, "Entertainment", "Credit Card", 10},
	{"Coffee with client", "Starbucks", "450", core.Expense, "Food & Dining", "UPI", 11},
	{"Cashback Reward", "HDFC Bank", "1500", core.Income, "Income", "Bank Transfer", 12},
	{"Health Insurance Premium", "Star Health", "7200", core.Expense, "Healthcare", "UPI", 13},
	{"Weekend Getaway Booking", "Airbnb", "9800", core.Expense, "Travel", "Credit Card", 14},
	{"Quarterly Bonus", "Acme Corp Payroll", "40000", core.Income, "Income", "Bank Transfer", 20},
	{"Equity Top-up", "Zerodha Securities", "10000", core.Expense, "Investments", "NetBanking", 22},
}

// DemoResult reports what a demo generation call did.
type DemoResult struct {
	Created           int                `json:"created"`
	SkippedDuplicates int                `json:"skipped_duplicates"`
	SkippedExisting   int                `json:"skipped_existing,omitempty"`
	Message           string             `json:"message,omitempty"`
	Preview           []core.Transaction `json:"sample_preview"`
}

// GenerateDemoData seeds the blueprint transactions for a user. When the
// user already has transactions nothing is created unless overwrite is
// set, in which case the blueprint is replayed with duplicate skipping.
func (s *TransactionService) GenerateDemoData(ctx context.Context, userID string, overwrite bool) (DemoResult, error) {
	if userID == "" {
		return DemoResult{}, core.ErrMissingUser
	}

	if !overwrite {
		existing, err := s.storage.ListTransactions(ctx, storage.ListFilter{UserID: userID, Limit: 1})
		if err != nil {
			return DemoResult{}, fmt.Errorf("check existing transactions: %w", err)
		}
		if len(existing) > 0 {
			return DemoResult{
				SkippedExisting: len(existing),
				Message:         "Demo data already present for user",
				Preview:         []core.Transaction{},
			}, nil
		}
	}

	base := time.Now().UTC()
	inputs := make([]core.Transaction, 0, len(demoBlueprint))
	for _, entry := range demoBlueprint {
		inputs = append(inputs, core.Transaction{
			UserID:        userID,
			Amount:        decimal.RequireFromString(entry.amount),
			Category:      entry.category,
			Description:   entry.description,
			Merchant:      entry.merchant,
			Date:          base.AddDate(0, 0, -entry.offsetDays),
			Type:          entry.txType,
			PaymentMethod: entry.paymentMethod,
		})
	}

	bulk, err := s.BulkCreate(ctx, inputs, true)
	if err != nil {
		return DemoResult{}, fmt.Errorf("seed demo transactions: %w", err)
	}

	return DemoResult{
		Created:           bulk.CreatedCount,
		SkippedDuplicates: bulk.SkippedDuplicates,
		Preview:           bulk.Created,
	}, nil
}
