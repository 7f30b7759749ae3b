package core

import "github.com/shopspring/decimal"

// CategoryShare is a category's slice of total expenses.
type CategoryShare struct {
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
}

// SpendingSummary aggregates a user's transactions over a time window.
type SpendingSummary struct {
	TotalExpenses     decimal.Decimal            `json:"total_expenses"`
	TotalIncome       decimal.Decimal            `json:"total_income"`
	NetSavings        decimal.Decimal            `json:"net_savings"`
	TransactionCount  int                        `json:"transaction_count"`
	TopCategories     []CategoryShare            `json:"top_categories"`
	CategoryBreakdown map[string]decimal.Decimal `json:"category_breakdown"`
}

// TrendPoint is one day's expense total.
type TrendPoint struct {
	Date   string          `json:"date"` // YYYY-MM-DD
	Amount decimal.Decimal `json:"amount"`
}

// SpendingTrends is a contiguous daily expense series over a window.
type SpendingTrends struct {
	Trends               []TrendPoint    `json:"trends"`
	AverageDailySpending decimal.Decimal `json:"average_daily_spending"`
}
