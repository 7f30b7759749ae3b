// Package analytics computes aggregate views over stored transactions.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendsmart/internal/core"
)

const topCategoryCount = 5

// WindowStart resolves a named timeframe to its inclusive start date,
// counted back from now.
func WindowStart(timeframe string, now time.Time) (time.Time, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	switch strings.ToLower(strings.TrimSpace(timeframe)) {
	case "week":
		return day.AddDate(0, 0, -7), nil
	case "month", "":
		return day.AddDate(0, -1, 0), nil
	case "quarter":
		return day.AddDate(0, -3, 0), nil
	case "year":
		return day.AddDate(-1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown timeframe %q", timeframe)
	}
}

// Summarize aggregates a transaction window into totals and category
// shares. Percentages are relative to total expenses.
func Summarize(transactions []core.Transaction) core.SpendingSummary {
	summary := core.SpendingSummary{
		TransactionCount:  len(transactions),
		CategoryBreakdown: make(map[string]decimal.Decimal),
	}

	for _, t := range transactions {
		switch t.Type {
		case core.Expense:
			summary.TotalExpenses = summary.TotalExpenses.Add(t.Amount)
			summary.CategoryBreakdown[t.Category] = summary.CategoryBreakdown[t.Category].Add(t.Amount)
		case core.Income:
			summary.TotalIncome = summary.TotalIncome.Add(t.Amount)
		}
	}
	summary.NetSavings = summary.TotalIncome.Sub(summary.TotalExpenses)

	shares := make([]core.CategoryShare, 0, len(summary.CategoryBreakdown))
	for category, amount := range summary.CategoryBreakdown {
		share := core.CategoryShare{Category: category, Amount: amount}
		if summary.TotalExpenses.IsPositive() {
			pct, _ := amount.Div(summary.TotalExpenses).Mul(decimal.NewFromInt(100)).Round(2).Float64()
			share.Percentage = pct
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].Amount.Equal(shares[j].Amount) {
			return shares[i].Amount.GreaterThan(shares[j].Amount)
		}
		return shares[i].Category < shares[j].Category
	})
	if len(shares) > topCategoryCount {
		shares = shares[:topCategoryCount]
	}
	summary.TopCategories = shares

	return summary
}

// Trends builds a contiguous daily expense series from start to end,
// inclusive. Days without spending appear as zero points.
func Trends(transactions []core.Transaction, start, end time.Time) core.SpendingTrends {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return core.SpendingTrends{}
	}

	perDay := make(map[string]decimal.Decimal)
	for _, t := range transactions {
		if t.Type != core.Expense {
			continue
		}
		day := t.Date.UTC().Format("2006-01-02")
		perDay[day] = perDay[day].Add(t.Amount)
	}

	var trends core.SpendingTrends
	var total decimal.Decimal
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		amount := perDay[key]
		trends.Trends = append(trends.Trends, core.TrendPoint{Date: key, Amount: amount})
		total = total.Add(amount)
		days++
	}

	trends.AverageDailySpending = total.Div(decimal.NewFromInt(int64(days))).Round(2)
	return trends
}
