// Package insights derives canned financial observations from spending
// aggregates. Generation is pure rule evaluation; no external calls.
package insights

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"spendsmart/internal/core"
)

const maxInsights = 6

// Months covered by each named timeframe, for averaging totals down to
// per-month figures.
var timeframeMonths = map[string]int{
	"week":    1,
	"month":   1,
	"quarter": 3,
	"year":    12,
}

// Generate evaluates the insight rules against a summary and trend
// window. At most six insights are returned, in rule order.
func Generate(summary core.SpendingSummary, trends core.SpendingTrends, timeframe string) []core.Insight {
	var out []core.Insight

	totalExpenses := summary.TotalExpenses.InexactFloat64()
	totalIncome := summary.TotalIncome.InexactFloat64()
	netSavings := summary.NetSavings.InexactFloat64()
	avgDaily := trends.AverageDailySpending.InexactFloat64()

	months, ok := timeframeMonths[strings.ToLower(timeframe)]
	if !ok {
		months = int(math.Round(float64(len(trends.Trends)) / 30))
		if months < 1 {
			months = 1
		}
	}

	avgMonthlyIncome := totalIncome / float64(months)
	avgMonthlyExpenses := totalExpenses / float64(months)
	monthlySurplus := math.Max(0, netSavings/float64(months))

	var savingsRate float64
	if totalIncome > 0 {
		savingsRate = netSavings / totalIncome * 100
	}

	var investmentPct float64
	if invested, found := summary.CategoryBreakdown["Investments"]; found && totalExpenses > 0 {
		investmentPct = invested.InexactFloat64() / totalExpenses * 100
	}

	timeframeLabel := strings.ToLower(strings.TrimSpace(timeframe))
	if timeframeLabel == "" {
		timeframeLabel = "month"
	}

	if totalIncome > 0 {
		switch {
		case savingsRate < 10:
			out = append(out, core.Insight{
				InsightType: "savings",
				Title:       "Low Savings Rate Alert",
				Description: fmt.Sprintf("Your current savings rate is %.1f%%. Financial experts recommend saving at least 20%% of your income.", savingsRate),
				Recommendation: "Consider reducing discretionary spending or finding additional income sources. " +
					"Start with small cuts in entertainment and dining expenses.",
				Priority: "high",
			})
		case savingsRate < 20:
			out = append(out, core.Insight{
				InsightType:    "savings",
				Title:          "Moderate Savings Opportunity",
				Description:    fmt.Sprintf("You're saving %.1f%% of your income. You're on the right track but there's room for improvement.", savingsRate),
				Recommendation: "Try the 50/30/20 rule: 50% needs, 30% wants, 20% savings. Look for areas to optimize your spending.",
				Priority:       "medium",
			})
		default:
			out = append(out, core.Insight{
				InsightType:    "optimization",
				Title:          "Excellent Savings Discipline",
				Description:    fmt.Sprintf("Great job! You're saving %.1f%% of your income, which exceeds the recommended 20%%.", savingsRate),
				Recommendation: "Consider investing your excess savings in mutual funds or SIPs for better long-term returns.",
				Priority:       "low",
			})
		}
	}

	if monthlySurplus >= 1000 {
		sipBase := monthlySurplus * 0.4
		if avgMonthlyIncome > 0 {
			sipBase = math.Min(sipBase, avgMonthlyIncome*0.25)
		}
		sipCap := roundToStep(monthlySurplus*0.8, 500)
		sipAmount := math.Min(math.Min(roundToStep(sipBase, 500), sipCap), 25000)

		emergencyTarget := avgMonthlyExpenses * 6
		recommendation := "Use a high-yield savings account to build an emergency fund."
		if sipAmount > 0 && emergencyTarget > 0 {
			monthsToEmergency := emergencyTarget / sipAmount
			recommendation = fmt.Sprintf(
				"Set up a ₹%s SIP into diversified mutual funds: 60%% Nifty 50/ Sensex index fund, "+
					"25%% flexi-cap fund, 15%% short-term debt. "+
					"This plan can fund your emergency corpus in about %.0f months.",
				formatINR(sipAmount), monthsToEmergency)
		}

		priority := "low"
		if savingsRate < 20 {
			priority = "medium"
		}
		out = append(out, core.Insight{
			InsightType: "investment",
			Title:       fmt.Sprintf("Automate a ₹%s Monthly SIP", formatINR(sipAmount)),
			Description: fmt.Sprintf(
				"Across the %s, you retained roughly ₹%s per month after expenses. "+
					"Channeling a portion into disciplined investing will compound faster than idle cash.",
				timeframeLabel, formatINR(monthlySurplus)),
			Recommendation: recommendation,
			Priority:       priority,
		})

		if monthlySurplus >= 4000 {
			equityAllocation := roundToStep(monthlySurplus*0.5, 1000)
			buffer := roundToStep(monthlySurplus*0.2, 500)

			riskNote := "You're already investing consistently; consider widening your mix."
			priority := "low"
			if investmentPct < 15 {
				riskNote = fmt.Sprintf("Your current investment allocation is light at %.1f%% of expenses.", investmentPct)
				priority = "medium"
			}
			out = append(out, core.Insight{
				InsightType: "investment",
				Title:       "Grow with Low-Cost Equity",
				Description: fmt.Sprintf(
					"%s With ₹%s free each month, you can comfortably add equities without straining cash flow.",
					riskNote, formatINR(monthlySurplus)),
				Recommendation: fmt.Sprintf(
					"Deploy ₹%s into large-cap ETFs (Nifty 50, Sensex) via Zerodha/ Groww, keep ₹%s "+
						"in a sweep-in savings account (Yes Optima, Kotak ActivMoney) for near-term goals, "+
						"and route the balance into a conservative hybrid fund.",
					formatINR(equityAllocation), formatINR(buffer)),
				Priority: priority,
			})
		}
	}

	if len(summary.TopCategories) > 0 {
		top := summary.TopCategories[0]
		amount := top.Amount.InexactFloat64()
		switch {
		case top.Percentage > 40:
			out = append(out, core.Insight{
				InsightType: "spending",
				Title:       fmt.Sprintf("High %s Spending", top.Category),
				Description: fmt.Sprintf("%s accounts for %.1f%% (₹%s) of your total expenses. This seems unusually high.",
					top.Category, top.Percentage, formatINR(amount)),
				Recommendation: fmt.Sprintf("Review your %s expenses. Look for subscriptions you don't use or opportunities to find better deals.",
					strings.ToLower(top.Category)),
				Priority: "high",
			})
		case top.Percentage > 25:
			out = append(out, core.Insight{
				InsightType: "budgeting",
				Title:       fmt.Sprintf("%s Budget Review", top.Category),
				Description: fmt.Sprintf("You're spending %.1f%% (₹%s) on %s. This is significant but manageable.",
					top.Percentage, formatINR(amount), top.Category),
				Recommendation: fmt.Sprintf("Set a monthly budget for %s and track it weekly to avoid overspending.",
					strings.ToLower(top.Category)),
				Priority: "medium",
			})
		}
	}

	if avgDaily > 0 {
		monthlyProjection := avgDaily * 30
		if totalIncome > 0 && monthlyProjection > totalIncome*0.8 {
			out = append(out, core.Insight{
				InsightType: "budgeting",
				Title:       "High Daily Spending Alert",
				Description: fmt.Sprintf("Your average daily spending of ₹%s projects to ₹%s monthly, which is high relative to your income.",
					formatINR(avgDaily), formatINR(monthlyProjection)),
				Recommendation: "Try setting a daily spending limit to 60% of your income split over 30 days. " +
					"Use UPI payment limits to control impulse purchases.",
				Priority: "high",
			})
		} else {
			out = append(out, core.Insight{
				InsightType:    "optimization",
				Title:          "Spending Pattern Analysis",
				Description:    fmt.Sprintf("Your average daily spending is ₹%s, which seems reasonable for your income level.", formatINR(avgDaily)),
				Recommendation: "Maintain this spending pattern and consider automating your savings to ensure consistent wealth building.",
				Priority:       "low",
			})
		}
	}

	out = append(out, core.Insight{
		InsightType: "optimization",
		Title:       "Digital Payment Benefits",
		Description: "You're using UPI for most transactions, which provides excellent tracking and cashback opportunities.",
		Recommendation: "Link your UPI to a rewards credit card or use payment apps that offer cashback " +
			"to maximize your benefits on routine expenses.",
		Priority: "medium",
	})

	if len(out) == 0 {
		out = append(out, core.Insight{
			InsightType:    "general",
			Title:          "Start Your Financial Journey",
			Description:    "Begin tracking your expenses consistently to unlock personalized insights and recommendations.",
			Recommendation: "Record all your transactions for the next 30 days to get meaningful financial insights and budget recommendations.",
			Priority:       "medium",
		})
	}

	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}

// roundToStep floors an amount to a multiple of step, never below one
// step for positive input.
func roundToStep(amount float64, step int) float64 {
	if amount <= 0 {
		return 0
	}
	rounded := math.Floor(amount/float64(step)) * float64(step)
	return math.Max(float64(step), rounded)
}

// formatINR renders a rounded amount with thousands separators.
func formatINR(amount float64) string {
	digits := strconv.FormatFloat(math.Round(amount), 'f', 0, 64)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
