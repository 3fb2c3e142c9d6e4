package predictor

import (
	"sort"
	"time"

	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
)

// CategoryTotal is one category's spending total.
type CategoryTotal struct {
	CategoryID int64   `json:"category_id"`
	Total      float64 `json:"total"`
}

// MonthTotal is one calendar month's spending total.
type MonthTotal struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

// Insights summarizes a user's expense history without any model.
type Insights struct {
	TotalSpending    float64            `json:"total_spending"`
	AvgTransaction   float64            `json:"avg_transaction"`
	TransactionCount int                `json:"transaction_count"`
	TopCategories    []CategoryTotal    `json:"top_categories"`
	SpendingByDay    map[string]float64 `json:"spending_by_day"`
	MonthlyTrend     []MonthTotal       `json:"monthly_trend"`
	WeekendAvg       float64            `json:"weekend_avg"`
	WeekdayAvg       float64            `json:"weekday_avg"`
}

// SpendingInsights aggregates descriptive spending patterns for a user.
// It needs no trained model, only expense history.
func SpendingInsights(records []models.TransactionRecord, userID int64) (*Insights, error) {
	var expenses []models.TransactionRecord
	for i := range records {
		if records[i].UserID == userID && records[i].IsExpense() {
			expenses = append(expenses, records[i])
		}
	}
	if len(expenses) == 0 {
		return nil, &mlerror.InsufficientDataError{
			Component: "predictor",
			Unit:      "expense transactions",
			Got:       0,
			Want:      1,
		}
	}

	insights := &Insights{
		TransactionCount: len(expenses),
		SpendingByDay:    make(map[string]float64),
	}

	byCategory := make(map[int64]float64)
	byMonth := make(map[string]float64)
	daySums := make(map[string]float64)
	dayCounts := make(map[string]int)
	var weekendSum, weekdaySum float64
	var weekendCount, weekdayCount int

	for i := range expenses {
		tx := &expenses[i]
		amount := tx.AmountFloat()
		insights.TotalSpending += amount

		if tx.CategoryID != nil {
			byCategory[*tx.CategoryID] += amount
		}
		if !tx.Date.IsZero() {
			day := tx.Date.Weekday().String()
			daySums[day] += amount
			dayCounts[day]++

			byMonth[tx.Date.Format("2006-01")] += amount

			if tx.Date.Weekday() == time.Saturday || tx.Date.Weekday() == time.Sunday {
				weekendSum += amount
				weekendCount++
			} else {
				weekdaySum += amount
				weekdayCount++
			}
		}
	}

	insights.AvgTransaction = insights.TotalSpending / float64(len(expenses))
	for day, sum := range daySums {
		insights.SpendingByDay[day] = sum / float64(dayCounts[day])
	}
	if weekendCount > 0 {
		insights.WeekendAvg = weekendSum / float64(weekendCount)
	}
	if weekdayCount > 0 {
		insights.WeekdayAvg = weekdaySum / float64(weekdayCount)
	}

	for id, total := range byCategory {
		insights.TopCategories = append(insights.TopCategories, CategoryTotal{CategoryID: id, Total: total})
	}
	sort.Slice(insights.TopCategories, func(a, b int) bool {
		if insights.TopCategories[a].Total != insights.TopCategories[b].Total {
			return insights.TopCategories[a].Total > insights.TopCategories[b].Total
		}
		return insights.TopCategories[a].CategoryID < insights.TopCategories[b].CategoryID
	})
	if len(insights.TopCategories) > 5 {
		insights.TopCategories = insights.TopCategories[:5]
	}

	for month, total := range byMonth {
		insights.MonthlyTrend = append(insights.MonthlyTrend, MonthTotal{Month: month, Total: total})
	}
	sort.Slice(insights.MonthlyTrend, func(a, b int) bool {
		return insights.MonthlyTrend[a].Month < insights.MonthlyTrend[b].Month
	})
	if len(insights.MonthlyTrend) > 6 {
		insights.MonthlyTrend = insights.MonthlyTrend[len(insights.MonthlyTrend)-6:]
	}

	return insights, nil
}
