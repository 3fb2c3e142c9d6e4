package recommender

import (
	"math"
	"sort"
	"time"

	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
)

// SpendingStats are the headline numbers of a user's expense history.
type SpendingStats struct {
	TotalSpending      float64 `json:"total_spending"`
	AvgMonthlySpending float64 `json:"avg_monthly_spending"`
	AvgTransaction     float64 `json:"avg_transaction_amount"`
	MedianTransaction  float64 `json:"median_transaction_amount"`
	SpendingVariance   float64 `json:"spending_variance"`
	MaxTransaction     float64 `json:"max_transaction"`
	TxFrequency        float64 `json:"transaction_frequency"`
}

// IncomeStats summarize a user's income transactions when present.
type IncomeStats struct {
	TotalIncome      float64 `json:"total_income"`
	AvgMonthlyIncome float64 `json:"avg_monthly_income"`
	IncomeFrequency  float64 `json:"income_frequency"`
}

// BehaviorIndicators capture spending discipline signals. Consistency is
// the coefficient of variation of monthly totals, so lower is steadier.
type BehaviorIndicators struct {
	ImpulseScore     float64 `json:"impulse_spending_score"`
	LargeTxFrequency float64 `json:"large_transaction_frequency"`
	Consistency      float64 `json:"spending_consistency"`
	OverspendingFreq float64 `json:"overspending_frequency"`
}

// TemporalPatterns capture when the user spends. Weekly is keyed by
// weekday name, Monthly by day of month, Seasonal by calendar month;
// each value is the mean expense amount for that bucket.
type TemporalPatterns struct {
	Weekly     map[string]float64     `json:"weekly_pattern"`
	Monthly    map[int]float64        `json:"monthly_pattern"`
	Seasonal   map[time.Month]float64 `json:"seasonal_pattern"`
	WeekendAvg float64                `json:"weekend_avg"`
	WeekdayAvg float64                `json:"weekday_avg"`
	Volatility float64                `json:"spending_volatility"`
}

// CategoryBreakdown is one category's share of a user's spending.
type CategoryBreakdown struct {
	Name       string  `json:"category_name"`
	Total      float64 `json:"sum"`
	Avg        float64 `json:"mean"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// UserProfile is the full spending analysis of one user.
type UserProfile struct {
	UserID         int64               `json:"user_id"`
	AnalysisMonths float64             `json:"analysis_period_months"`
	Transactions   int                 `json:"total_transactions"`
	Start          time.Time           `json:"start"`
	End            time.Time           `json:"end"`
	Stats          SpendingStats       `json:"spending_stats"`
	Categories     []CategoryBreakdown `json:"category_breakdown"`
	Temporal       TemporalPatterns    `json:"temporal_patterns"`
	Behavior       BehaviorIndicators  `json:"behavior_indicators"`
	Income         *IncomeStats        `json:"income_stats,omitempty"`
}

// AnalyzeUserProfile computes a user's spending profile from the
// transaction history. Users with no expense rows yield
// InsufficientDataError.
func AnalyzeUserProfile(records []models.TransactionRecord, categories []models.CategoryRecord, userID int64) (*UserProfile, error) {
	var expenses []models.TransactionRecord
	var income []models.TransactionRecord
	for i := range records {
		if records[i].UserID != userID {
			continue
		}
		if records[i].IsExpense() {
			expenses = append(expenses, records[i])
		} else {
			income = append(income, records[i])
		}
	}
	if len(expenses) == 0 {
		return nil, &mlerror.InsufficientDataError{
			Component: "recommender",
			Unit:      "expense transactions",
			Got:       0,
			Want:      1,
		}
	}

	start, end := expenses[0].Date.Time, expenses[0].Date.Time
	amounts := make([]float64, len(expenses))
	for i := range expenses {
		amounts[i] = expenses[i].AmountFloat()
		d := expenses[i].Date.Time
		if d.Before(start) {
			start = d
		}
		if d.After(end) {
			end = d
		}
	}
	months := math.Max(1, end.Sub(start).Hours()/24/30)

	profile := &UserProfile{
		UserID:         userID,
		AnalysisMonths: months,
		Transactions:   len(expenses),
		Start:          start,
		End:            end,
	}

	total := sum(amounts)
	profile.Stats = SpendingStats{
		TotalSpending:      total,
		AvgMonthlySpending: total / months,
		AvgTransaction:     total / float64(len(amounts)),
		MedianTransaction:  median(amounts),
		SpendingVariance:   variance(amounts),
		MaxTransaction:     maxOf(amounts),
		TxFrequency:        float64(len(amounts)) / months,
	}
	profile.Categories = categoryBreakdown(expenses, categories)
	profile.Temporal = temporalPatterns(expenses)
	profile.Behavior = behaviorIndicators(expenses, amounts)

	if len(income) > 0 {
		incomeTotal := 0.0
		for i := range income {
			incomeTotal += income[i].AmountFloat()
		}
		profile.Income = &IncomeStats{
			TotalIncome:      incomeTotal,
			AvgMonthlyIncome: incomeTotal / months,
			IncomeFrequency:  float64(len(income)) / months,
		}
	}
	return profile, nil
}

// clusterFeatures flattens the six behavioral dimensions used for user
// clustering, in a fixed order.
func clusterFeatures(p *UserProfile) []float64 {
	return []float64{
		p.Stats.AvgMonthlySpending,
		p.Stats.SpendingVariance,
		p.Stats.TxFrequency,
		p.Behavior.ImpulseScore,
		p.Behavior.Consistency,
		p.Temporal.Volatility,
	}
}

func categoryBreakdown(expenses []models.TransactionRecord, categories []models.CategoryRecord) []CategoryBreakdown {
	nameByID := make(map[int64]string, len(categories))
	for i := range categories {
		nameByID[categories[i].ID] = categories[i].Name
	}

	type agg struct {
		total float64
		count int
	}
	byName := make(map[string]*agg)
	grand := 0.0
	for i := range expenses {
		if expenses[i].CategoryID == nil {
			continue
		}
		name, ok := nameByID[*expenses[i].CategoryID]
		if !ok {
			continue
		}
		a := byName[name]
		if a == nil {
			a = &agg{}
			byName[name] = a
		}
		amount := expenses[i].AmountFloat()
		a.total += amount
		a.count++
		grand += amount
	}
	if grand == 0 {
		return nil
	}

	out := make([]CategoryBreakdown, 0, len(byName))
	for name, a := range byName {
		out = append(out, CategoryBreakdown{
			Name:       name,
			Total:      a.total,
			Avg:        a.total / float64(a.count),
			Count:      a.count,
			Percentage: a.total / grand * 100,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Total != out[b].Total {
			return out[a].Total > out[b].Total
		}
		return out[a].Name < out[b].Name
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func temporalPatterns(expenses []models.TransactionRecord) TemporalPatterns {
	var weekendSum, weekdaySum float64
	var weekendCount, weekdayCount int
	daily := make(map[string][]float64)

	type bucket struct {
		total float64
		count int
	}
	weekly := make(map[string]*bucket)
	monthly := make(map[int]*bucket)
	seasonal := make(map[time.Month]*bucket)
	add := func(b *bucket, amount float64) *bucket {
		if b == nil {
			b = &bucket{}
		}
		b.total += amount
		b.count++
		return b
	}

	for i := range expenses {
		d := expenses[i].Date.Time
		amount := expenses[i].AmountFloat()
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			weekendSum += amount
			weekendCount++
		} else {
			weekdaySum += amount
			weekdayCount++
		}
		weekly[d.Weekday().String()] = add(weekly[d.Weekday().String()], amount)
		monthly[d.Day()] = add(monthly[d.Day()], amount)
		seasonal[d.Month()] = add(seasonal[d.Month()], amount)

		key := d.Format("2006-01-02")
		daily[key] = append(daily[key], amount)
	}

	patterns := TemporalPatterns{
		Weekly:   make(map[string]float64, len(weekly)),
		Monthly:  make(map[int]float64, len(monthly)),
		Seasonal: make(map[time.Month]float64, len(seasonal)),
	}
	for day, b := range weekly {
		patterns.Weekly[day] = b.total / float64(b.count)
	}
	for day, b := range monthly {
		patterns.Monthly[day] = b.total / float64(b.count)
	}
	for month, b := range seasonal {
		patterns.Seasonal[month] = b.total / float64(b.count)
	}
	if weekendCount > 0 {
		patterns.WeekendAvg = weekendSum / float64(weekendCount)
	}
	if weekdayCount > 0 {
		patterns.WeekdayAvg = weekdaySum / float64(weekdayCount)
	}

	dayTotals := make([]float64, 0, len(daily))
	for _, amounts := range daily {
		dayTotals = append(dayTotals, sum(amounts))
	}
	if mean := sum(dayTotals) / float64(len(dayTotals)); mean > 0 && len(dayTotals) > 1 {
		patterns.Volatility = math.Sqrt(variance(dayTotals)) / mean
	}
	return patterns
}

func behaviorIndicators(expenses []models.TransactionRecord, amounts []float64) BehaviorIndicators {
	indicators := BehaviorIndicators{}
	mean := sum(amounts) / float64(len(amounts))
	if mean > 0 {
		indicators.ImpulseScore = math.Sqrt(variance(amounts)) / mean
	}

	largeThreshold := quantile(amounts, 0.9)
	typical := quantile(amounts, 0.75)
	large, over := 0, 0
	for _, a := range amounts {
		if a > largeThreshold {
			large++
		}
		if a > typical*1.5 {
			over++
		}
	}
	indicators.LargeTxFrequency = float64(large) / float64(len(amounts))
	indicators.OverspendingFreq = float64(over) / float64(len(amounts))

	monthly := make(map[string]float64)
	for i := range expenses {
		monthly[expenses[i].Date.Format("2006-01")] += expenses[i].AmountFloat()
	}
	if len(monthly) > 1 {
		totals := make([]float64, 0, len(monthly))
		for _, t := range monthly {
			totals = append(totals, t)
		}
		if m := sum(totals) / float64(len(totals)); m > 0 {
			indicators.Consistency = math.Sqrt(variance(totals)) / m
		}
	}
	return indicators
}

func sum(v []float64) float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	return total
}

func maxOf(v []float64) float64 {
	best := v[0]
	for _, x := range v[1:] {
		if x > best {
			best = x
		}
	}
	return best
}

// variance is the sample variance, zero for fewer than two values.
func variance(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	mean := sum(v) / float64(len(v))
	ss := 0.0
	for _, x := range v {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(v)-1)
}

func median(v []float64) float64 {
	return quantile(v, 0.5)
}

// quantile uses linear interpolation between order statistics.
func quantile(v []float64, q float64) float64 {
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
