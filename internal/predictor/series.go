package predictor

import (
	"math"
	"sort"
	"time"

	"fjacquet/finance-ml/internal/models"
)

// Period is the aggregation granularity of the spending series.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Valid reports whether p is a supported granularity.
func (p Period) Valid() bool {
	return p == PeriodDay || p == PeriodWeek || p == PeriodMonth
}

// Start truncates t to the opening day of its period. Weeks start on
// Monday.
func (p Period) Start(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// Next returns the start of the period after t. Months step an
// approximate 30 days, matching the forecast horizon arithmetic.
func (p Period) Next(t time.Time, steps int) time.Time {
	switch p {
	case PeriodWeek:
		return t.AddDate(0, 0, 7*steps)
	case PeriodMonth:
		return t.AddDate(0, 0, 30*steps)
	default:
		return t.AddDate(0, 0, steps)
	}
}

// PeriodStat is one aggregated period of a user's expense series.
type PeriodStat struct {
	Start            time.Time
	TotalSpending    float64
	AvgTransaction   float64
	TransactionCount float64
	SpendingStd      float64
	UniqueCategories float64
}

// AggregatePeriods buckets expense transactions into periods, sorted
// ascending by period start. userID zero means all users.
func AggregatePeriods(records []models.TransactionRecord, userID int64, period Period) []PeriodStat {
	type bucket struct {
		amounts    []float64
		categories map[int64]bool
	}
	buckets := make(map[time.Time]*bucket)
	for i := range records {
		tx := &records[i]
		if userID != 0 && tx.UserID != userID {
			continue
		}
		if !tx.IsExpense() || tx.Date.IsZero() {
			continue
		}
		start := period.Start(tx.Date.Time)
		b := buckets[start]
		if b == nil {
			b = &bucket{categories: make(map[int64]bool)}
			buckets[start] = b
		}
		b.amounts = append(b.amounts, tx.AmountFloat())
		if tx.CategoryID != nil {
			b.categories[*tx.CategoryID] = true
		}
	}

	stats := make([]PeriodStat, 0, len(buckets))
	for start, b := range buckets {
		n := float64(len(b.amounts))
		sum := 0.0
		for _, a := range b.amounts {
			sum += a
		}
		mean := sum / n

		std := 0.0
		if len(b.amounts) > 1 {
			ss := 0.0
			for _, a := range b.amounts {
				d := a - mean
				ss += d * d
			}
			std = math.Sqrt(ss / (n - 1))
		}

		stats = append(stats, PeriodStat{
			Start:            start,
			TotalSpending:    sum,
			AvgTransaction:   mean,
			TransactionCount: n,
			SpendingStd:      std,
			UniqueCategories: float64(len(b.categories)),
		})
	}
	sort.Slice(stats, func(a, b int) bool { return stats[a].Start.Before(stats[b].Start) })
	return stats
}

// featureColumns names the regression inputs in vector order. The target
// (total spending of the period) is excluded.
var featureColumns = []string{
	"avg_transaction", "transaction_count", "spending_std", "unique_categories",
	"total_spending_lag_1", "avg_transaction_lag_1", "transaction_count_lag_1",
	"total_spending_lag_2", "avg_transaction_lag_2", "transaction_count_lag_2",
	"total_spending_lag_3", "avg_transaction_lag_3", "transaction_count_lag_3",
	"total_spending_lag_4", "avg_transaction_lag_4", "transaction_count_lag_4",
	"total_spending_roll_mean_2", "total_spending_roll_std_2",
	"total_spending_roll_mean_3", "total_spending_roll_std_3",
	"total_spending_roll_mean_4", "total_spending_roll_std_4",
	"spending_trend", "spending_trend_3period",
	"day_of_week", "day_of_month", "month", "quarter",
	"is_weekend", "is_month_start", "is_month_end", "is_holiday_season",
	"day_of_week_sin", "day_of_week_cos", "month_sin", "month_cos",
}

// seriesMatrix derives the supervised dataset from an aggregated series:
// one feature row and one target per period. Lags beyond the series head
// and unfilled rolling windows contribute zeros.
func seriesMatrix(stats []PeriodStat) ([][]float64, []float64) {
	X := make([][]float64, len(stats))
	y := make([]float64, len(stats))
	for i := range stats {
		X[i] = periodFeatures(stats, i)
		y[i] = stats[i].TotalSpending
	}
	return X, y
}

func periodFeatures(stats []PeriodStat, i int) []float64 {
	cur := stats[i]
	features := make([]float64, 0, len(featureColumns))
	features = append(features, cur.AvgTransaction, cur.TransactionCount, cur.SpendingStd, cur.UniqueCategories)

	for lag := 1; lag <= 4; lag++ {
		if i-lag >= 0 {
			prev := stats[i-lag]
			features = append(features, prev.TotalSpending, prev.AvgTransaction, prev.TransactionCount)
		} else {
			features = append(features, 0, 0, 0)
		}
	}

	for window := 2; window <= 4; window++ {
		mean, std := rollingStats(stats, i, window)
		features = append(features, mean, std)
	}

	features = append(features,
		pctChange(stats, i, 1),
		pctChange(stats, i, 3),
	)
	features = append(features, temporalFeatures(cur.Start)...)
	return features
}

// rollingStats computes mean and sample std of total spending over the
// window ending at index i inclusive. Short windows yield zeros.
func rollingStats(stats []PeriodStat, i, window int) (float64, float64) {
	if i-window+1 < 0 {
		return 0, 0
	}
	sum := 0.0
	for k := i - window + 1; k <= i; k++ {
		sum += stats[k].TotalSpending
	}
	mean := sum / float64(window)

	ss := 0.0
	for k := i - window + 1; k <= i; k++ {
		d := stats[k].TotalSpending - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(window-1))
}

func pctChange(stats []PeriodStat, i, periods int) float64 {
	if i-periods < 0 {
		return 0
	}
	base := stats[i-periods].TotalSpending
	if base == 0 {
		return 0
	}
	return (stats[i].TotalSpending - base) / base
}

func temporalFeatures(start time.Time) []float64 {
	dow := float64((int(start.Weekday()) + 6) % 7)
	month := float64(start.Month())
	return []float64{
		dow,
		float64(start.Day()),
		month,
		float64((int(start.Month())-1)/3 + 1),
		boolFeature(dow >= 5),
		boolFeature(start.Day() <= 3),
		boolFeature(start.Day() >= 28),
		boolFeature(start.Month() == time.November || start.Month() == time.December),
		math.Sin(2 * math.Pi * dow / 7),
		math.Cos(2 * math.Pi * dow / 7),
		math.Sin(2 * math.Pi * month / 12),
		math.Cos(2 * math.Pi * month / 12),
	}
}

// futureFeatures builds the input row for a period that has not happened
// yet. Lags and rolling windows read the observed tail of the series
// only; earlier forecasts are never fed back in, so a long horizon decays
// toward the historical mean instead of compounding its own errors.
func futureFeatures(stats []PeriodStat, futureStart time.Time) []float64 {
	n := len(stats)
	features := make([]float64, 0, len(featureColumns))

	// Current-period aggregates are unknown for a future period except
	// the category spread, approximated by its historical mean.
	uniqueMean := 0.0
	for i := range stats {
		uniqueMean += stats[i].UniqueCategories
	}
	if n > 0 {
		uniqueMean /= float64(n)
	}
	features = append(features, 0, 0, 0, uniqueMean)

	for lag := 1; lag <= 4; lag++ {
		if n-lag >= 0 {
			prev := stats[n-lag]
			features = append(features, prev.TotalSpending, prev.AvgTransaction, prev.TransactionCount)
		} else {
			features = append(features, 0, 0, 0)
		}
	}

	for window := 2; window <= 4; window++ {
		mean, std := rollingStats(stats, n-1, window)
		features = append(features, mean, std)
	}

	features = append(features,
		pctChange(stats, n-1, 1),
		pctChange(stats, n-1, 3),
	)
	features = append(features, temporalFeatures(futureStart)...)
	return features
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
