package predictor

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/finance-ml/internal/artifact"
	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
)

func expense(userID int64, amount float64, day time.Time, categoryID int64) models.TransactionRecord {
	tx := models.TransactionRecord{
		UserID:      userID,
		Amount:      decimal.NewFromFloat(amount),
		Description: "expense",
		Date:        models.Date{Time: day},
		Type:        models.TypeExpense,
	}
	if categoryID != 0 {
		tx.CategoryID = &categoryID
	}
	return tx
}

// weeklyHistory builds weeks of steady spending: three transactions per
// week summing to base plus a small deterministic wobble.
func weeklyHistory(userID int64, weeks int, base float64) []models.TransactionRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday
	var out []models.TransactionRecord
	for w := 0; w < weeks; w++ {
		monday := start.AddDate(0, 0, 7*w)
		wobble := float64(w%3) * 5
		out = append(out,
			expense(userID, base/2+wobble, monday, 1),
			expense(userID, base/4, monday.AddDate(0, 0, 2), 2),
			expense(userID, base/4, monday.AddDate(0, 0, 4), 1),
		)
	}
	return out
}

func newTestPredictor(t *testing.T) *Predictor {
	t.Helper()
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return New(artifacts, nil, nil)
}

func TestAggregatePeriodsWeekly(t *testing.T) {
	records := weeklyHistory(10, 3, 100)
	stats := AggregatePeriods(records, 10, PeriodWeek)

	require.Len(t, stats, 3)
	assert.True(t, stats[0].Start.Before(stats[1].Start))
	assert.Equal(t, time.Monday, stats[0].Start.Weekday())
	assert.InDelta(t, 100.0, stats[0].TotalSpending, 1e-9)
	assert.Equal(t, 3.0, stats[0].TransactionCount)
	assert.Equal(t, 2.0, stats[0].UniqueCategories)
}

func TestAggregatePeriodsFiltersUserAndType(t *testing.T) {
	day := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)
	records := []models.TransactionRecord{
		expense(10, 50, day, 1),
		expense(99, 500, day, 1),
		{
			UserID: 10,
			Amount: decimal.NewFromFloat(2000),
			Date:   models.Date{Time: day},
			Type:   models.TypeIncome,
		},
	}

	stats := AggregatePeriods(records, 10, PeriodMonth)
	require.Len(t, stats, 1)
	assert.InDelta(t, 50.0, stats[0].TotalSpending, 1e-9)
}

func TestSeriesMatrixShape(t *testing.T) {
	stats := AggregatePeriods(weeklyHistory(10, 12, 100), 10, PeriodWeek)
	X, y := seriesMatrix(stats)

	require.Len(t, X, 12)
	require.Len(t, y, 12)
	assert.Len(t, X[0], len(featureColumns))

	// Lags at the series head are zero-filled, later rows carry them.
	assert.Equal(t, 0.0, X[0][4])
	assert.InDelta(t, y[3], X[4][4], 1e-9)
}

func TestTrainSelectsRegressor(t *testing.T) {
	p := newTestPredictor(t)
	scores, err := p.Train(weeklyHistory(10, 16, 100), 10, PeriodWeek)
	require.NoError(t, err)

	require.Contains(t, scores, "random_forest")
	require.Contains(t, scores, "gradient_boosting")
	require.Contains(t, scores, "linear_regression")
	require.Contains(t, scores, "ridge_regression")
	assert.True(t, p.Trained())

	best := math.Inf(1)
	for _, s := range scores {
		if s.CVMAE < best {
			best = s.CVMAE
		}
	}
	assert.False(t, math.IsInf(best, 1))
}

func TestTrainTooFewPeriods(t *testing.T) {
	p := newTestPredictor(t)
	_, err := p.Train(weeklyHistory(10, 6, 100), 10, PeriodWeek)

	var insufficient *mlerror.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, MinPeriods, insufficient.Want)
	assert.Equal(t, 6, insufficient.Got)
}

func TestTrainRejectsBadPeriod(t *testing.T) {
	p := newTestPredictor(t)
	_, err := p.Train(weeklyHistory(10, 16, 100), 10, Period("fortnight"))
	assert.Error(t, err)
}

func TestPredictFutureSpending(t *testing.T) {
	records := weeklyHistory(10, 16, 100)
	p := newTestPredictor(t)
	_, err := p.Train(records, 10, PeriodWeek)
	require.NoError(t, err)

	forecast, err := p.PredictFutureSpending(records, 10, 3)
	require.NoError(t, err)
	require.Len(t, forecast.Predictions, 3)
	assert.Equal(t, PeriodWeek, forecast.PeriodType)
	assert.NotEmpty(t, forecast.ModelUsed)

	lastObserved := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*15)
	for i, point := range forecast.Predictions {
		assert.GreaterOrEqual(t, point.Amount, 0.0)
		assert.GreaterOrEqual(t, point.Amount, point.Lower)
		assert.LessOrEqual(t, point.Amount, point.Upper)
		assert.GreaterOrEqual(t, point.Lower, 0.0)
		assert.Equal(t, lastObserved.AddDate(0, 0, 7*(i+1)), point.Date)
	}

	// Forecast magnitude should stay in the neighborhood of history.
	assert.InDelta(t, 105, forecast.Predictions[0].Amount, 60)
}

func TestForecastSinkReceivesPoints(t *testing.T) {
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	var stored []models.PredictionRecord
	sink := models.PredictionSinkFunc(func(record models.PredictionRecord) error {
		stored = append(stored, record)
		return nil
	})

	records := weeklyHistory(10, 16, 100)
	p := New(artifacts, sink, nil)
	_, err = p.Train(records, 10, PeriodWeek)
	require.NoError(t, err)

	_, err = p.PredictFutureSpending(records, 10, 2)
	require.NoError(t, err)

	require.Len(t, stored, 2)
	assert.Equal(t, models.KindSpending, stored[0].Kind)
	assert.Equal(t, int64(10), stored[0].UserID)
	assert.Equal(t, "week", stored[0].Period)
	assert.True(t, stored[0].ValidUntil.After(stored[0].ValidFrom))
}

func TestPredictBeforeTrain(t *testing.T) {
	p := newTestPredictor(t)
	_, err := p.PredictFutureSpending(weeklyHistory(10, 16, 100), 10, 2)
	var notTrained *mlerror.NotTrainedError
	assert.True(t, errors.As(err, &notTrained))
}

func TestDetectSpendingAnomaliesSpike(t *testing.T) {
	records := weeklyHistory(10, 14, 100)
	// One week with a five-sigma style blowout.
	spikeDay := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*14)
	records = append(records, expense(10, 1500, spikeDay, 1))

	p := newTestPredictor(t)
	anomalies, err := p.DetectSpendingAnomalies(records, 10, PeriodWeek, 2.0)
	require.NoError(t, err)

	require.Len(t, anomalies, 1)
	assert.Equal(t, spikeDay.Format("2006-01-02"), anomalies[0].Period)
	assert.Equal(t, "high", anomalies[0].Type)
	assert.Equal(t, "high", anomalies[0].Severity)
	assert.Greater(t, anomalies[0].ZScore, 3.0)
}

func TestDetectSpendingAnomaliesConstantSeries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []models.TransactionRecord
	for w := 0; w < 12; w++ {
		records = append(records, expense(10, 100, start.AddDate(0, 0, 7*w), 1))
	}

	p := newTestPredictor(t)
	anomalies, err := p.DetectSpendingAnomalies(records, 10, PeriodWeek, 2.0)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestSpendingInsights(t *testing.T) {
	records := weeklyHistory(10, 8, 100)
	insights, err := SpendingInsights(records, 10)
	require.NoError(t, err)

	assert.Equal(t, 24, insights.TransactionCount)
	assert.InDelta(t, 835.0, insights.TotalSpending, 1e-9)
	assert.NotEmpty(t, insights.TopCategories)
	assert.Equal(t, int64(1), insights.TopCategories[0].CategoryID)
	assert.NotEmpty(t, insights.SpendingByDay)
	assert.NotEmpty(t, insights.MonthlyTrend)
}

func TestSpendingInsightsNoExpenses(t *testing.T) {
	_, err := SpendingInsights(weeklyHistory(10, 8, 100), 999)
	var insufficient *mlerror.InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	records := weeklyHistory(10, 16, 100)
	trained := New(artifacts, nil, nil)
	_, err = trained.Train(records, 10, PeriodWeek)
	require.NoError(t, err)
	require.NoError(t, trained.Save())

	restored := New(artifacts, nil, nil)
	require.NoError(t, restored.Load())
	require.True(t, restored.Trained())

	want, err := trained.PredictFutureSpending(records, 10, 2)
	require.NoError(t, err)
	got, err := restored.PredictFutureSpending(records, 10, 2)
	require.NoError(t, err)
	require.Len(t, got.Predictions, 2)
	assert.Equal(t, want.ModelUsed, got.ModelUsed)
	assert.InDelta(t, want.Predictions[0].Amount, got.Predictions[0].Amount, 1e-9)
}
