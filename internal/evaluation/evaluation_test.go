package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/finance-ml/internal/artifact"
	"fjacquet/finance-ml/internal/categorizer"
	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/predictor"
	"fjacquet/finance-ml/internal/recommender"
	"fjacquet/finance-ml/internal/store"
)

var testCategories = []models.CategoryRecord{
	{ID: 1, Name: "Food", Type: "expense"},
	{ID: 2, Name: "Transport", Type: "expense"},
}

func labeledBatch(n int) []models.TransactionRecord {
	foodID, transportID := int64(1), int64(2)
	var out []models.TransactionRecord
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		day := base.AddDate(0, 0, i)
		out = append(out, models.TransactionRecord{
			ID:          int64(2 * i),
			UserID:      int64(10 + i%3),
			Amount:      decimal.NewFromFloat(5 + float64(i%4)),
			Description: fmt.Sprintf("POS Starbucks Coffee Shop %d", 1000+i),
			Date:        models.Date{Time: day},
			Type:        models.TypeExpense,
			CategoryID:  &foodID,
		})
		out = append(out, models.TransactionRecord{
			ID:          int64(2*i + 1),
			UserID:      int64(10 + i%3),
			Amount:      decimal.NewFromFloat(35 + float64(i%6)),
			Description: fmt.Sprintf("Uber Ride Airport %d", 2000+i),
			Date:        models.Date{Time: day},
			Type:        models.TypeExpense,
			CategoryID:  &transportID,
		})
	}
	return out
}

func weeklyExpenses(userID int64, weeks int, base float64) []models.TransactionRecord {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	categoryID := int64(1)
	var out []models.TransactionRecord
	for w := 0; w < weeks; w++ {
		monday := start.AddDate(0, 0, 7*w)
		wobble := float64(w%3) * 5
		out = append(out,
			models.TransactionRecord{
				UserID: userID, Amount: decimal.NewFromFloat(base/2 + wobble),
				Description: "groceries", Date: models.Date{Time: monday},
				Type: models.TypeExpense, CategoryID: &categoryID,
			},
			models.TransactionRecord{
				UserID: userID, Amount: decimal.NewFromFloat(base / 2),
				Description: "transport", Date: models.Date{Time: monday.AddDate(0, 0, 3)},
				Type: models.TypeExpense, CategoryID: &categoryID,
			},
		)
	}
	return out
}

func multiUserBatch(users int) []models.TransactionRecord {
	var out []models.TransactionRecord
	for i := 0; i < users; i++ {
		scale := 100.0
		if i%2 == 1 {
			scale = 400.0
		}
		out = append(out, weeklyExpenses(int64(i+1), 26, scale)...)
	}
	return out
}

func trainedCategorizer(t *testing.T) *categorizer.Categorizer {
	t.Helper()
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	rules := store.NewRuleStore(t.TempDir(), nil)
	c := categorizer.New(artifacts, rules, nil, 0, nil)
	_, err = c.Train(labeledBatch(40), testCategories)
	require.NoError(t, err)
	return c
}

func trainedPredictor(t *testing.T, records []models.TransactionRecord, userID int64) *predictor.Predictor {
	t.Helper()
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	p := predictor.New(artifacts, nil, nil)
	_, err = p.Train(records, userID, predictor.PeriodWeek)
	require.NoError(t, err)
	return p
}

func trainedRecommender(t *testing.T, records []models.TransactionRecord) *recommender.Recommender {
	t.Helper()
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	rules := store.NewRuleStore(t.TempDir(), nil)
	r := recommender.New(artifacts, rules, nil, nil)
	_, err = r.CreateUserClusters(records, testCategories, 2)
	require.NoError(t, err)
	return r
}

func TestEvaluateCategorization(t *testing.T) {
	c := trainedCategorizer(t)
	e := New("", nil)

	result := e.EvaluateCategorization(c, labeledBatch(40), testCategories)
	require.Empty(t, result.Err)

	assert.Greater(t, result.Overall.Accuracy, 0.8)
	assert.Greater(t, result.Overall.F1, 0.0)
	assert.Equal(t, 80, result.TestRows)
	assert.Equal(t, 2, result.UniqueCategories)
	assert.Len(t, result.Labels, 2)
	require.Len(t, result.ConfusionMatrix, 2)
	assert.Len(t, result.ConfusionMatrix[0], 2)

	require.NotNil(t, result.Confidence)
	assert.GreaterOrEqual(t, result.Confidence.Mean, 0.0)
	assert.LessOrEqual(t, result.Confidence.Max, 1.0)
	assert.GreaterOrEqual(t, result.Confidence.Q75, result.Confidence.Q25)

	require.NotNil(t, result.Errors)
	assert.InDelta(t, float64(result.Errors.ErrorCount)/80.0, result.Errors.ErrorRate, 1e-9)
	assert.LessOrEqual(t, len(result.Errors.SampleErrors), 5)

	total := 0
	for _, row := range result.ConfusionMatrix {
		for _, n := range row {
			total += n
		}
	}
	assert.Equal(t, 80, total)
}

func TestEvaluateCategorizationNotTrained(t *testing.T) {
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	c := categorizer.New(artifacts, store.NewRuleStore(t.TempDir(), nil), nil, 0, nil)

	result := New("", nil).EvaluateCategorization(c, labeledBatch(10), testCategories)
	assert.Equal(t, "model not trained", result.Err)
}

func TestEvaluateCategorizationNoLabeledRows(t *testing.T) {
	c := trainedCategorizer(t)
	unlabeled := labeledBatch(5)
	for i := range unlabeled {
		unlabeled[i].CategoryID = nil
	}

	result := New("", nil).EvaluateCategorization(c, unlabeled, testCategories)
	assert.Equal(t, "no categorized test data available", result.Err)
}

func TestEvaluatePrediction(t *testing.T) {
	records := weeklyExpenses(10, 20, 100)
	p := trainedPredictor(t, records, 10)

	result := New("", nil).EvaluatePrediction(p, records, 10)
	require.Empty(t, result.Err)

	assert.Equal(t, int64(10), result.UserID)
	assert.Equal(t, predictor.PeriodWeek, result.Period)
	assert.NotEmpty(t, result.ModelUsed)
	assert.Equal(t, len(result.Actual), len(result.Predicted))
	assert.Equal(t, len(result.Actual), len(result.Dates))
	assert.Equal(t, len(result.Actual), result.TestRows)
	assert.GreaterOrEqual(t, result.Metrics.MAE, 0.0)
	assert.GreaterOrEqual(t, result.Metrics.RMSE, result.Metrics.MAE)
	require.NotNil(t, result.Residuals)
	require.NotNil(t, result.Forecast)
	assert.Len(t, result.Forecast.Predictions, 3)
}

func TestEvaluatePredictionNotTrained(t *testing.T) {
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	p := predictor.New(artifacts, nil, nil)

	result := New("", nil).EvaluatePrediction(p, weeklyExpenses(10, 20, 100), 10)
	assert.Equal(t, "model not trained", result.Err)
}

func TestEvaluateRecommendation(t *testing.T) {
	records := multiUserBatch(6)
	r := trainedRecommender(t, records)

	result := New("", nil).EvaluateRecommendation(r, records, testCategories, nil)
	require.Empty(t, result.Err)

	assert.Len(t, result.SampleUsers, 5)
	assert.Equal(t, 5, result.Overall.UsersEvaluated)
	assert.Equal(t, 1.0, result.Overall.SuccessRate)
	assert.Len(t, result.Recommendations, 5)
	assert.Empty(t, result.Failures)

	for _, quality := range result.Quality {
		assert.Greater(t, quality.CategoryCount, 0)
		assert.True(t, quality.HasFinancial)
		assert.True(t, quality.HasInsights)
		assert.Greater(t, quality.BudgetCoverage, 0.0)
		assert.LessOrEqual(t, quality.BudgetCoverage, 1.0+1e-9)
	}

	require.NotNil(t, result.Clusters)
	assert.Equal(t, 2, result.Clusters.ClusterCount)
	assert.Equal(t, 2, result.Overall.ClustersCreated)
}

func TestEvaluateRecommendationNotFitted(t *testing.T) {
	artifacts, err := artifact.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	r := recommender.New(artifacts, store.NewRuleStore(t.TempDir(), nil), nil, nil)

	result := New("", nil).EvaluateRecommendation(r, multiUserBatch(6), testCategories, nil)
	assert.Equal(t, "recommendation engine not fitted", result.Err)
}

func TestReportSkipsFailedBundles(t *testing.T) {
	e := New("", nil)
	cat := &CategorizationResult{
		Overall:          OverallMetrics{Accuracy: 0.91, Precision: 0.9, Recall: 0.89, F1: 0.895},
		TestRows:         120,
		UniqueCategories: 4,
	}
	pred := &PredictionResult{Err: "model not trained"}
	rec := &RecommendationResult{Overall: RecommendationOverall{SuccessRate: 0.8, UsersEvaluated: 5, ClustersCreated: 3}}

	report := e.Report(cat, pred, rec)
	assert.Contains(t, report, "# Model Evaluation Report")
	assert.Contains(t, report, "Transaction Categorization Model")
	assert.Contains(t, report, "0.910")
	assert.NotContains(t, report, "Spending Prediction Model")
	assert.Contains(t, report, "Budget Recommendation Engine")
	assert.Equal(t, 1, strings.Count(report, "## Transaction Categorization Model"))
}

func TestPlotsWritten(t *testing.T) {
	dir := t.TempDir()
	plotsDir := filepath.Join(dir, "plots")

	c := trainedCategorizer(t)
	e := New(plotsDir, nil)
	result := e.EvaluateCategorization(c, labeledBatch(40), testCategories)
	require.Empty(t, result.Err)

	for _, name := range []string{
		"categorization_confusion_matrix.png",
		"categorization_confidence_dist.png",
	} {
		info, err := os.Stat(filepath.Join(plotsDir, name))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}
