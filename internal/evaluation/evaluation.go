// Package evaluation scores the trained models without mutating them.
// Every evaluate function fails softly: a missing or untrained model
// produces a result carrying an Err string instead of an error return,
// so batch evaluation across models is fault isolated.
package evaluation

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"fjacquet/finance-ml/internal/categorizer"
	"fjacquet/finance-ml/internal/estimator"
	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/predictor"
	"fjacquet/finance-ml/internal/recommender"
)

// Evaluator scores trained models and optionally writes diagnostic plot
// files.
type Evaluator struct {
	plotsDir string
	log      logging.Logger
}

// New returns an evaluator. An empty plotsDir disables plot files.
func New(plotsDir string, logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Evaluator{plotsDir: plotsDir, log: logger}
}

// OverallMetrics are the headline classification scores, support-weighted
// across categories.
type OverallMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
}

// ConfidenceAnalysis describes the prediction confidence distribution.
type ConfidenceAnalysis struct {
	Mean      float64 `json:"mean_confidence"`
	Median    float64 `json:"median_confidence"`
	Std       float64 `json:"std_confidence"`
	Min       float64 `json:"min_confidence"`
	Max       float64 `json:"max_confidence"`
	Q25       float64 `json:"q25"`
	Q50       float64 `json:"q50"`
	Q75       float64 `json:"q75"`
	LowCount  int     `json:"low_confidence_count"`
	HighCount int     `json:"high_confidence_count"`
}

// ConfusedPair is one actual/predicted category confusion with its count.
type ConfusedPair struct {
	Actual    string `json:"actual_category"`
	Predicted string `json:"predicted_category"`
	Count     int    `json:"count"`
}

// SampleError is one misclassified transaction kept for review.
type SampleError struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Actual      string  `json:"actual_category"`
	Predicted   string  `json:"predicted_category"`
	Confidence  float64 `json:"confidence"`
}

// ErrorAnalysis describes the misclassifications in detail.
type ErrorAnalysis struct {
	ErrorCount         int            `json:"error_count"`
	ErrorRate          float64        `json:"error_rate"`
	ConfusedCategories []ConfusedPair `json:"confused_categories,omitempty"`
	ErrorsByConfidence map[string]int `json:"errors_by_confidence,omitempty"`
	AvgErrorConfidence float64        `json:"avg_error_confidence"`
	SampleErrors       []SampleError  `json:"sample_errors,omitempty"`
}

// CategorizationResult is the categorization evaluation bundle.
type CategorizationResult struct {
	Err                 string              `json:"error,omitempty"`
	Overall             OverallMetrics      `json:"overall_metrics"`
	PerCategoryAccuracy map[string]float64  `json:"per_category_accuracy,omitempty"`
	Labels              []string            `json:"labels,omitempty"`
	ConfusionMatrix     [][]int             `json:"confusion_matrix,omitempty"`
	Confidence          *ConfidenceAnalysis `json:"confidence_analysis,omitempty"`
	Errors              *ErrorAnalysis      `json:"error_analysis,omitempty"`
	TestRows            int                 `json:"test_data_size"`
	UniqueCategories    int                 `json:"unique_categories"`
	EvaluatedAt         time.Time           `json:"evaluation_timestamp"`
}

// EvaluateCategorization scores the categorizer on labeled test rows.
func (e *Evaluator) EvaluateCategorization(c *categorizer.Categorizer, test []models.TransactionRecord, categories []models.CategoryRecord) *CategorizationResult {
	result := &CategorizationResult{EvaluatedAt: time.Now().UTC()}

	e.log.Info("Evaluating categorization model")
	if !c.Trained() {
		result.Err = "model not trained"
		return result
	}

	index := models.NewCategoryIndex(categories)
	var rows []models.TransactionRecord
	var actual []string
	for i := range test {
		if test[i].CategoryID == nil {
			continue
		}
		name, ok := index.Name(*test[i].CategoryID)
		if !ok {
			continue
		}
		rows = append(rows, test[i])
		actual = append(actual, name)
	}
	if len(rows) == 0 {
		result.Err = "no categorized test data available"
		return result
	}

	preds, err := c.PredictBatch(rows)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	predicted := make([]string, len(preds))
	confidences := make([]float64, len(preds))
	for i := range preds {
		predicted[i] = preds[i].CategoryName
		confidences[i] = preds[i].Confidence
	}

	labels := labelUnion(actual, predicted)
	yTrue := encodeLabels(actual, labels)
	yPred := encodeLabels(predicted, labels)

	result.Overall.Accuracy = estimator.Accuracy(yTrue, yPred)
	result.Overall.Precision, result.Overall.Recall, result.Overall.F1 = estimator.PrecisionRecallF1(yTrue, yPred)
	result.Labels = labels
	result.ConfusionMatrix = estimator.ConfusionMatrix(yTrue, yPred, len(labels))
	result.PerCategoryAccuracy = perCategoryAccuracy(actual, predicted)
	result.Confidence = analyzeConfidence(confidences)
	result.Errors = analyzeErrors(rows, actual, preds)
	result.TestRows = len(rows)
	result.UniqueCategories = countDistinct(actual)

	if e.plotsDir != "" {
		if err := e.plotCategorization(result, confidences); err != nil {
			e.log.WithError(err).Warn("Could not generate categorization plots")
		}
	}

	e.log.WithField("accuracy", result.Overall.Accuracy).Info("Categorization model evaluation complete")
	return result
}

func analyzeConfidence(confidences []float64) *ConfidenceAnalysis {
	sorted := append([]float64(nil), confidences...)
	sort.Float64s(sorted)

	analysis := &ConfidenceAnalysis{
		Mean:   stat.Mean(confidences, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Q25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Q50:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
	if len(confidences) > 1 {
		analysis.Std = stat.StdDev(confidences, nil)
	}
	for _, conf := range confidences {
		if conf < 0.5 {
			analysis.LowCount++
		}
		if conf > 0.8 {
			analysis.HighCount++
		}
	}
	return analysis
}

func analyzeErrors(rows []models.TransactionRecord, actual []string, preds []categorizer.Prediction) *ErrorAnalysis {
	analysis := &ErrorAnalysis{ErrorsByConfidence: map[string]int{}}

	pairCounts := make(map[ConfusedPair]int)
	confidenceSum := 0.0
	for i := range rows {
		if preds[i].CategoryName == actual[i] {
			continue
		}
		analysis.ErrorCount++
		confidenceSum += preds[i].Confidence
		pairCounts[ConfusedPair{Actual: actual[i], Predicted: preds[i].CategoryName}]++

		switch conf := preds[i].Confidence; {
		case conf < 0.3:
			analysis.ErrorsByConfidence["very_low"]++
		case conf < 0.5:
			analysis.ErrorsByConfidence["low"]++
		case conf < 0.8:
			analysis.ErrorsByConfidence["medium"]++
		default:
			analysis.ErrorsByConfidence["high"]++
		}

		if len(analysis.SampleErrors) < 5 {
			analysis.SampleErrors = append(analysis.SampleErrors, SampleError{
				Description: rows[i].Description,
				Amount:      rows[i].AmountFloat(),
				Actual:      actual[i],
				Predicted:   preds[i].CategoryName,
				Confidence:  preds[i].Confidence,
			})
		}
	}
	if analysis.ErrorCount == 0 {
		return &ErrorAnalysis{}
	}

	analysis.ErrorRate = float64(analysis.ErrorCount) / float64(len(rows))
	analysis.AvgErrorConfidence = confidenceSum / float64(analysis.ErrorCount)

	for pair, count := range pairCounts {
		pair.Count = count
		analysis.ConfusedCategories = append(analysis.ConfusedCategories, pair)
	}
	sort.Slice(analysis.ConfusedCategories, func(a, b int) bool {
		x, y := analysis.ConfusedCategories[a], analysis.ConfusedCategories[b]
		if x.Count != y.Count {
			return x.Count > y.Count
		}
		if x.Actual != y.Actual {
			return x.Actual < y.Actual
		}
		return x.Predicted < y.Predicted
	})
	if len(analysis.ConfusedCategories) > 10 {
		analysis.ConfusedCategories = analysis.ConfusedCategories[:10]
	}
	return analysis
}

// RegressionMetrics are the headline forecast scores.
type RegressionMetrics struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2_score"`
	MAPE float64 `json:"mape"`
}

// ResidualAnalysis describes the holdout residual distribution.
type ResidualAnalysis struct {
	Mean     float64 `json:"mean_residual"`
	Std      float64 `json:"std_residual"`
	MaxAbs   float64 `json:"max_residual"`
	Skewness float64 `json:"residual_skewness"`
	Kurtosis float64 `json:"residual_kurtosis"`
}

// PredictionResult is the spending prediction evaluation bundle.
type PredictionResult struct {
	Err         string              `json:"error,omitempty"`
	UserID      int64               `json:"user_id"`
	Period      predictor.Period    `json:"period,omitempty"`
	Metrics     RegressionMetrics   `json:"metrics"`
	Residuals   *ResidualAnalysis   `json:"residual_analysis,omitempty"`
	Actual      []float64           `json:"actual,omitempty"`
	Predicted   []float64           `json:"predicted,omitempty"`
	Dates       []time.Time         `json:"dates,omitempty"`
	Forecast    *predictor.Forecast `json:"future_predictions,omitempty"`
	TestRows    int                 `json:"test_data_size"`
	ModelUsed   string              `json:"model_used,omitempty"`
	EvaluatedAt time.Time           `json:"evaluation_timestamp"`
}

// EvaluatePrediction scores the spending predictor on a chronological
// holdout of the user's series.
func (e *Evaluator) EvaluatePrediction(p *predictor.Predictor, records []models.TransactionRecord, userID int64) *PredictionResult {
	result := &PredictionResult{UserID: userID, EvaluatedAt: time.Now().UTC()}

	e.log.WithField("user_id", userID).Info("Evaluating prediction model")
	if !p.Trained() {
		result.Err = "model not trained"
		return result
	}

	actual, predicted, dates, err := p.HoldoutPredictions(records, userID)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	result.Period = p.ModelPeriod()
	result.ModelUsed = p.Algorithm()
	result.Actual = actual
	result.Predicted = predicted
	result.Dates = dates
	result.TestRows = len(actual)
	result.Metrics = RegressionMetrics{
		MAE:  estimator.MAE(actual, predicted),
		MSE:  estimator.MSE(actual, predicted),
		RMSE: estimator.RMSE(actual, predicted),
		R2:   estimator.R2(actual, predicted),
		MAPE: estimator.MAPE(actual, predicted),
	}
	result.Residuals = analyzeResiduals(actual, predicted)

	if forecast, err := p.PredictFutureSpending(records, userID, 3); err == nil {
		result.Forecast = forecast
	}

	if e.plotsDir != "" {
		if err := e.plotPrediction(result); err != nil {
			e.log.WithError(err).Warn("Could not generate prediction plots")
		}
	}

	e.log.WithFields(
		logging.Field{Key: "rmse", Value: result.Metrics.RMSE},
		logging.Field{Key: "r2", Value: result.Metrics.R2},
	).Info("Prediction model evaluation complete")
	return result
}

func analyzeResiduals(actual, predicted []float64) *ResidualAnalysis {
	residuals := make([]float64, len(actual))
	maxAbs := 0.0
	for i := range actual {
		residuals[i] = actual[i] - predicted[i]
		if abs := math.Abs(residuals[i]); abs > maxAbs {
			maxAbs = abs
		}
	}
	analysis := &ResidualAnalysis{
		Mean:   stat.Mean(residuals, nil),
		MaxAbs: maxAbs,
	}
	if len(residuals) > 1 {
		analysis.Std = stat.StdDev(residuals, nil)
	}
	if len(residuals) > 2 && analysis.Std > 0 {
		analysis.Skewness = stat.Skew(residuals, nil)
		analysis.Kurtosis = stat.ExKurtosis(residuals, nil)
	}
	return analysis
}

// QualityMetrics judge one generated recommendation's completeness.
type QualityMetrics struct {
	CategoryCount  int     `json:"category_count"`
	HasFinancial   bool    `json:"has_financial_recommendations"`
	HasInsights    bool    `json:"has_insights"`
	InsightCount   int     `json:"insight_count"`
	BudgetCoverage float64 `json:"budget_coverage"`
}

// ClusterAnalysis summarizes the active cluster composition.
type ClusterAnalysis struct {
	ClusterCount    int                           `json:"cluster_count"`
	Sizes           map[int]int                   `json:"cluster_sizes"`
	Characteristics map[int]models.ClusterProfile `json:"cluster_characteristics"`
}

// RecommendationOverall are the headline recommendation scores.
type RecommendationOverall struct {
	SuccessRate     float64 `json:"success_rate"`
	UsersEvaluated  int     `json:"total_users_evaluated"`
	Successful      int     `json:"successful_recommendations"`
	ClustersCreated int     `json:"clusters_created"`
}

// RecommendationResult is the recommendation engine evaluation bundle.
type RecommendationResult struct {
	Err             string                                       `json:"error,omitempty"`
	SampleUsers     []int64                                      `json:"sample_users,omitempty"`
	Recommendations map[int64]*recommender.BudgetRecommendations `json:"user_recommendations,omitempty"`
	Failures        map[int64]string                             `json:"failures,omitempty"`
	Quality         map[int64]QualityMetrics                     `json:"recommendation_quality,omitempty"`
	Clusters        *ClusterAnalysis                             `json:"cluster_analysis,omitempty"`
	Overall         RecommendationOverall                        `json:"overall_metrics"`
	EvaluatedAt     time.Time                                    `json:"evaluation_timestamp"`
}

// EvaluateRecommendation generates budget recommendations for a sample of
// users and reports the success rate and cluster composition. A nil
// sampleUsers takes the first five distinct users in the batch.
func (e *Evaluator) EvaluateRecommendation(r *recommender.Recommender, records []models.TransactionRecord, categories []models.CategoryRecord, sampleUsers []int64) *RecommendationResult {
	result := &RecommendationResult{EvaluatedAt: time.Now().UTC()}

	e.log.Info("Evaluating budget recommendation engine")
	if !r.Trained() {
		result.Err = "recommendation engine not fitted"
		return result
	}

	if len(sampleUsers) == 0 {
		sampleUsers = firstUsers(records, 5)
	}
	result.SampleUsers = sampleUsers
	result.Recommendations = make(map[int64]*recommender.BudgetRecommendations)
	result.Failures = make(map[int64]string)
	result.Quality = make(map[int64]QualityMetrics)

	for _, userID := range sampleUsers {
		recommendation, err := r.GenerateBudgetRecommendations(records, categories, userID, 0, "balanced")
		if err != nil {
			e.log.WithError(err).WithField("user_id", userID).Warn("Could not generate recommendation")
			result.Failures[userID] = err.Error()
			continue
		}
		result.Recommendations[userID] = recommendation
		result.Quality[userID] = recommendationQuality(recommendation)
	}

	if profiles := r.ClusterProfiles(); len(profiles) > 0 {
		result.Clusters = analyzeClusters(profiles)
	}

	result.Overall = RecommendationOverall{
		SuccessRate:    float64(len(result.Recommendations)) / float64(len(sampleUsers)),
		UsersEvaluated: len(sampleUsers),
		Successful:     len(result.Recommendations),
	}
	if result.Clusters != nil {
		result.Overall.ClustersCreated = result.Clusters.ClusterCount
	}

	e.log.WithField("success_rate", result.Overall.SuccessRate).Info("Recommendation engine evaluation complete")
	return result
}

func recommendationQuality(recommendation *recommender.BudgetRecommendations) QualityMetrics {
	quality := QualityMetrics{
		CategoryCount: len(recommendation.Categories),
		HasFinancial:  recommendation.Financial.EmergencyFund.TargetMonths > 0,
		HasInsights:   len(recommendation.Insights) > 0,
		InsightCount:  len(recommendation.Insights),
	}
	if recommendation.TargetBudget > 0 {
		total := 0.0
		for _, cat := range recommendation.Categories {
			total += cat.RecommendedAmount
		}
		quality.BudgetCoverage = total / recommendation.TargetBudget
	}
	return quality
}

func analyzeClusters(profiles map[int]models.ClusterProfile) *ClusterAnalysis {
	analysis := &ClusterAnalysis{
		ClusterCount:    len(profiles),
		Sizes:           make(map[int]int, len(profiles)),
		Characteristics: make(map[int]models.ClusterProfile, len(profiles)),
	}
	for id, profile := range profiles {
		analysis.Sizes[id] = profile.MemberCount
		analysis.Characteristics[id] = profile
	}
	return analysis
}

func labelUnion(actual, predicted []string) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, name := range actual {
		if !seen[name] {
			seen[name] = true
			labels = append(labels, name)
		}
	}
	for _, name := range predicted {
		if !seen[name] {
			seen[name] = true
			labels = append(labels, name)
		}
	}
	sort.Strings(labels)
	return labels
}

func encodeLabels(names, labels []string) []int {
	index := make(map[string]int, len(labels))
	for i, name := range labels {
		index[name] = i
	}
	out := make([]int, len(names))
	for i, name := range names {
		out[i] = index[name]
	}
	return out
}

func perCategoryAccuracy(actual, predicted []string) map[string]float64 {
	hits := make(map[string]int)
	totals := make(map[string]int)
	for i := range actual {
		totals[actual[i]]++
		if actual[i] == predicted[i] {
			hits[actual[i]]++
		}
	}
	out := make(map[string]float64, len(totals))
	for name, total := range totals {
		out[name] = float64(hits[name]) / float64(total)
	}
	return out
}

func countDistinct(names []string) int {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
	}
	return len(seen)
}

func firstUsers(records []models.TransactionRecord, limit int) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for i := range records {
		if seen[records[i].UserID] {
			continue
		}
		seen[records[i].UserID] = true
		out = append(out, records[i].UserID)
		if len(out) == limit {
			break
		}
	}
	return out
}
