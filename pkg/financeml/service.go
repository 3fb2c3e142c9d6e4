// Package financeml is the public entry point for embedding the ML core
// in another application. It wraps model training, categorization,
// forecasting, recommendation and evaluation behind one service type;
// everything underneath stays internal.
package financeml

import (
	"fjacquet/finance-ml/internal/categorizer"
	"fjacquet/finance-ml/internal/config"
	"fjacquet/finance-ml/internal/container"
	"fjacquet/finance-ml/internal/evaluation"
	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/predictor"
	"fjacquet/finance-ml/internal/recommender"
	"fjacquet/finance-ml/internal/trainer"
)

// Re-exported row types so embedders do not import internal packages.
type (
	// TransactionRecord is one row of the transaction extract.
	TransactionRecord = models.TransactionRecord
	// CategoryRecord is one row of the category extract.
	CategoryRecord = models.CategoryRecord
	// PredictionRecord is one persisted model output.
	PredictionRecord = models.PredictionRecord
	// PredictionSink receives every prediction the engines produce.
	PredictionSink = models.PredictionSink

	// Prediction is a single category prediction.
	Prediction = categorizer.Prediction
	// Suggestion is one ranked category candidate.
	Suggestion = categorizer.Suggestion
	// Forecast is a future-spending forecast.
	Forecast = predictor.Forecast
	// Anomaly is one unusual spending period.
	Anomaly = predictor.Anomaly
	// BudgetRecommendations is a full budget recommendation bundle.
	BudgetRecommendations = recommender.BudgetRecommendations
	// RunResult is the outcome of a full training run.
	RunResult = trainer.RunResult
	// StatusReport describes the state of every model.
	StatusReport = trainer.StatusReport
)

// Service bundles the trained models behind one handle. All methods are
// safe for concurrent use once the service is constructed.
type Service struct {
	app *container.Container
}

// NewService wires a service from configuration. The optional sink
// receives every categorization and forecast produced; pass nil to
// disable persistence. Saved model artifacts are loaded when present.
func NewService(cfg *config.Config, sink PredictionSink) (*Service, error) {
	app, err := container.NewContainer(cfg, sink)
	if err != nil {
		return nil, err
	}
	app.LoadModels()
	return &Service{app: app}, nil
}

// NewServiceFromEnvironment builds a service from the hierarchical
// configuration (defaults, config file, FINML_ environment variables).
func NewServiceFromEnvironment(sink PredictionSink) (*Service, error) {
	cfg, err := config.InitializeConfig()
	if err != nil {
		return nil, err
	}
	return NewService(cfg, sink)
}

// Train validates the batch and trains all three models.
func (s *Service) Train(transactions []TransactionRecord, categories []CategoryRecord, force bool) (*RunResult, error) {
	return s.app.GetTrainer().TrainAll(transactions, categories, force)
}

// Categorize predicts the category of a single transaction.
func (s *Service) Categorize(tx TransactionRecord) (Prediction, error) {
	return s.app.GetCategorizer().PredictCategory(tx)
}

// CategorizeBatch predicts categories for a whole extract.
func (s *Service) CategorizeBatch(transactions []TransactionRecord) ([]Prediction, error) {
	return s.app.GetCategorizer().PredictBatch(transactions)
}

// Suggest returns the top ranked category candidates for a description.
func (s *Service) Suggest(description string, topK int) ([]Suggestion, error) {
	return s.app.GetCategorizer().Suggestions(description, topK)
}

// RecordFeedback stores a user correction for future retraining.
func (s *Service) RecordFeedback(tx TransactionRecord, categoryName string) error {
	return s.app.GetCategorizer().RecordFeedback(tx, categoryName)
}

// ForecastSpending predicts a user's spending for the next periods.
func (s *Service) ForecastSpending(transactions []TransactionRecord, userID int64, periodsAhead int) (*Forecast, error) {
	if periodsAhead <= 0 {
		periodsAhead = s.app.GetConfig().Prediction.ForecastPeriods
	}
	return s.app.GetPredictor().PredictFutureSpending(transactions, userID, periodsAhead)
}

// DetectAnomalies finds unusual spending periods for a user using the
// configured aggregation period and threshold.
func (s *Service) DetectAnomalies(transactions []TransactionRecord, userID int64) ([]Anomaly, error) {
	cfg := s.app.GetConfig()
	return s.app.GetPredictor().DetectSpendingAnomalies(
		transactions, userID, cfg.Period(), cfg.Prediction.AnomalyThreshold)
}

// Recommend generates budget recommendations for a user. A zero target
// budget derives one from history; an empty style uses the configured
// default.
func (s *Service) Recommend(transactions []TransactionRecord, categories []CategoryRecord, userID int64, targetBudget float64, style string) (*BudgetRecommendations, error) {
	if style == "" {
		style = s.app.GetConfig().Recommendation.BudgetStyle
	}
	return s.app.GetRecommender().GenerateBudgetRecommendations(
		transactions, categories, userID, targetBudget, style)
}

// EvaluationBundle groups the three per-model evaluation results with
// the rendered markdown report.
type EvaluationBundle struct {
	Categorization *evaluation.CategorizationResult `json:"categorization"`
	Prediction     *evaluation.PredictionResult     `json:"prediction"`
	Recommendation *evaluation.RecommendationResult `json:"recommendation"`
	Report         string                           `json:"report"`
}

// Evaluate scores all trained models against an extract. Untrained
// models are reported inside the bundle rather than failing the call.
func (s *Service) Evaluate(transactions []TransactionRecord, categories []CategoryRecord, userID int64) *EvaluationBundle {
	e := s.app.GetEvaluator()
	cat := e.EvaluateCategorization(s.app.GetCategorizer(), transactions, categories)
	pred := e.EvaluatePrediction(s.app.GetPredictor(), transactions, userID)
	rec := e.EvaluateRecommendation(s.app.GetRecommender(), transactions, categories, nil)
	return &EvaluationBundle{
		Categorization: cat,
		Prediction:     pred,
		Recommendation: rec,
		Report:         e.Report(cat, pred, rec),
	}
}

// Status reports the state of every model and artifact.
func (s *Service) Status() StatusReport {
	return s.app.GetTrainer().Status()
}
