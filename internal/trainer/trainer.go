// Package trainer orchestrates the three model sub-pipelines: data
// validation first, then categorization, prediction, and recommendation
// training run sequentially with per-pipeline fault isolation. Every
// completed run appends a record to the training history sink.
package trainer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"fjacquet/finance-ml/internal/artifact"
	"fjacquet/finance-ml/internal/categorizer"
	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/mlerror"
	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/predictor"
	"fjacquet/finance-ml/internal/recommender"
)

// State is one sub-pipeline's lifecycle position.
type State string

const (
	StateUntrained State = "untrained"
	StateTraining  State = "training"
	StateTrained   State = "trained"
	StateFailed    State = "failed"
)

const (
	pipelineCategorization = "categorization"
	pipelinePrediction     = "prediction"
	pipelineRecommendation = "recommendation"
)

// Config tunes a training run.
type Config struct {
	// MinPerCategory drops categories with fewer labeled rows before
	// categorization training.
	MinPerCategory int

	// Period is the aggregation granularity for prediction training.
	Period predictor.Period

	// ForecastPeriods is how far ahead the post-training test forecast
	// looks.
	ForecastPeriods int

	// MaxPredictionUsers caps how many users get a prediction model in
	// one run.
	MaxPredictionUsers int

	// SaveModels persists each successfully trained model to the
	// artifact store.
	SaveModels bool
}

// DefaultConfig returns the standard training configuration.
func DefaultConfig() Config {
	return Config{
		MinPerCategory:     10,
		Period:             predictor.PeriodWeek,
		ForecastPeriods:    4,
		MaxPredictionUsers: 10,
		SaveModels:         true,
	}
}

// Trainer coordinates training across the three model pipelines.
type Trainer struct {
	categorizer *categorizer.Categorizer
	predictor   *predictor.Predictor
	recommender *recommender.Recommender
	artifacts   *artifact.Store
	history     HistorySink
	cfg         Config
	log         logging.Logger

	mu      sync.Mutex
	states  map[string]State
	lastRun time.Time
}

// New wires a trainer to the three pipelines, the shared artifact store,
// and a history sink. history may be nil to disable run records.
func New(c *categorizer.Categorizer, p *predictor.Predictor, r *recommender.Recommender, artifacts *artifact.Store, history HistorySink, cfg Config, logger logging.Logger) *Trainer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.MinPerCategory <= 0 {
		cfg.MinPerCategory = DefaultConfig().MinPerCategory
	}
	if !cfg.Period.Valid() {
		cfg.Period = DefaultConfig().Period
	}
	if cfg.ForecastPeriods <= 0 {
		cfg.ForecastPeriods = DefaultConfig().ForecastPeriods
	}
	if cfg.MaxPredictionUsers <= 0 {
		cfg.MaxPredictionUsers = DefaultConfig().MaxPredictionUsers
	}
	return &Trainer{
		categorizer: c,
		predictor:   p,
		recommender: r,
		artifacts:   artifacts,
		history:     history,
		cfg:         cfg,
		log:         logger,
		states: map[string]State{
			pipelineCategorization: StateUntrained,
			pipelinePrediction:     StateUntrained,
			pipelineRecommendation: StateUntrained,
		},
	}
}

// DataStats summarizes the batch handed to a training run.
type DataStats struct {
	TotalTransactions  int       `json:"total_transactions"`
	Categorized        int       `json:"categorized_transactions"`
	CategorizationRate float64   `json:"categorization_rate"`
	UniqueUsers        int       `json:"unique_users"`
	UniqueCategories   int       `json:"unique_categories"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
}

// ValidationResult is the outcome of pre-training data validation.
type ValidationResult struct {
	IsValid  bool      `json:"is_valid"`
	Errors   []string  `json:"errors,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
	Stats    DataStats `json:"data_stats"`
}

// ValidateTrainingData checks batch shape and volume before training.
func (t *Trainer) ValidateTrainingData(transactions []models.TransactionRecord, categories []models.CategoryRecord) ValidationResult {
	t.log.Info("Validating training data")
	result := ValidationResult{IsValid: true}

	if len(transactions) == 0 {
		result.Errors = append(result.Errors, "no transactions data provided")
		result.IsValid = false
	}
	if len(categories) == 0 {
		result.Errors = append(result.Errors, "no categories data provided")
		result.IsValid = false
	}
	if !result.IsValid {
		return result
	}

	users := make(map[int64]bool)
	perCategory := make(map[int64]int)
	categorized := 0
	var start, end time.Time
	missingDates := 0
	for i := range transactions {
		tx := &transactions[i]
		users[tx.UserID] = true
		if tx.CategoryID != nil {
			categorized++
			perCategory[*tx.CategoryID]++
		}
		if tx.Date.IsZero() {
			missingDates++
			continue
		}
		if start.IsZero() || tx.Date.Before(start) {
			start = tx.Date.Time
		}
		if end.IsZero() || tx.Date.After(end) {
			end = tx.Date.Time
		}
	}

	result.Stats = DataStats{
		TotalTransactions:  len(transactions),
		Categorized:        categorized,
		CategorizationRate: float64(categorized) / float64(len(transactions)),
		UniqueUsers:        len(users),
		UniqueCategories:   len(categories),
		Start:              start,
		End:                end,
	}

	if missingDates > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d transactions have no date", missingDates))
	}
	if categorized < 100 {
		result.Warnings = append(result.Warnings, "less than 100 categorized transactions available")
	}
	if len(users) < 5 {
		result.Warnings = append(result.Warnings, "less than 5 users in dataset")
	}
	small := 0
	for _, count := range perCategory {
		if count < t.cfg.MinPerCategory {
			small++
		}
	}
	if small > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%d categories have fewer than %d transactions", small, t.cfg.MinPerCategory))
	}

	t.log.WithField("valid", result.IsValid).Info("Data validation complete")
	return result
}

// CategorizationOutcome is one categorization training run's result.
type CategorizationOutcome struct {
	Status          string                       `json:"status"`
	Scores          map[string]categorizer.Score `json:"model_scores,omitempty"`
	BestModel       string                       `json:"best_model,omitempty"`
	TrainingRows    int                          `json:"training_data_size,omitempty"`
	TrainingSeconds float64                      `json:"training_time_seconds"`
	Err             string                       `json:"error,omitempty"`
}

// TrainCategorization filters out thin categories and trains the
// categorizer. With force false, an existing persisted model skips the
// run.
func (t *Trainer) TrainCategorization(transactions []models.TransactionRecord, categories []models.CategoryRecord, force bool) *CategorizationOutcome {
	t.log.Info("Training transaction categorization model")

	if !force && t.artifacts.Exists("categorizer") && t.categorizer.Trained() {
		t.log.Info("Categorization model is up to date, skipping training")
		return &CategorizationOutcome{Status: "skipped"}
	}

	t.setState(pipelineCategorization, StateTraining)

	perCategory := make(map[int64]int)
	for i := range transactions {
		if transactions[i].CategoryID != nil {
			perCategory[*transactions[i].CategoryID]++
		}
	}
	var training []models.TransactionRecord
	for i := range transactions {
		id := transactions[i].CategoryID
		if id != nil && perCategory[*id] >= t.cfg.MinPerCategory {
			training = append(training, transactions[i])
		}
	}

	started := time.Now()
	scores, err := t.categorizer.Train(training, categories)
	outcome := &CategorizationOutcome{
		Scores:          scores,
		TrainingRows:    len(training),
		TrainingSeconds: time.Since(started).Seconds(),
	}
	if err != nil {
		t.setState(pipelineCategorization, StateFailed)
		outcome.Status = "error"
		outcome.Err = err.Error()
		t.log.WithError(err).Error("Error training categorization model")
	} else {
		t.setState(pipelineCategorization, StateTrained)
		outcome.Status = "success"
		outcome.BestModel = t.categorizer.Algorithm()
		if t.cfg.SaveModels {
			if err := t.categorizer.Save(); err != nil {
				t.log.WithError(err).Error("Failed to save categorization model")
			}
		}
		t.log.WithField("best_model", outcome.BestModel).Info("Categorization model training complete")
	}

	t.record(Record{
		ModelType:       pipelineCategorization,
		Timestamp:       time.Now().UTC(),
		Status:          outcome.Status,
		TrainingRows:    outcome.TrainingRows,
		TrainingSeconds: outcome.TrainingSeconds,
		BestModel:       outcome.BestModel,
		Scores:          categorizationScores(scores),
		Err:             outcome.Err,
	})
	return outcome
}

// UserPredictionOutcome is one user's prediction training result.
type UserPredictionOutcome struct {
	Status          string                     `json:"status"`
	Scores          map[string]predictor.Score `json:"model_scores,omitempty"`
	BestModel       string                     `json:"best_model,omitempty"`
	TrainingSeconds float64                    `json:"training_time_seconds,omitempty"`
	Forecast        *predictor.Forecast        `json:"test_predictions,omitempty"`
	Err             string                     `json:"error,omitempty"`
}

// PredictionOutcome groups per-user prediction training results.
type PredictionOutcome struct {
	Status string                          `json:"status"`
	Users  map[int64]UserPredictionOutcome `json:"users"`
}

// TrainPrediction trains spending prediction models for the given users.
// A nil userIDs trains the first users found in the batch, capped by
// config.
func (t *Trainer) TrainPrediction(transactions []models.TransactionRecord, userIDs []int64) *PredictionOutcome {
	t.log.Info("Training spending prediction models")
	t.setState(pipelinePrediction, StateTraining)

	if len(userIDs) == 0 {
		userIDs = firstUsers(transactions, t.cfg.MaxPredictionUsers)
	}

	outcome := &PredictionOutcome{Users: make(map[int64]UserPredictionOutcome, len(userIDs))}
	succeeded := 0
	for _, userID := range userIDs {
		log := t.log.WithField("user_id", userID)
		log.Info("Training prediction model")

		started := time.Now()
		scores, err := t.predictor.Train(transactions, userID, t.cfg.Period)
		if err != nil {
			var insufficient *mlerror.InsufficientDataError
			if errors.As(err, &insufficient) {
				log.Warn("Insufficient data for prediction model")
				outcome.Users[userID] = UserPredictionOutcome{Status: "insufficient_data", Err: err.Error()}
			} else {
				log.WithError(err).Error("Error training prediction model")
				outcome.Users[userID] = UserPredictionOutcome{Status: "error", Err: err.Error()}
			}
			continue
		}

		user := UserPredictionOutcome{
			Status:          "success",
			Scores:          scores,
			BestModel:       t.predictor.Algorithm(),
			TrainingSeconds: time.Since(started).Seconds(),
		}
		if forecast, err := t.predictor.PredictFutureSpending(transactions, userID, t.cfg.ForecastPeriods); err == nil {
			user.Forecast = forecast
		}
		outcome.Users[userID] = user
		succeeded++
		log.Info("Prediction model trained")
	}

	if succeeded > 0 {
		outcome.Status = "success"
		t.setState(pipelinePrediction, StateTrained)
		if t.cfg.SaveModels {
			if err := t.predictor.Save(); err != nil {
				t.log.WithError(err).Error("Failed to save prediction model")
			}
		}
	} else {
		outcome.Status = "error"
		t.setState(pipelinePrediction, StateFailed)
	}

	t.record(Record{
		ModelType: pipelinePrediction,
		Timestamp: time.Now().UTC(),
		Status:    outcome.Status,
		BestModel: t.predictor.Algorithm(),
		Scores:    predictionScores(t.predictor.Performance()),
	})
	return outcome
}

// RecommendationOutcome is one recommendation training run's result.
type RecommendationOutcome struct {
	Status                string                     `json:"status"`
	Clusters              *recommender.ClusterResult `json:"clustering_results,omitempty"`
	TrainingSeconds       float64                    `json:"training_time_seconds"`
	SampleRecommendations int                        `json:"sample_recommendations"`
	Err                   string                     `json:"error,omitempty"`
}

// TrainRecommendation clusters the user base and smoke-tests
// recommendations for a few users.
func (t *Trainer) TrainRecommendation(transactions []models.TransactionRecord, categories []models.CategoryRecord) *RecommendationOutcome {
	t.log.Info("Training budget recommendation engine")
	t.setState(pipelineRecommendation, StateTraining)

	started := time.Now()
	clusters, err := t.recommender.CreateUserClusters(transactions, categories, 0)
	outcome := &RecommendationOutcome{TrainingSeconds: time.Since(started).Seconds()}
	if err != nil {
		t.setState(pipelineRecommendation, StateFailed)
		outcome.Status = "error"
		outcome.Err = err.Error()
		t.log.WithError(err).Error("Error training recommendation engine")
	} else {
		outcome.Status = "success"
		outcome.Clusters = clusters

		for _, userID := range firstUsers(transactions, 3) {
			if _, err := t.recommender.GenerateBudgetRecommendations(transactions, categories, userID, 0, "balanced"); err != nil {
				t.log.WithError(err).WithField("user_id", userID).Warn("Could not generate test recommendation")
				continue
			}
			outcome.SampleRecommendations++
		}

		t.setState(pipelineRecommendation, StateTrained)
		if t.cfg.SaveModels {
			if err := t.recommender.Save(); err != nil {
				t.log.WithError(err).Error("Failed to save recommendation model")
			}
		}
		t.log.Info("Budget recommendation engine training complete")
	}

	record := Record{
		ModelType:       pipelineRecommendation,
		Timestamp:       time.Now().UTC(),
		Status:          outcome.Status,
		TrainingSeconds: outcome.TrainingSeconds,
		Err:             outcome.Err,
	}
	if clusters != nil {
		record.Scores = map[string]float64{"clusters": float64(clusters.NumClusters)}
	}
	t.record(record)
	return outcome
}

// Summary reports a whole run's outcome.
type Summary struct {
	TotalModels   int       `json:"total_models"`
	Successful    int       `json:"successful_models"`
	OverallStatus string    `json:"overall_status"`
	CompletedAt   time.Time `json:"training_completed_at"`
}

// RunResult bundles a full training run.
type RunResult struct {
	Validation     ValidationResult       `json:"validation_results"`
	Categorization *CategorizationOutcome `json:"categorization,omitempty"`
	Prediction     *PredictionOutcome     `json:"prediction,omitempty"`
	Recommendation *RecommendationOutcome `json:"recommendation,omitempty"`
	Summary        Summary                `json:"summary"`
}

// TrainAll validates the batch and runs the three sub-pipelines in
// sequence. One pipeline's failure does not abort the others. A failed
// validation aborts the whole run with a DataValidationError.
func (t *Trainer) TrainAll(transactions []models.TransactionRecord, categories []models.CategoryRecord, force bool) (*RunResult, error) {
	t.log.Info("Starting training of all models")

	validation := t.ValidateTrainingData(transactions, categories)
	result := &RunResult{Validation: validation}
	if !validation.IsValid {
		return result, &mlerror.DataValidationError{Errors: validation.Errors}
	}

	result.Categorization = t.TrainCategorization(transactions, categories, force)
	result.Prediction = t.TrainPrediction(transactions, nil)
	result.Recommendation = t.TrainRecommendation(transactions, categories)

	successful := 0
	for _, status := range []string{
		result.Categorization.Status,
		result.Prediction.Status,
		result.Recommendation.Status,
	} {
		if status == "success" || status == "skipped" {
			successful++
		}
	}

	overall := "failure"
	switch {
	case successful == 3:
		overall = "success"
	case successful == 2:
		overall = "partial_failure"
	}
	result.Summary = Summary{
		TotalModels:   3,
		Successful:    successful,
		OverallStatus: overall,
		CompletedAt:   time.Now().UTC(),
	}

	t.mu.Lock()
	t.lastRun = result.Summary.CompletedAt
	t.mu.Unlock()

	t.log.WithFields(
		logging.Field{Key: "successful", Value: successful},
		logging.Field{Key: "status", Value: overall},
	).Info("Model training complete")
	return result, nil
}

// ModelStatus is one pipeline's current position.
type ModelStatus struct {
	State          State `json:"state"`
	Trained        bool  `json:"is_trained"`
	ArtifactExists bool  `json:"model_file_exists"`
}

// StatusReport is the whole trainer's status snapshot.
type StatusReport struct {
	Categorization ModelStatus `json:"categorization"`
	Prediction     ModelStatus `json:"prediction"`
	Recommendation ModelStatus `json:"recommendation"`
	LastTraining   time.Time   `json:"last_training,omitempty"`
}

// Status reports each pipeline's state, in-memory model, and persisted
// artifact.
func (t *Trainer) Status() StatusReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return StatusReport{
		Categorization: ModelStatus{
			State:          t.states[pipelineCategorization],
			Trained:        t.categorizer.Trained(),
			ArtifactExists: t.artifacts.Exists("categorizer"),
		},
		Prediction: ModelStatus{
			State:          t.states[pipelinePrediction],
			Trained:        t.predictor.Trained(),
			ArtifactExists: t.artifacts.Exists("predictor"),
		},
		Recommendation: ModelStatus{
			State:          t.states[pipelineRecommendation],
			Trained:        t.recommender.Trained(),
			ArtifactExists: t.artifacts.Exists("recommender"),
		},
		LastTraining: t.lastRun,
	}
}

// LoadAll restores every persisted model best effort and reports which
// loads succeeded.
func (t *Trainer) LoadAll() map[string]error {
	t.log.Info("Loading all trained models")
	results := make(map[string]error, 3)

	results[pipelineCategorization] = t.categorizer.Load()
	if results[pipelineCategorization] == nil {
		t.setState(pipelineCategorization, StateTrained)
	} else {
		t.log.WithError(results[pipelineCategorization]).Warn("Could not load categorization model")
	}

	results[pipelinePrediction] = t.predictor.Load()
	if results[pipelinePrediction] == nil {
		t.setState(pipelinePrediction, StateTrained)
	} else {
		t.log.WithError(results[pipelinePrediction]).Warn("Could not load prediction model")
	}

	results[pipelineRecommendation] = t.recommender.Load()
	if results[pipelineRecommendation] == nil {
		t.setState(pipelineRecommendation, StateTrained)
	} else {
		t.log.WithError(results[pipelineRecommendation]).Warn("Could not load recommendation model")
	}

	return results
}

func (t *Trainer) setState(pipeline string, state State) {
	t.mu.Lock()
	t.states[pipeline] = state
	t.mu.Unlock()
}

func (t *Trainer) record(r Record) {
	if t.history == nil {
		return
	}
	if err := t.history.Append(r); err != nil {
		t.log.WithError(err).Warn("Failed to append training history record")
	}
}

func categorizationScores(scores map[string]categorizer.Score) map[string]float64 {
	if len(scores) == 0 {
		return nil
	}
	out := make(map[string]float64, len(scores))
	for name, s := range scores {
		out[name+"_cv_accuracy"] = s.CVAccuracy
	}
	return out
}

func predictionScores(scores map[string]predictor.Score) map[string]float64 {
	if len(scores) == 0 {
		return nil
	}
	out := make(map[string]float64, len(scores))
	for name, s := range scores {
		if !math.IsInf(s.CVMAE, 1) {
			out[name+"_cv_mae"] = s.CVMAE
		}
	}
	return out
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
