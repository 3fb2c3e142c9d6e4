// Package container provides dependency injection for the finance-ml
// application. It centralizes the creation and wiring of all application
// dependencies, making them explicit and testable.
package container

import (
	"fmt"

	"fjacquet/finance-ml/internal/artifact"
	"fjacquet/finance-ml/internal/categorizer"
	"fjacquet/finance-ml/internal/config"
	"fjacquet/finance-ml/internal/dataset"
	"fjacquet/finance-ml/internal/evaluation"
	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/models"
	"fjacquet/finance-ml/internal/predictor"
	"fjacquet/finance-ml/internal/recommender"
	"fjacquet/finance-ml/internal/store"
	"fjacquet/finance-ml/internal/trainer"
)

// Container holds all application dependencies and provides methods to
// access them. It is immutable after creation - all fields are private
// and can only be accessed through getter methods.
type Container struct {
	logger      logging.Logger
	config      *config.Config
	artifacts   *artifact.Store
	rules       *store.RuleStore
	categorizer *categorizer.Categorizer
	predictor   *predictor.Predictor
	recommender *recommender.Recommender
	evaluator   *evaluation.Evaluator
	trainer     *trainer.Trainer
}

// NewContainer creates and wires all application dependencies.
// The optional prediction sink receives every categorization and
// forecast the engines produce; pass nil to disable persistence.
func NewContainer(cfg *config.Config, sink models.PredictionSink) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	// Create logger first as it's needed by other components
	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	dataset.SetLogger(logger)

	artifacts, err := artifact.NewStore(cfg.Models.Directory, logger)
	if err != nil {
		return nil, fmt.Errorf("error opening model store: %w", err)
	}
	rules := store.NewRuleStore(cfg.Rules.Directory, logger)

	cat := categorizer.New(artifacts, rules, sink, cfg.Categorization.ConfidenceThreshold, logger)
	pred := predictor.New(artifacts, sink, logger)
	rec := recommender.New(artifacts, rules, pred, logger)
	eval := evaluation.New(cfg.Plots.Directory, logger)

	trainerCfg := trainer.Config{
		MinPerCategory:     cfg.Training.MinPerCategory,
		Period:             cfg.Period(),
		ForecastPeriods:    cfg.Prediction.ForecastPeriods,
		MaxPredictionUsers: cfg.Training.MaxPredictionUsers,
		SaveModels:         cfg.Models.Save,
	}
	history := trainer.NewFileHistory(cfg.History.Directory)
	train := trainer.New(cat, pred, rec, artifacts, history, trainerCfg, logger)

	logger.Info("Container initialized",
		logging.Field{Key: "models_dir", Value: cfg.Models.Directory},
		logging.Field{Key: "rules_dir", Value: cfg.Rules.Directory})

	return &Container{
		logger:      logger,
		config:      cfg,
		artifacts:   artifacts,
		rules:       rules,
		categorizer: cat,
		predictor:   pred,
		recommender: rec,
		evaluator:   eval,
		trainer:     train,
	}, nil
}

// LoadModels restores every persisted model artifact into its engine.
// Missing artifacts are not an error; engines simply stay untrained.
func (c *Container) LoadModels() {
	c.trainer.LoadAll()
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetArtifacts returns the container's model artifact store.
func (c *Container) GetArtifacts() *artifact.Store {
	return c.artifacts
}

// GetRules returns the container's rule store instance.
func (c *Container) GetRules() *store.RuleStore {
	return c.rules
}

// GetCategorizer returns the container's categorizer instance.
func (c *Container) GetCategorizer() *categorizer.Categorizer {
	return c.categorizer
}

// GetPredictor returns the container's spending predictor instance.
func (c *Container) GetPredictor() *predictor.Predictor {
	return c.predictor
}

// GetRecommender returns the container's budget recommender instance.
func (c *Container) GetRecommender() *recommender.Recommender {
	return c.recommender
}

// GetEvaluator returns the container's model evaluator instance.
func (c *Container) GetEvaluator() *evaluation.Evaluator {
	return c.evaluator
}

// GetTrainer returns the container's training pipeline instance.
func (c *Container) GetTrainer() *trainer.Trainer {
	return c.trainer
}
