// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"fjacquet/finance-ml/internal/predictor"
)

// LogConfig controls log verbosity and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ModelsConfig controls where trained model artifacts live.
type ModelsConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Save      bool   `mapstructure:"save" yaml:"save"`
}

// RulesConfig controls where budget styles and merchant mappings live.
type RulesConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// PlotsConfig controls evaluation plot output. An empty directory
// disables plot generation.
type PlotsConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// HistoryConfig controls where training-history logs are written.
type HistoryConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// TrainingConfig tunes the full training pipeline.
type TrainingConfig struct {
	MinPerCategory     int `mapstructure:"min_per_category" yaml:"min_per_category"`
	MaxPredictionUsers int `mapstructure:"max_prediction_users" yaml:"max_prediction_users"`
}

// PredictionConfig tunes the spending prediction pipeline.
type PredictionConfig struct {
	Period           string  `mapstructure:"period" yaml:"period"`
	ForecastPeriods  int     `mapstructure:"forecast_periods" yaml:"forecast_periods"`
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold" yaml:"anomaly_threshold"`
}

// CategorizationConfig tunes the transaction categorization pipeline.
type CategorizationConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
}

// RecommendationConfig tunes the budget recommendation pipeline.
type RecommendationConfig struct {
	BudgetStyle string `mapstructure:"budget_style" yaml:"budget_style"`
}

// Config represents the complete application configuration
type Config struct {
	Log            LogConfig            `mapstructure:"log" yaml:"log"`
	Models         ModelsConfig         `mapstructure:"models" yaml:"models"`
	Rules          RulesConfig          `mapstructure:"rules" yaml:"rules"`
	Plots          PlotsConfig          `mapstructure:"plots" yaml:"plots"`
	History        HistoryConfig        `mapstructure:"history" yaml:"history"`
	Training       TrainingConfig       `mapstructure:"training" yaml:"training"`
	Prediction     PredictionConfig     `mapstructure:"prediction" yaml:"prediction"`
	Categorization CategorizationConfig `mapstructure:"categorization" yaml:"categorization"`
	Recommendation RecommendationConfig `mapstructure:"recommendation" yaml:"recommendation"`
}

// Period returns the configured aggregation period.
func (c *Config) Period() predictor.Period {
	return predictor.Period(c.Prediction.Period)
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.finance-ml")
	v.AddConfigPath(".finance-ml")
	v.AddConfigPath(".")

	// 3. Environment variables
	v.SetEnvPrefix("FINML")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Log the error but don't fail - continue with defaults and env vars
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
		// Config file not found or invalid is OK, we'll use defaults and env vars
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Storage defaults
	v.SetDefault("models.directory", "models")
	v.SetDefault("models.save", true)
	v.SetDefault("rules.directory", "rules")
	v.SetDefault("plots.directory", "plots")
	v.SetDefault("history.directory", "logs")

	// Training defaults
	v.SetDefault("training.min_per_category", 10)
	v.SetDefault("training.max_prediction_users", 10)

	// Prediction defaults
	v.SetDefault("prediction.period", "week")
	v.SetDefault("prediction.forecast_periods", 4)
	v.SetDefault("prediction.anomaly_threshold", 2.5)

	// Categorization defaults
	v.SetDefault("categorization.confidence_threshold", 0.5)

	// Recommendation defaults
	v.SetDefault("recommendation.budget_style", "balanced")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	// Validate model storage
	if config.Models.Directory == "" {
		return fmt.Errorf("models.directory must not be empty")
	}

	// Validate training tuning
	if config.Training.MinPerCategory < 1 {
		return fmt.Errorf("training.min_per_category must be at least 1, got: %d", config.Training.MinPerCategory)
	}
	if config.Training.MaxPredictionUsers < 1 {
		return fmt.Errorf("training.max_prediction_users must be at least 1, got: %d", config.Training.MaxPredictionUsers)
	}

	// Validate prediction tuning
	if !predictor.Period(config.Prediction.Period).Valid() {
		return fmt.Errorf("invalid prediction.period: %s (must be 'day', 'week' or 'month')", config.Prediction.Period)
	}
	if config.Prediction.ForecastPeriods < 1 || config.Prediction.ForecastPeriods > 24 {
		return fmt.Errorf("prediction.forecast_periods must be between 1 and 24, got: %d", config.Prediction.ForecastPeriods)
	}
	if config.Prediction.AnomalyThreshold <= 0 {
		return fmt.Errorf("prediction.anomaly_threshold must be positive, got: %f", config.Prediction.AnomalyThreshold)
	}

	// Validate confidence threshold
	if config.Categorization.ConfidenceThreshold < 0.0 || config.Categorization.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("categorization.confidence_threshold must be between 0.0 and 1.0, got: %f", config.Categorization.ConfidenceThreshold)
	}

	return nil
}

// ConfigureLoggingFromConfig configures logging based on the Config struct
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	// Parse and set log level
	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Configure log format
	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
