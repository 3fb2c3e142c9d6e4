package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fjacquet/finance-ml/internal/predictor"
)

func clearTestEnvVars(t *testing.T) {
	t.Helper()
	envVars := []string{
		"FINML_LOG_LEVEL",
		"FINML_LOG_FORMAT",
		"FINML_MODELS_DIRECTORY",
		"FINML_MODELS_SAVE",
		"FINML_RULES_DIRECTORY",
		"FINML_PLOTS_DIRECTORY",
		"FINML_HISTORY_DIRECTORY",
		"FINML_TRAINING_MIN_PER_CATEGORY",
		"FINML_TRAINING_MAX_PREDICTION_USERS",
		"FINML_PREDICTION_PERIOD",
		"FINML_PREDICTION_FORECAST_PERIODS",
		"FINML_PREDICTION_ANOMALY_THRESHOLD",
		"FINML_CATEGORIZATION_CONFIDENCE_THRESHOLD",
		"FINML_RECOMMENDATION_BUDGET_STYLE",
	}
	for _, envVar := range envVars {
		require.NoError(t, os.Unsetenv(envVar))
	}
}

func validBaseConfig() *Config {
	return &Config{
		Log:            LogConfig{Level: "info", Format: "text"},
		Models:         ModelsConfig{Directory: "models", Save: true},
		Training:       TrainingConfig{MinPerCategory: 10, MaxPredictionUsers: 10},
		Prediction:     PredictionConfig{Period: "week", ForecastPeriods: 4, AnomalyThreshold: 2.5},
		Categorization: CategorizationConfig{ConfidenceThreshold: 0.5},
		Recommendation: RecommendationConfig{BudgetStyle: "balanced"},
	}
}

func TestInitializeConfig_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, "models", config.Models.Directory)
	assert.True(t, config.Models.Save)
	assert.Equal(t, "rules", config.Rules.Directory)
	assert.Equal(t, "plots", config.Plots.Directory)
	assert.Equal(t, "logs", config.History.Directory)
	assert.Equal(t, 10, config.Training.MinPerCategory)
	assert.Equal(t, 10, config.Training.MaxPredictionUsers)
	assert.Equal(t, "week", config.Prediction.Period)
	assert.Equal(t, predictor.PeriodWeek, config.Period())
	assert.Equal(t, 4, config.Prediction.ForecastPeriods)
	assert.Equal(t, 2.5, config.Prediction.AnomalyThreshold)
	assert.Equal(t, 0.5, config.Categorization.ConfidenceThreshold)
	assert.Equal(t, "balanced", config.Recommendation.BudgetStyle)
}

func TestInitializeConfig_EnvironmentVariables(t *testing.T) {
	clearTestEnvVars(t)

	testEnvVars := map[string]string{
		"FINML_LOG_LEVEL":                   "debug",
		"FINML_LOG_FORMAT":                  "json",
		"FINML_MODELS_DIRECTORY":            "/var/lib/finance-ml/models",
		"FINML_PREDICTION_PERIOD":           "month",
		"FINML_PREDICTION_FORECAST_PERIODS": "6",
		"FINML_RECOMMENDATION_BUDGET_STYLE": "conservative",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, "/var/lib/finance-ml/models", config.Models.Directory)
	assert.Equal(t, predictor.PeriodMonth, config.Period())
	assert.Equal(t, 6, config.Prediction.ForecastPeriods)
	assert.Equal(t, "conservative", config.Recommendation.BudgetStyle)
}

func TestInitializeConfig_ConfigFile(t *testing.T) {
	clearTestEnvVars(t)

	tempDir := t.TempDir()
	configContent := `
log:
  level: "warn"
  format: "json"
models:
  directory: "artifacts"
  save: false
prediction:
  period: "day"
  anomaly_threshold: 3.0
categorization:
  confidence_threshold: 0.7
`
	err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)
	require.NoError(t, err)

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.Chdir(originalDir))
	}()
	require.NoError(t, os.Chdir(tempDir))

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, "artifacts", config.Models.Directory)
	assert.False(t, config.Models.Save)
	assert.Equal(t, predictor.PeriodDay, config.Period())
	assert.Equal(t, 3.0, config.Prediction.AnomalyThreshold)
	assert.Equal(t, 0.7, config.Categorization.ConfidenceThreshold)
}

func TestInitializeConfig_HierarchicalPrecedence(t *testing.T) {
	clearTestEnvVars(t)

	tempDir := t.TempDir()
	configContent := `
log:
  level: "warn"
prediction:
  forecast_periods: 6
`
	err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("FINML_LOG_LEVEL", "error")
	t.Setenv("FINML_PREDICTION_FORECAST_PERIODS", "12")

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.Chdir(originalDir))
	}()
	require.NoError(t, os.Chdir(tempDir))

	config, err := InitializeConfig()
	require.NoError(t, err)

	// Env vars win over the config file, the file wins over defaults.
	assert.Equal(t, "error", config.Log.Level)
	assert.Equal(t, 12, config.Prediction.ForecastPeriods)
	assert.Equal(t, "week", config.Prediction.Period)
}

func TestValidateConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		expectError  string
	}{
		{
			name:         "invalid log level",
			modifyConfig: func(c *Config) { c.Log.Level = "invalid" },
			expectError:  "invalid log level",
		},
		{
			name:         "invalid log format",
			modifyConfig: func(c *Config) { c.Log.Format = "xml" },
			expectError:  "invalid log format",
		},
		{
			name:         "empty models directory",
			modifyConfig: func(c *Config) { c.Models.Directory = "" },
			expectError:  "models.directory must not be empty",
		},
		{
			name:         "zero min per category",
			modifyConfig: func(c *Config) { c.Training.MinPerCategory = 0 },
			expectError:  "training.min_per_category must be at least 1",
		},
		{
			name:         "invalid period",
			modifyConfig: func(c *Config) { c.Prediction.Period = "fortnight" },
			expectError:  "invalid prediction.period",
		},
		{
			name:         "forecast periods out of range",
			modifyConfig: func(c *Config) { c.Prediction.ForecastPeriods = 48 },
			expectError:  "prediction.forecast_periods must be between 1 and 24",
		},
		{
			name:         "negative anomaly threshold",
			modifyConfig: func(c *Config) { c.Prediction.AnomalyThreshold = -1 },
			expectError:  "prediction.anomaly_threshold must be positive",
		},
		{
			name:         "invalid confidence threshold",
			modifyConfig: func(c *Config) { c.Categorization.ConfidenceThreshold = 1.5 },
			expectError:  "categorization.confidence_threshold must be between 0.0 and 1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validBaseConfig()
			tt.modifyConfig(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestConfigureLoggingFromConfig(t *testing.T) {
	textLogger := ConfigureLoggingFromConfig(&Config{Log: LogConfig{Level: "info", Format: "text"}})
	require.NotNil(t, textLogger)

	jsonLogger := ConfigureLoggingFromConfig(&Config{Log: LogConfig{Level: "debug", Format: "json"}})
	require.NotNil(t, jsonLogger)
	assert.Equal(t, "debug", jsonLogger.GetLevel().String())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("FINML_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnv("FINML_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("FINML_TEST_KEY_MISSING", "fallback"))
}
